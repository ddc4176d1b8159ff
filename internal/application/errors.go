package application

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("invalid payload")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDependency         = errors.New("dependency unavailable")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// NormalizeEmail is the only form of an email used as a lookup or cache key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
