package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrCredentialChanged = errors.New("credential changed since it was read")
)

// UserRepository defines the interface for user-related database operations.
// Lookups and updates never see accounts whose status is deleted.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	FindByNormalizedEmail(ctx context.Context, email string) (*entity.User, error)
	UpdateCredential(ctx context.Context, userID string, c entity.CredentialUpdate) error
	UpdateProfile(ctx context.Context, u *entity.User) error
}
