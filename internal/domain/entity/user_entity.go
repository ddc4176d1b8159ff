package entity

import (
	"time"
)

// AccountStatus tags the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
	StatusDeleted  AccountStatus = "deleted"
)

// User is the aggregate root for the account domain and doubles as the
// stored credential record.
//
// PasswordHash/PasswordSalt are interpreted by the credential package;
// PasswordScheme is the marker written alongside them and is informational
// only, detection always works from the hash and salt shapes.
type User struct {
	ID                   string
	Email                string // normalized, unique
	PasswordHash         string
	PasswordSalt         string
	PasswordScheme       string
	Status               AccountStatus
	FirstName            string
	LastName             string
	CalendarRefreshToken string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// IsCalendarLinked reports whether a calendar integration is connected.
func (u *User) IsCalendarLinked() bool {
	return u.CalendarRefreshToken != ""
}

// Clone returns a shallow copy; all fields are values.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// CredentialUpdate replaces hash, salt and scheme marker as one unit.
//
// ExpectedHash, when set, makes the write conditional on the currently stored
// hash so a rewrite based on an older read never clobbers a newer password.
type CredentialUpdate struct {
	Hash         string
	Salt         string
	Scheme       string
	ExpectedHash string
}
