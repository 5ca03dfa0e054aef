package perizia

import (
	"context"
	"time"
)

// Role gates authorization decisions. Admin routes re-check it against the
// store on every request rather than trusting token claims.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the identity record behind both login paths. Accounts created via
// Google federation have no password hash; locally registered accounts have
// no Google ID until they first sign in with Google.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	GoogleID       string     `json:"googleId,omitempty"`
	ProfilePicture string     `json:"profilePicture,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Role           Role       `json:"role"`
	LastSeen       *time.Time `json:"lastSeen,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// UserStore is the credential store port. Implementations must provide
// per-record atomicity and uniqueness constraints on email, username and
// Google ID; Create reports a collision as ErrDuplicateIdentity and lookup
// misses as ErrUserNotFound.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	Create(ctx context.Context, user *User) error
	Save(ctx context.Context, user *User) error
	List(ctx context.Context) ([]*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, error)
}
