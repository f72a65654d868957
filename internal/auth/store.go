package auth

import (
	"context"
	"time"
)

// Visibility selects whether soft-deleted rows take part in a query. Stores
// never apply it implicitly; every call site picks one.
type Visibility int

const (
	ExcludeDeleted Visibility = iota
	IncludeDeleted
)

// UserFilter narrows user listings.
type UserFilter struct {
	TenantID   string
	Role       Role
	IsActive   *bool
	Visibility Visibility
	Offset     int
	Limit      int
}

// ProfileUpdate carries optional profile changes. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Avatar    *string
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string, vis Visibility) (*User, error)
	FindByEmail(ctx context.Context, tenantID, email string, vis Visibility) (*User, error)
	List(ctx context.Context, f UserFilter) ([]*User, int, error)
	SetActive(ctx context.Context, tenantID, id string, active bool) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	CountByRole(ctx context.Context, tenantID string) ([]RoleCount, error)
}
