package auth

import "time"

// Profile holds display information for a user.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar,omitempty"`
}

// User is an account scoped to exactly one tenant.
type User struct {
	ID           string     `json:"_id"`
	TenantID     string     `json:"customerId"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Profile      Profile    `json:"profile"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// Live reports whether the account may authenticate: it exists, is active
// and has not been soft-deleted.
func (u *User) Live() bool {
	return u != nil && u.IsActive && u.DeletedAt == nil
}

// Identity returns the token claim set for the user.
func (u *User) Identity() Identity {
	return Identity{TenantID: u.TenantID, Role: u.Role, UserID: u.ID, Email: u.Email}
}

// RoleCount is one row of the per-role user breakdown.
type RoleCount struct {
	Role   Role `json:"role"`
	Count  int  `json:"count"`
	Active int  `json:"active"`
}
