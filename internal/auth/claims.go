package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the claim set embedded in every access and refresh token.
type Identity struct {
	TenantID string
	Role     Role
	UserID   string
	Email    string
}

// Claims is the signed token payload. Field names are part of the wire contract
// with clients that decode tokens themselves.
type Claims struct {
	TenantID string `json:"customerId"`
	Role     Role   `json:"role"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Identity returns the identity portion of the claims.
func (c *Claims) Identity() Identity {
	return Identity{TenantID: c.TenantID, Role: c.Role, UserID: c.UserID, Email: c.Email}
}

// ValidateClaimsShape checks that a verified payload carries every identity
// field, both timestamps and a canonical role. It runs after signature
// verification to reject tokens minted by a misconfigured issuer that shares the secret.
func ValidateClaimsShape(c *Claims) bool {
	if c == nil {
		return false
	}
	if strings.TrimSpace(c.TenantID) == "" || strings.TrimSpace(c.UserID) == "" || strings.TrimSpace(c.Email) == "" {
		return false
	}
	if !c.Role.Valid() {
		return false
	}
	return c.IssuedAt != nil && c.ExpiresAt != nil
}

func (id Identity) validate() error {
	if strings.TrimSpace(id.TenantID) == "" || strings.TrimSpace(id.UserID) == "" || strings.TrimSpace(id.Email) == "" {
		return ErrInvalidInput
	}
	if !id.Role.Valid() {
		return ErrInvalidInput
	}
	return nil
}
