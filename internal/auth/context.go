package auth

import (
	"context"
	"time"
)

// Principal is the authenticated caller for the lifetime of one request.
type Principal struct {
	TenantID  string
	UserID    string
	Role      Role
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PrincipalFromClaims builds a Principal from verified claims.
func PrincipalFromClaims(c *Claims) Principal {
	p := Principal{TenantID: c.TenantID, UserID: c.UserID, Role: c.Role, Email: c.Email}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

type principalContextKey struct{}
type tokenContextKey struct{}
type tenantContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextWithTenant records the effective tenant resolved by tenant isolation.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext returns the effective tenant for the request. It falls
// back to the principal's own tenant when isolation has not run.
func TenantFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(tenantContextKey{}).(string); ok && v != "" {
		return v, true
	}
	if p, ok := PrincipalFromContext(ctx); ok && p.TenantID != "" {
		return p.TenantID, true
	}
	return "", false
}
