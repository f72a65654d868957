package httpapi

import (
	"net/http"
	"strings"

	"flowbit.dev/internal/auth"
)

const tenantHeader = "X-Tenant-Id"

// RequireRole admits principals whose role is exactly one of allowed.
func RequireRole(allowed ...auth.Role) Stage {
	return Stage{Name: "require-role", Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !auth.HasRole(p.Role, allowed...) {
				writeError(w, r, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}}
}

// RequireAdmin admits Admin and SuperAdmin.
func RequireAdmin() Stage {
	return Stage{Name: "require-admin", Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !auth.IsAdmin(p.Role) {
				writeError(w, r, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}}
}

// requestedTenant is the tenant a request declares it targets: the override
// header, else the customerId query parameter.
func requestedTenant(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(tenantHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("customerId"))
}

// TenantIsolation resolves the effective tenant for the request. A SuperAdmin
// sending X-Tenant-Id acts on that tenant; anyone else targeting a tenant
// other than their own is rejected with 403.
func TenantIsolation() Stage {
	return Stage{Name: "tenant-isolation", Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok || p.TenantID == "" {
				writeError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			effective := p.TenantID
			override := strings.TrimSpace(r.Header.Get(tenantHeader))
			switch target := requestedTenant(r); {
			case auth.IsSuperAdmin(p.Role) && override != "":
				effective = override
			case target != "" && target != p.TenantID:
				writeError(w, r, http.StatusForbidden, "Cross-tenant access not allowed")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithTenant(r.Context(), effective)))
		})
	}}
}

// effectiveTenant returns the tenant resolved by TenantIsolation, falling
// back to the principal's own.
func effectiveTenant(r *http.Request) string {
	t, _ := auth.TenantFromContext(r.Context())
	return t
}
