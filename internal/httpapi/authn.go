package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/obs"
)

const authHeader = "Authorization"

// Authenticator turns a bearer token into a live principal. *auth.Service
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

// bearerToken walks the header part of the authentication state machine.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get(authHeader)
	if strings.TrimSpace(header) == "" {
		return "", auth.ErrAuthHeaderMissing
	}
	token, ok := auth.ExtractFromHeader(header)
	if !ok {
		return "", auth.ErrAuthHeaderMalformed
	}
	return token, nil
}

// Authenticate requires a valid bearer token for a live account. Every
// failed step ends the request with 401 and the step's reason.
func Authenticate(a Authenticator) Stage {
	return Stage{Name: "authenticate", Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, authFailureMessage(err))
				return
			}
			principal, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if isAuthFailure(err) {
					writeError(w, r, http.StatusUnauthorized, authFailureMessage(err))
					return
				}
				handleError(w, r, err, "")
				return
			}
			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			ctx = auth.ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}}
}

// OptionalAuth runs the same checks but never rejects: on any failure the
// request continues without a principal.
func OptionalAuth(a Authenticator) Stage {
	return Stage{Name: "optional-auth", Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if !isAuthFailure(err) {
					obs.Logger().Warn().Err(err).
						Str("request_id", RequestIDFromContext(r.Context())).
						Msg("optional_auth_failed")
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			ctx = auth.ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}}
}

func isAuthFailure(err error) bool {
	return auth.IsTokenError(err) ||
		errors.Is(err, auth.ErrClaimsInvalidShape) ||
		errors.Is(err, auth.ErrAccountInactive)
}
