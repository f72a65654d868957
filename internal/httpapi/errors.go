package httpapi

import (
	"errors"
	"net/http"

	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/obs"
	"flowbit.dev/internal/ticket"
)

const internalErrorMessage = "Internal server error"

// authFailureMessage is the client-facing reason for a 401 from the
// authentication stage.
func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrAuthHeaderMissing):
		return "Authorization header missing"
	case errors.Is(err, auth.ErrAuthHeaderMalformed):
		return "Invalid authorization header format"
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, auth.ErrClaimsInvalidShape):
		return "Invalid token payload"
	case errors.Is(err, auth.ErrAccountInactive):
		return "User account is inactive or deleted"
	default:
		return "Invalid token"
	}
}

// handleError is the single place where domain errors become HTTP statuses.
// Anything unrecognised is logged and reduced to a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, ticket.ErrNotFound):
		writeError(w, r, http.StatusNotFound, notFound)
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "User with this email already exists")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, ticket.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrAccountInactive), auth.IsTokenError(err), errors.Is(err, auth.ErrClaimsInvalidShape):
		writeError(w, r, http.StatusUnauthorized, authFailureMessage(err))
	case errors.Is(err, auth.ErrInsufficientRole):
		writeError(w, r, http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, auth.ErrCrossTenantAccess):
		writeError(w, r, http.StatusForbidden, "Cross-tenant access not allowed")
	default:
		obs.Logger().Error().Err(err).
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request_failed")
		writeError(w, r, http.StatusInternalServerError, internalErrorMessage)
	}
}
