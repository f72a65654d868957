package auth

import "errors"

var (
	ErrAuthHeaderMissing   = errors.New("auth: authorization header missing")
	ErrAuthHeaderMalformed = errors.New("auth: invalid authorization header format")
	ErrTokenExpired        = errors.New("auth: token expired")
	ErrTokenInvalid        = errors.New("auth: invalid token")
	ErrTokenMalformed      = errors.New("auth: malformed token")
	ErrClaimsInvalidShape  = errors.New("auth: invalid token payload")
	ErrAccountInactive     = errors.New("auth: user account is inactive or deleted")
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrInsufficientRole    = errors.New("auth: insufficient permissions")
	ErrCrossTenantAccess   = errors.New("auth: cross-tenant access not allowed")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)

// IsTokenError reports whether err came from token verification.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenMalformed)
}
