package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"flowbit.dev/internal/auth"
)

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	TenantID   string `json:"tenantId"`
	CustomerID string `json:"customerId"`
}

func (req *loginRequest) tenant() string {
	if t := strings.TrimSpace(req.TenantID); t != "" {
		return t
	}
	return strings.TrimSpace(req.CustomerID)
}

type loginResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    int64      `json:"expiresIn"`
	User         *auth.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	details := validateStruct(&req)
	if req.tenant() == "" {
		details = append(details, fieldError{Field: "tenantId", Message: "Customer ID is required"})
	}
	if len(details) > 0 {
		writeErrorDetails(w, r, http.StatusBadRequest, "Validation failed", details)
		return
	}

	res, err := a.deps.Auth.Login(r.Context(), req.tenant(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		handleError(w, r, err, "")
		return
	}
	writeData(w, http.StatusOK, loginResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
		User:         res.User,
	}, "Login successful")
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "Refresh token is required")
		return
	}
	access, expiresIn, err := a.deps.Auth.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, r, http.StatusUnauthorized, authFailureMessage(err))
		return
	case auth.IsTokenError(err), errors.Is(err, auth.ErrClaimsInvalidShape):
		writeError(w, r, http.StatusUnauthorized, "Invalid refresh token")
		return
	default:
		handleError(w, r, err, "")
		return
	}
	writeData(w, http.StatusOK, refreshResponse{AccessToken: access, ExpiresIn: expiresIn}, "Token refreshed successfully")
}

// logout always succeeds. Tokens are stateless; the bearer token, if any,
// only attributes the LOGOUT audit event.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if token, err := bearerToken(r); err == nil {
		a.deps.Auth.Logout(r.Context(), token, requestMeta(r))
	}
	writeMessage(w, http.StatusOK, "Logout successful")
}
