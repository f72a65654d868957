package httpapi

import (
	"net/http"
	"strings"
	"time"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/auth"
)

const defaultAuditLimit = 20

type profileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=50"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=50"`
	Avatar    *string `json:"avatar" validate:"omitempty,url"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	u, err := a.deps.Users.FindByID(r.Context(), p.UserID, auth.ExcludeDeleted)
	if err != nil {
		handleError(w, r, err, "User not found")
		return
	}
	writeData(w, http.StatusOK, u, "")
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if details := validateStruct(&req); len(details) > 0 {
		writeErrorDetails(w, r, http.StatusBadRequest, "Validation failed", details)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	u, err := a.deps.Users.UpdateProfile(r.Context(), p.UserID, auth.ProfileUpdate{
		FirstName: trimmed(req.FirstName),
		LastName:  trimmed(req.LastName),
		Avatar:    req.Avatar,
	})
	if err != nil {
		handleError(w, r, err, "User not found")
		return
	}
	writeData(w, http.StatusOK, u, "Profile updated successfully")
}

func (a *API) screens(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	cfg, ok := tenantUI(p.TenantID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "Tenant configuration not found")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"tenant":  map[string]string{"name": cfg.Name, "theme": cfg.Theme},
		"screens": cfg.screensFor(p.Role),
	}, "")
}

func (a *API) myAuditLogs(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	f, ok := auditFilter(w, r)
	if !ok {
		return
	}
	f.TenantID = p.TenantID
	f.UserID = p.UserID
	a.writeAuditPage(w, r, f)
}

// auditFilter parses the shared audit listing query. It writes a 400 and
// returns false on malformed dates.
func auditFilter(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	page, limit := pageParams(r, defaultAuditLimit, maxPageLimit)
	q := r.URL.Query()
	f := audit.Filter{
		Action: audit.Action(strings.TrimSpace(q.Get("action"))),
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	var err error
	if f.From, err = parseDate(q.Get("startDate")); err != nil {
		writeError(w, r, http.StatusBadRequest, "startDate must be an ISO 8601 date")
		return f, false
	}
	if f.To, err = parseDate(q.Get("endDate")); err != nil {
		writeError(w, r, http.StatusBadRequest, "endDate must be an ISO 8601 date")
		return f, false
	}
	return f, true
}

func (a *API) writeAuditPage(w http.ResponseWriter, r *http.Request, f audit.Filter) {
	events, total, err := a.deps.AuditStore.List(r.Context(), f)
	if err != nil {
		handleError(w, r, err, "")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	page := f.Offset/f.Limit + 1
	writePage(w, events, newPagination(page, f.Limit, total))
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates. Empty
// input yields the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
