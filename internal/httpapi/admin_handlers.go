package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/ticket"
)

const (
	defaultUserLimit     = 20
	defaultAnalyticsDays = 30
)

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      string `json:"role"`
	FirstName string `json:"firstName" validate:"omitempty,max=50"`
	LastName  string `json:"lastName" validate:"omitempty,max=50"`
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, defaultUserLimit, maxPageLimit)
	q := r.URL.Query()
	f := auth.UserFilter{
		TenantID:   effectiveTenant(r),
		Visibility: auth.ExcludeDeleted,
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}
	if raw := strings.TrimSpace(q.Get("role")); raw != "" {
		role, err := auth.ParseRole(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "role must be one of: User, Admin, SuperAdmin")
			return
		}
		f.Role = role
	}
	if raw := strings.TrimSpace(q.Get("isActive")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "isActive must be true or false")
			return
		}
		f.IsActive = &active
	}
	users, total, err := a.deps.Users.List(r.Context(), f)
	if err != nil {
		handleError(w, r, err, "")
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	writePage(w, users, newPagination(page, limit, total))
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if details := validateStruct(&req); len(details) > 0 {
		writeErrorDetails(w, r, http.StatusBadRequest, "Validation failed", details)
		return
	}
	role := auth.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			writeErrorDetails(w, r, http.StatusBadRequest, "Validation failed",
				[]fieldError{{Field: "role", Message: "role must be one of: User, Admin, SuperAdmin"}})
			return
		}
		role = parsed
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	if role == auth.RoleSuperAdmin && !auth.IsSuperAdmin(p.Role) {
		writeError(w, r, http.StatusForbidden, "Insufficient permissions")
		return
	}
	u, err := a.deps.Auth.CreateUser(r.Context(), auth.NewUser{
		TenantID:  effectiveTenant(r),
		Email:     req.Email,
		Password:  req.Password,
		Role:      role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleError(w, r, err, "")
		return
	}
	writeData(w, http.StatusCreated, u, "User created successfully")
}

func (a *API) activateUser(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Users.SetActive(r.Context(), effectiveTenant(r), r.PathValue("id"), true); err != nil {
		handleError(w, r, err, "User not found")
		return
	}
	writeMessage(w, http.StatusOK, "User activated successfully")
}

func (a *API) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, _ := auth.PrincipalFromContext(r.Context())
	if id == p.UserID {
		writeError(w, r, http.StatusBadRequest, "Cannot deactivate your own account")
		return
	}
	if err := a.deps.Users.SetActive(r.Context(), effectiveTenant(r), id, false); err != nil {
		handleError(w, r, err, "User not found")
		return
	}
	writeMessage(w, http.StatusOK, "User deactivated successfully")
}

func (a *API) adminAuditLogs(w http.ResponseWriter, r *http.Request) {
	f, ok := auditFilter(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f.TenantID = effectiveTenant(r)
	f.UserID = strings.TrimSpace(q.Get("userId"))
	f.ResourceType = strings.TrimSpace(q.Get("resourceType"))
	a.writeAuditPage(w, r, f)
}

type period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type ticketStats struct {
	ByStatus []ticket.StatusCount `json:"byStatus"`
	Trends   []ticket.DailyCount  `json:"trends"`
	Total    int                  `json:"total"`
}

type userStats struct {
	ByRole []auth.RoleCount `json:"byRole"`
	Total  int              `json:"total"`
	Active int              `json:"active"`
}

type auditStats struct {
	Summary []audit.ActionSummary `json:"summary"`
	Total   int                   `json:"total"`
}

type analyticsResponse struct {
	Period  period      `json:"period"`
	Tickets ticketStats `json:"tickets"`
	Users   userStats   `json:"users"`
	Audit   auditStats  `json:"audit"`
}

func (a *API) analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	end, err := parseDate(q.Get("endDate"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "endDate must be an ISO 8601 date")
		return
	}
	start, err := parseDate(q.Get("startDate"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "startDate must be an ISO 8601 date")
		return
	}
	if end.IsZero() {
		end = a.now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -defaultAnalyticsDays)
	}
	if start.After(end) {
		writeError(w, r, http.StatusBadRequest, "startDate must be before endDate")
		return
	}

	ctx := r.Context()
	tenant := effectiveTenant(r)
	resp := analyticsResponse{Period: period{StartDate: start, EndDate: end}}

	if resp.Tickets.ByStatus, err = a.deps.Tickets.CountByStatus(ctx, tenant, start, end); err != nil {
		handleError(w, r, err, "")
		return
	}
	if resp.Tickets.Trends, err = a.deps.Tickets.DailyCreated(ctx, tenant, start, end); err != nil {
		handleError(w, r, err, "")
		return
	}
	if resp.Users.ByRole, err = a.deps.Users.CountByRole(ctx, tenant); err != nil {
		handleError(w, r, err, "")
		return
	}
	if resp.Audit.Summary, err = a.deps.AuditStore.Summary(ctx, tenant, start, end); err != nil {
		handleError(w, r, err, "")
		return
	}
	for _, s := range resp.Tickets.ByStatus {
		resp.Tickets.Total += s.Count
	}
	for _, c := range resp.Users.ByRole {
		resp.Users.Total += c.Count
		resp.Users.Active += c.Active
	}
	for _, s := range resp.Audit.Summary {
		resp.Audit.Total += s.Count
	}
	writeData(w, http.StatusOK, resp, "")
}
