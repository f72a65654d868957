package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/ids"
	"flowbit.dev/internal/obs"
	"flowbit.dev/internal/ticket"
	"flowbit.dev/internal/workflow"
)

const (
	defaultTicketLimit = 10
	maxPageLimit       = 100
	workflowTimeout    = 10 * time.Second
)

type createTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=2000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	Category    string `json:"category" validate:"required,max=100"`
}

type updateTicketRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,min=1,max=2000"`
	Status      *string `json:"status" validate:"omitempty,oneof=Open InProgress Resolved Closed"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	Category    *string `json:"category" validate:"omitempty,min=1,max=100"`
	AssignedTo  *string `json:"assignedTo"`
}

func (req updateTicketRequest) update() ticket.Update {
	u := ticket.Update{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		AssignedTo:  req.AssignedTo,
	}
	if req.Status != nil {
		s := ticket.Status(*req.Status)
		u.Status = &s
	}
	if req.Priority != nil {
		p := ticket.Priority(*req.Priority)
		u.Priority = &p
	}
	return u
}

func (a *API) listTickets(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, defaultTicketLimit, maxPageLimit)
	q := r.URL.Query()
	f := ticket.Filter{
		TenantID:   effectiveTenant(r),
		Status:     ticket.Status(strings.TrimSpace(q.Get("status"))),
		Priority:   ticket.Priority(strings.TrimSpace(q.Get("priority"))),
		Category:   strings.TrimSpace(q.Get("category")),
		AssignedTo: strings.TrimSpace(q.Get("assignedTo")),
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}
	items, total, err := a.deps.Tickets.List(r.Context(), f)
	if err != nil {
		handleError(w, r, err, "")
		return
	}
	now := a.now()
	views := make([]ticket.View, 0, len(items))
	for _, t := range items {
		views = append(views, t.View(now))
	}
	writePage(w, views, newPagination(page, limit, total))
}

func (a *API) createTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if details := validateStruct(&req); len(details) > 0 {
		writeErrorDetails(w, r, http.StatusBadRequest, "Validation failed", details)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	now := a.now().UTC()
	t := &ticket.Ticket{
		ID:          ids.New(),
		TenantID:    effectiveTenant(r),
		UserID:      p.UserID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    ticket.Priority(req.Priority),
		Category:    req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		handleError(w, r, err, "")
		return
	}
	if err := a.deps.Tickets.Create(r.Context(), t); err != nil {
		handleError(w, r, err, "")
		return
	}
	a.triggerTicketCreated(r, t)
	writeData(w, http.StatusCreated, t.View(a.now()), "Ticket created successfully")
}

// triggerTicketCreated notifies the workflow engine without holding up the
// response. Failures are logged only.
func (a *API) triggerTicketCreated(r *http.Request, t *ticket.Ticket) {
	if a.deps.Workflow == nil {
		return
	}
	payload := workflow.TicketCreated{
		CustomerID: t.TenantID,
		TicketID:   t.ID,
		Priority:   string(t.Priority),
		Category:   t.Category,
		UserID:     t.UserID,
	}
	rid := RequestIDFromContext(r.Context())
	ctx := context.WithoutCancel(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, workflowTimeout)
		defer cancel()
		if err := a.deps.Workflow.TicketCreated(ctx, payload); err != nil {
			obs.Logger().Warn().Err(err).
				Str("request_id", rid).
				Str("ticket_id", payload.TicketID).
				Msg("workflow_trigger_failed")
		}
	}()
}

func (a *API) getTicket(w http.ResponseWriter, r *http.Request) {
	t, err := a.deps.Tickets.Get(r.Context(), effectiveTenant(r), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "Ticket not found")
		return
	}
	writeData(w, http.StatusOK, t.View(a.now()), "")
}

func (a *API) updateTicket(w http.ResponseWriter, r *http.Request) {
	var req updateTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if details := validateStruct(&req); len(details) > 0 {
		writeErrorDetails(w, r, http.StatusBadRequest, "Validation failed", details)
		return
	}
	upd := req.update()
	if upd.Empty() {
		writeError(w, r, http.StatusBadRequest, "No fields to update")
		return
	}
	t, err := a.deps.Tickets.Update(r.Context(), effectiveTenant(r), r.PathValue("id"), upd)
	if err != nil {
		handleError(w, r, err, "Ticket not found")
		return
	}
	writeData(w, http.StatusOK, t.View(a.now()), "Ticket updated successfully")
}

func (a *API) deleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Tickets.SoftDelete(r.Context(), effectiveTenant(r), r.PathValue("id"), a.now().UTC()); err != nil {
		handleError(w, r, err, "Ticket not found")
		return
	}
	writeMessage(w, http.StatusOK, "Ticket deleted successfully")
}
