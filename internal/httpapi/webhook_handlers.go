package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/ticket"
	"flowbit.dev/internal/workflow"
)

const webhookUserAgent = "n8n-webhook"

type ticketDoneRequest struct {
	TicketID   string         `json:"ticketId" validate:"required"`
	Status     string         `json:"status" validate:"required"`
	AssignedTo string         `json:"assignedTo"`
	WorkflowID string         `json:"workflowId"`
	Metadata   map[string]any `json:"metadata"`
}

type workflowStatusRequest struct {
	WorkflowID  string `json:"workflowId" validate:"required"`
	Status      string `json:"status" validate:"required"`
	ExecutionID string `json:"executionId"`
	Error       string `json:"error"`
}

// webhookSecret admits callbacks whose X-Webhook-Secret equals the
// configured secret. An unset secret rejects everything.
func (a *API) webhookSecret() Stage {
	want := []byte(a.deps.WebhookSecret)
	return Stage{Name: "webhook-secret", Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(workflow.SecretHeader))
			if len(want) == 0 || len(got) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, r, http.StatusUnauthorized, "Invalid webhook signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}}
}

func webhookEvent(r *http.Request, e audit.Event) audit.Event {
	e.UserID = audit.SystemActor
	e.Action = audit.ActionWorkflowTrigger
	if e.UserAgent = r.UserAgent(); e.UserAgent == "" {
		e.UserAgent = webhookUserAgent
	}
	return e
}

func (a *API) ticketDone(w http.ResponseWriter, r *http.Request) {
	var req ticketDoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if validateStruct(&req) != nil {
		writeError(w, r, http.StatusBadRequest, "Missing required fields: ticketId, status")
		return
	}
	ctx := r.Context()
	current, err := a.deps.Tickets.FindAnyTenant(ctx, req.TicketID)
	if err != nil {
		handleError(w, r, err, "Ticket not found")
		return
	}
	status := ticket.Status(strings.TrimSpace(req.Status))
	upd := ticket.Update{Status: &status}
	if req.AssignedTo != "" {
		upd.AssignedTo = &req.AssignedTo
	}
	if req.WorkflowID != "" {
		upd.WorkflowID = &req.WorkflowID
	}
	t, err := a.deps.Tickets.Update(ctx, current.TenantID, current.ID, upd)
	if err != nil {
		handleError(w, r, err, "Ticket not found")
		return
	}

	a.record(r, webhookEvent(r, audit.Event{
		TenantID:     t.TenantID,
		ResourceType: "Ticket",
		ResourceID:   t.ID,
		Details: map[string]any{
			"status":     req.Status,
			"assignedTo": req.AssignedTo,
			"workflowId": req.WorkflowID,
			"metadata":   req.Metadata,
		},
	}))

	writeData(w, http.StatusOK, map[string]any{
		"ticketId":  t.ID,
		"status":    t.Status,
		"updatedAt": t.UpdatedAt,
	}, "Ticket updated successfully")
}

func (a *API) workflowStatus(w http.ResponseWriter, r *http.Request) {
	var req workflowStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if validateStruct(&req) != nil {
		writeError(w, r, http.StatusBadRequest, "Missing required fields: workflowId, status")
		return
	}
	a.record(r, webhookEvent(r, audit.Event{
		TenantID:     audit.SystemActor,
		ResourceType: "Workflow",
		ResourceID:   req.WorkflowID,
		Details: map[string]any{
			"status":      req.Status,
			"executionId": req.ExecutionID,
			"error":       req.Error,
			"timestamp":   a.now().UTC().Format(time.RFC3339),
		},
	}))
	writeMessage(w, http.StatusOK, "Workflow status logged successfully")
}
