package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"flowbit.dev/internal/ids"
)

// Action tags what an audit event records.
type Action string

const (
	ActionLogin           Action = "LOGIN"
	ActionLogout          Action = "LOGOUT"
	ActionTicketCreate    Action = "TICKET_CREATE"
	ActionTicketUpdate    Action = "TICKET_UPDATE"
	ActionTicketDelete    Action = "TICKET_DELETE"
	ActionUserCreate      Action = "USER_CREATE"
	ActionUserUpdate      Action = "USER_UPDATE"
	ActionAdminAccess     Action = "ADMIN_ACCESS"
	ActionWorkflowTrigger Action = "WORKFLOW_TRIGGER"
	ActionWebhookReceived Action = "WEBHOOK_RECEIVED"
)

// Actions lists every known action.
var Actions = []Action{
	ActionLogin, ActionLogout,
	ActionTicketCreate, ActionTicketUpdate, ActionTicketDelete,
	ActionUserCreate, ActionUserUpdate, ActionAdminAccess,
	ActionWorkflowTrigger, ActionWebhookReceived,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// SystemActor is the actor id used for events not caused by a human.
const SystemActor = "system"

// DefaultRetention is how long events are kept before the purger removes them.
const DefaultRetention = 365 * 24 * time.Hour

const (
	maxResourceType = 50
	maxResourceID   = 100
	maxUserAgent    = 500
)

var ErrInvalidEvent = errors.New("audit: invalid event")

// Event is an immutable audit record.
type Event struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"customerId"`
	UserID       string         `json:"userId"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      map[string]any `json:"details"`
	IPAddress    string         `json:"ipAddress"`
	UserAgent    string         `json:"userAgent"`
	RequestID    string         `json:"requestId,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// normalize fills defaults and enforces field limits before an event is stored.
func (e *Event) normalize(now time.Time) error {
	e.TenantID = strings.TrimSpace(e.TenantID)
	e.UserID = strings.TrimSpace(e.UserID)
	e.ResourceType = strings.TrimSpace(e.ResourceType)
	e.ResourceID = strings.TrimSpace(e.ResourceID)
	switch {
	case e.TenantID == "":
		return fmt.Errorf("%w: tenant is required", ErrInvalidEvent)
	case e.UserID == "":
		return fmt.Errorf("%w: actor is required", ErrInvalidEvent)
	case !e.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	case e.ResourceType == "":
		return fmt.Errorf("%w: resource type is required", ErrInvalidEvent)
	case len(e.ResourceType) > maxResourceType:
		return fmt.Errorf("%w: resource type exceeds %d characters", ErrInvalidEvent, maxResourceType)
	}
	e.ResourceID = truncate(e.ResourceID, maxResourceID)
	if e.IPAddress == "" {
		e.IPAddress = "Unknown"
	}
	if e.UserAgent == "" {
		e.UserAgent = "Unknown"
	}
	e.UserAgent = truncate(e.UserAgent, maxUserAgent)
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	return nil
}

// truncate keeps at most n characters of s and always returns valid UTF-8.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Filter narrows audit listings. Zero values mean "any".
type Filter struct {
	TenantID     string
	UserID       string
	Action       Action
	ResourceType string
	ResourceID   string
	From         time.Time
	To           time.Time
	Offset       int
	Limit        int
}

// ActionSummary aggregates events per action.
type ActionSummary struct {
	Action      Action `json:"action"`
	Count       int    `json:"count"`
	UniqueUsers int    `json:"uniqueUsers"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, e *Event) error
	List(ctx context.Context, f Filter) ([]Event, int, error)
	Summary(ctx context.Context, tenantID string, from, to time.Time) ([]ActionSummary, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sink accepts events for best-effort recording. Record never blocks on storage.
type Sink interface {
	Record(ctx context.Context, e Event)
}
