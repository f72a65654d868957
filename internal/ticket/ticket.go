package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNotFound     = errors.New("ticket: not found")
	ErrInvalidInput = errors.New("ticket: invalid input")
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Priority ranks tickets for triage.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

const (
	MaxTitle       = 200
	MaxDescription = 2000
	MaxCategory    = 100
)

// Ticket is a support request owned by one tenant.
type Ticket struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"customerId"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Category    string     `json:"category"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	WorkflowID  string     `json:"workflowId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Overdue reports whether an open ticket has waited more than seven days.
func (t *Ticket) Overdue(now time.Time) bool {
	return t.Status == StatusOpen && now.Sub(t.CreatedAt) > 7*24*time.Hour
}

// View is the API representation of a ticket with derived fields.
type View struct {
	*Ticket
	IsOverdue bool `json:"isOverdue"`
}

// View derives the API representation of t at now.
func (t *Ticket) View(now time.Time) View {
	return View{Ticket: t, IsOverdue: t.Overdue(now)}
}

// Validate checks field limits and fills Status and Priority defaults.
func (t *Ticket) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	switch {
	case t.TenantID == "" || t.UserID == "":
		return fmt.Errorf("%w: tenant and owner are required", ErrInvalidInput)
	case t.Title == "" || utf8.RuneCountInString(t.Title) > MaxTitle:
		return fmt.Errorf("%w: title must be between 1 and %d characters", ErrInvalidInput, MaxTitle)
	case t.Description == "" || utf8.RuneCountInString(t.Description) > MaxDescription:
		return fmt.Errorf("%w: description must be between 1 and %d characters", ErrInvalidInput, MaxDescription)
	case t.Category == "" || utf8.RuneCountInString(t.Category) > MaxCategory:
		return fmt.Errorf("%w: category must be between 1 and %d characters", ErrInvalidInput, MaxCategory)
	case !t.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, t.Status)
	case !t.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, t.Priority)
	}
	return nil
}

// Update carries a partial ticket change. Nil fields are left untouched.
type Update struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	Category    *string
	AssignedTo  *string
	WorkflowID  *string
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.Priority == nil &&
		u.Category == nil && u.AssignedTo == nil && u.WorkflowID == nil
}

// Apply writes the update onto t and re-validates it.
func (u Update) Apply(t *Ticket) error {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.AssignedTo != nil {
		t.AssignedTo = strings.TrimSpace(*u.AssignedTo)
	}
	if u.WorkflowID != nil {
		t.WorkflowID = strings.TrimSpace(*u.WorkflowID)
	}
	return t.Validate()
}

// Filter narrows a tenant's ticket listing. TenantID is mandatory.
type Filter struct {
	TenantID       string
	Status         Status
	Priority       Priority
	Category       string
	AssignedTo     string
	UserID         string
	IncludeDeleted bool
	Offset         int
	Limit          int
}

// StatusCount is one row of the per-status breakdown.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// DailyCount is the number of tickets created on one UTC day.
type DailyCount struct {
	Day   string `json:"date"`
	Count int    `json:"count"`
}

// Store persists tickets. Every method is scoped to a tenant except FindAnyTenant,
// which serves trusted webhook callbacks.
type Store interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, tenantID, id string) (*Ticket, error)
	FindAnyTenant(ctx context.Context, id string) (*Ticket, error)
	List(ctx context.Context, f Filter) ([]*Ticket, int, error)
	Update(ctx context.Context, tenantID, id string, upd Update) (*Ticket, error)
	SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error
	CountByStatus(ctx context.Context, tenantID string, from, to time.Time) ([]StatusCount, error)
	DailyCreated(ctx context.Context, tenantID string, from, to time.Time) ([]DailyCount, error)
}
