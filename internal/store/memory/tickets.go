package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"flowbit.dev/internal/ticket"
)

var _ ticket.Store = (*Tickets)(nil)

// Tickets implements ticket.Store in memory.
type Tickets struct {
	mu   sync.RWMutex
	byID map[string]*ticket.Ticket
	now  func() time.Time
}

func NewTickets() *Tickets {
	return &Tickets{byID: make(map[string]*ticket.Ticket), now: time.Now}
}

func (s *Tickets) Create(_ context.Context, t *ticket.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

func (s *Tickets) lookup(tenantID, id string) (*ticket.Ticket, bool) {
	t, ok := s.byID[id]
	if !ok || t.DeletedAt != nil {
		return nil, false
	}
	if tenantID != "" && t.TenantID != tenantID {
		return nil, false
	}
	return t, true
}

func (s *Tickets) Get(_ context.Context, tenantID, id string) (*ticket.Ticket, error) {
	if tenantID == "" {
		return nil, ticket.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lookup(tenantID, id)
	if !ok {
		return nil, ticket.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Tickets) FindAnyTenant(_ context.Context, id string) (*ticket.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lookup("", id)
	if !ok {
		return nil, ticket.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Tickets) List(_ context.Context, f ticket.Filter) ([]*ticket.Ticket, int, error) {
	s.mu.RLock()
	var out []*ticket.Ticket
	for _, t := range s.byID {
		if t.TenantID != f.TenantID {
			continue
		}
		if t.DeletedAt != nil && !f.IncludeDeleted {
			continue
		}
		if (f.Status != "" && t.Status != f.Status) ||
			(f.Priority != "" && t.Priority != f.Priority) ||
			(f.Category != "" && t.Category != f.Category) ||
			(f.AssignedTo != "" && t.AssignedTo != f.AssignedTo) ||
			(f.UserID != "" && t.UserID != f.UserID) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Offset, f.Limit), len(out), nil
}

func (s *Tickets) Update(_ context.Context, tenantID, id string, upd ticket.Update) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lookup(tenantID, id)
	if !ok {
		return nil, ticket.ErrNotFound
	}
	next := *t
	if err := upd.Apply(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()
	*t = next
	return &next, nil
}

func (s *Tickets) SoftDelete(_ context.Context, tenantID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lookup(tenantID, id)
	if !ok {
		return ticket.ErrNotFound
	}
	ts := at
	t.DeletedAt = &ts
	t.UpdatedAt = at
	return nil
}

func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && !ts.After(to)
}

func (s *Tickets) CountByStatus(_ context.Context, tenantID string, from, to time.Time) ([]ticket.StatusCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[ticket.Status]int)
	for _, t := range s.byID {
		if t.TenantID == tenantID && t.DeletedAt == nil && inRange(t.CreatedAt, from, to) {
			counts[t.Status]++
		}
	}
	out := make([]ticket.StatusCount, 0, len(counts))
	for _, st := range ticket.Statuses {
		if n, ok := counts[st]; ok {
			out = append(out, ticket.StatusCount{Status: st, Count: n})
		}
	}
	return out, nil
}

func (s *Tickets) DailyCreated(_ context.Context, tenantID string, from, to time.Time) ([]ticket.DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range s.byID {
		if t.TenantID == tenantID && t.DeletedAt == nil && inRange(t.CreatedAt, from, to) {
			counts[t.CreatedAt.UTC().Format(time.DateOnly)]++
		}
	}
	out := make([]ticket.DailyCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, ticket.DailyCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}
