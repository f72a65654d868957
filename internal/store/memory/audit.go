package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"flowbit.dev/internal/audit"
)

var _ audit.Store = (*Audit)(nil)

// Audit is an append-only in-memory audit log.
type Audit struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewAudit() *Audit { return &Audit{} }

func (s *Audit) Append(_ context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	s.events = append(s.events, cp)
	return nil
}

func matches(e audit.Event, f audit.Filter) bool {
	switch {
	case f.TenantID != "" && e.TenantID != f.TenantID:
		return false
	case f.UserID != "" && e.UserID != f.UserID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.ResourceType != "" && e.ResourceType != f.ResourceType:
		return false
	case f.ResourceID != "" && e.ResourceID != f.ResourceID:
		return false
	case !f.From.IsZero() && e.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && e.Timestamp.After(f.To):
		return false
	}
	return true
}

func (s *Audit) List(_ context.Context, f audit.Filter) ([]audit.Event, int, error) {
	s.mu.RLock()
	var out []audit.Event
	for _, e := range s.events {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, f.Offset, f.Limit), len(out), nil
}

func (s *Audit) Summary(_ context.Context, tenantID string, from, to time.Time) ([]audit.ActionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[audit.Action]int)
	users := make(map[audit.Action]map[string]struct{})
	for _, e := range s.events {
		if !matches(e, audit.Filter{TenantID: tenantID, From: from, To: to}) {
			continue
		}
		counts[e.Action]++
		if users[e.Action] == nil {
			users[e.Action] = make(map[string]struct{})
		}
		users[e.Action][e.UserID] = struct{}{}
	}
	out := make([]audit.ActionSummary, 0, len(counts))
	for action, n := range counts {
		out = append(out, audit.ActionSummary{Action: action, Count: n, UniqueUsers: len(users[action])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Action < out[j].Action
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func (s *Audit) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var n int64
	for _, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return n, nil
}
