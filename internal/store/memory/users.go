package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"flowbit.dev/internal/auth"
)

var _ auth.UserStore = (*Users)(nil)

// Users implements auth.UserStore with in-process concurrency safety.
type Users struct {
	mu    sync.RWMutex
	byID  map[string]*auth.User
	email map[string]string // tenant|email -> id
}

// NewUsers creates an empty user store.
func NewUsers() *Users {
	return &Users{
		byID:  make(map[string]*auth.User),
		email: make(map[string]string),
	}
}

func emailKey(tenantID, email string) string { return tenantID + "|" + email }

func (s *Users) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[u.ID]; ok {
		return auth.ErrAlreadyExists
	}
	key := emailKey(u.TenantID, u.Email)
	if _, ok := s.email[key]; ok {
		return auth.ErrAlreadyExists
	}
	cp := *u
	s.byID[u.ID] = &cp
	s.email[key] = u.ID
	return nil
}

func visible(u *auth.User, vis auth.Visibility) bool {
	return vis == auth.IncludeDeleted || u.DeletedAt == nil
}

func (s *Users) FindByID(_ context.Context, id string, vis auth.Visibility) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok || !visible(u, vis) {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Users) FindByEmail(_ context.Context, tenantID, email string, vis auth.Visibility) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.email[emailKey(tenantID, email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u := s.byID[id]
	if !visible(u, vis) {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Users) List(_ context.Context, f auth.UserFilter) ([]*auth.User, int, error) {
	s.mu.RLock()
	var out []*auth.User
	for _, u := range s.byID {
		if u.TenantID != f.TenantID || !visible(u, f.Visibility) {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.IsActive != nil && u.IsActive != *f.IsActive {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	return page(out, f.Offset, f.Limit), total, nil
}

func (s *Users) SetActive(_ context.Context, tenantID, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok || u.TenantID != tenantID || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Users) UpdateProfile(_ context.Context, id string, upd auth.ProfileUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	if upd.FirstName != nil {
		u.Profile.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.Profile.LastName = *upd.LastName
	}
	if upd.Avatar != nil {
		u.Profile.Avatar = *upd.Avatar
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *Users) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	t := at
	u.LastLogin = &t
	return nil
}

func (s *Users) CountByRole(_ context.Context, tenantID string) ([]auth.RoleCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[auth.Role]*auth.RoleCount)
	for _, u := range s.byID {
		if u.TenantID != tenantID || u.DeletedAt != nil {
			continue
		}
		rc, ok := counts[u.Role]
		if !ok {
			rc = &auth.RoleCount{Role: u.Role}
			counts[u.Role] = rc
		}
		rc.Count++
		if u.IsActive {
			rc.Active++
		}
	}
	out := make([]auth.RoleCount, 0, len(counts))
	for _, r := range auth.Roles {
		if rc, ok := counts[r]; ok {
			out = append(out, *rc)
		}
	}
	return out, nil
}

// Delete soft-deletes a user. It exists for tests and operator tooling.
func (s *Users) Delete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	t := at
	u.DeletedAt = &t
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
