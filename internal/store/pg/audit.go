package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"flowbit.dev/internal/audit"
)

var _ audit.Store = (*Audit)(nil)

// Audit implements audit.Store on the append-only audit_events table.
type Audit struct {
	db *sql.DB
}

func (s *Audit) Append(ctx context.Context, e *audit.Event) error {
	if s.db == nil {
		return errNoDB
	}
	details := []byte("{}")
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = raw
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_events (id, tenant_id, user_id, action, resource_type, resource_id, details,
			ip_address, user_agent, request_id, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.TenantID, e.UserID, string(e.Action), e.ResourceType, nullIfEmpty(e.ResourceID), details,
		e.IPAddress, e.UserAgent, nullIfEmpty(e.RequestID), e.Timestamp)
	return err
}

func auditWhere(f audit.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if f.TenantID != "" {
		add("tenant_id = $%d", f.TenantID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= $%d", f.To)
	}
	if len(where) == 0 {
		return "true", args
	}
	return strings.Join(where, " and "), args
}

func (s *Audit) List(ctx context.Context, f audit.Filter) ([]audit.Event, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	cond, args := auditWhere(f)
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from audit_events where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := paginate(`
		select id, tenant_id, user_id, action, resource_type, resource_id, details, ip_address,
			user_agent, request_id, occurred_at
		from audit_events
		where `+cond+`
		order by occurred_at desc, id desc`, args, f.Offset, f.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e          audit.Event
			action     string
			resourceID sql.NullString
			requestID  sql.NullString
			details    []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &action, &e.ResourceType, &resourceID, &details,
			&e.IPAddress, &e.UserAgent, &requestID, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		e.Action = audit.Action(action)
		e.ResourceID = resourceID.String
		e.RequestID = requestID.String
		e.Details = map[string]any{}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, 0, fmt.Errorf("decode details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Audit) Summary(ctx context.Context, tenantID string, from, to time.Time) ([]audit.ActionSummary, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select action, count(*), count(distinct user_id)
		from audit_events
		where tenant_id = $1 and occurred_at between $2 and $3
		group by action
		order by count(*) desc, action
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.ActionSummary
	for rows.Next() {
		var (
			as     audit.ActionSummary
			action string
		)
		if err := rows.Scan(&action, &as.Count, &as.UniqueUsers); err != nil {
			return nil, err
		}
		as.Action = audit.Action(action)
		out = append(out, as)
	}
	return out, rows.Err()
}

func (s *Audit) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from audit_events where occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
