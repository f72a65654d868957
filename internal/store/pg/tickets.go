package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowbit.dev/internal/ticket"
)

var _ ticket.Store = (*Tickets)(nil)

// Tickets implements ticket.Store on the tickets table.
type Tickets struct {
	db *sql.DB
}

const ticketColumns = `id, tenant_id, user_id, title, description, status, priority, category,
	assigned_to, workflow_id, created_at, updated_at, deleted_at`

func scanTicket(row scanner) (*ticket.Ticket, error) {
	var (
		t          ticket.Ticket
		status     string
		priority   string
		assignedTo sql.NullString
		workflowID sql.NullString
		deletedAt  sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.TenantID, &t.UserID, &t.Title, &t.Description, &status, &priority,
		&t.Category, &assignedTo, &workflowID, &t.CreatedAt, &t.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	t.Status = ticket.Status(status)
	t.Priority = ticket.Priority(priority)
	t.AssignedTo = assignedTo.String
	t.WorkflowID = workflowID.String
	t.DeletedAt = timePtr(deletedAt)
	return &t, nil
}

func (s *Tickets) Create(ctx context.Context, t *ticket.Ticket) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into tickets (id, tenant_id, user_id, title, description, status, priority, category,
			assigned_to, workflow_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.TenantID, t.UserID, t.Title, t.Description, string(t.Status), string(t.Priority), t.Category,
		nullIfEmpty(t.AssignedTo), nullIfEmpty(t.WorkflowID), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: unknown owner", ticket.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *Tickets) Get(ctx context.Context, tenantID, id string) (*ticket.Ticket, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+ticketColumns+`
		from tickets
		where tenant_id = $1 and id = $2 and deleted_at is null
	`, tenantID, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticket.ErrNotFound
	}
	return t, err
}

func (s *Tickets) FindAnyTenant(ctx context.Context, id string) (*ticket.Ticket, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+ticketColumns+`
		from tickets
		where id = $1 and deleted_at is null
	`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticket.ErrNotFound
	}
	return t, err
}

func (s *Tickets) List(ctx context.Context, f ticket.Filter) ([]*ticket.Ticket, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	where := []string{"tenant_id = $1", "($2 or deleted_at is null)"}
	args := []any{f.TenantID, f.IncludeDeleted}
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Priority != "" {
		add("priority", string(f.Priority))
	}
	if f.Category != "" {
		add("category", f.Category)
	}
	if f.AssignedTo != "" {
		add("assigned_to", f.AssignedTo)
	}
	if f.UserID != "" {
		add("user_id", f.UserID)
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from tickets where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := paginate(`select `+ticketColumns+` from tickets where `+cond+` order by created_at desc, id desc`, args, f.Offset, f.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*ticket.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update validates the merged ticket in Go before writing it back inside one transaction.
func (s *Tickets) Update(ctx context.Context, tenantID, id string, upd ticket.Update) (*ticket.Ticket, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		select `+ticketColumns+`
		from tickets
		where tenant_id = $1 and id = $2 and deleted_at is null
		for update
	`, tenantID, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticket.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := upd.Apply(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update tickets
		set title = $3, description = $4, status = $5, priority = $6, category = $7,
			assigned_to = $8, workflow_id = $9, updated_at = $10
		where tenant_id = $1 and id = $2
	`, tenantID, id, t.Title, t.Description, string(t.Status), string(t.Priority), t.Category,
		nullIfEmpty(t.AssignedTo), nullIfEmpty(t.WorkflowID), t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Tickets) SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update tickets set deleted_at = $3, updated_at = $3
		where tenant_id = $1 and id = $2 and deleted_at is null
	`, tenantID, id, at)
	if err != nil {
		return err
	}
	return expectAffected(res, ticket.ErrNotFound)
}

func (s *Tickets) CountByStatus(ctx context.Context, tenantID string, from, to time.Time) ([]ticket.StatusCount, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select status, count(*)
		from tickets
		where tenant_id = $1 and deleted_at is null and created_at between $2 and $3
		group by status
		order by status
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ticket.StatusCount
	for rows.Next() {
		var (
			sc     ticket.StatusCount
			status string
		)
		if err := rows.Scan(&status, &sc.Count); err != nil {
			return nil, err
		}
		sc.Status = ticket.Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Tickets) DailyCreated(ctx context.Context, tenantID string, from, to time.Time) ([]ticket.DailyCount, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select to_char(date_trunc('day', created_at at time zone 'UTC'), 'YYYY-MM-DD') as day, count(*)
		from tickets
		where tenant_id = $1 and deleted_at is null and created_at between $2 and $3
		group by day
		order by day
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ticket.DailyCount
	for rows.Next() {
		var dc ticket.DailyCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}
