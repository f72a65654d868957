package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowbit.dev/internal/auth"
)

var _ auth.UserStore = (*Users)(nil)

// Users implements auth.UserStore on the users table.
type Users struct {
	db *sql.DB
}

const userColumns = `id, tenant_id, email, password_hash, role, first_name, last_name, avatar,
	is_active, last_login, created_at, updated_at, deleted_at`

func scanUser(row scanner) (*auth.User, error) {
	var (
		u         auth.User
		role      string
		avatar    sql.NullString
		lastLogin sql.NullTime
		deletedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &role,
		&u.Profile.FirstName, &u.Profile.LastName, &avatar,
		&u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	u.Profile.Avatar = avatar.String
	u.LastLogin = timePtr(lastLogin)
	u.DeletedAt = timePtr(deletedAt)
	return &u, nil
}

func (s *Users) Create(ctx context.Context, u *auth.User) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, tenant_id, email, password_hash, role, first_name, last_name, avatar,
			is_active, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.TenantID, u.Email, u.PasswordHash, string(u.Role), u.Profile.FirstName, u.Profile.LastName,
		nullIfEmpty(u.Profile.Avatar), u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Users) FindByID(ctx context.Context, id string, vis auth.Visibility) (*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1 and ($2 or deleted_at is null)
	`, id, vis == auth.IncludeDeleted)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s *Users) FindByEmail(ctx context.Context, tenantID, email string, vis auth.Visibility) (*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where tenant_id = $1 and email = $2 and ($3 or deleted_at is null)
	`, tenantID, email, vis == auth.IncludeDeleted)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s *Users) List(ctx context.Context, f auth.UserFilter) ([]*auth.User, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	where := []string{"tenant_id = $1", "($2 or deleted_at is null)"}
	args := []any{f.TenantID, f.Visibility == auth.IncludeDeleted}
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from users where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := paginate(`select `+userColumns+` from users where `+cond+` order by created_at desc, id desc`, args, f.Offset, f.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Users) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update users set is_active = $3, updated_at = now()
		where tenant_id = $1 and id = $2 and deleted_at is null
	`, tenantID, id, active)
	if err != nil {
		return err
	}
	return expectAffected(res, auth.ErrNotFound)
}

func (s *Users) UpdateProfile(ctx context.Context, id string, upd auth.ProfileUpdate) (*auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.FirstName != nil {
		sets = append(sets, fmt.Sprintf("first_name = $%d", idx))
		args = append(args, *upd.FirstName)
		idx++
	}
	if upd.LastName != nil {
		sets = append(sets, fmt.Sprintf("last_name = $%d", idx))
		args = append(args, *upd.LastName)
		idx++
	}
	if upd.Avatar != nil {
		sets = append(sets, fmt.Sprintf("avatar = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Avatar))
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if err := expectAffected(res, auth.ErrNotFound); err != nil {
			return nil, err
		}
	}
	return s.FindByID(ctx, id, auth.ExcludeDeleted)
}

func (s *Users) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `update users set last_login = $2 where id = $1`, id, at)
	if err != nil {
		return err
	}
	return expectAffected(res, auth.ErrNotFound)
}

func (s *Users) CountByRole(ctx context.Context, tenantID string) ([]auth.RoleCount, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select role, count(*), count(*) filter (where is_active)
		from users
		where tenant_id = $1 and deleted_at is null
		group by role
		order by role
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.RoleCount
	for rows.Next() {
		var (
			rc   auth.RoleCount
			role string
		)
		if err := rows.Scan(&role, &rc.Count, &rc.Active); err != nil {
			return nil, err
		}
		rc.Role = auth.Role(role)
		out = append(out, rc)
	}
	return out, rows.Err()
}

// SoftDelete marks a user deleted without removing the row.
func (s *Users) SoftDelete(ctx context.Context, tenantID, id string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update users set deleted_at = $3, is_active = false, updated_at = $3
		where tenant_id = $1 and id = $2 and deleted_at is null
	`, tenantID, id, at)
	if err != nil {
		return err
	}
	return expectAffected(res, auth.ErrNotFound)
}

func expectAffected(res sql.Result, notFound error) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return notFound
	}
	return nil
}

// paginate appends limit/offset placeholders to query.
func paginate(query string, args []any, offset, limit int) (string, []any) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" offset $%d", len(args))
	}
	return query, args
}
