package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

const userColumns = `id, name, email, password_hash, role, avatar, is_active, last_login, created_at, updated_at`

var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"lastLogin": "last_login",
	"updatedAt": "updated_at",
}

func scanUser(row pgx.Row) (*core.User, error) {
	var (
		u         core.User
		id        pgtype.UUID
		role      string
		avatar    pgtype.Text
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &role, &avatar,
		&u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	u.ID = uuidString(id)
	u.Role = core.Role(role)
	u.Avatar = textPtr(avatar)
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *core.User) error {
	id := newID(u.ID)
	_, err := p.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Avatar,
		u.IsActive, u.LastLogin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	u.ID = uuidString(id)
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*core.User, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return nil, core.ErrNotFound
	}
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, pgID))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *Postgres) UpdateUser(ctx context.Context, u *core.User) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET
		name = $2, email = $3, password_hash = $4, role = $5, avatar = $6,
		is_active = $7, last_login = $8, updated_at = $9
		WHERE id = $1`,
		toPgUUID(u.ID), u.Name, u.Email, u.PasswordHash, string(u.Role), u.Avatar,
		u.IsActive, u.LastLogin, u.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeactivateUsers soft-deletes users together with their uploads and
// charts in one transaction. It returns the number of users changed.
func (p *Postgres) DeactivateUsers(ctx context.Context, ids []string) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin deactivate users: %w", mapError(err))
	}
	defer tx.Rollback(ctx)

	pgIDs := toPgUUIDs(ids)
	tag, err := tx.Exec(ctx, `UPDATE users SET is_active = false, updated_at = now()
		WHERE id = ANY($1) AND is_active`, pgIDs)
	if err != nil {
		return 0, mapError(err)
	}
	for _, table := range []string{"uploads", "charts"} {
		if _, err := tx.Exec(ctx, `UPDATE `+table+` SET is_active = false, updated_at = now()
			WHERE user_id = ANY($1) AND is_active`, pgIDs); err != nil {
			return 0, fmt.Errorf("deactivate %s: %w", table, mapError(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit deactivate users: %w", mapError(err))
	}
	return tag.RowsAffected(), nil
}

func userWhere(f core.UserFilter) *whereBuilder {
	wb := newWhereBuilder()
	wb.AddSearch(f.Search, "name", "email")
	wb.Add("role", string(f.Role))
	if f.Active != nil {
		wb.AddCond("is_active = %s", *f.Active)
	}
	return wb
}

func (p *Postgres) ListUsers(ctx context.Context, f core.UserFilter) ([]core.User, int64, error) {
	wb := userWhere(f)
	where, args := wb.Build()

	var total int64
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit, args := limitOffset(wb, f.Page)
	rows, err := p.pool.Query(ctx, `SELECT `+userColumns+` FROM users`+where+
		orderBy(f.Sort, userSortColumns, "id")+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (p *Postgres) CountUsers(ctx context.Context, f core.UserCount) (int64, error) {
	wb := newWhereBuilder()
	if f.ActiveOnly {
		wb.AddRaw("is_active")
	}
	if !f.LoggedInSince.IsZero() {
		wb.AddCond("last_login >= %s", f.LoggedInSince)
	}
	if !f.CreatedSince.IsZero() {
		wb.AddCond("created_at >= %s", f.CreatedSince)
	}
	where, args := wb.Build()

	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&n)
	return n, err
}

func (p *Postgres) UserGrowth(ctx context.Context, since time.Time) ([]core.DailyCount, error) {
	return p.dailyCounts(ctx, `SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*), 0::bigint
		FROM users WHERE is_active AND created_at >= $1
		GROUP BY day ORDER BY day`, since)
}

// dailyCounts runs a query yielding (day, count, total size) rows.
func (p *Postgres) dailyCounts(ctx context.Context, query string, since time.Time) ([]core.DailyCount, error) {
	rows, err := p.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.DailyCount, 0)
	for rows.Next() {
		var d core.DailyCount
		if err := rows.Scan(&d.Date, &d.Count, &d.TotalSize); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
