package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

func (p *Postgres) RecordActivity(ctx context.Context, a *core.Activity) error {
	metadata, err := marshalJSON(a.Metadata)
	if err != nil {
		return err
	}
	id := newID(a.ID)
	_, err = p.pool.Exec(ctx, `INSERT INTO activities (
		id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, toPgUUID(a.UserID), string(a.Action), string(a.ResourceType), a.ResourceID,
		metadata, a.IPAddress, a.UserAgent, a.Timestamp)
	if err != nil {
		return mapError(err)
	}
	a.ID = uuidString(id)
	return nil
}

func (p *Postgres) RecentActivity(ctx context.Context, userID string, limit int) ([]core.Activity, error) {
	wb := newWhereBuilder()
	if userID != "" {
		wb.AddCond("a.user_id = %s", toPgUUID(userID))
	}
	where, args := wb.Build()
	query := `SELECT a.id, a.user_id, a.action, a.resource_type, a.resource_id, a.metadata,
		a.ip_address, a.user_agent, a.timestamp, COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM activities a LEFT JOIN users u ON u.id = a.user_id` + where +
		fmt.Sprintf(" ORDER BY a.timestamp DESC, a.id DESC LIMIT $%d", wb.NextArgIndex())
	args = append(args, limit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]core.Activity, 0)
	for rows.Next() {
		var (
			a        core.Activity
			id       pgtype.UUID
			uid      pgtype.UUID
			action   string
			resource string
			resID    pgtype.Text
			metadata []byte
			ip       pgtype.Text
			agent    pgtype.Text
		)
		err := rows.Scan(&id, &uid, &action, &resource, &resID, &metadata,
			&ip, &agent, &a.Timestamp, &a.UserName, &a.UserEmail)
		if err != nil {
			return nil, err
		}
		a.ID = uuidString(id)
		a.UserID = uuidString(uid)
		a.Action = core.Action(action)
		a.ResourceType = core.ResourceType(resource)
		a.ResourceID = textPtr(resID)
		a.IPAddress = textPtr(ip)
		a.UserAgent = textPtr(agent)
		if metadata != nil {
			_ = json.Unmarshal(metadata, &a.Metadata)
		}
		if userID != "" {
			a.UserName, a.UserEmail = "", ""
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

func (p *Postgres) ActivitySummary(ctx context.Context, userID string, since time.Time) ([]core.ActionSummary, error) {
	rows, err := p.pool.Query(ctx, `SELECT action, COUNT(*), MAX(timestamp) FROM activities
		WHERE user_id = $1 AND timestamp >= $2
		GROUP BY action ORDER BY COUNT(*) DESC, action`, toPgUUID(userID), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.ActionSummary, 0)
	for rows.Next() {
		var (
			s      core.ActionSummary
			action string
		)
		if err := rows.Scan(&action, &s.Count, &s.LastActivity); err != nil {
			return nil, err
		}
		s.Action = core.Action(action)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) TopUsers(ctx context.Context, since time.Time, limit int) ([]core.TopUser, error) {
	rows, err := p.pool.Query(ctx, `SELECT u.id, u.name, u.email, COUNT(*), MAX(a.timestamp)
		FROM activities a JOIN users u ON u.id = a.user_id
		WHERE a.timestamp >= $1 AND u.is_active
		GROUP BY u.id, u.name, u.email
		ORDER BY COUNT(*) DESC, u.id
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.TopUser, 0)
	for rows.Next() {
		var (
			t  core.TopUser
			id pgtype.UUID
		)
		if err := rows.Scan(&id, &t.Name, &t.Email, &t.ActivityCount, &t.LastActivity); err != nil {
			return nil, err
		}
		t.UserID = uuidString(id)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) PurgeActivity(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM activities WHERE timestamp < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
