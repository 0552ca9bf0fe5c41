package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

const chartColumns = `c.id, c.upload_id, c.user_id, c.title, c.chart_type, c.x_axis, c.y_axis,
	c.config, c.chart_data, c.thumbnail, c.customization, c.is_public, c.tags,
	c.download_count, c.is_active, c.created_at, c.updated_at`

// chartJoins adds the upload name and owner shown in listings.
const chartJoins = ` FROM charts c
	LEFT JOIN uploads up ON up.id = c.upload_id
	LEFT JOIN users o ON o.id = c.user_id`

var chartSortColumns = map[string]string{
	"createdAt":     "c.created_at",
	"title":         "c.title",
	"chartType":     "c.chart_type",
	"downloadCount": "c.download_count",
	"updatedAt":     "c.updated_at",
}

func scanChart(row pgx.Row) (*core.Chart, error) {
	var (
		c         core.Chart
		id        pgtype.UUID
		uploadID  pgtype.UUID
		userID    pgtype.UUID
		chartType string
		thumbnail pgtype.Text
		custom    []byte
	)
	err := row.Scan(&id, &uploadID, &userID, &c.Title, &chartType, &c.XAxis, &c.YAxis,
		&c.Config, &c.ChartData, &thumbnail, &custom, &c.IsPublic, &c.Tags,
		&c.DownloadCount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
		&c.UploadName, &c.UserName, &c.UserEmail)
	if err != nil {
		return nil, mapError(err)
	}
	c.ID = uuidString(id)
	c.UploadID = uuidString(uploadID)
	c.UserID = uuidString(userID)
	c.ChartType = core.ChartType(chartType)
	c.Thumbnail = textPtr(thumbnail)
	if err := json.Unmarshal(custom, &c.Customization); err != nil {
		return nil, fmt.Errorf("decode chart customization: %w", err)
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c, nil
}

// jsonOrNull keeps raw JSON as is and stores missing values as JSON null.
func jsonOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (p *Postgres) CreateChart(ctx context.Context, c *core.Chart) error {
	custom, err := marshalJSON(c.Customization)
	if err != nil {
		return err
	}
	id := newID(c.ID)
	_, err = p.pool.Exec(ctx, `INSERT INTO charts (
		id, upload_id, user_id, title, chart_type, x_axis, y_axis, config, chart_data,
		thumbnail, customization, is_public, tags, download_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		id, toPgUUID(c.UploadID), toPgUUID(c.UserID), c.Title, string(c.ChartType), c.XAxis, c.YAxis,
		jsonOrNull(c.Config), jsonOrNull(c.ChartData), c.Thumbnail, custom, c.IsPublic, tagsOrEmpty(c.Tags),
		c.DownloadCount, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	c.ID = uuidString(id)
	return nil
}

func (p *Postgres) GetChart(ctx context.Context, id string) (*core.Chart, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return nil, core.ErrNotFound
	}
	return scanChart(p.pool.QueryRow(ctx, `SELECT `+chartColumns+`,
		COALESCE(up.original_name, ''), COALESCE(o.name, ''), COALESCE(o.email, '')`+
		chartJoins+` WHERE c.id = $1`, pgID))
}

func (p *Postgres) UpdateChart(ctx context.Context, c *core.Chart) error {
	custom, err := marshalJSON(c.Customization)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `UPDATE charts SET
		title = $2, chart_type = $3, x_axis = $4, y_axis = $5, config = $6, chart_data = $7,
		thumbnail = $8, customization = $9, is_public = $10, tags = $11, is_active = $12,
		updated_at = $13
		WHERE id = $1`,
		toPgUUID(c.ID), c.Title, string(c.ChartType), c.XAxis, c.YAxis,
		jsonOrNull(c.Config), jsonOrNull(c.ChartData), c.Thumbnail, custom, c.IsPublic, tagsOrEmpty(c.Tags),
		c.IsActive, c.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (p *Postgres) IncrementDownloads(ctx context.Context, id string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `UPDATE charts SET download_count = download_count + 1
		WHERE id = $1 RETURNING download_count`, toPgUUID(id)).Scan(&n)
	return n, mapError(err)
}

func (p *Postgres) ListCharts(ctx context.Context, f core.ChartFilter) ([]core.Chart, int64, error) {
	wb := newWhereBuilder()
	wb.AddRaw("c.is_active")
	if f.UserID != "" {
		wb.AddCond("c.user_id = %s", toPgUUID(f.UserID))
	}
	wb.AddSearch(f.Search, "c.title")
	wb.Add("c.chart_type", string(f.ChartType))
	where, args := wb.Build()

	var total int64
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM charts c`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count charts: %w", err)
	}

	limit, args := limitOffset(wb, f.Page)
	rows, err := p.pool.Query(ctx, `SELECT `+chartColumns+`,
		COALESCE(up.original_name, ''), COALESCE(o.name, ''), COALESCE(o.email, '')`+
		chartJoins+where+orderBy(f.Sort, chartSortColumns, "c.id")+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list charts: %w", err)
	}
	defer rows.Close()

	charts := make([]core.Chart, 0)
	for rows.Next() {
		c, err := scanChart(rows)
		if err != nil {
			return nil, 0, err
		}
		if f.UserID != "" {
			c.UserName, c.UserEmail = "", ""
		}
		charts = append(charts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return charts, total, nil
}

func (p *Postgres) SetChartsActive(ctx context.Context, ids []string, active bool) (int64, error) {
	tag, err := p.pool.Exec(ctx, `UPDATE charts SET is_active = $2, updated_at = now()
		WHERE id = ANY($1) AND is_active <> $2`, toPgUUIDs(ids), active)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) CountCharts(ctx context.Context, userID string) (int64, error) {
	wb := newWhereBuilder()
	wb.AddRaw("is_active")
	if userID != "" {
		wb.AddCond("user_id = %s", toPgUUID(userID))
	}
	where, args := wb.Build()

	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM charts`+where, args...).Scan(&n)
	return n, err
}

func (p *Postgres) ChartTypeDistribution(ctx context.Context) ([]core.TypeCount, error) {
	rows, err := p.pool.Query(ctx, `SELECT chart_type, COUNT(*) FROM charts
		WHERE is_active GROUP BY chart_type ORDER BY COUNT(*) DESC, chart_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.TypeCount, 0)
	for rows.Next() {
		var (
			t core.TypeCount
			s string
		)
		if err := rows.Scan(&s, &t.Count); err != nil {
			return nil, err
		}
		t.ChartType = core.ChartType(s)
		out = append(out, t)
	}
	return out, rows.Err()
}
