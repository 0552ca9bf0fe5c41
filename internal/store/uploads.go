package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

// uploadSummaryColumns are every upload column but the parsed records.
const uploadSummaryColumns = `u.id, u.user_id, u.filename, u.original_name, u.file_size, u.mime_type,
	u.upload_path, u.columns, u.row_count, u.processing_status, u.processing_error,
	u.metadata, u.is_active, u.created_at, u.updated_at`

var uploadSortColumns = map[string]string{
	"createdAt":    "u.created_at",
	"originalName": "u.original_name",
	"fileSize":     "u.file_size",
	"rowCount":     "u.row_count",
	"updatedAt":    "u.updated_at",
}

// scanUpload reads uploadSummaryColumns followed by extra destinations.
func scanUpload(row pgx.Row, extra ...any) (*core.Upload, error) {
	var (
		u        core.Upload
		id       pgtype.UUID
		userID   pgtype.UUID
		columns  []byte
		status   string
		procErr  pgtype.Text
		metadata []byte
	)
	dest := append([]any{&id, &userID, &u.Filename, &u.OriginalName, &u.FileSize, &u.MimeType,
		&u.UploadPath, &columns, &u.RowCount, &status, &procErr,
		&metadata, &u.IsActive, &u.CreatedAt, &u.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, mapError(err)
	}

	u.ID = uuidString(id)
	u.UserID = uuidString(userID)
	u.ProcessingStatus = core.ProcessingStatus(status)
	u.ProcessingError = textPtr(procErr)
	if err := json.Unmarshal(columns, &u.Columns); err != nil {
		return nil, fmt.Errorf("decode upload columns: %w", err)
	}
	if err := json.Unmarshal(metadata, &u.Metadata); err != nil {
		return nil, fmt.Errorf("decode upload metadata: %w", err)
	}
	return &u, nil
}

// uploadDocs encodes the JSON columns of an upload.
func uploadDocs(u *core.Upload) (columns, data, metadata []byte, err error) {
	if columns, err = marshalJSON(u.Columns); err != nil {
		return
	}
	if data, err = marshalJSON(u.Data); err != nil {
		return
	}
	metadata, err = marshalJSON(u.Metadata)
	return
}

func (p *Postgres) CreateUpload(ctx context.Context, u *core.Upload) error {
	columns, data, metadata, err := uploadDocs(u)
	if err != nil {
		return err
	}
	id := newID(u.ID)
	_, err = p.pool.Exec(ctx, `INSERT INTO uploads (
		id, user_id, filename, original_name, file_size, mime_type, upload_path,
		columns, row_count, data, processing_status, processing_error, metadata,
		is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, toPgUUID(u.UserID), u.Filename, u.OriginalName, u.FileSize, u.MimeType, u.UploadPath,
		columns, u.RowCount, data, string(u.ProcessingStatus), u.ProcessingError, metadata,
		u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	u.ID = uuidString(id)
	return nil
}

func (p *Postgres) GetUpload(ctx context.Context, id string) (*core.Upload, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return nil, core.ErrNotFound
	}
	var data []byte
	u, err := scanUpload(p.pool.QueryRow(ctx,
		`SELECT `+uploadSummaryColumns+`, u.data FROM uploads u WHERE u.id = $1`, pgID), &data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &u.Data); err != nil {
		return nil, fmt.Errorf("decode upload records: %w", err)
	}
	return u, nil
}

func (p *Postgres) UpdateUpload(ctx context.Context, u *core.Upload) error {
	columns, data, metadata, err := uploadDocs(u)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `UPDATE uploads SET
		filename = $2, original_name = $3, file_size = $4, mime_type = $5, upload_path = $6,
		columns = $7, row_count = $8, data = $9, processing_status = $10,
		processing_error = $11, metadata = $12, is_active = $13, updated_at = $14
		WHERE id = $1`,
		toPgUUID(u.ID), u.Filename, u.OriginalName, u.FileSize, u.MimeType, u.UploadPath,
		columns, u.RowCount, data, string(u.ProcessingStatus),
		u.ProcessingError, metadata, u.IsActive, u.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (p *Postgres) ListUploads(ctx context.Context, f core.UploadFilter) ([]core.Upload, int64, error) {
	wb := newWhereBuilder()
	wb.AddRaw("u.is_active")
	if f.UserID != "" {
		wb.AddCond("u.user_id = %s", toPgUUID(f.UserID))
	}
	wb.AddSearch(f.Search, "u.original_name")
	wb.Add("u.processing_status", string(f.Status))
	where, args := wb.Build()

	var total int64
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM uploads u`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}

	limit, args := limitOffset(wb, f.Page)
	rows, err := p.pool.Query(ctx, `SELECT `+uploadSummaryColumns+`, COALESCE(o.name, ''), COALESCE(o.email, '')
		FROM uploads u LEFT JOIN users o ON o.id = u.user_id`+where+
		orderBy(f.Sort, uploadSortColumns, "u.id")+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := make([]core.Upload, 0)
	for rows.Next() {
		var name, email string
		u, err := scanUpload(rows, &name, &email)
		if err != nil {
			return nil, 0, err
		}
		if f.UserID == "" {
			u.UserName, u.UserEmail = name, email
		}
		uploads = append(uploads, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return uploads, total, nil
}

func (p *Postgres) SetUploadsActive(ctx context.Context, ids []string, active bool) (int64, error) {
	tag, err := p.pool.Exec(ctx, `UPDATE uploads SET is_active = $2, updated_at = now()
		WHERE id = ANY($1) AND is_active <> $2`, toPgUUIDs(ids), active)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) CountUploads(ctx context.Context, userID string) (int64, error) {
	wb := newWhereBuilder()
	wb.AddRaw("is_active")
	if userID != "" {
		wb.AddCond("user_id = %s", toPgUUID(userID))
	}
	where, args := wb.Build()

	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM uploads`+where, args...).Scan(&n)
	return n, err
}

func (p *Postgres) StorageUsed(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COALESCE(SUM(file_size), 0)::bigint FROM uploads WHERE is_active`).Scan(&n)
	return n, err
}

func (p *Postgres) UploadStats(ctx context.Context, since time.Time) ([]core.DailyCount, error) {
	return p.dailyCounts(ctx, `SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		COUNT(*), COALESCE(SUM(file_size), 0)::bigint
		FROM uploads WHERE is_active AND created_at >= $1
		GROUP BY day ORDER BY day`, since)
}

func (p *Postgres) OrphanedFiles(ctx context.Context, limit int) ([]core.Upload, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, upload_path FROM uploads
		WHERE NOT is_active AND upload_path <> ''
		ORDER BY updated_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Upload
	for rows.Next() {
		var (
			id pgtype.UUID
			u  core.Upload
		)
		if err := rows.Scan(&id, &u.UploadPath); err != nil {
			return nil, err
		}
		u.ID = uuidString(id)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) ClearUploadPath(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE uploads SET upload_path = '' WHERE id = $1`, toPgUUID(id))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
