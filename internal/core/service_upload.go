package core

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/excel-analytics/internal/ingest"
	"github.com/JonMunkholm/excel-analytics/internal/logging"
)

// UploadExcel ingests a workbook for userID and stores the parsed upload.
// The returned upload carries only the preview rows in Data.
func (s *Service) UploadExcel(ctx context.Context, userID string, up ingest.Upload) (*Upload, error) {
	// Reject early so an oversized upload never waits for a slot.
	if err := s.gateway.Validate(up.MimeType, up.Size); err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	stored, res, err := s.gateway.Ingest(ctx, up)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := &Upload{
		UserID:           userID,
		Filename:         stored.Filename,
		OriginalName:     up.OriginalName,
		FileSize:         stored.Size,
		MimeType:         up.MimeType,
		UploadPath:       stored.Path,
		ProcessingStatus: StatusCompleted,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applyParse(u, res)

	if err := s.store.CreateUpload(ctx, u); err != nil {
		if rmErr := s.gateway.Remove(stored.Path); rmErr != nil {
			logging.FromContext(ctx).Error("failed to remove orphaned upload", "path", stored.Path, "error", rmErr)
		}
		return nil, fmt.Errorf("save upload: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionUploadFile,
		ResourceType: ResourceUpload,
		ResourceID:   u.ID,
		Metadata: map[string]any{
			"filename":    up.OriginalName,
			"fileSize":    stored.Size,
			"rowCount":    u.RowCount,
			"columnCount": len(u.Columns),
		},
	})
	s.invalidateAnalytics(ctx)

	u.Data = res.Preview(s.previewRows)
	return u, nil
}

// applyParse copies a parse result onto an upload record.
func applyParse(u *Upload, res *ingest.ParseResult) {
	u.Columns = res.Columns
	u.Data = res.Data
	u.RowCount = res.RowCount
	u.Metadata = UploadMetadata{
		SheetNames:    res.SheetNames,
		SelectedSheet: res.SelectedSheet,
		DataTypes:     res.DataTypes,
		Warnings:      res.Warnings,
	}
}

// History lists a user's active uploads, newest first, without records.
func (s *Service) History(ctx context.Context, userID string, p Page) ([]Upload, Pagination, error) {
	p = p.Normalize()
	uploads, total, err := s.store.ListUploads(ctx, UploadFilter{
		UserID: userID,
		Sort:   Sort{By: "createdAt", Desc: true},
		Page:   p,
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, NewPagination(p, total), nil
}

// GetUpload returns one of the user's active uploads with all its records.
func (s *Service) GetUpload(ctx context.Context, userID, id string) (*Upload, error) {
	u, err := s.ownedUpload(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, notFound("upload")
	}
	return u, nil
}

// ownedUpload loads an upload of userID whether or not it is active.
func (s *Service) ownedUpload(ctx context.Context, userID, id string) (*Upload, error) {
	u, err := s.store.GetUpload(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && u.UserID != userID) {
		return nil, notFound("upload")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUpload soft-deletes an upload and removes its stored file.
func (s *Service) DeleteUpload(ctx context.Context, userID, id string) error {
	u, err := s.ownedUpload(ctx, userID, id)
	if err != nil {
		return err
	}

	if _, err := s.store.SetUploadsActive(ctx, []string{id}, false); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	s.removeFile(ctx, u)

	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionDeleteUpload,
		ResourceType: ResourceUpload,
		ResourceID:   id,
		Metadata:     map[string]any{"filename": u.OriginalName},
	})
	s.invalidateAnalytics(ctx)
	return nil
}

// removeFile deletes an upload's stored file and forgets its path. Failures
// are logged; the retention job retries them.
func (s *Service) removeFile(ctx context.Context, u *Upload) {
	if u.UploadPath == "" {
		return
	}
	log := logging.WithFields(ctx, "upload_id", u.ID)
	if err := s.gateway.Remove(u.UploadPath); err != nil {
		log.Warn("failed to remove upload file", "error", err)
		return
	}
	if err := s.store.ClearUploadPath(ctx, u.ID); err != nil {
		log.Warn("failed to clear upload path", "error", err)
	}
}

// DownloadUpload returns an active upload whose stored file still exists.
func (s *Service) DownloadUpload(ctx context.Context, userID, id string) (*Upload, error) {
	u, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if u.UploadPath == "" {
		return nil, ErrFileMissing
	}
	if _, err := os.Stat(u.UploadPath); err != nil {
		return nil, ErrFileMissing
	}
	return u, nil
}

// Preview summarizes an upload with its first limit records.
func (s *Service) Preview(ctx context.Context, userID, id string, limit int) (DataPreview, error) {
	u, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return DataPreview{}, err
	}
	return u.Preview(limit), nil
}

// SelectSheet re-parses a stored upload from another sheet and saves the
// result. The returned upload carries only the preview rows in Data.
func (s *Service) SelectSheet(ctx context.Context, userID, id, sheet string) (*Upload, error) {
	u, err := s.DownloadUpload(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	res, err := s.gateway.Reparse(u.UploadPath, sheet)
	if err != nil {
		return nil, err
	}

	applyParse(u, res)
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUpload(ctx, u); err != nil {
		return nil, fmt.Errorf("update upload: %w", err)
	}

	s.logActivity(ctx, activityParams{
		UserID:       userID,
		Action:       ActionSelectSheet,
		ResourceType: ResourceUpload,
		ResourceID:   id,
		Metadata:     map[string]any{"sheet": res.SelectedSheet, "rowCount": res.RowCount},
	})

	u.Data = res.Preview(s.previewRows)
	return u, nil
}
