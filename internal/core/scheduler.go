package core

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig tunes the retention job. Zero values take the defaults.
type RetentionConfig struct {
	ActivityDays  int           // activity entries older than this are purged (default 365)
	FileBatch     int           // stored files removed per run (default 500)
	CheckInterval time.Duration // how often to run (default 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.ActivityDays <= 0 {
		c.ActivityDays = 365
	}
	if c.FileBatch <= 0 {
		c.FileBatch = 500
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// RetentionResult reports one retention run.
type RetentionResult struct {
	ActivitiesPurged int64
	FilesRemoved     int
}

// StartRetentionScheduler runs the retention job now and then every
// CheckInterval until ctx is cancelled.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"activity_days", cfg.ActivityDays,
		"interval", cfg.CheckInterval,
	)

	s.RunRetention(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.RunRetention(ctx, cfg)
		}
	}
}

// RunRetention purges old activity and removes the stored files of deleted
// uploads. Failures are logged and the remaining steps still run.
func (s *Service) RunRetention(ctx context.Context, cfg RetentionConfig) RetentionResult {
	cfg = cfg.withDefaults()
	start := time.Now()
	var res RetentionResult

	cutoff := s.now().AddDate(0, 0, -cfg.ActivityDays)
	purged, err := s.store.PurgeActivity(ctx, cutoff)
	if err != nil {
		slog.Error("activity purge failed", "error", err)
	} else {
		res.ActivitiesPurged = purged
	}

	orphans, err := s.store.OrphanedFiles(ctx, cfg.FileBatch)
	if err != nil {
		slog.Error("listing deleted upload files failed", "error", err)
	}
	for i := range orphans {
		u := &orphans[i]
		if err := s.gateway.Remove(u.UploadPath); err != nil {
			slog.Warn("failed to remove upload file", "upload_id", u.ID, "error", err)
			continue
		}
		if err := s.store.ClearUploadPath(ctx, u.ID); err != nil {
			slog.Warn("failed to clear upload path", "upload_id", u.ID, "error", err)
			continue
		}
		res.FilesRemoved++
	}

	slog.Info("retention job completed",
		"activities_purged", res.ActivitiesPurged,
		"files_removed", res.FilesRemoved,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}
