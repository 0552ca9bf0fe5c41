package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/excel-analytics/internal/auth"
	"github.com/JonMunkholm/excel-analytics/internal/cache"
	"github.com/JonMunkholm/excel-analytics/internal/config"
	"github.com/JonMunkholm/excel-analytics/internal/core"
	"github.com/JonMunkholm/excel-analytics/internal/ingest"
	"github.com/JonMunkholm/excel-analytics/internal/logging"
	"github.com/JonMunkholm/excel-analytics/internal/store"
	"github.com/JonMunkholm/excel-analytics/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_dir", cfg.Upload.Dir,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"cache_enabled", cfg.Cache.Enabled(),
	)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// run wires the dependencies and serves until SIGINT/SIGTERM. Deferred
// closes run only after shutdown has finished.
func run(cfg *config.Config) error {
	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool, store.MigrateUp); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	db := store.New(pool)
	deps := []web.Dependency{{Name: "database", Ping: db.Ping}}

	classifier := ingest.Classifier{
		SampleSize:      cfg.Classifier.SampleSize,
		NumberThreshold: cfg.Classifier.NumberThreshold,
		DateThreshold:   cfg.Classifier.DateThreshold,
	}
	gateway, err := ingest.NewGateway(cfg.Upload.Dir, cfg.Upload.MaxFileSize, ingest.NewParser(classifier))
	if err != nil {
		return fmt.Errorf("prepare upload directory: %w", err)
	}

	settings := core.DefaultSettings()
	settings.General.MaxFileSize = cfg.Upload.MaxFileSize
	settings.Security.JWTExpiration = cfg.Auth.JWTExpiry.String()
	settings.Security.RateLimit = cfg.Rate.RequestsPerMinute

	opts := core.Options{
		Gateway:     gateway,
		Issuer:      auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.RefreshKey(), cfg.Auth.RefreshExpiry),
		Limiter:     core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		CacheTTL:    cfg.Cache.TTL,
		BcryptCost:  cfg.Auth.BcryptCost,
		PreviewRows: cfg.Upload.PreviewRows,
		Settings:    settings,
	}

	// The cache is optional; analytics fall back to the database without it.
	if cfg.Cache.Enabled() {
		rc, err := cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, analytics cache disabled", "error", err)
		} else {
			defer rc.Close()
			opts.Cache = rc
			deps = append(deps, web.Dependency{Name: "cache", Ping: rc.Ping})
		}
	}

	service := core.NewService(db, opts)
	server := web.NewServer(service, cfg, deps...)

	// Background jobs and the server both stop on SIGINT/SIGTERM.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go service.StartRetentionScheduler(sigCtx, core.RetentionConfig{
		ActivityDays:  cfg.Retention.ActivityDays,
		CheckInterval: cfg.Retention.CheckInterval,
	})

	return serve(sigCtx, server, service, cfg.Server.ShutdownTimeout)
}
