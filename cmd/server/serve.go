package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type uploadDrainer interface {
	UploadLimiterStatus() core.UploadLimiterStatus
	WaitForUploads(ctx context.Context) error
}

// serve runs srv until ctx is cancelled and returns only once shutdown has
// completed. Shutdown closes the listeners first, so no upload can start
// while in-flight requests and uploads drain within timeout.
func serve(ctx context.Context, srv httpServer, uploads uploadDrainer, timeout time.Duration) error {
	startErr := make(chan error, 1)
	go func() { startErr <- srv.Start() }()

	select {
	case err := <-startErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		slog.Error("shutdown error", "error", shutdownErr)
	}

	// Requests that timed out above may leave ingests running.
	if status := uploads.UploadLimiterStatus(); status.Active > 0 {
		slog.Info("waiting for uploads to complete", "active", status.Active)
		if err := uploads.WaitForUploads(shutdownCtx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		} else {
			slog.Info("all uploads completed")
		}
	}

	if err := <-startErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return shutdownErr
}
