package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/excel-analytics/internal/auth"
	"github.com/JonMunkholm/excel-analytics/internal/ingest"
)

// DefaultPreviewRows is how many records an upload response carries.
const DefaultPreviewRows = 10

// Cache stores JSON-encodable values with a TTL. Get reports whether the
// key was found.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Options wires the Service's collaborators and tunables.
type Options struct {
	Gateway     *ingest.Gateway
	Issuer      *auth.Issuer
	Limiter     *UploadLimiter
	Cache       Cache         // optional
	CacheTTL    time.Duration // analytics cache lifetime
	BcryptCost  int
	PreviewRows int
	Settings    Settings
}

// Service is the entry point for every user and admin operation.
type Service struct {
	store       Store
	gateway     *ingest.Gateway
	issuer      *auth.Issuer
	limiter     *UploadLimiter
	cache       Cache
	cacheTTL    time.Duration
	bcryptCost  int
	previewRows int
	settings    *settingsHolder

	started time.Time
	now     func() time.Time
}

// NewService creates a Service over store.
func NewService(store Store, opts Options) *Service {
	if opts.Limiter == nil {
		opts.Limiter = NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime)
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Service{
		store:       store,
		gateway:     opts.Gateway,
		issuer:      opts.Issuer,
		limiter:     opts.Limiter,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		bcryptCost:  opts.BcryptCost,
		previewRows: opts.PreviewRows,
		settings:    newSettingsHolder(opts.Settings),
		started:     time.Now(),
		now:         time.Now,
	}
}

// UploadLimiterStatus reports the ingest limiter's state.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight ingests finish or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// MaxFileSize is the gateway's upload ceiling in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.gateway.MaxFileSize()
}
