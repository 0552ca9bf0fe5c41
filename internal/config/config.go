// Package config loads the application configuration from environment
// variables. Every setting has a default except the database URL and the
// JWT secret; Load validates the whole struct and reports every problem at
// once so a misconfigured deployment fails on startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Upload     UploadConfig
	Classifier ClassifierConfig
	Auth       AuthConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Cache      CacheConfig
	Retention  RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 5000)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"5000"`

	// ReadTimeout covers reading the whole request, multipart body included (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing the response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds workbook upload settings.
type UploadConfig struct {
	// Dir is where accepted workbooks are stored (default: uploads)
	Dir string `env:"UPLOAD_DIR" envAlt:"UPLOAD_PATH" default:"uploads"`

	// MaxFileSize is the upload ceiling in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" envAlt:"MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel ingests (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an ingest slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// PreviewRows is how many records the upload response carries (default: 10)
	PreviewRows int `env:"UPLOAD_PREVIEW_ROWS" default:"10"`
}

// ClassifierConfig tunes column type inference.
type ClassifierConfig struct {
	// SampleSize is how many non-null values per column are inspected (default: 100)
	SampleSize int `env:"CLASSIFIER_SAMPLE_SIZE" default:"100"`

	// NumberThreshold is the numeric share a column must exceed (default: 0.8)
	NumberThreshold float64 `env:"CLASSIFIER_NUMBER_THRESHOLD" default:"0.8"`

	// DateThreshold is the date share a column must exceed (default: 0.8)
	DateThreshold float64 `env:"CLASSIFIER_DATE_THRESHOLD" default:"0.8"`
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	// JWTSecret signs access tokens (required)
	JWTSecret string `env:"JWT_SECRET" required:"true"`

	// JWTExpiry is the access token lifetime (default: 7 days)
	JWTExpiry time.Duration `env:"JWT_EXPIRE" default:"168h"`

	// RefreshSecret signs refresh tokens; falls back to JWTSecret when empty
	RefreshSecret string `env:"JWT_REFRESH_SECRET"`

	// RefreshExpiry is the refresh token lifetime (default: 30 days)
	RefreshExpiry time.Duration `env:"JWT_REFRESH_EXPIRE" default:"720h"`

	// BcryptCost is the password hashing cost (default: 12)
	BcryptCost int `env:"BCRYPT_COST" default:"12"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// CORSOrigins lists the browser origins allowed to call the API
	CORSOrigins []string `env:"CORS_ORIGINS" envAlt:"FRONTEND_URL" default:"http://localhost:3000"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// CacheConfig holds the optional analytics cache settings.
type CacheConfig struct {
	// RedisURL enables the Redis cache when set, e.g. redis://localhost:6379/0
	RedisURL string `env:"REDIS_URL"`

	// TTL is how long cached analytics stay fresh (default: 5m)
	TTL time.Duration `env:"CACHE_TTL" default:"5m"`
}

// RetentionConfig holds the cleanup job settings.
type RetentionConfig struct {
	// ActivityDays is how long activity entries are kept (default: 365)
	ActivityDays int `env:"RETENTION_ACTIVITY_DAYS" default:"365"`

	// CheckInterval is how often the cleanup job runs (default: 24h)
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// RefreshKey returns the secret used for refresh tokens.
func (c *AuthConfig) RefreshKey() string {
	if c.RefreshSecret != "" {
		return c.RefreshSecret
	}
	return c.JWTSecret
}

// Enabled reports whether a Redis URL is configured.
func (c *CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}
