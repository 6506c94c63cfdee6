// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Export   ExportConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE and exports)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// AuthConfig holds session and login settings.
type AuthConfig struct {
	// JWTSecret signs session tokens (required)
	JWTSecret string `env:"AUTH_JWT_SECRET" required:"true"`

	// SessionTTL is how long a login stays valid (default: 12h)
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" default:"12h"`

	// CookieName is the session cookie name (default: rr_session)
	CookieName string `env:"AUTH_COOKIE_NAME" default:"rr_session"`

	// SecureCookie marks the session cookie Secure (default: true)
	SecureCookie bool `env:"AUTH_SECURE_COOKIE" default:"true"`

	// UsersFile is an optional YAML file of users created on startup
	UsersFile string `env:"AUTH_USERS_FILE"`
}

// ExportConfig holds streaming export settings.
type ExportConfig struct {
	// BatchSize is the number of residents fetched per page (default: 1000)
	BatchSize int `env:"EXPORT_BATCH_SIZE" default:"1000"`

	// MaxConcurrent is the maximum number of parallel exports (default: 3)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long to wait for an export slot (default: 15s)
	MaxWaitTime time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"15s"`

	// Timeout bounds a single export (default: 30m)
	Timeout time.Duration `env:"EXPORT_TIMEOUT" default:"30m"`

	// ProgressTTL is how long progress frames are kept after the last update (default: 1h)
	ProgressTTL time.Duration `env:"EXPORT_PROGRESS_TTL" default:"1h"`

	// ProgressBackend selects where progress frames live: memory or redis (default: memory)
	ProgressBackend string `env:"EXPORT_PROGRESS_BACKEND" default:"memory"`

	// RedisAddr is the host:port of the Redis server for the redis backend
	RedisAddr string `env:"REDIS_ADDR" default:"localhost:6379"`

	// RedisDB is the Redis logical database (default: 0)
	RedisDB int `env:"REDIS_DB" default:"0"`

	// RedisPassword is optional
	RedisPassword string `env:"REDIS_PASSWORD"`
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed size per uploaded file in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// ErrorLimit is how many row errors are kept per import run (default: 50)
	ErrorLimit int `env:"IMPORT_ERROR_LIMIT" default:"50"`

	// Timeout bounds a single import run (default: 15m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"15m"`

	// LogRetention is how long import logs are kept (default: 90 days)
	LogRetention time.Duration `env:"IMPORT_LOG_RETENTION" default:"2160h"`

	// MaintenanceInterval is how often stale and expired import logs are cleaned up (default: 1h)
	MaintenanceInterval time.Duration `env:"IMPORT_MAINTENANCE_INTERVAL" default:"1h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// LoginLimit is requests per minute for the login endpoint (default: 10)
	LoginLimit int `env:"RATE_LIMIT_LOGIN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

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

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
