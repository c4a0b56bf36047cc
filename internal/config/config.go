// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Load     LoadConfig
	Format   FormatConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ByteSize is a size in bytes. Environment values accept units, e.g.
// "64KiB", "100MB", or a plain byte count.
type ByteSize int64

// Int returns the size as an int.
func (b ByteSize) Int() int { return int(b) }

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request, body
	// included. Uploads can be large (default: 10m)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"10m"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for running loads
	// and requests on shutdown (default: 2m)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"2m"`

	// RequestTimeout is the middleware timeout for non-upload requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
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

// LoadConfig holds flat-file load settings.
type LoadConfig struct {
	// MaxFileSize is the maximum upload size (default: 1GiB)
	MaxFileSize ByteSize `env:"LOAD_MAX_FILE_SIZE" default:"1GiB"`

	// MaxConcurrent is the maximum number of parallel loads (default: 4)
	MaxConcurrent int `env:"LOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a load slot (default: 30s)
	MaxWaitTime time.Duration `env:"LOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of a single load (default: 30m)
	Timeout time.Duration `env:"LOAD_TIMEOUT" default:"30m"`

	// BufferSize is the initial read window (default: 64KiB)
	BufferSize ByteSize `env:"LOAD_BUFFER_SIZE" default:"64KiB"`

	// MaxRowSize bounds a single row; larger rows are rejected (default: 1MiB)
	MaxRowSize ByteSize `env:"LOAD_MAX_ROW_SIZE" default:"1MiB"`

	// MaxRejected is the default number of rejected rows tolerated per
	// load; negative means unlimited (default: 0)
	MaxRejected int `env:"LOAD_MAX_REJECTED" default:"0"`

	// RetainResults is how long finished loads stay queryable (default: 15m)
	RetainResults time.Duration `env:"LOAD_RETAIN_RESULTS" default:"15m"`

	// SpoolDir holds uploads while they load (default: system temp dir)
	SpoolDir string `env:"LOAD_SPOOL_DIR"`
}

// FormatConfig selects the format used when a request names none and the
// file extension is not recognised. Characters accept a single byte, an
// escape like \t, hex like 0x7c, a name like pipe, or none.
type FormatConfig struct {
	// Default is the fallback format name (default: csv)
	Default string `env:"FORMAT_DEFAULT" default:"csv"`

	Delimiter string `env:"FORMAT_DELIMITER"`
	Quote     string `env:"FORMAT_QUOTE"`
	Escape    string `env:"FORMAT_ESCAPE"`

	// TrimLeadingSpace drops spaces before unquoted values (default: false)
	TrimLeadingSpace bool `env:"FORMAT_TRIM_LEADING_SPACE" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// LoadLimit is requests per minute for upload endpoints (default: 10)
	LoadLimit int `env:"RATE_LIMIT_LOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
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
