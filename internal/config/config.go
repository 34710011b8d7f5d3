package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the runtime configuration for the V2T web frontend.
type Config struct {
	AppPort        int
	BackendURL     string
	BackendTimeout time.Duration
	UploadTimeout  time.Duration
	DatabaseURL    string
	MigrationDir   string
	LogLevel       string

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	CookieSecure         bool

	PollInterval       time.Duration
	PollMaxDuration    time.Duration
	PollRequestTimeout time.Duration
	RedirectDelay      time.Duration
	MaxUploadBytes     int64

	AuthRateLimit  int
	AuthRateWindow time.Duration
	AuthRateBurst  int

	ObjectStore ObjectStoreConfig
}

// ObjectStoreConfig points the export archive at an S3-compatible bucket.
// An empty Bucket disables archiving.
type ObjectStoreConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	Workers       int
	QueueSize     int
}

// Enabled reports whether an archive bucket is configured.
func (c ObjectStoreConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// DefaultMaxUploadBytes is the largest video accepted for upload (500 MiB).
const DefaultMaxUploadBytes int64 = 500 * 1024 * 1024

// Load reads configuration from environment variables, applying sensible defaults
// for local development while allowing overrides through environment variables.
func Load() (Config, error) {
	cfg := Config{
		AppPort:        getInt("V2T_PORT", 8080),
		BackendURL:     strings.TrimRight(getString("V2T_BACKEND_URL", "http://localhost:8000"), "/"),
		BackendTimeout: getDuration("V2T_BACKEND_TIMEOUT", 30*time.Second),
		UploadTimeout:  getDuration("V2T_UPLOAD_TIMEOUT", 10*time.Minute),
		DatabaseURL:    getString("V2T_DATABASE_URL", ""),
		MigrationDir:   getString("V2T_MIGRATIONS", "migrations"),
		LogLevel:       getString("V2T_LOG_LEVEL", "info"),

		SessionTTL:           getDuration("V2T_SESSION_TTL", 24*time.Hour),
		SessionSweepInterval: getDuration("V2T_SESSION_SWEEP_INTERVAL", 15*time.Minute),
		CookieSecure:         getBool("V2T_COOKIE_SECURE", false),

		PollInterval:       getDuration("V2T_POLL_INTERVAL", 3*time.Second),
		PollMaxDuration:    getDuration("V2T_POLL_MAX_DURATION", 30*time.Minute),
		PollRequestTimeout: getDuration("V2T_POLL_REQUEST_TIMEOUT", 10*time.Second),
		RedirectDelay:      getDuration("V2T_REDIRECT_DELAY", 2*time.Second),
		MaxUploadBytes:     getInt64("V2T_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),

		AuthRateLimit:  getInt("V2T_AUTH_RATE_LIMIT", 10),
		AuthRateWindow: getDuration("V2T_AUTH_RATE_WINDOW", time.Minute),
		AuthRateBurst:  getInt("V2T_AUTH_RATE_BURST", 5),

		ObjectStore: ObjectStoreConfig{
			Bucket:        getString("V2T_EXPORT_BUCKET", ""),
			Region:        getString("V2T_EXPORT_REGION", "us-east-1"),
			Endpoint:      getString("V2T_EXPORT_ENDPOINT", ""),
			PublicBaseURL: getString("V2T_EXPORT_PUBLIC_URL", ""),
			Workers:       getInt("V2T_EXPORT_WORKERS", 2),
			QueueSize:     getInt("V2T_EXPORT_QUEUE", 32),
		},
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil || i <= 0 {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
