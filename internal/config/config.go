package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// Resilience
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"100ms"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"50"`

	// Cache
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	RedisURL string        `env:"REDIS_URL"` // empty → in-memory cache

	// Observability
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Supabase
	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET"` // empty → verify tokens remotely
	InviteRedirectURL  string `env:"INVITE_REDIRECT_URL"`

	// Session
	SessionCookie string   `env:"SESSION_COOKIE"`                        // empty → sb-<project-ref>-auth-token
	CORSOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","` // empty → no CORS headers

	// Admin routes
	AdminRateLimit float64 `env:"ADMIN_RATE_LIMIT" envDefault:"2"`
	AdminRateBurst int     `env:"ADMIN_RATE_BURST" envDefault:"10"`

	// Clientes
	ExportMaxRows int    `env:"EXPORT_MAX_ROWS" envDefault:"20000"`
	DefaultTable  string `env:"DEFAULT_TABLE" envDefault:"Farol"`
}

// Load reads configuration from environment variables with defaults.
// The Next.js variable names are accepted as fallbacks so an existing
// dashboard .env works unchanged.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.SupabaseURL == "" {
		cfg.SupabaseURL = os.Getenv("NEXT_PUBLIC_SUPABASE_URL")
	}
	if cfg.SupabaseAnonKey == "" {
		cfg.SupabaseAnonKey = os.Getenv("NEXT_PUBLIC_SUPABASE_ANON_KEY")
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = SessionCookieName(cfg.SupabaseURL)
	}

	return cfg, nil
}

// SessionCookieName returns the cookie the Supabase auth helpers write for
// the project at supabaseURL: "sb-<project-ref>-auth-token", where the ref
// is the first label of the host.
func SessionCookieName(supabaseURL string) string {
	u, err := url.Parse(supabaseURL)
	if err != nil || u.Hostname() == "" {
		return "sb-access-token"
	}
	ref, _, _ := strings.Cut(u.Hostname(), ".")
	return "sb-" + ref + "-auth-token"
}

// SupabaseConfigured reports whether the service-role backend is reachable.
func (c *Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}
