// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, hostname topology, staging TTLs, external
// collaborator endpoints, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-clausewise-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SurfaceConfig describes the hostname topology the classifier works on.
type SurfaceConfig struct {
	PublicHost      string   // PUBLIC_HOST, the marketing surface
	AppHost         string   // APP_HOST, the authenticated surface
	PreviewSuffixes []string // PREVIEW_SUFFIXES, redirect-disabling suffixes
	LocalHosts      []string // LOCAL_HOSTS, dev hostnames
}

// ClientsConfig holds the endpoints of the external collaborators.
type ClientsConfig struct {
	IdentityURL      string        // IDENTITY_URL, provider API root
	IdentityLoginURL string        // IDENTITY_LOGIN_URL, browser-facing login base
	EntityURL        string        // ENTITY_URL, permanent entity store
	EntityAPIKey     string        // ENTITY_API_KEY
	BillingURL       string        // BILLING_URL, payment function boundary
	Timeout          time.Duration // CLIENT_TIMEOUT for all outbound calls
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Client-state store
	DBPath   string // SQLite path for the KV + guard tables
	RedisURL string // optional; when set, staging keys live in Redis

	// Surfaces
	Surface SurfaceConfig

	// Deferred-write core
	StagingTTL       time.Duration // how long a staged record stays promotable
	GuardTTL         time.Duration // how long handled pointer ids are remembered
	RedirectDebounce time.Duration // pause before the login redirect intent
	NavDelay         time.Duration // pause before the post-promotion navigation
	SweepInterval    time.Duration // expired-key sweep cadence (SQLite backend)
	FreeMonthlyLimit int           // free analyses per calendar month per tier
	MaxDocBytes      int           // accepted document size ceiling

	// External collaborators
	Clients ClientsConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Client-state store
		DBPath:   getenv("DB_PATH", "clausewise.db"),
		RedisURL: getenv("REDIS_URL", ""),

		// Surfaces
		Surface: SurfaceConfig{
			PublicHost:      getenv("PUBLIC_HOST", "clausewise.io"),
			AppHost:         getenv("APP_HOST", "app.clausewise.io"),
			PreviewSuffixes: splitCSV(getenv("PREVIEW_SUFFIXES", ".vercel.app")),
			LocalHosts:      splitCSV(getenv("LOCAL_HOSTS", "localhost,127.0.0.1")),
		},

		// Deferred-write core
		StagingTTL:       getdur("STAGING_TTL", 24*time.Hour),
		GuardTTL:         getdur("GUARD_TTL", 48*time.Hour),
		RedirectDebounce: getdur("REDIRECT_DEBOUNCE", 400*time.Millisecond),
		NavDelay:         getdur("NAV_DELAY", 1500*time.Millisecond),
		SweepInterval:    getdur("SWEEP_INTERVAL", time.Hour),
		FreeMonthlyLimit: getint("FREE_MONTHLY_LIMIT", 1),
		MaxDocBytes:      getint("MAX_DOC_BYTES", 512<<10),

		// External collaborators
		Clients: ClientsConfig{
			IdentityURL:      getenv("IDENTITY_URL", "http://localhost:9001"),
			IdentityLoginURL: getenv("IDENTITY_LOGIN_URL", "http://localhost:9001"),
			EntityURL:        getenv("ENTITY_URL", "http://localhost:9002"),
			EntityAPIKey:     getenv("ENTITY_API_KEY", ""),
			BillingURL:       getenv("BILLING_URL", "http://localhost:9003"),
			Timeout:          getdur("CLIENT_TIMEOUT", 10*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-clausewise-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Surface.PublicHost) == "" || strings.TrimSpace(cfg.Surface.AppHost) == "" {
		return cfg, errors.New("PUBLIC_HOST and APP_HOST must not be empty")
	}
	if cfg.StagingTTL <= 0 {
		return cfg, errors.New("STAGING_TTL must be > 0")
	}
	if cfg.GuardTTL < cfg.StagingTTL {
		return cfg, errors.New("GUARD_TTL must be >= STAGING_TTL")
	}
	if cfg.RedirectDebounce < 0 || cfg.NavDelay < 0 {
		return cfg, errors.New("REDIRECT_DEBOUNCE and NAV_DELAY must be >= 0")
	}
	if cfg.SweepInterval <= 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be > 0")
	}
	if cfg.FreeMonthlyLimit < 1 {
		return cfg, errors.New("FREE_MONTHLY_LIMIT must be >= 1")
	}
	if cfg.MaxDocBytes <= 0 {
		return cfg, errors.New("MAX_DOC_BYTES must be > 0")
	}
	if cfg.Clients.Timeout <= 0 {
		return cfg, errors.New("CLIENT_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures the base path starts with '/' and has no
// trailing slash.
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/api/v1"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if trimmed := strings.TrimRight(p, "/"); trimmed != "" {
		return trimmed
	}
	return "/"
}
