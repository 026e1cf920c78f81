package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Client-state store
	t.Setenv("DB_PATH", "state.sqlite")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	// Surfaces
	t.Setenv("PUBLIC_HOST", "example.io")
	t.Setenv("APP_HOST", "app.example.io")
	t.Setenv("PREVIEW_SUFFIXES", " .preview.example , .vercel.app ")
	t.Setenv("LOCAL_HOSTS", "localhost")

	// Deferred-write core
	t.Setenv("STAGING_TTL", "12h")
	t.Setenv("GUARD_TTL", "36h")
	t.Setenv("REDIRECT_DEBOUNCE", "200ms")
	t.Setenv("NAV_DELAY", "1s")
	t.Setenv("SWEEP_INTERVAL", "30m")
	t.Setenv("FREE_MONTHLY_LIMIT", "2")
	t.Setenv("MAX_DOC_BYTES", "1024")

	// External collaborators
	t.Setenv("IDENTITY_URL", "https://id.example.io")
	t.Setenv("IDENTITY_LOGIN_URL", "https://id.example.io")
	t.Setenv("ENTITY_URL", "https://store.example.io")
	t.Setenv("ENTITY_API_KEY", "k1")
	t.Setenv("BILLING_URL", "https://billing.example.io")
	t.Setenv("CLIENT_TIMEOUT", "5s")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging / Docs
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	// Client-state store
	if cfg.DBPath != "state.sqlite" || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("store fields unexpected: %+v", cfg)
	}

	// Surfaces
	if cfg.Surface.PublicHost != "example.io" || cfg.Surface.AppHost != "app.example.io" {
		t.Fatalf("surface hosts unexpected: %+v", cfg.Surface)
	}
	if !reflect.DeepEqual(cfg.Surface.PreviewSuffixes, []string{".preview.example", ".vercel.app"}) {
		t.Fatalf("preview suffixes unexpected: %v", cfg.Surface.PreviewSuffixes)
	}

	// Deferred-write core
	if cfg.StagingTTL != 12*time.Hour ||
		cfg.GuardTTL != 36*time.Hour ||
		cfg.RedirectDebounce != 200*time.Millisecond ||
		cfg.NavDelay != time.Second ||
		cfg.SweepInterval != 30*time.Minute ||
		cfg.FreeMonthlyLimit != 2 ||
		cfg.MaxDocBytes != 1024 {
		t.Fatalf("core fields unexpected: %+v", cfg)
	}

	// External collaborators
	if cfg.Clients.IdentityURL != "https://id.example.io" ||
		cfg.Clients.EntityAPIKey != "k1" ||
		cfg.Clients.Timeout != 5*time.Second {
		t.Fatalf("client fields unexpected: %+v", cfg.Clients)
	}

	// Rate limiting fallbacks
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate fields unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors unexpected: %v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validation failures ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"negative read timeout", "READ_TIMEOUT", "-1s", "timeouts"},
		{"zero staging ttl", "STAGING_TTL", "-1h", "STAGING_TTL"},
		{"guard shorter than staging", "GUARD_TTL", "1h", "GUARD_TTL"},
		{"negative debounce", "REDIRECT_DEBOUNCE", "-1ms", "REDIRECT_DEBOUNCE"},
		{"zero free limit", "FREE_MONTHLY_LIMIT", "0", "FREE_MONTHLY_LIMIT"},
		{"zero client timeout", "CLIENT_TIMEOUT", "-5s", "CLIENT_TIMEOUT"},
		{"negative rps", "RATE_RPS", "-1", "RATE_RPS"},
		{"zero burst", "RATE_BURST", "0", "RATE_BURST"},
		{"bad sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

// --- helpers ---

func TestSplitCSV(t *testing.T) {
	if got := splitCSV("  "); got != nil {
		t.Fatalf("splitCSV(blank) = %v", got)
	}
	if got := splitCSV("a, ,b ,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("splitCSV = %v", got)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "/api/v1",
		"api":     "/api",
		"/api/":   "/api",
		"/api/v2": "/api/v2",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
