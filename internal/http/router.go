// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, device identification, logging/redaction,
// panic recovery, metrics, pointer-replay suppression, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/clausewise/go-clausewise-backend/docs"
	"github.com/clausewise/go-clausewise-backend/internal/clients"
	"github.com/clausewise/go-clausewise-backend/internal/config"
	"github.com/clausewise/go-clausewise-backend/internal/http/handlers"
	"github.com/clausewise/go-clausewise-backend/internal/http/middleware"
	"github.com/clausewise/go-clausewise-backend/internal/quota"
	"github.com/clausewise/go-clausewise-backend/internal/repo"
	"github.com/clausewise/go-clausewise-backend/internal/riskindex"
	"github.com/clausewise/go-clausewise-backend/internal/services"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
	"github.com/clausewise/go-clausewise-backend/internal/surface"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), device scoping,
// pointer-replay suppression and rate limiting, CORS and security headers,
// health and metrics endpoints, and then mounts the versioned public API
// under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. DeviceID: resolve the device scope before anything keys on it
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. PointerGuard (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per device/IP, bypass on replay)
//  10. Response compression, CORS, and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, kv staging.KV, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Device scope for staging keys, ledgers, and rate buckets
	r.Use(middleware.DeviceID())

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (documents dominate; leave headroom over the
	// configured document ceiling)
	r.Use(limitBody(int64(cfg.MaxDocBytes) + (64 << 10)))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Pointer-replay detection (before rate limiting)
	r.Use(middleware.PointerGuard(middleware.GuardOptions{}, guardLookup(db)))

	// 9) Token-bucket rate limiter per device/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByDeviceOrIP())
	r.Use(rl.Handler())

	// 10) Compression, CORS posture, and security headers
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	registerCORS(r, cfg)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (behind a flag; never on by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: clients → services → handlers
	h := buildServices(db, kv, cfg)
	mountAPI(r, h, cfg.APIBasePath)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// registerCORS installs the CORS posture: allow-all when no origins are
// configured, otherwise a strict allowlist with Origin echoing.
func registerCORS(r *gin.Engine, cfg config.Config) {
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderDeviceID, middleware.HeaderPointerID,
	}
	exposeHeaders := []string{"X-Request-ID", middleware.HeaderDeviceID, "Content-Length"}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps
		// tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
	for _, o := range cfg.CORS.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, found := allowed[origin]; found {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    exposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// buildServices wires the application services from configuration.
func buildServices(db *gorm.DB, kv staging.KV, cfg config.Config) *handlers.Handlers {
	httpClient := &http.Client{Timeout: cfg.Clients.Timeout}

	identity := clients.NewIdentityClient(cfg.Clients.IdentityURL, cfg.Clients.IdentityLoginURL, httpClient)
	entity := clients.NewEntityClient(cfg.Clients.EntityURL, cfg.Clients.EntityAPIKey, httpClient)
	billing := clients.NewBillingClient(cfg.Clients.BillingURL, httpClient)

	classifier := surface.New(surface.Hosts{
		PublicHost:      cfg.Surface.PublicHost,
		AppHost:         cfg.Surface.AppHost,
		PreviewSuffixes: cfg.Surface.PreviewSuffixes,
		LocalHosts:      cfg.Surface.LocalHosts,
	})
	store := staging.NewStore(kv, staging.WithTTL(cfg.StagingTTL))
	ledger := quota.New(kv, identity, quota.WithMonthlyLimit(cfg.FreeMonthlyLimit))

	gate := services.NewSessionGate(classifier, identity, store, ledger,
		services.WithDebounce(cfg.RedirectDebounce))
	anlSvc := services.NewAnalysisService(riskindex.New(), store, ledger, identity, entity)
	anlSvc.MaxDocBytes = cfg.MaxDocBytes
	worker := services.NewReconciliationWorker(db, store, ledger, identity, entity,
		services.WithGuardTTL(cfg.GuardTTL),
		services.WithNavDelay(cfg.NavDelay))
	cnlSvc := services.NewCancellationService(identity, entity, billing)

	return handlers.New(gate, anlSvc, worker, cnlSvc, billing, entity, store, kv)
}

// mountAPI registers the versioned public API.
func mountAPI(r *gin.Engine, h *handlers.Handlers, basePath string) {
	api := groupWithPrefix(r, basePath)
	{
		// Navigation
		api.POST("/navigate", h.Navigate)

		// Analyses
		api.POST("/analyses", h.Analyze)
		api.GET("/analyses", h.ListAnalyses)

		// Staging + reconciliation
		api.POST("/reconcile", h.Reconcile)
		api.GET("/staging/pending", h.PendingStaging)
		api.DELETE("/staging/:id", h.DiscardStaging)

		// Consent
		api.GET("/consent", h.GetConsent)
		api.PUT("/consent", h.PutConsent)

		// Billing + cancellation
		api.POST("/billing/checkout", h.Checkout)
		api.POST("/billing/portal", h.Portal)
		api.GET("/cancellation", h.CancellationStatus)
		api.POST("/cancellation/begin", h.BeginCancellation)
		api.POST("/cancellation/confirm", h.ConfirmCancellation)
		api.POST("/cancellation/survey", h.SubmitCancellationSurvey)
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// guardLookup adapts the repo guard query to the PointerGuard middleware: a
// guard row means the pointer was already handled. ErrNotFound maps to a
// plain "not a replay"; any other error is surfaced (the middleware logs it
// and lets the request through).
func guardLookup(db *gorm.DB) middleware.GuardLookup {
	return func(ctx context.Context, deviceID, pointerID string, now time.Time) (bool, error) {
		g, err := repo.GetGuard(ctx, db, deviceID, pointerID, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return g != nil, nil
	}
}
