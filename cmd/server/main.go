// Command server runs the ClauseWise reconciliation backend: the session
// gate, the deferred-write staging core, and the billing/cancellation
// workflow, exposed over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/clausewise/go-clausewise-backend/internal/config"
	httpapi "github.com/clausewise/go-clausewise-backend/internal/http"
	"github.com/clausewise/go-clausewise-backend/internal/observability"
	"github.com/clausewise/go-clausewise-backend/internal/repo"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
	"github.com/clausewise/go-clausewise-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title           ClauseWise Reconciliation API
// @version         1.0
// @description     Deferred session and write reconciliation backend for the ClauseWise document-risk analyzer.
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	setupLogger(cfg)
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting clausewise backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("opentelemetry setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shCtx); err != nil {
			log.Warn().Err(err).Msg("opentelemetry shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	kv := selectKV(ctx, db, cfg)
	go sweepLoop(ctx, db, cfg.SweepInterval)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, kv, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("http server failed")
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// setupLogger configures the global zerolog logger from configuration.
func setupLogger(cfg config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)
}

// selectKV picks the client-state backend: Redis when configured (shared
// across replicas, server-side expiry), SQLite otherwise.
func selectKV(ctx context.Context, db *gorm.DB, cfg config.Config) staging.KV {
	if cfg.RedisURL == "" {
		return staging.NewGormKV(db)
	}
	client, err := staging.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	log.Info().Msg("staging keys backed by redis")
	return staging.NewRedisKV(client)
}

// sweepLoop periodically removes expired KV entries and stale reconciliation
// guards from the SQLite store. Redis-backed keys expire server-side and need
// no sweeping, but guard rows always live in SQLite.
func sweepLoop(ctx context.Context, db *gorm.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := time.Now().UTC()
			if n, err := repo.SweepExpiredKV(ctx, db, now); err != nil {
				log.Warn().Err(err).Msg("kv sweep failed")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("swept expired kv entries")
			}
			if n, err := repo.SweepExpiredGuards(ctx, db, now); err != nil {
				log.Warn().Err(err).Msg("guard sweep failed")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("swept expired reconciliation guards")
			}
		}
	}
}
