package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/api"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/store"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/redis"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the encode and decode HTTP API",
		Long: `Serve exposes the codec over HTTP on server.port:

  POST /api/v1/encode        {"payload": "<base64>", "prose": true}
  POST /api/v1/decode        {"sentences": ["Nom:... Ver:..."]}
  GET  /api/v1/dictionary
  GET  /api/v1/transcripts[/{id}]
  GET  /health/live, /health/ready

Decodes go through the Redis cache when redis.enabled is set, and
transcripts are recorded in PostgreSQL when it is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	dict, err := loadDictionary(cfg.Dictionary, m)
	if err != nil {
		return err
	}
	checker := health.NewChecker()

	var opts []pipeline.Option
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, decode caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			decodeCache := cache.New(redisClient, cfg.Redis, dict, m)
			opts = append(opts, pipeline.WithDecoder(decodeCache.Decode))
			checker.Register("redis", health.Ping(true, redisClient.Ping))
			slog.Info("decode cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var transcripts api.TranscriptStore
	if db, err := a.openStore(ctx); err != nil {
		slog.Warn("postgres unavailable, transcripts disabled", "error", err)
	} else {
		defer db.Close()
		transcripts = store.New(db)
		checker.Register("postgres", health.Ping(true, db.Ping))
	}

	h := api.New(a.pipelineFor(dict, m, opts...), transcripts, cfg.Server.MaxPayloadBytes)
	checker.Register("dictionary", h.DictionaryCheck)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(h, checker, m, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("codec service listening",
		"addr", server.Addr,
		"fingerprint", dict.Fingerprint()[:12],
		"workers", cfg.Codec.Workers,
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("codec service stopped")
	return nil
}

// openStore connects to PostgreSQL and makes sure the transcripts table
// exists.
func (a *app) openStore(ctx context.Context) (*postgres.Client, error) {
	db, err := postgres.New(a.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := store.New(db).EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
