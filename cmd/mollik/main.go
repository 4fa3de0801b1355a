// Package main is the entry point for the mollik archive API server.
// It loads configuration, connects to PostgreSQL and Valkey, wires the
// publication services and serves HTTP until interrupted.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"mollik/internal/authz"
	"mollik/internal/cache"
	"mollik/internal/config"
	"mollik/internal/content"
	"mollik/internal/counter"
	"mollik/internal/database"
	"mollik/internal/handlers"
	"mollik/internal/metrics"
	"mollik/internal/middleware"
	"mollik/internal/moderation"
	"mollik/internal/router"
	"mollik/internal/session"
	"mollik/internal/store"
	"mollik/internal/workflow"
)

func main() {
	// A .env file is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	if cfg.IsDev() {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.Kitchen})
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr())

	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	if cfg.IsDev() {
		if err := database.Seed(ctx, db); err != nil {
			return err
		}
	}

	valkey, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		return err
	}
	defer valkey.Close()

	secureCookies := !cfg.IsDev()
	sessions := session.NewStore(valkey, secureCookies)

	users := store.NewUserStore(db)
	contents := store.NewContentStore(db)
	likes := store.NewLikeStore(db)
	transitions := store.NewTransitionStore(db)

	policy := authz.Policy{}
	contentSvc := content.NewService(contents, policy)
	engine := workflow.NewEngine(contents, transitions, policy)
	pipeline := moderation.New(contentSvc, engine, policy)
	counters := counter.New(contents, likes,
		cache.NewVisitorCounter(valkey, cfg.VisitorWindow),
		counter.WithIdempotency(cache.NewIdempotencyKeys(valkey, "like"), cfg.LikeRequestTTL),
	)

	pages := cache.NewPageCache(valkey, cfg.PageCacheTTL)
	contentSvc.OnChange(pages.ContentChanged)
	engine.OnTransition(pages.StatusChanged)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	engine.OnTransition(m.StatusChanged)

	limits := router.Limiters{
		Auth:        middleware.NewRateLimiter(cfg.AuthRateLimit, time.Minute),
		Likes:       middleware.NewRateLimiter(cfg.LikeRateLimit, time.Minute),
		Submissions: middleware.NewRateLimiter(cfg.SubmitRateLimit, time.Hour),
		Visitors:    middleware.NewRateLimiter(cfg.LikeRateLimit, time.Minute),
	}
	defer limits.Stop()

	r := router.New(router.Deps{
		Sessions:      sessions,
		Public:        handlers.NewPublic(contentSvc, m.Counters(counters), pipeline, pages),
		Auth:          handlers.NewAuth(sessions, users),
		Admin:         handlers.NewAdmin(contentSvc, engine, pipeline, contents, counters),
		Limits:        limits,
		SecureCookies: secureCookies,
		CORSOrigins:   cfg.CORSOrigins,
		Metrics:       m,
		Ready: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			return valkey.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		// Give active requests up to 30 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
