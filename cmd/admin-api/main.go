package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/loyaltykit/admin/internal/app/store"
	"github.com/loyaltykit/admin/internal/app/timeline"
	"github.com/loyaltykit/admin/internal/platform/dbpool"
	"github.com/loyaltykit/admin/internal/platform/env"
	"github.com/loyaltykit/admin/internal/platform/logging"
	"github.com/loyaltykit/admin/internal/platform/metrics"
	"github.com/loyaltykit/admin/services/frontend"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(env.String("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	addr := env.String("ADMIN_API_ADDR", env.DefaultAdminAPIAddr)
	uiOrigin := env.String("UI_ORIGIN", "http://localhost:5173")
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		logger.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()

	metrics.Default.MustRegister(
		metrics.NewGaugeFunc(metrics.NewOpts(
			"db_pool_total_conns", "Open connections in the pgx pool.",
		), func() float64 { return float64(pool.Stat().TotalConns()) }),
		metrics.NewGaugeFunc(metrics.NewOpts(
			"db_pool_idle_conns", "Idle connections in the pgx pool.",
		), func() float64 { return float64(pool.Stat().IdleConns()) }),
	)

	sourceStore := store.New(pool)
	if err := waitForSchema(runCtx, logger, sourceStore, 30*time.Second); err != nil {
		logger.Fatal("timeline schema never became ready", zap.Error(err))
	}

	timelineSvc := timeline.NewService(sourceStore.Fetchers(), logger)
	handler := timeline.NewHandler(timelineSvc, logger, uiOrigin)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 1500*time.Millisecond)
		defer cancel()
		if err := pool.Ping(checkCtx); err != nil {
			http.Error(w, "postgres ping failed: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/static/", http.StripPrefix("/static/", frontend.StaticHandler()))
	mux.Handle("/api/", handler.Router())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_ = frontend.NotFoundPage(r.URL.Path).Render(r.Context(), w)
			return
		}
		templ.Handler(frontend.StatusPage()).ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("admin API listening", zap.String("addr", addr))
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Fatal("admin API server failed", zap.Error(err))
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func waitForSchema(ctx context.Context, logger *zap.Logger, s *store.Store, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = s.EnsureSchema(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		logger.Info("waiting for postgres readiness", zap.Error(lastErr))
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}
