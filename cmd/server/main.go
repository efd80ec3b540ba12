package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/api"
	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/budget"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/infrastructure/config"
	"github.com/interviewcoach/backend/internal/logging"
	"github.com/interviewcoach/backend/internal/retry"
	"github.com/interviewcoach/backend/internal/service"
	"github.com/interviewcoach/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogFilePath, cfg.Production)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// ── Dependencies ────────────────────────────────────────────────
	budgets := budget.DefaultTable()
	if cfg.BudgetsFile != "" {
		t, err := budget.LoadTable(cfg.BudgetsFile)
		if err != nil {
			return fmt.Errorf("load budgets: %w", err)
		}
		budgets = t
		logger.Info("loaded budget overrides", zap.String("path", cfg.BudgetsFile))
	}

	db, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	adapter := backend.NewAdapter(backend.Options{
		LocalURL:          cfg.OllamaURL,
		GenerationTimeout: cfg.LLMTimeout,
		Logger:            logger.Named("backend"),
	})
	c := coach.New(adapter, coach.Config{
		Budgets: budgets,
		Retry:   []retry.Option{retry.WithDelay(cfg.RetryDelay)},
		Logger:  logger.Named("coach"),
	})
	coaching := service.NewCoachingService(db, c, adapter, service.Options{
		TipTimeout: cfg.LLMTimeout,
		Logger:     logger.Named("service"),
	})
	defer coaching.Close()

	handler := api.NewHandler(coaching, adapter, api.NewConnections(cfg.ConnectionTTL), logger.Named("api"))

	// ── Routes ──────────────────────────────────────────────────────
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	api.RegisterRoutes(mux, handler)

	// ── Middleware chain: Logging → CORS → mux ──────────────────────
	logged := api.Logging(logger.Named("http"))(api.CORS(mux))

	// ── Server ──────────────────────────────────────────────────────
	// Plan and report generation on a local model can take minutes.
	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           logged,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down server")
		shutdownErr <- server.Shutdown(ctx)
	}()

	logger.Info("starting server",
		zap.String("address", cfg.ServerAddress),
		zap.String("database", cfg.DatabasePath),
		zap.Bool("production", cfg.Production),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	return nil
}
