// Package main is the entry point for the docseq API server.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docseq/internal/domain/documents"
	v1 "docseq/internal/infrastructure/http/v1"
	"docseq/internal/infrastructure/metrics"
	"docseq/internal/infrastructure/numerator"
	"docseq/internal/infrastructure/storage/postgres"
	"docseq/internal/infrastructure/storage/postgres/document_repo"
	"docseq/internal/infrastructure/storage/postgres/numbering_repo"
	"docseq/pkg/config"
	"docseq/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docseq: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting docseq server", "env", cfg.App.Env, "version", cfg.App.Version)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.Migrations.Enabled {
		if err := postgres.RunMigrations(pool); err != nil {
			return err
		}
		log.Info("database migrations applied")
	}

	txManager := postgres.NewTxManager(pool)
	auditService, err := postgres.NewAuditService(txManager, cfg.Audit.CompressThreshold)
	if err != nil {
		return err
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	// --- Services ---
	rules := numbering_repo.NewRepo(txManager)
	numeratorService := numerator.NewService(numerator.ServiceConfig{
		Rules:     rules,
		Scanner:   rules,
		TxManager: txManager,
		Audit:     auditService,
		Metrics:   appMetrics,
		Options:   cfg.Numbering.Options(),
	})

	documentService := documents.NewService(documents.ServiceConfig{
		Repo:      document_repo.NewRepo(txManager),
		Numerator: numeratorService,
		TxManager: txManager,
		Audit:     auditService,
		Metrics:   appMetrics,
	})
	appMetrics.RegisterDocumentHooks(documentService.Hooks())

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		DB:           pool,
		Logger:       log,
		Numerator:    numeratorService,
		Documents:    documentService,
		AuditHistory: auditService,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Version:      cfg.App.Version,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	pool.LogStats(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
