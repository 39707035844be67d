// Recall memory server: provides the tool dispatch HTTP API, manages job
// workers, and runs retention sweeps.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/recall/pkg/api"
	"github.com/codeready-toolchain/recall/pkg/cleanup"
	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/database"
	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/metrics"
	"github.com/codeready-toolchain/recall/pkg/queue"
	"github.com/codeready-toolchain/recall/pkg/services"
	"github.com/codeready-toolchain/recall/pkg/store"
	"github.com/codeready-toolchain/recall/pkg/version"
)

func main() {
	// Load .env if present
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting "+version.AppName,
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"llm_fake_mode", cfg.LLM.FakeMode)

	// 2. Connect to the database and apply migrations
	dbClient, err := database.NewClient(ctx, database.LoadConfigFromEnv(cfg.DatabaseURL))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Ensure vector indexes exist (after migrations so tables are present)
	if err := database.EnsureVectorIndexes(ctx, dbClient.DB(), cfg.Vector); err != nil {
		slog.Error("Failed to ensure vector indexes", "error", err)
		os.Exit(1)
	}

	// 4. Construct the store, metrics, and LLM mediator
	st := store.New(dbClient.DB())
	m := metrics.New()
	mediator := llm.NewMediator(cfg.LLM, cfg.Cache, m)

	// 5. Domain services
	memoryService := services.NewMemoryService(st, mediator, cfg.Dedup)
	planService := services.NewPlanService(st)
	turnService := services.NewTurnService(st, mediator, cfg.Ingest)
	distillService := services.NewDistillService(st, mediator, memoryService)
	retrievalService := services.NewRetrievalService(st, mediator, m, cfg.Retrieval)
	auditService := services.NewAuditService(st, mediator)
	sharedService := services.NewSharedService(st, cfg.Shared)
	slog.Info("Services initialized")

	// 6. Start the job worker pool (before the HTTP server, so embed jobs
	// enqueued by early requests get picked up)
	handlers := queue.NewHandlers(st, mediator, distillService, cfg.Retention)
	workerPool := queue.NewWorkerPool(st, handlers, cfg.Jobs)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 7. Start the retention scheduler
	cleanupService := cleanup.NewService(cfg.Retention, st)
	cleanupService.Start(ctx)

	// 8. Create and start the HTTP server (non-blocking)
	httpServer := api.NewServer(dbClient, api.Services{
		Plans:     planService,
		Turns:     turnService,
		Memory:    memoryService,
		Distill:   distillService,
		Retrieval: retrievalService,
		Audit:     auditService,
		Shared:    sharedService,
	}, m, cfg.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ":"+cfg.HTTPPort)
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info(version.AppName+" started successfully", "workers", cfg.Jobs.WorkerCount)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop the scheduler, drain workers, then the
	// HTTP server with its own timeout budget
	cleanupService.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, in-flight jobs will be retried on restart")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
