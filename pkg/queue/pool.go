package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// WorkerPool manages a pool of job workers.
type WorkerPool struct {
	store    *store.Store
	handlers Handlers
	cfg      config.JobsConfig
	workers  []*Worker
	started  bool
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(st *store.Store, handlers Handlers, cfg config.JobsConfig) *WorkerPool {
	return &WorkerPool{
		store:    st,
		handlers: handlers,
		cfg:      cfg,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
	}
}

// Start spawns worker goroutines.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return nil
	}
	p.started = true

	slog.Info("Starting job worker pool", "worker_count", p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.store, p.handlers, p.cfg)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current job before exiting.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping job worker pool")
	for _, worker := range p.workers {
		worker.Stop()
	}
	slog.Info("Job worker pool stopped")
}
