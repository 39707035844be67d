package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// Worker is a single job worker that polls for and processes jobs.
type Worker struct {
	id       string
	store    *store.Store
	handlers Handlers
	cfg      config.JobsConfig
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new job worker.
func NewWorker(id string, st *store.Store, handlers Handlers, cfg config.JobsConfig) *Worker {
	return &Worker{
		id:       id,
		store:    st,
		handlers: handlers,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Job worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Job worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, job worker shutting down")
			return
		default:
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				log.Error("Error processing job", "error", err)
				w.sleep(time.Second)
				continue
			}
			if !processed {
				w.sleep(w.cfg.PollInterval)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// ProcessOne leases and runs at most one job. It reports whether a job was
// leased; handler failures go through the retry path and do not surface as
// errors here.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.store.FetchNextJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := slog.With("worker_id", w.id, "job_id", job.ID, "job_type", string(job.Type))

	handler, ok := w.handlers[job.Type]
	if !ok {
		log.Error("Unknown job type")
		return true, w.failJob(ctx, job, fmt.Sprintf("Unknown job type %s", job.Type))
	}

	if err := handler(ctx, job.Payload); err != nil {
		log.Warn("Job failed", "error", err, "attempts", job.Attempts+1)
		return true, w.failJob(ctx, job, err.Error())
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, err
	}
	log.Debug("Job done")
	return true, nil
}

func (w *Worker) failJob(ctx context.Context, job *models.Job, message string) error {
	return w.store.FailJob(ctx, job, message, w.cfg.MaxAttempts)
}
