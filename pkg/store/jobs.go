package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codeready-toolchain/recall/pkg/models"
)

const jobColumns = `id, type, status, payload, run_at, attempts, last_error, created_at, updated_at`

// EnqueueJob persists a new pending job. When runAt is nil the job becomes
// eligible immediately.
func (s *Store) EnqueueJob(ctx context.Context, jobType models.JobType, payload models.JSONMap, runAt *time.Time) (*models.Job, error) {
	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    models.JobStatusPending,
		Payload:   payload,
		RunAt:     now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if runAt != nil {
		job.RunAt = runAt.UTC()
	}
	if job.Payload == nil {
		job.Payload = models.JSONMap{}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO jobs (id, type, status, payload, run_at, attempts, last_error, created_at, updated_at)
		VALUES (:id, :type, :status, :payload, :run_at, :attempts, :last_error, :created_at, :updated_at)`, job)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// FetchNextJob leases the oldest due pending job and flips it to running.
// FOR UPDATE SKIP LOCKED lets concurrent workers lease disjoint jobs without
// blocking each other. Returns (nil, nil) when no job is due.
func (s *Store) FetchNextJob(ctx context.Context) (*models.Job, error) {
	var job models.Job
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &job, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE status = 'pending' AND run_at <= NOW()
			ORDER BY run_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED`)
		if err != nil {
			return err
		}
		job.Status = models.JobStatusRunning
		job.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = 'running', updated_at = $2 WHERE id = $1`,
			job.ID, job.UpdatedAt)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lease job: %w", err)
	}
	return &job, nil
}

// CompleteJob marks a running job done. The status guard keeps terminal
// states from moving backwards if a duplicate completion races in.
func (s *Store) CompleteJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'done', updated_at = $2 WHERE id = $1 AND status = 'running'`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob records a failed attempt. Below maxAttempts the job returns to
// pending with an exponential delay (2^attempts seconds); at the cap it is
// failed permanently. Either way the error message is kept on the row.
func (s *Store) FailJob(ctx context.Context, job *models.Job, errMsg string, maxAttempts int) error {
	attempts := job.Attempts + 1
	now := time.Now().UTC()

	status := models.JobStatusPending
	runAt := now.Add(time.Duration(math.Pow(2, float64(attempts))) * time.Second)
	if attempts >= maxAttempts {
		status = models.JobStatusFailed
		runAt = job.RunAt
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, attempts = $3, last_error = $4, run_at = $5, updated_at = $6
		WHERE id = $1 AND status = 'running'`,
		job.ID, status, attempts, errMsg, runAt, now)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.db.GetContext(ctx, &job,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err)
	}
	return &job, nil
}

// ListJobsByStatus returns jobs in one state, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
