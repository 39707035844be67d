package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/recall/pkg/models"
)

const threadColumns = `id, plan_id, created_at, updated_at, meta`

// CreateThread inserts a new thread under the given plan.
func (s *Store) CreateThread(ctx context.Context, planID string, meta models.JSONMap) (*models.Thread, error) {
	now := time.Now().UTC()
	thread := &models.Thread{
		ID:        uuid.New().String(),
		PlanID:    planID,
		CreatedAt: now,
		UpdatedAt: now,
		Meta:      meta,
	}
	if thread.Meta == nil {
		thread.Meta = models.JSONMap{}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO threads (id, plan_id, created_at, updated_at, meta)
		VALUES (:id, :plan_id, :created_at, :updated_at, :meta)`, thread)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", translateError(err))
	}
	return thread, nil
}

// GetThread loads a thread by id.
func (s *Store) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var thread models.Thread
	err := s.db.GetContext(ctx, &thread,
		`SELECT `+threadColumns+` FROM threads WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err)
	}
	return &thread, nil
}

// TouchThread bumps the thread's updated_at.
func (s *Store) TouchThread(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}
	return nil
}
