package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/recall/pkg/models"
)

const planColumns = `id, name, status, created_at, updated_at, meta`

// CreatePlan inserts a new active plan.
func (s *Store) CreatePlan(ctx context.Context, name string, meta models.JSONMap) (*models.Plan, error) {
	now := time.Now().UTC()
	plan := &models.Plan{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    models.PlanStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Meta:      meta,
	}
	if plan.Meta == nil {
		plan.Meta = models.JSONMap{}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO plans (id, name, status, created_at, updated_at, meta)
		VALUES (:id, :name, :status, :created_at, :updated_at, :meta)`, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", translateError(err))
	}
	return plan, nil
}

// GetPlan loads a plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.GetContext(ctx, &plan,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err)
	}
	return &plan, nil
}

// GetPlanByName loads a plan by exact name. With duplicate names the most
// recently created wins.
func (s *Store) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.GetContext(ctx, &plan,
		`SELECT `+planColumns+` FROM plans WHERE name = $1 ORDER BY created_at DESC LIMIT 1`, name)
	if err != nil {
		return nil, translateError(err)
	}
	return &plan, nil
}

// ListPlans returns plans ordered by recency. Archived plans are excluded
// unless requested.
func (s *Store) ListPlans(ctx context.Context, includeArchived bool) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	if !includeArchived {
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY updated_at DESC`

	var plans []models.Plan
	if err := s.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// RenamePlan updates the plan name.
func (s *Store) RenamePlan(ctx context.Context, id, name string) (*models.Plan, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE plans SET name = $2, updated_at = $3 WHERE id = $1`,
		id, name, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to rename plan: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetPlan(ctx, id)
}

// SetPlanArchived flips the plan between active and archived.
func (s *Store) SetPlanArchived(ctx context.Context, id string, archived bool) (*models.Plan, error) {
	status := models.PlanStatusActive
	if archived {
		status = models.PlanStatusArchived
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE plans SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to archive plan: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetPlan(ctx, id)
}

// TouchPlan bumps the plan's updated_at.
func (s *Store) TouchPlan(ctx context.Context, id string) (*models.Plan, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE plans SET updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to touch plan: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetPlan(ctx, id)
}
