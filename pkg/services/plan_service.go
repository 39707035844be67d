// Package services implements the domain logic of the memory service: plan
// and thread administration, turn ingestion, the memory lifecycle engine,
// hybrid retrieval, distillation, consistency audits, and signed
// export/import.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// PlanService handles plan administration.
type PlanService struct {
	store *store.Store
}

// NewPlanService creates a new PlanService.
func NewPlanService(st *store.Store) *PlanService {
	if st == nil {
		panic("NewPlanService: store must not be nil")
	}
	return &PlanService{store: st}
}

// CreatePlan creates a named plan.
func (s *PlanService) CreatePlan(ctx context.Context, name string, meta models.JSONMap) (*models.Plan, error) {
	if name == "" {
		return nil, NewValidationError("name", "plan name is required")
	}
	plan, err := s.store.CreatePlan(ctx, name, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	return plan, nil
}

// GetPlan loads a plan by id.
func (s *PlanService) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.store.GetPlan(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return plan, err
}

// ListPlans lists plans, optionally including archived ones.
func (s *PlanService) ListPlans(ctx context.Context, includeArchived bool) ([]models.Plan, error) {
	return s.store.ListPlans(ctx, includeArchived)
}

// RenamePlan renames a plan.
func (s *PlanService) RenamePlan(ctx context.Context, id, name string) (*models.Plan, error) {
	if name == "" {
		return nil, NewValidationError("name", "plan name is required")
	}
	plan, err := s.store.RenamePlan(ctx, id, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return plan, err
}

// ArchivePlan flips the plan between archived and active.
func (s *PlanService) ArchivePlan(ctx context.Context, id string, archived bool) (*models.Plan, error) {
	plan, err := s.store.SetPlanArchived(ctx, id, archived)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return plan, err
}

// TouchPlan bumps the plan's updated_at so it sorts to the top of recency
// ordering.
func (s *PlanService) TouchPlan(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.store.TouchPlan(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return plan, err
}
