package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// IngestTurnInput carries the caller-supplied fields of a new turn.
type IngestTurnInput struct {
	ThreadID       string
	Role           string
	Text           string
	TS             *time.Time
	Meta           models.JSONMap
	BranchID       *string
	ExternalTurnID *string
	EmbedNow       bool
}

// TurnService handles thread creation and turn ingestion.
type TurnService struct {
	store *store.Store
	llm   llm.Client
	cfg   config.IngestConfig
}

// NewTurnService creates a new TurnService.
func NewTurnService(st *store.Store, client llm.Client, cfg config.IngestConfig) *TurnService {
	if st == nil {
		panic("NewTurnService: store must not be nil")
	}
	if client == nil {
		panic("NewTurnService: llm client must not be nil")
	}
	return &TurnService{store: st, llm: client, cfg: cfg}
}

// CreateThread creates a thread under an existing plan.
func (s *TurnService) CreateThread(ctx context.Context, planID string, meta models.JSONMap) (*models.Thread, error) {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return s.store.CreateThread(ctx, planID, meta)
}

// GetThread loads a thread by id.
func (s *TurnService) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	thread, err := s.store.GetThread(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return thread, err
}

// IngestTurn records one utterance. Ingestion is idempotent on
// (thread_id, external_turn_id): replays return the stored turn unchanged and
// schedule no follow-up work. Embedding happens inline only when both the
// caller asks for it and the deployment allows synchronous embedding;
// otherwise an embed_turn job is enqueued. Auto-distillation, when enabled,
// always goes through the job queue.
func (s *TurnService) IngestTurn(ctx context.Context, input IngestTurnInput) (*models.Turn, error) {
	if input.Role == "" {
		return nil, NewValidationError("role", "turn role is required")
	}
	if input.Text == "" {
		return nil, NewValidationError("text", "turn text is required")
	}

	if input.ExternalTurnID != nil && *input.ExternalTurnID != "" {
		existing, err := s.store.GetTurnByExternalID(ctx, input.ThreadID, *input.ExternalTurnID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed idempotency lookup: %w", err)
		}
	}

	ts := time.Now().UTC()
	if input.TS != nil {
		ts = input.TS.UTC()
	}
	turn := &models.Turn{
		ID:             uuid.New().String(),
		ThreadID:       input.ThreadID,
		Role:           input.Role,
		Text:           input.Text,
		TS:             ts,
		BranchID:       input.BranchID,
		ExternalTurnID: input.ExternalTurnID,
		Meta:           input.Meta,
	}
	if err := s.store.InsertTurn(ctx, turn); err != nil {
		// A concurrent ingest of the same external id can still win the race
		// past the pre-check; the unique index resolves it.
		if errors.Is(err, store.ErrDuplicate) && input.ExternalTurnID != nil {
			return s.store.GetTurnByExternalID(ctx, input.ThreadID, *input.ExternalTurnID)
		}
		return nil, fmt.Errorf("failed to insert turn: %w", err)
	}
	if err := s.store.TouchThread(ctx, input.ThreadID); err != nil {
		return nil, err
	}

	if input.EmbedNow && s.cfg.EmbedSync {
		vectors, err := s.llm.Embed(ctx, []string{input.Text})
		if err != nil {
			return nil, fmt.Errorf("failed to embed turn: %w", err)
		}
		vec := pgvector.NewVector(vectors[0])
		if err := s.store.SetTurnEmbedding(ctx, turn.ID, vec); err != nil {
			return nil, err
		}
		turn.Embedding = &vec
	} else if input.EmbedNow {
		_, err := s.store.EnqueueJob(ctx, models.JobTypeEmbedTurn, models.JSONMap{
			"turn_id": turn.ID,
			"text":    input.Text,
		}, nil)
		if err != nil {
			return nil, err
		}
	}

	if s.cfg.AutoDistill {
		_, err := s.store.EnqueueJob(ctx, models.JobTypeDistillTurn, models.JSONMap{
			"thread_id": input.ThreadID,
			"turn_id":   turn.ID,
		}, nil)
		if err != nil {
			return nil, err
		}
	}

	return turn, nil
}

// RecentTurns returns the newest turns of a thread.
func (s *TurnService) RecentTurns(ctx context.Context, threadID string, limit int) ([]models.Turn, error) {
	return s.store.RecentTurns(ctx, threadID, limit)
}
