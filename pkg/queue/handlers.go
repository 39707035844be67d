package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/services"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// distillWindow is how many recent turns a queued distillation reads.
const distillWindow = 4

// NewHandlers wires the built-in job handlers.
func NewHandlers(st *store.Store, client llm.Client, distiller *services.DistillService, retention config.RetentionConfig) Handlers {
	return Handlers{
		models.JobTypeEmbedTurn:        embedTurnHandler(st, client),
		models.JobTypeDistillTurn:      distillTurnHandler(distiller),
		models.JobTypeRetentionCleanup: retentionCleanupHandler(st, retention),
	}
}

// embedTurnHandler embeds a turn's text. Already-embedded turns are left
// alone, so replayed jobs are harmless. The payload text is preferred over a
// fresh read so the embedding matches what was ingested.
func embedTurnHandler(st *store.Store, client llm.Client) Handler {
	return func(ctx context.Context, payload models.JSONMap) error {
		turnID, ok := payload["turn_id"].(string)
		if !ok || turnID == "" {
			return errors.New("embed_turn payload missing turn_id")
		}
		turn, err := st.GetTurn(ctx, turnID)
		if err != nil {
			return fmt.Errorf("failed to load turn: %w", err)
		}
		if turn.Embedding != nil {
			return nil
		}
		text := turn.Text
		if payloadText, ok := payload["text"].(string); ok && payloadText != "" {
			text = payloadText
		}
		vectors, err := client.Embed(ctx, []string{text})
		if err != nil {
			return fmt.Errorf("failed to embed turn: %w", err)
		}
		return st.SetTurnEmbedding(ctx, turnID, pgvector.NewVector(vectors[0]))
	}
}

// distillTurnHandler runs a write-enabled distillation over the recent
// window around the triggering turn.
func distillTurnHandler(distiller *services.DistillService) Handler {
	return func(ctx context.Context, payload models.JSONMap) error {
		threadID, ok := payload["thread_id"].(string)
		if !ok || threadID == "" {
			return errors.New("distill_turn payload missing thread_id")
		}
		turnID, ok := payload["turn_id"].(string)
		if !ok || turnID == "" {
			return errors.New("distill_turn payload missing turn_id")
		}
		_, err := distiller.Distill(ctx, threadID, turnID, distillWindow, true)
		return err
	}
}

// retentionCleanupHandler deletes rows past the retention windows. A
// non-positive day count disables the respective sweep.
func retentionCleanupHandler(st *store.Store, retention config.RetentionConfig) Handler {
	return func(ctx context.Context, payload models.JSONMap) error {
		now := time.Now().UTC()
		if retention.DaysTurns > 0 {
			cutoff := now.AddDate(0, 0, -retention.DaysTurns)
			deleted, err := st.DeleteTurnsBefore(ctx, cutoff)
			if err != nil {
				return err
			}
			if deleted > 0 {
				slog.Info("Retention removed old turns", "count", deleted)
			}
		}
		if retention.DaysMemory > 0 {
			cutoff := now.AddDate(0, 0, -retention.DaysMemory)
			deleted, err := st.DeleteMemoryBefore(ctx, cutoff)
			if err != nil {
				return err
			}
			if deleted > 0 {
				slog.Info("Retention removed old memory items", "count", deleted)
			}
		}
		return nil
	}
}
