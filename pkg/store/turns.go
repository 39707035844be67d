package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/codeready-toolchain/recall/pkg/models"
)

const turnColumns = `id, thread_id, role, text, ts, branch_id, external_turn_id, embedding, meta`

// TurnWithDistance pairs a turn with its cosine distance from a query vector.
type TurnWithDistance struct {
	models.Turn
	Distance float64 `db:"distance"`
}

// InsertTurn persists a prepared turn row. Unique-violation on
// (thread_id, external_turn_id) surfaces as ErrDuplicate so callers can fall
// back to the existing row.
func (s *Store) InsertTurn(ctx context.Context, turn *models.Turn) error {
	if turn.Meta == nil {
		turn.Meta = models.JSONMap{}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO turns (id, thread_id, role, text, ts, branch_id, external_turn_id, embedding, meta)
		VALUES (:id, :thread_id, :role, :text, :ts, :branch_id, :external_turn_id, :embedding, :meta)`, turn)
	if err != nil {
		return translateError(err)
	}
	return nil
}

// GetTurn loads a turn by id.
func (s *Store) GetTurn(ctx context.Context, id string) (*models.Turn, error) {
	var turn models.Turn
	err := s.db.GetContext(ctx, &turn,
		`SELECT `+turnColumns+` FROM turns WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err)
	}
	return &turn, nil
}

// GetTurnByExternalID looks up the turn carrying the external id within a
// thread. Ingestion idempotency rests on this plus the unique index.
func (s *Store) GetTurnByExternalID(ctx context.Context, threadID, externalID string) (*models.Turn, error) {
	var turn models.Turn
	err := s.db.GetContext(ctx, &turn,
		`SELECT `+turnColumns+` FROM turns WHERE thread_id = $1 AND external_turn_id = $2`,
		threadID, externalID)
	if err != nil {
		return nil, translateError(err)
	}
	return &turn, nil
}

// RecentTurns returns the newest turns of a thread, most recent first.
func (s *Store) RecentTurns(ctx context.Context, threadID string, limit int) ([]models.Turn, error) {
	var turns []models.Turn
	err := s.db.SelectContext(ctx, &turns,
		`SELECT `+turnColumns+` FROM turns WHERE thread_id = $1 ORDER BY ts DESC LIMIT $2`,
		threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent turns: %w", err)
	}
	return turns, nil
}

// SetTurnEmbedding stores the embedding vector for a turn.
func (s *Store) SetTurnEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE turns SET embedding = $2 WHERE id = $1`, id, embedding)
	if err != nil {
		return fmt.Errorf("failed to store turn embedding: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// VectorSearchTurns returns the topK embedded turns of a thread by ascending
// cosine distance from the query vector.
func (s *Store) VectorSearchTurns(ctx context.Context, threadID string, query pgvector.Vector, topK int) ([]TurnWithDistance, error) {
	var rows []TurnWithDistance
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+turnColumns+`, embedding <=> $2::vector AS distance
		FROM turns
		WHERE thread_id = $1 AND embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $3`, threadID, query, topK)
	if err != nil {
		return nil, fmt.Errorf("failed vector search over turns: %w", err)
	}
	return rows, nil
}

// KeywordSearchTurns returns turns whose full-text vector matches the query
// text, newest first.
func (s *Store) KeywordSearchTurns(ctx context.Context, threadID, queryText string, topK int) ([]models.Turn, error) {
	var turns []models.Turn
	err := s.db.SelectContext(ctx, &turns, `
		SELECT `+turnColumns+`
		FROM turns
		WHERE thread_id = $1 AND tsv @@ plainto_tsquery('english', $2)
		ORDER BY ts DESC
		LIMIT $3`, threadID, queryText, topK)
	if err != nil {
		return nil, fmt.Errorf("failed keyword search over turns: %w", err)
	}
	return turns, nil
}

// DeleteTurnsBefore removes turns older than the cutoff by ts. Used by
// retention cleanup.
func (s *Store) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old turns: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
