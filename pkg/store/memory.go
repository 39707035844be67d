package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/codeready-toolchain/recall/pkg/models"
)

const memoryColumns = `id, thread_id, type, status, title, statement,
	importance, confidence, severity, tags, affects, code_refs,
	evidence_turn_ids, supersedes_id, superseded_by_id, supersede_reason,
	created_at, updated_at, embedding, meta`

// MemoryItemWithDistance pairs an item with its cosine distance from a query
// vector.
type MemoryItemWithDistance struct {
	models.MemoryItem
	Distance float64 `db:"distance"`
}

// normalizeMemoryItem replaces nil array and map fields with empties so the
// NOT NULL columns accept them.
func normalizeMemoryItem(item *models.MemoryItem) {
	if item.Tags == nil {
		item.Tags = pq.StringArray{}
	}
	if item.Affects == nil {
		item.Affects = pq.StringArray{}
	}
	if item.CodeRefs == nil {
		item.CodeRefs = pq.StringArray{}
	}
	if item.EvidenceTurnIDs == nil {
		item.EvidenceTurnIDs = pq.StringArray{}
	}
	if item.Meta == nil {
		item.Meta = models.JSONMap{}
	}
}

// InsertMemoryItem persists a prepared memory item row.
func (s *Store) InsertMemoryItem(ctx context.Context, item *models.MemoryItem) error {
	normalizeMemoryItem(item)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO memory_items (id, thread_id, type, status, title, statement,
			importance, confidence, severity, tags, affects, code_refs,
			evidence_turn_ids, supersedes_id, superseded_by_id, supersede_reason,
			created_at, updated_at, embedding, meta)
		VALUES (:id, :thread_id, :type, :status, :title, :statement,
			:importance, :confidence, :severity, :tags, :affects, :code_refs,
			:evidence_turn_ids, :supersedes_id, :superseded_by_id, :supersede_reason,
			:created_at, :updated_at, :embedding, :meta)`, item)
	if err != nil {
		return fmt.Errorf("failed to insert memory item: %w", translateError(err))
	}
	return nil
}

// InsertSupersedingItem inserts the replacement item and marks the candidate
// superseded in one transaction, so a concurrent reader never observes two
// active items in the same supersede chain.
func (s *Store) InsertSupersedingItem(ctx context.Context, item *models.MemoryItem, oldID string) error {
	normalizeMemoryItem(item)
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO memory_items (id, thread_id, type, status, title, statement,
				importance, confidence, severity, tags, affects, code_refs,
				evidence_turn_ids, supersedes_id, superseded_by_id, supersede_reason,
				created_at, updated_at, embedding, meta)
			VALUES (:id, :thread_id, :type, :status, :title, :statement,
				:importance, :confidence, :severity, :tags, :affects, :code_refs,
				:evidence_turn_ids, :supersedes_id, :superseded_by_id, :supersede_reason,
				:created_at, :updated_at, :embedding, :meta)`, item); err != nil {
			return fmt.Errorf("failed to insert superseding item: %w", translateError(err))
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE memory_items
			SET status = 'superseded', superseded_by_id = $2, updated_at = $3
			WHERE id = $1`, oldID, item.ID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to mark item superseded: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetMemoryItem loads an item by id.
func (s *Store) GetMemoryItem(ctx context.Context, id string) (*models.MemoryItem, error) {
	var item models.MemoryItem
	err := s.db.GetContext(ctx, &item,
		`SELECT `+memoryColumns+` FROM memory_items WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err)
	}
	return &item, nil
}

// VectorCandidates returns the closest active embedded items of the same
// thread and type, by ascending cosine distance.
func (s *Store) VectorCandidates(ctx context.Context, threadID string, itemType models.MemoryType, query pgvector.Vector, limit int) ([]MemoryItemWithDistance, error) {
	var rows []MemoryItemWithDistance
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+memoryColumns+`, embedding <=> $3::vector AS distance
		FROM memory_items
		WHERE thread_id = $1 AND type = $2 AND status = 'active' AND embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $4`, threadID, itemType, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed vector candidate search: %w", err)
	}
	return rows, nil
}

// KeywordCandidates returns active items of the same thread and type whose
// full-text vector matches the statement.
func (s *Store) KeywordCandidates(ctx context.Context, threadID string, itemType models.MemoryType, statement string, limit int) ([]models.MemoryItem, error) {
	var items []models.MemoryItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+memoryColumns+`
		FROM memory_items
		WHERE thread_id = $1 AND type = $2 AND status = 'active'
			AND tsv @@ plainto_tsquery('english', $3)
		LIMIT $4`, threadID, itemType, statement, limit)
	if err != nil {
		return nil, fmt.Errorf("failed keyword candidate search: %w", err)
	}
	return items, nil
}

// VectorSearchMemory returns the topK active embedded items of a thread
// across all types, by ascending cosine distance.
func (s *Store) VectorSearchMemory(ctx context.Context, threadID string, query pgvector.Vector, topK int) ([]MemoryItemWithDistance, error) {
	var rows []MemoryItemWithDistance
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+memoryColumns+`, embedding <=> $2::vector AS distance
		FROM memory_items
		WHERE thread_id = $1 AND status = 'active' AND embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $3`, threadID, query, topK)
	if err != nil {
		return nil, fmt.Errorf("failed vector search over memory: %w", err)
	}
	return rows, nil
}

// KeywordSearchMemory returns active items whose full-text vector matches the
// query text.
func (s *Store) KeywordSearchMemory(ctx context.Context, threadID, queryText string, topK int) ([]models.MemoryItem, error) {
	var items []models.MemoryItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+memoryColumns+`
		FROM memory_items
		WHERE thread_id = $1 AND status = 'active'
			AND tsv @@ plainto_tsquery('english', $2)
		LIMIT $3`, threadID, queryText, topK)
	if err != nil {
		return nil, fmt.Errorf("failed keyword search over memory: %w", err)
	}
	return items, nil
}

// ListMemoryByTypeStatus returns items of one type and status, highest
// importance first, then most recently updated.
func (s *Store) ListMemoryByTypeStatus(ctx context.Context, threadID string, itemType models.MemoryType, status models.MemoryStatus) ([]models.MemoryItem, error) {
	var items []models.MemoryItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+memoryColumns+`
		FROM memory_items
		WHERE thread_id = $1 AND type = $2 AND status = $3
		ORDER BY importance DESC, updated_at DESC`, threadID, itemType, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory items: %w", err)
	}
	return items, nil
}

// ListMemoryByStatus returns all items with the given status, most recently
// updated first.
func (s *Store) ListMemoryByStatus(ctx context.Context, threadID string, status models.MemoryStatus) ([]models.MemoryItem, error) {
	var items []models.MemoryItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+memoryColumns+`
		FROM memory_items
		WHERE thread_id = $1 AND status = $2
		ORDER BY updated_at DESC`, threadID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory items by status: %w", err)
	}
	return items, nil
}

// ListMemoryByTypes returns active items whose type is in the allow set.
func (s *Store) ListMemoryByTypes(ctx context.Context, threadID string, types []models.MemoryType) ([]models.MemoryItem, error) {
	typeStrings := make([]string, len(types))
	for i, t := range types {
		typeStrings[i] = string(t)
	}
	query, args, err := sqlx.In(`
		SELECT `+memoryColumns+`
		FROM memory_items
		WHERE thread_id = ? AND status = 'active' AND type IN (?)
		ORDER BY created_at ASC`, threadID, typeStrings)
	if err != nil {
		return nil, fmt.Errorf("failed to build type filter: %w", err)
	}
	var items []models.MemoryItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list memory items by types: %w", err)
	}
	return items, nil
}

// SupersededMatching returns superseded items of the thread whose full-text
// vector matches the text. Feeds stale-reference warnings.
func (s *Store) SupersededMatching(ctx context.Context, threadID, text string, limit int) ([]models.MemoryItem, error) {
	var items []models.MemoryItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+memoryColumns+`
		FROM memory_items
		WHERE thread_id = $1 AND status = 'superseded'
			AND tsv @@ plainto_tsquery('english', $2)
		LIMIT $3`, threadID, text, limit)
	if err != nil {
		return nil, fmt.Errorf("failed stale reference search: %w", err)
	}
	return items, nil
}

// UpdateMemoryEvidence replaces the evidence set and bumps updated_at.
func (s *Store) UpdateMemoryEvidence(ctx context.Context, id string, evidence []string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_items SET evidence_turn_ids = $2, updated_at = $3 WHERE id = $1`,
		id, pq.StringArray(evidence), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update evidence: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMemoryStatusMeta sets the item's status and replaces its metadata.
// Used by admin deprecation.
func (s *Store) UpdateMemoryStatusMeta(ctx context.Context, id string, status models.MemoryStatus, meta models.JSONMap) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_items SET status = $2, meta = $3, updated_at = $4 WHERE id = $1`,
		id, status, meta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update memory status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// OverrideMemoryScores updates any non-nil scores and replaces the metadata
// (which carries the appended override event).
func (s *Store) OverrideMemoryScores(ctx context.Context, id string, importance, confidence, severity *float64, meta models.JSONMap) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_items
		SET importance = COALESCE($2, importance),
			confidence = COALESCE($3, confidence),
			severity = COALESCE($4, severity),
			meta = $5,
			updated_at = $6
		WHERE id = $1`,
		id, importance, confidence, severity, meta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to override scores: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMemoryBefore removes items whose updated_at is older than the
// cutoff. Used by retention cleanup.
func (s *Store) DeleteMemoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_items WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old memory items: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
