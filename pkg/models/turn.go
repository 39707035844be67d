package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Turn is one raw utterance within a thread. (thread_id, external_turn_id)
// is unique when the external id is present; ingestion is idempotent on it.
type Turn struct {
	ID             string           `json:"id" db:"id"`
	ThreadID       string           `json:"thread_id" db:"thread_id"`
	Role           string           `json:"role" db:"role"`
	Text           string           `json:"text" db:"text"`
	TS             time.Time        `json:"ts" db:"ts"`
	BranchID       *string          `json:"branch_id,omitempty" db:"branch_id"`
	ExternalTurnID *string          `json:"external_turn_id,omitempty" db:"external_turn_id"`
	Embedding      *pgvector.Vector `json:"-" db:"embedding"`
	Meta           JSONMap          `json:"meta" db:"meta"`
}
