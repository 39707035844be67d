package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// MemoryType classifies a distilled knowledge unit.
type MemoryType string

const (
	MemoryTypeDecision     MemoryType = "decision"
	MemoryTypeConstraint   MemoryType = "constraint"
	MemoryTypeMistake      MemoryType = "mistake"
	MemoryTypeAssumption   MemoryType = "assumption"
	MemoryTypeOpenQuestion MemoryType = "open_question"
)

// MemoryTypes lists every valid type, in display order.
var MemoryTypes = []MemoryType{
	MemoryTypeDecision,
	MemoryTypeConstraint,
	MemoryTypeMistake,
	MemoryTypeAssumption,
	MemoryTypeOpenQuestion,
}

// IsValid reports whether t is a recognized memory type.
func (t MemoryType) IsValid() bool {
	switch t {
	case MemoryTypeDecision, MemoryTypeConstraint, MemoryTypeMistake,
		MemoryTypeAssumption, MemoryTypeOpenQuestion:
		return true
	}
	return false
}

// MemoryStatus is the lifecycle state of a memory item.
// active → {superseded, deprecated} is one-way; both targets are terminal.
type MemoryStatus string

const (
	MemoryStatusActive     MemoryStatus = "active"
	MemoryStatusDeprecated MemoryStatus = "deprecated"
	MemoryStatusSuperseded MemoryStatus = "superseded"
)

// MemoryItem is a distilled knowledge unit. supersedes_id/superseded_by_id
// form an antiparallel pair: if A supersedes B then B is superseded-by A and
// B.status is superseded. The pair is stored as plain ids, not pointers.
type MemoryItem struct {
	ID              string           `json:"id" db:"id"`
	ThreadID        string           `json:"thread_id" db:"thread_id"`
	Type            MemoryType       `json:"type" db:"type"`
	Status          MemoryStatus     `json:"status" db:"status"`
	Title           string           `json:"title" db:"title"`
	Statement       string           `json:"statement" db:"statement"`
	Importance      float64          `json:"importance" db:"importance"`
	Confidence      float64          `json:"confidence" db:"confidence"`
	Severity        float64          `json:"severity" db:"severity"`
	Tags            pq.StringArray   `json:"tags" db:"tags"`
	Affects         pq.StringArray   `json:"affects" db:"affects"`
	CodeRefs        pq.StringArray   `json:"code_refs" db:"code_refs"`
	EvidenceTurnIDs pq.StringArray   `json:"evidence_turn_ids" db:"evidence_turn_ids"`
	SupersedesID    *string          `json:"supersedes_id,omitempty" db:"supersedes_id"`
	SupersededByID  *string          `json:"superseded_by_id,omitempty" db:"superseded_by_id"`
	SupersedeReason *string          `json:"supersede_reason,omitempty" db:"supersede_reason"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	Embedding       *pgvector.Vector `json:"-" db:"embedding"`
	Meta            JSONMap          `json:"meta" db:"meta"`
}

// MemoryPayload carries the caller-supplied fields of a new memory item.
// Scores must lie in [0,1]; violations are rejected before persistence.
type MemoryPayload struct {
	Title      string   `json:"title"`
	Statement  string   `json:"statement"`
	Importance float64  `json:"importance"`
	Confidence float64  `json:"confidence"`
	Severity   float64  `json:"severity"`
	Tags       []string `json:"tags"`
	Affects    []string `json:"affects"`
	CodeRefs   []string `json:"code_refs"`
}

// UpsertOutcome describes what the memory lifecycle engine did with a payload.
type UpsertOutcome string

const (
	OutcomeInserted   UpsertOutcome = "inserted"
	OutcomeDeduped    UpsertOutcome = "deduped"
	OutcomeSuperseded UpsertOutcome = "superseded"
)
