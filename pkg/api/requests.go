package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/recall/pkg/models"
)

// decodeArguments coerces the loosely-typed tool arguments into a request
// struct. The caller passes the struct pre-filled with defaults; absent
// fields keep them.
func decodeArguments(arguments map[string]any, into any) error {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("malformed arguments: %w", err)
	}
	return nil
}

type threadCreateRequest struct {
	PlanID string         `json:"plan_id"`
	Meta   models.JSONMap `json:"meta"`
}

type turnIngestRequest struct {
	ThreadID       string         `json:"thread_id"`
	Role           string         `json:"role"`
	Text           string         `json:"text"`
	TS             *time.Time     `json:"ts"`
	Meta           models.JSONMap `json:"meta"`
	BranchID       *string        `json:"branch_id"`
	ExternalTurnID *string        `json:"external_turn_id"`
	EmbedNow       bool           `json:"embed_now"`
}

type planCreateRequest struct {
	Name string         `json:"name"`
	Meta models.JSONMap `json:"meta"`
}

type planListRequest struct {
	IncludeArchived bool `json:"include_archived"`
}

type planGetRequest struct {
	PlanID string `json:"plan_id"`
}

type planRenameRequest struct {
	PlanID string `json:"plan_id"`
	Name   string `json:"name"`
}

type planArchiveRequest struct {
	PlanID   string `json:"plan_id"`
	Archived bool   `json:"archived"`
}

type planTouchRequest struct {
	PlanID string `json:"plan_id"`
}

type distillExtractRequest struct {
	ThreadID           string `json:"thread_id"`
	TurnID             string `json:"turn_id"`
	IncludeRecentTurns int    `json:"include_recent_turns"`
	WriteToMemory      bool   `json:"write_to_memory"`
}

type decisionStateRequest struct {
	ThreadID string `json:"thread_id"`
}

type retrieveContextRequest struct {
	ThreadID    string                `json:"thread_id"`
	Query       string                `json:"query"`
	Mode        models.RetrievalMode  `json:"mode"`
	Scope       models.RetrievalScope `json:"scope"`
	TopK        int                   `json:"top_k"`
	TokenBudget int                   `json:"token_budget"`
	RecencyBias float64               `json:"recency_bias"`
	Explain     bool                  `json:"explain"`
}

type auditCheckRequest struct {
	ThreadID         string `json:"thread_id"`
	ProposedPlanText string `json:"proposed_plan_text"`
	Deep             bool   `json:"deep"`
}

type memoryDeprecateRequest struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

type memoryItemPayload struct {
	Title      string   `json:"title"`
	Statement  string   `json:"statement"`
	Importance float64  `json:"importance"`
	Confidence float64  `json:"confidence"`
	Severity   float64  `json:"severity"`
	Tags       []string `json:"tags"`
	Affects    []string `json:"affects"`
	CodeRefs   []string `json:"code_refs"`
}

type memorySupersedeRequest struct {
	OldItemID string            `json:"old_item_id"`
	NewItem   memoryItemPayload `json:"new_item"`
	Reason    string            `json:"reason"`
}

type scoreOverrideRequest struct {
	ItemID     string   `json:"item_id"`
	Importance *float64 `json:"importance"`
	Confidence *float64 `json:"confidence"`
	Severity   *float64 `json:"severity"`
	Reason     string   `json:"reason"`
}

type sharedExportRequest struct {
	ThreadID         string              `json:"thread_id"`
	Types            []models.MemoryType `json:"types"`
	IncludeMistakes  bool                `json:"include_mistakes"`
	ExpiresInMinutes int                 `json:"expires_in_minutes"`
}

type sharedImportRequest struct {
	Payload   models.JSONMap `json:"payload"`
	Signature string         `json:"signature"`
}
