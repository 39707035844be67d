package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

const auditStaleLimit = 10

// AuditService checks a plan text against the thread's memory.
type AuditService struct {
	store *store.Store
	llm   llm.Client
}

// NewAuditService creates a new AuditService.
func NewAuditService(st *store.Store, client llm.Client) *AuditService {
	if st == nil {
		panic("NewAuditService: store must not be nil")
	}
	if client == nil {
		panic("NewAuditService: llm client must not be nil")
	}
	return &AuditService{store: st, llm: client}
}

// CheckConsistency audits planText against the thread's active and
// superseded items. A shallow audit reports only mechanically detected stale
// references; a deep audit additionally asks the LLM for violations, missing
// constraints, and fixes, merging its stale references with the mechanical
// ones.
func (s *AuditService) CheckConsistency(ctx context.Context, threadID, planText string, deep bool) (*models.AuditResult, error) {
	if planText == "" {
		return nil, NewValidationError("plan_text", "plan text is required")
	}

	staleRefs, err := findStaleReferences(ctx, s.store, threadID, planText, auditStaleLimit)
	if err != nil {
		return nil, err
	}

	if !deep {
		return &models.AuditResult{
			Violations:         []string{},
			StaleReferences:    staleRefs,
			MissingConstraints: []string{},
			Fixes:              []string{},
		}, nil
	}

	activeItems, err := s.store.ListMemoryByStatus(ctx, threadID, models.MemoryStatusActive)
	if err != nil {
		return nil, err
	}
	supersededItems, err := s.store.ListMemoryByStatus(ctx, threadID, models.MemoryStatusSuperseded)
	if err != nil {
		return nil, err
	}

	result, err := s.auditWithLLM(ctx, planText, activeItems, supersededItems)
	if err != nil {
		return nil, err
	}
	result.StaleReferences = unionStrings(result.StaleReferences, staleRefs)
	return result, nil
}

func (s *AuditService) auditWithLLM(ctx context.Context, planText string, active, superseded []models.MemoryItem) (*models.AuditResult, error) {
	activeJSON, err := serializeAuditItems(active)
	if err != nil {
		return nil, err
	}
	supersededJSON, err := serializeAuditItems(superseded)
	if err != nil {
		return nil, err
	}

	response, err := s.llm.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.AuditSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Return JSON with keys: violations, stale_references, missing_constraints, fixes. "+
				"Violations should mention conflicting decisions/constraints, stale_references should explain superseded usage, "+
				"fixes should be actionable. Plan text: %s\nActive items: %s\nSuperseded items: %s",
			planText, activeJSON, supersededJSON)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to audit plan: %w", err)
	}

	return &models.AuditResult{
		Violations:         stringList(response["violations"]),
		StaleReferences:    stringList(response["stale_references"]),
		MissingConstraints: stringList(response["missing_constraints"]),
		Fixes:              stringList(response["fixes"]),
	}, nil
}

func serializeAuditItems(items []models.MemoryItem) (string, error) {
	type compact struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Title     string `json:"title"`
		Statement string `json:"statement"`
	}
	compacts := make([]compact, 0, len(items))
	for _, item := range items {
		compacts = append(compacts, compact{
			ID:        item.ID,
			Type:      string(item.Type),
			Title:     item.Title,
			Statement: item.Statement,
		})
	}
	encoded, err := json.Marshal(compacts)
	if err != nil {
		return "", fmt.Errorf("failed to serialize audit items: %w", err)
	}
	return string(encoded), nil
}

// stringList coerces a chat-response value into a string slice, dropping
// anything that is not a string.
func stringList(value any) []string {
	raw, _ := value.([]any)
	list := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			list = append(list, s)
		}
	}
	return list
}
