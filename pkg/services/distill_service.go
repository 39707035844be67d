package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// DistillService turns recent conversation into structured memory via the
// extraction prompt and the lifecycle engine.
type DistillService struct {
	store  *store.Store
	llm    llm.Client
	memory *MemoryService
}

// NewDistillService creates a new DistillService.
func NewDistillService(st *store.Store, client llm.Client, memory *MemoryService) *DistillService {
	if st == nil {
		panic("NewDistillService: store must not be nil")
	}
	if client == nil {
		panic("NewDistillService: llm client must not be nil")
	}
	if memory == nil {
		panic("NewDistillService: memory service must not be nil")
	}
	return &DistillService{store: st, llm: client, memory: memory}
}

// Distill extracts memory from the thread's recent turns around turnID. Each
// extracted item runs through the lifecycle engine with the trigger turn as
// evidence. With writeToMemory false the extraction is returned without
// touching memory.
func (s *DistillService) Distill(ctx context.Context, threadID, turnID string, includeRecentTurns int, writeToMemory bool) (*models.DistillOutcome, error) {
	turns, err := s.store.RecentTurns(ctx, threadID, includeRecentTurns)
	if err != nil {
		return nil, err
	}

	// RecentTurns is newest-first; the prompt reads chronologically.
	lines := make([]string, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("%s: %s", turns[i].Role, turns[i].Text))
	}

	response, err := s.llm.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.DistillSystemPrompt},
		{Role: llm.RoleUser, Content: "Conversation:\n" + strings.Join(lines, "\n")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to distill conversation: %w", err)
	}
	extracted, err := decodeBundle(response)
	if err != nil {
		return nil, err
	}

	outcome := &models.DistillOutcome{Extracted: *extracted}
	if !writeToMemory {
		return outcome, nil
	}

	for _, group := range []struct {
		itemType models.MemoryType
		items    []models.MemoryPayload
	}{
		{models.MemoryTypeDecision, extracted.Decisions},
		{models.MemoryTypeConstraint, extracted.Constraints},
		{models.MemoryTypeMistake, extracted.Mistakes},
		{models.MemoryTypeAssumption, extracted.Assumptions},
		{models.MemoryTypeOpenQuestion, extracted.OpenQuestions},
	} {
		for _, payload := range group.items {
			_, result, err := s.memory.Upsert(ctx, threadID, group.itemType, payload, []string{turnID})
			if err != nil {
				return nil, err
			}
			switch result {
			case models.OutcomeInserted:
				outcome.Inserted++
			case models.OutcomeDeduped:
				outcome.Deduped++
			case models.OutcomeSuperseded:
				outcome.Superseded++
			}
		}
	}
	return outcome, nil
}

// decodeBundle coerces the loosely-typed chat response into the bundle
// struct, dropping unknown keys.
func decodeBundle(response map[string]any) (*models.DistillBundle, error) {
	raw, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode extraction: %w", err)
	}
	var bundle models.DistillBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode extraction bundle: %w", err)
	}
	return &bundle, nil
}
