package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

const (
	candidateLimit = 5

	// materialChangeRatio is the sequence-ratio floor above which two
	// statements are considered the same wording; at or above it a supersede
	// candidate is treated as an immaterial edit and a fresh item is inserted
	// instead of rewriting history.
	materialChangeRatio = 0.95
)

// emphasisTokens bump importance when they appear in the item text. The
// Turkish tokens match the bilingual conversations the service ingests.
var emphasisTokens = []string{"final", "karar", "kesin", "asla"}

// MemoryService is the memory lifecycle engine: it decides for each incoming
// payload whether to insert, dedupe into an existing item, or supersede one.
type MemoryService struct {
	store *store.Store
	llm   llm.Client
	cfg   config.DedupConfig
}

// NewMemoryService creates a new MemoryService.
func NewMemoryService(st *store.Store, client llm.Client, cfg config.DedupConfig) *MemoryService {
	if st == nil {
		panic("NewMemoryService: store must not be nil")
	}
	if client == nil {
		panic("NewMemoryService: llm client must not be nil")
	}
	return &MemoryService{store: st, llm: client, cfg: cfg}
}

// validatePayload rejects payloads before any LLM or database work.
func validatePayload(itemType models.MemoryType, payload *models.MemoryPayload) error {
	if !itemType.IsValid() {
		return NewValidationError("type", fmt.Sprintf("unknown memory type '%s'", itemType))
	}
	if payload.Title == "" {
		return NewValidationError("title", "title is required")
	}
	if payload.Statement == "" {
		return NewValidationError("statement", "statement is required")
	}
	for field, value := range map[string]float64{
		"importance": payload.Importance,
		"confidence": payload.Confidence,
		"severity":   payload.Severity,
	} {
		if value < 0 || value > 1 {
			return NewValidationError(field, "must be within [0,1]")
		}
	}
	return nil
}

// applyImportanceHeuristics bumps importance for emphatic wording, sensitive
// tags, and core-component impact, clamped to 1.0.
func applyImportanceHeuristics(payload *models.MemoryPayload) {
	text := strings.ToLower(payload.Title + " " + payload.Statement)
	for _, token := range emphasisTokens {
		if strings.Contains(text, token) {
			payload.Importance = min(1.0, payload.Importance+0.1)
			break
		}
	}
	for _, tag := range payload.Tags {
		if tag == "security" || tag == "performance" {
			payload.Importance = min(1.0, payload.Importance+0.1)
			break
		}
	}
	for _, affected := range payload.Affects {
		if affected == "core" {
			payload.Importance = min(1.0, payload.Importance+0.05)
			break
		}
	}
}

// candidate is one dedup/supersede candidate. similarity is 1-distance when
// the candidate came from vector search, otherwise the text sequence ratio
// against the incoming statement.
type candidate struct {
	item       models.MemoryItem
	similarity float64
}

// Upsert runs the lifecycle decision tree for one payload and returns the
// surviving item together with what happened to it.
func (s *MemoryService) Upsert(ctx context.Context, threadID string, itemType models.MemoryType, payload models.MemoryPayload, evidenceTurnIDs []string) (*models.MemoryItem, models.UpsertOutcome, error) {
	if err := validatePayload(itemType, &payload); err != nil {
		return nil, "", err
	}
	applyImportanceHeuristics(&payload)

	vectors, err := s.llm.Embed(ctx, []string{payload.Title + " " + payload.Statement})
	if err != nil {
		return nil, "", fmt.Errorf("failed to embed memory item: %w", err)
	}
	embedding := pgvector.NewVector(vectors[0])

	best, err := s.bestCandidate(ctx, threadID, itemType, embedding, payload.Statement)
	if err != nil {
		return nil, "", err
	}

	if best != nil && best.similarity >= s.cfg.DedupThreshold {
		// Embeddings can saturate similarity on short texts; below the guard
		// the match is not trusted without an LLM opinion, and the cheaper
		// answer is to just insert.
		if best.similarity < s.cfg.GuardMin {
			return s.insertNew(ctx, threadID, itemType, payload, evidenceTurnIDs, embedding)
		}
		relation, err := s.compareStatements(ctx, best.item.Statement, payload.Statement)
		if err != nil {
			return nil, "", err
		}
		if relation != "same" {
			return s.insertNew(ctx, threadID, itemType, payload, evidenceTurnIDs, embedding)
		}
		merged := unionStrings(best.item.EvidenceTurnIDs, evidenceTurnIDs)
		if err := s.store.UpdateMemoryEvidence(ctx, best.item.ID, merged); err != nil {
			return nil, "", err
		}
		item, err := s.store.GetMemoryItem(ctx, best.item.ID)
		if err != nil {
			return nil, "", err
		}
		return item, models.OutcomeDeduped, nil
	}

	if best != nil && best.similarity >= s.cfg.SupersedeThreshold {
		if sequenceRatio(best.item.Statement, payload.Statement) < materialChangeRatio {
			relation, err := s.compareStatements(ctx, best.item.Statement, payload.Statement)
			if err != nil {
				return nil, "", err
			}
			if relation == "different" {
				return s.insertNew(ctx, threadID, itemType, payload, evidenceTurnIDs, embedding)
			}
			reason, err := s.supersedeReason(ctx, best.item.Statement, payload.Statement)
			if err != nil {
				return nil, "", err
			}
			newItem := newMemoryItem(threadID, itemType, payload, evidenceTurnIDs, &embedding)
			newItem.SupersedesID = &best.item.ID
			newItem.SupersedeReason = &reason
			if err := s.store.InsertSupersedingItem(ctx, newItem, best.item.ID); err != nil {
				return nil, "", err
			}
			return newItem, models.OutcomeSuperseded, nil
		}
	}

	return s.insertNew(ctx, threadID, itemType, payload, evidenceTurnIDs, embedding)
}

// bestCandidate merges vector and keyword candidates and returns the one with
// the highest similarity, or nil when nothing matched.
func (s *MemoryService) bestCandidate(ctx context.Context, threadID string, itemType models.MemoryType, embedding pgvector.Vector, statement string) (*candidate, error) {
	vectorMatches, err := s.store.VectorCandidates(ctx, threadID, itemType, embedding, candidateLimit)
	if err != nil {
		return nil, err
	}
	keywordMatches, err := s.store.KeywordCandidates(ctx, threadID, itemType, statement, candidateLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(vectorMatches))
	candidates := make([]candidate, 0, len(vectorMatches)+len(keywordMatches))
	for _, match := range vectorMatches {
		seen[match.ID] = true
		candidates = append(candidates, candidate{item: match.MemoryItem, similarity: 1 - match.Distance})
	}
	for _, match := range keywordMatches {
		if seen[match.ID] {
			continue
		}
		candidates = append(candidates, candidate{item: match, similarity: sequenceRatio(match.Statement, statement)})
	}

	var best *candidate
	for i := range candidates {
		if best == nil || candidates[i].similarity > best.similarity {
			best = &candidates[i]
		}
	}
	return best, nil
}

// compareStatements asks the LLM whether the new statement is the same item,
// an update to it, or something different. Fake mode answers from the text
// ratio so lifecycle tests are deterministic.
func (s *MemoryService) compareStatements(ctx context.Context, oldText, newText string) (string, error) {
	if s.llm.Fake() {
		if sequenceRatio(oldText, newText) > 0.9 {
			return "same", nil
		}
		return "update", nil
	}
	response, err := s.llm.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.CompareSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Old: %s\nNew: %s", oldText, newText)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to compare statements: %w", err)
	}
	if relation, ok := response["relation"].(string); ok {
		return relation, nil
	}
	return "different", nil
}

// supersedeReason asks the LLM for a short human-readable reason.
func (s *MemoryService) supersedeReason(ctx context.Context, oldText, newText string) (string, error) {
	if s.llm.Fake() {
		return llm.FakeSupersedeReason, nil
	}
	response, err := s.llm.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.SupersedeReasonSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Explain briefly why this statement supersedes the old one. Old: %s New: %s", oldText, newText)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get supersede reason: %w", err)
	}
	if reason, ok := response["reason"].(string); ok {
		return reason, nil
	}
	return "Updated to match new information.", nil
}

func (s *MemoryService) insertNew(ctx context.Context, threadID string, itemType models.MemoryType, payload models.MemoryPayload, evidenceTurnIDs []string, embedding pgvector.Vector) (*models.MemoryItem, models.UpsertOutcome, error) {
	item := newMemoryItem(threadID, itemType, payload, evidenceTurnIDs, &embedding)
	if err := s.store.InsertMemoryItem(ctx, item); err != nil {
		return nil, "", err
	}
	return item, models.OutcomeInserted, nil
}

func newMemoryItem(threadID string, itemType models.MemoryType, payload models.MemoryPayload, evidenceTurnIDs []string, embedding *pgvector.Vector) *models.MemoryItem {
	now := time.Now().UTC()
	return &models.MemoryItem{
		ID:              uuid.New().String(),
		ThreadID:        threadID,
		Type:            itemType,
		Status:          models.MemoryStatusActive,
		Title:           payload.Title,
		Statement:       payload.Statement,
		Importance:      payload.Importance,
		Confidence:      payload.Confidence,
		Severity:        payload.Severity,
		Tags:            pq.StringArray(payload.Tags),
		Affects:         pq.StringArray(payload.Affects),
		CodeRefs:        pq.StringArray(payload.CodeRefs),
		EvidenceTurnIDs: pq.StringArray(evidenceTurnIDs),
		CreatedAt:       now,
		UpdatedAt:       now,
		Embedding:       embedding,
	}
}

// GetItem loads a memory item by id.
func (s *MemoryService) GetItem(ctx context.Context, id string) (*models.MemoryItem, error) {
	item, err := s.store.GetMemoryItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return item, err
}

// Deprecate marks an item deprecated and records the reason in its metadata.
// Deprecated is terminal; no transition leads out of it.
func (s *MemoryService) Deprecate(ctx context.Context, id, reason string) (*models.MemoryItem, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := item.Meta
	if meta == nil {
		meta = models.JSONMap{}
	}
	meta["deprecate_reason"] = reason
	if err := s.store.UpdateMemoryStatusMeta(ctx, id, models.MemoryStatusDeprecated, meta); err != nil {
		return nil, err
	}
	return s.GetItem(ctx, id)
}

// Supersede force-replaces an item with a caller-supplied payload, bypassing
// the similarity decision tree. The new item inherits the old one's type.
func (s *MemoryService) Supersede(ctx context.Context, oldItemID string, payload models.MemoryPayload, reason string) (*models.MemoryItem, error) {
	oldItem, err := s.GetItem(ctx, oldItemID)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(oldItem.Type, &payload); err != nil {
		return nil, err
	}
	newItem := newMemoryItem(oldItem.ThreadID, oldItem.Type, payload, nil, nil)
	newItem.SupersedesID = &oldItem.ID
	newItem.SupersedeReason = &reason
	if err := s.store.InsertSupersedingItem(ctx, newItem, oldItem.ID); err != nil {
		return nil, err
	}
	return newItem, nil
}

// OverrideScores sets any provided scores and appends an override event to
// the item's metadata, so manual interventions stay auditable.
func (s *MemoryService) OverrideScores(ctx context.Context, id string, importance, confidence, severity *float64, reason string) (*models.MemoryItem, error) {
	for field, value := range map[string]*float64{
		"importance": importance,
		"confidence": confidence,
		"severity":   severity,
	} {
		if value != nil && (*value < 0 || *value > 1) {
			return nil, NewValidationError(field, "must be within [0,1]")
		}
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := item.Meta
	if meta == nil {
		meta = models.JSONMap{}
	}
	overrides, _ := meta["overrides"].([]any)
	overrides = append(overrides, map[string]any{
		"importance": importance,
		"confidence": confidence,
		"severity":   severity,
		"reason":     reason,
		"ts":         time.Now().UTC().Format(time.RFC3339),
	})
	meta["overrides"] = overrides
	if err := s.store.OverrideMemoryScores(ctx, id, importance, confidence, severity, meta); err != nil {
		return nil, err
	}
	return s.GetItem(ctx, id)
}

// unionStrings merges two id lists preserving first-seen order.
func unionStrings(existing []string, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, lists := range [][]string{existing, incoming} {
		for _, id := range lists {
			if seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}
