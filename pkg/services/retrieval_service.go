package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/metrics"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

const (
	staleReferenceLimit = 5
	rerankChunkWindow   = 20
	rerankSnippetLen    = 200
)

// retrievalCandidate is one fusion candidate from any rank list.
type retrievalCandidate struct {
	id     string
	text   string
	source string
	score  float64
	detail *models.ScoreDetail
}

// RetrievalService runs the hybrid retrieval pipeline and the decision-state
// projection.
type RetrievalService struct {
	store   *store.Store
	llm     llm.Client
	metrics *metrics.Metrics
	cfg     config.RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService.
func NewRetrievalService(st *store.Store, client llm.Client, m *metrics.Metrics, cfg config.RetrievalConfig) *RetrievalService {
	if st == nil {
		panic("NewRetrievalService: store must not be nil")
	}
	if client == nil {
		panic("NewRetrievalService: llm client must not be nil")
	}
	if m == nil {
		panic("NewRetrievalService: metrics must not be nil")
	}
	return &RetrievalService{store: st, llm: client, metrics: m, cfg: cfg}
}

// recencyWeight decays linearly with whole days of age, scaled by the bias.
func recencyWeight(ts time.Time, bias float64) float64 {
	ageDays := time.Since(ts).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return max(0.0, 1.0-(float64(int(ageDays))*bias*0.01))
}

// RetrieveContext embeds the query once, gathers up to four rank lists
// (memory vector, memory keyword, turn vector, turn keyword) within the mode
// and scope, fuses them with reciprocal rank fusion, and packs the fused
// order into the token budget. Fast mode never reads raw turns regardless of
// scope.
func (s *RetrievalService) RetrieveContext(ctx context.Context, params models.RetrieveParams) (*models.RetrieveResult, error) {
	if !params.Mode.IsValid() {
		return nil, NewValidationError("mode", fmt.Sprintf("unknown retrieval mode '%s'", params.Mode))
	}
	if !params.Scope.IsValid() {
		return nil, NewValidationError("scope", fmt.Sprintf("unknown retrieval scope '%s'", params.Scope))
	}
	if params.Query == "" {
		return nil, NewValidationError("query", "query is required")
	}

	vectors, err := s.llm.Embed(ctx, []string{params.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVector := pgvector.NewVector(vectors[0])

	var rankings [][]string
	var rankMaps []map[string]int
	var ordered []retrievalCandidate
	byID := make(map[string]int)

	addList := func(list []retrievalCandidate) {
		ids := make([]string, len(list))
		rankMap := make(map[string]int, len(list))
		for i, cand := range list {
			ids[i] = cand.id
			rankMap[cand.id] = i + 1
			if _, ok := byID[cand.id]; !ok {
				byID[cand.id] = len(ordered)
				ordered = append(ordered, cand)
			}
		}
		rankings = append(rankings, ids)
		rankMaps = append(rankMaps, rankMap)
	}

	if params.Scope.IncludesDistilled() {
		memVector, err := s.vectorMemoryList(ctx, params, queryVector)
		if err != nil {
			return nil, err
		}
		memKeyword, err := s.keywordMemoryList(ctx, params)
		if err != nil {
			return nil, err
		}
		addList(memVector)
		addList(memKeyword)
	}

	if params.Scope.IncludesRaw() && params.Mode == models.RetrievalModeDeep {
		turnVector, err := s.vectorTurnList(ctx, params, queryVector)
		if err != nil {
			return nil, err
		}
		turnKeyword, err := s.keywordTurnList(ctx, params)
		if err != nil {
			return nil, err
		}
		addList(turnVector)
		addList(turnKeyword)
	}

	fused := rrfFuse(rankings)
	for i := range ordered {
		ordered[i].score = fused[ordered[i].id]
		if params.Explain {
			ranks := make([]*int, len(rankMaps))
			for j, rankMap := range rankMaps {
				if rank, ok := rankMap[ordered[i].id]; ok {
					r := rank
					ranks[j] = &r
				}
			}
			ordered[i].detail = &models.ScoreDetail{RRFScore: fused[ordered[i].id], Ranks: ranks}
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].score > ordered[j].score
	})

	// Budget packing skips oversized chunks rather than stopping, so a later
	// small chunk can still use remaining budget.
	chunks := []models.ContextChunk{}
	totalTokens := 0
	for _, cand := range ordered {
		est := estimateTokens(cand.text)
		if totalTokens+est > params.TokenBudget {
			continue
		}
		totalTokens += est
		chunks = append(chunks, models.ContextChunk{
			Source:      cand.source,
			ItemID:      cand.id,
			Text:        cand.text,
			Score:       cand.score,
			ScoreDetail: cand.detail,
		})
	}

	debugScores := models.JSONMap{
		"count":            len(chunks),
		"total_candidates": len(ordered),
	}

	lowConfidence := len(chunks) < max(2, params.TopK/4)
	if lowConfidence {
		s.metrics.RetrievalLowConfidence.Inc()
		if s.cfg.EnableLLMRerank && params.Mode == models.RetrievalModeDeep {
			chunks, err = s.rerankWithLLM(ctx, params.Query, chunks, debugScores)
			if err != nil {
				return nil, err
			}
		}
	}

	staleRefs, err := s.staleReferenceNotes(ctx, params.ThreadID, params.Query)
	if err != nil {
		return nil, err
	}

	return &models.RetrieveResult{
		Chunks:          chunks,
		EstTokens:       totalTokens,
		LowConfidence:   lowConfidence,
		DebugScores:     debugScores,
		StaleReferences: staleRefs,
	}, nil
}

func (s *RetrievalService) vectorMemoryList(ctx context.Context, params models.RetrieveParams, queryVector pgvector.Vector) ([]retrievalCandidate, error) {
	matches, err := s.store.VectorSearchMemory(ctx, params.ThreadID, queryVector, params.TopK)
	if err != nil {
		return nil, err
	}
	list := make([]retrievalCandidate, 0, len(matches))
	for _, match := range matches {
		score := (1 - match.Distance) * match.Importance
		score *= recencyWeight(match.UpdatedAt, params.RecencyBias)
		list = append(list, retrievalCandidate{
			id:     match.ID,
			text:   fmt.Sprintf("%s: %s", match.Title, match.Statement),
			source: "memory",
			score:  score,
		})
	}
	return list, nil
}

func (s *RetrievalService) keywordMemoryList(ctx context.Context, params models.RetrieveParams) ([]retrievalCandidate, error) {
	matches, err := s.store.KeywordSearchMemory(ctx, params.ThreadID, params.Query, params.TopK)
	if err != nil {
		return nil, err
	}
	list := make([]retrievalCandidate, 0, len(matches))
	for _, match := range matches {
		list = append(list, retrievalCandidate{
			id:     match.ID,
			text:   fmt.Sprintf("%s: %s", match.Title, match.Statement),
			source: "memory",
			score:  match.Importance,
		})
	}
	return list, nil
}

func (s *RetrievalService) vectorTurnList(ctx context.Context, params models.RetrieveParams, queryVector pgvector.Vector) ([]retrievalCandidate, error) {
	matches, err := s.store.VectorSearchTurns(ctx, params.ThreadID, queryVector, params.TopK)
	if err != nil {
		return nil, err
	}
	list := make([]retrievalCandidate, 0, len(matches))
	for _, match := range matches {
		list = append(list, retrievalCandidate{
			id:     match.ID,
			text:   match.Text,
			source: "turn",
			score:  (1 - match.Distance) * recencyWeight(match.TS, params.RecencyBias),
		})
	}
	return list, nil
}

func (s *RetrievalService) keywordTurnList(ctx context.Context, params models.RetrieveParams) ([]retrievalCandidate, error) {
	matches, err := s.store.KeywordSearchTurns(ctx, params.ThreadID, params.Query, params.TopK)
	if err != nil {
		return nil, err
	}
	list := make([]retrievalCandidate, 0, len(matches))
	for _, match := range matches {
		list = append(list, retrievalCandidate{
			id:     match.ID,
			text:   match.Text,
			source: "turn",
			score:  0.5,
		})
	}
	return list, nil
}

// rerankWithLLM asks the model to reorder the top chunks for the query and
// records in debugScores whether the answer was applied. An empty id list
// keeps the fused order.
func (s *RetrievalService) rerankWithLLM(ctx context.Context, query string, chunks []models.ContextChunk, debugScores models.JSONMap) ([]models.ContextChunk, error) {
	type snippet struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	window := chunks
	if len(window) > rerankChunkWindow {
		window = window[:rerankChunkWindow]
	}
	snippets := make([]snippet, 0, len(window))
	for _, chunk := range window {
		text := chunk.Text
		if len(text) > rerankSnippetLen {
			text = text[:rerankSnippetLen]
		}
		snippets = append(snippets, snippet{ID: chunk.ItemID, Text: text})
	}
	encoded, err := json.Marshal(snippets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank snippets: %w", err)
	}

	response, err := s.llm.ChatJSON(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.RerankSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Pick the best 8 chunks for query '%s'. Return JSON list of ids. Chunks: %s", query, encoded)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rerank chunks: %w", err)
	}

	ids, _ := response["ids"].([]any)
	if len(ids) == 0 {
		debugScores["rerank"] = "skipped_empty"
		return chunks, nil
	}

	lookup := make(map[string]models.ContextChunk, len(chunks))
	for _, chunk := range chunks {
		lookup[chunk.ItemID] = chunk
	}
	reranked := make([]models.ContextChunk, 0, len(ids))
	for _, raw := range ids {
		id, ok := raw.(string)
		if !ok {
			continue
		}
		if chunk, found := lookup[id]; found {
			reranked = append(reranked, chunk)
		}
	}
	if len(reranked) == 0 {
		debugScores["rerank"] = "skipped_empty"
		return chunks, nil
	}
	debugScores["rerank"] = "applied"
	return reranked, nil
}

// staleReferenceNotes warns about superseded items the query still matches.
func (s *RetrievalService) staleReferenceNotes(ctx context.Context, threadID, text string) ([]string, error) {
	return findStaleReferences(ctx, s.store, threadID, text, staleReferenceLimit)
}

// DecisionState returns the thread's active memory grouped by type, ordered
// by importance then recency.
func (s *RetrievalService) DecisionState(ctx context.Context, threadID string) (*models.DecisionState, error) {
	state := &models.DecisionState{}
	for _, group := range []struct {
		itemType models.MemoryType
		target   *[]models.DecisionStateItem
	}{
		{models.MemoryTypeDecision, &state.Decisions},
		{models.MemoryTypeConstraint, &state.Constraints},
		{models.MemoryTypeMistake, &state.AvoidListMistakes},
		{models.MemoryTypeAssumption, &state.Assumptions},
		{models.MemoryTypeOpenQuestion, &state.OpenQuestions},
	} {
		items, err := s.store.ListMemoryByTypeStatus(ctx, threadID, group.itemType, models.MemoryStatusActive)
		if err != nil {
			return nil, err
		}
		projected := make([]models.DecisionStateItem, 0, len(items))
		for _, item := range items {
			projected = append(projected, models.DecisionStateItem{
				ID:         item.ID,
				Title:      item.Title,
				Statement:  item.Statement,
				Importance: item.Importance,
				Confidence: item.Confidence,
			})
		}
		*group.target = projected
	}
	return state, nil
}
