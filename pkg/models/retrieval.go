package models

// RetrievalMode selects how much work retrieval does. Fast mode never reads
// raw turns, even under a hybrid scope.
type RetrievalMode string

const (
	RetrievalModeFast RetrievalMode = "fast"
	RetrievalModeDeep RetrievalMode = "deep"
)

// IsValid reports whether m is a recognized mode.
func (m RetrievalMode) IsValid() bool {
	return m == RetrievalModeFast || m == RetrievalModeDeep
}

// RetrievalScope selects which sources feed the rank lists.
type RetrievalScope string

const (
	RetrievalScopeDistilledOnly RetrievalScope = "distilled_only"
	RetrievalScopeRawOnly       RetrievalScope = "raw_only"
	RetrievalScopeHybrid        RetrievalScope = "hybrid"
)

// IsValid reports whether s is a recognized scope.
func (s RetrievalScope) IsValid() bool {
	switch s {
	case RetrievalScopeDistilledOnly, RetrievalScopeRawOnly, RetrievalScopeHybrid:
		return true
	}
	return false
}

// IncludesDistilled reports whether memory items participate.
func (s RetrievalScope) IncludesDistilled() bool {
	return s == RetrievalScopeDistilledOnly || s == RetrievalScopeHybrid
}

// IncludesRaw reports whether raw turns participate.
func (s RetrievalScope) IncludesRaw() bool {
	return s == RetrievalScopeRawOnly || s == RetrievalScopeHybrid
}

// ScoreDetail explains one chunk's fused score when explain is requested.
// Ranks holds the chunk's 1-based position in each contributing rank list,
// nil where the chunk did not appear.
type ScoreDetail struct {
	RRFScore float64 `json:"rrf_score"`
	Ranks    []*int  `json:"ranks"`
}

// ContextChunk is one packed retrieval result.
type ContextChunk struct {
	Source      string       `json:"source"` // "memory" or "turn"
	ItemID      string       `json:"item_id"`
	Text        string       `json:"text"`
	Score       float64      `json:"score"`
	ScoreDetail *ScoreDetail `json:"score_detail"`
}

// RetrieveParams are the inputs to the retrieval pipeline.
type RetrieveParams struct {
	ThreadID    string
	Query       string
	Mode        RetrievalMode
	Scope       RetrievalScope
	TopK        int
	TokenBudget int
	RecencyBias float64
	Explain     bool
}

// RetrieveResult is the retrieval pipeline output. EstTokens is the packed
// running total and never exceeds the budget. DebugScores always carries
// candidate counts; when the LLM reranker ran it also records whether the
// rerank was applied or skipped.
type RetrieveResult struct {
	Chunks          []ContextChunk `json:"chunks"`
	EstTokens       int            `json:"est_tokens"`
	LowConfidence   bool           `json:"low_confidence"`
	DebugScores     JSONMap        `json:"debug_scores"`
	StaleReferences []string       `json:"stale_references"`
}

// DecisionStateItem is the compact projection used by retrieve.decision_state.
type DecisionStateItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Statement  string  `json:"statement"`
	Importance float64 `json:"importance"`
	Confidence float64 `json:"confidence"`
}

// DecisionState groups a thread's active items by type.
type DecisionState struct {
	Decisions         []DecisionStateItem `json:"decisions"`
	Constraints       []DecisionStateItem `json:"constraints"`
	AvoidListMistakes []DecisionStateItem `json:"avoid_list_mistakes"`
	Assumptions       []DecisionStateItem `json:"assumptions"`
	OpenQuestions     []DecisionStateItem `json:"open_questions"`
}

// AuditResult is the audit.check_consistency output. Shallow audits populate
// only StaleReferences.
type AuditResult struct {
	Violations         []string `json:"violations"`
	StaleReferences    []string `json:"stale_references"`
	MissingConstraints []string `json:"missing_constraints"`
	Fixes              []string `json:"fixes"`
}
