package llm

import (
	"crypto/sha256"
	"strings"
)

// FakeSupersedeReason is the canned supersede reason used in fake mode.
const FakeSupersedeReason = "Updated decision to reflect new requirements."

// fakeEmbedding derives a deterministic fixed-length vector from the SHA-256
// digest of the text: value i is digest byte (i mod 32) scaled to [0,1].
// Identical texts always embed identically, so dedup decisions are stable in
// tests.
func fakeEmbedding(text string, dim int) []float32 {
	digest := sha256.Sum256([]byte(text))
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = float32(digest[i%len(digest)]) / 255.0
	}
	return vector
}

// fakeChatResponse selects a canonical response from the system-prompt
// content: compare prompts get a "same" relation, rerank prompts an empty id
// list, and everything else the empty extraction bundle, seeded with one
// decision when the user text mentions one.
func fakeChatResponse(messages []Message) map[string]any {
	var userParts, systemParts []string
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			userParts = append(userParts, m.Content)
		case RoleSystem:
			systemParts = append(systemParts, m.Content)
		}
	}
	joined := strings.ToLower(strings.Join(userParts, " "))
	systemText := strings.ToLower(strings.Join(systemParts, " "))

	if strings.Contains(systemText, "relation") {
		return map[string]any{"relation": "same", "reason": "Deterministic fake compare."}
	}
	if strings.Contains(systemText, "ranking context chunks") {
		return map[string]any{"ids": []any{}}
	}

	base := map[string]any{
		"decisions":           []any{},
		"constraints":         []any{},
		"mistakes":            []any{},
		"assumptions":         []any{},
		"open_questions":      []any{},
		"violations":          []any{},
		"stale_references":    []any{},
		"missing_constraints": []any{},
		"fixes":               []any{},
	}
	if strings.Contains(joined, "decision") {
		base["decisions"] = []any{
			map[string]any{
				"title":      "Use Postgres",
				"statement":  "Postgres is the primary datastore.",
				"importance": 0.8,
				"confidence": 0.7,
				"severity":   0.0,
				"tags":       []any{"storage"},
				"affects":    []any{"database"},
				"code_refs":  []any{},
			},
		}
	}
	return base
}
