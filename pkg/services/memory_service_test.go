package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/recall/pkg/models"
)

func TestApplyImportanceHeuristics(t *testing.T) {
	tests := []struct {
		name     string
		payload  models.MemoryPayload
		expected float64
	}{
		{
			name:     "no signals",
			payload:  models.MemoryPayload{Title: "Use Postgres", Statement: "Postgres is the datastore.", Importance: 0.5},
			expected: 0.5,
		},
		{
			name:     "emphatic wording",
			payload:  models.MemoryPayload{Title: "Final call", Statement: "We ship on Friday.", Importance: 0.5},
			expected: 0.6,
		},
		{
			name:     "turkish emphasis token",
			payload:  models.MemoryPayload{Title: "Karar", Statement: "SQLite kullanmayacagiz.", Importance: 0.5},
			expected: 0.6,
		},
		{
			name:     "security tag",
			payload:  models.MemoryPayload{Title: "Tokens", Statement: "Rotate signing keys monthly.", Importance: 0.5, Tags: []string{"security"}},
			expected: 0.6,
		},
		{
			name:     "affects core",
			payload:  models.MemoryPayload{Title: "Router", Statement: "Keep routing table immutable.", Importance: 0.5, Affects: []string{"core"}},
			expected: 0.55,
		},
		{
			name: "all signals stack",
			payload: models.MemoryPayload{
				Title: "Final ruling", Statement: "Never log raw tokens.", Importance: 0.5,
				Tags: []string{"security"}, Affects: []string{"core"},
			},
			expected: 0.75,
		},
		{
			name: "clamped at one",
			payload: models.MemoryPayload{
				Title: "Final", Statement: "Done.", Importance: 0.95,
				Tags: []string{"performance"},
			},
			expected: 1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyImportanceHeuristics(&tt.payload)
			assert.InDelta(t, tt.expected, tt.payload.Importance, 1e-9)
		})
	}
}

func TestValidatePayload(t *testing.T) {
	valid := models.MemoryPayload{Title: "t", Statement: "s", Importance: 0.5, Confidence: 0.5}
	require.NoError(t, validatePayload(models.MemoryTypeDecision, &valid))

	tests := []struct {
		name     string
		itemType models.MemoryType
		payload  models.MemoryPayload
	}{
		{name: "unknown type", itemType: models.MemoryType("opinion"), payload: valid},
		{name: "missing title", itemType: models.MemoryTypeDecision, payload: models.MemoryPayload{Statement: "s"}},
		{name: "missing statement", itemType: models.MemoryTypeDecision, payload: models.MemoryPayload{Title: "t"}},
		{name: "importance above one", itemType: models.MemoryTypeDecision, payload: models.MemoryPayload{Title: "t", Statement: "s", Importance: 1.5}},
		{name: "negative severity", itemType: models.MemoryTypeMistake, payload: models.MemoryPayload{Title: "t", Statement: "s", Severity: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePayload(tt.itemType, &tt.payload)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestUnionStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, unionStrings([]string{"a", "b"}, []string{"b", "c"}))
	assert.Equal(t, []string{"a"}, unionStrings([]string{"a", "a"}, nil))
	assert.Empty(t, unionStrings(nil, nil))

	// First-seen order is preserved across both lists.
	assert.Equal(t, []string{"x", "y", "z"}, unionStrings([]string{"x"}, []string{"y", "x", "z"}))
}
