package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRFFuse(t *testing.T) {
	scores := rrfFuse([][]string{
		{"a", "b", "c"},
		{"b", "a"},
	})
	require.Len(t, scores, 3)

	// a: 1/61 + 1/62, b: 1/62 + 1/61, tied; c only in one list.
	assert.InDelta(t, scores["a"], scores["b"], 1e-9)
	assert.Less(t, scores["c"], scores["a"])
	assert.InDelta(t, 1.0/61+1.0/62, scores["a"], 1e-9)
	assert.InDelta(t, 1.0/63, scores["c"], 1e-9)
}

func TestRRFFuseRewardsConsistentRanking(t *testing.T) {
	scores := rrfFuse([][]string{
		{"top", "mid", "low"},
		{"top", "low", "mid"},
		{"top"},
	})
	assert.Greater(t, scores["top"], scores["mid"])
	assert.Greater(t, scores["top"], scores["low"])
}

func TestRRFFuseEmpty(t *testing.T) {
	assert.Empty(t, rrfFuse(nil))
	assert.Empty(t, rrfFuse([][]string{{}, {}}))
}
