package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{name: "identical", a: "use postgres", b: "use postgres", expected: 1.0},
		{name: "both empty", a: "", b: "", expected: 1.0},
		{name: "one empty", a: "abc", b: "", expected: 0.0},
		{name: "disjoint", a: "aaaa", b: "bbbb", expected: 0.0},
		{name: "partial overlap", a: "abcd", b: "bcde", expected: 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, sequenceRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSequenceRatioSymmetricOnEqualLengths(t *testing.T) {
	a := "switch the cache to redis"
	b := "switch the cache to rocks"
	assert.InDelta(t, sequenceRatio(a, b), sequenceRatio(b, a), 1e-9)
}

func TestSequenceRatioDetectsSmallEdit(t *testing.T) {
	old := "All services must log in JSON format"
	edited := "All services must log in JSON format."
	assert.Greater(t, sequenceRatio(old, edited), 0.95, "a trailing character is an immaterial edit")
}
