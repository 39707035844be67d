package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeEmbeddingDeterministic(t *testing.T) {
	a := fakeEmbedding("hello world", 64)
	b := fakeEmbedding("hello world", 64)
	other := fakeEmbedding("something else", 64)

	require.Len(t, a, 64)
	assert.Equal(t, a, b, "identical texts must embed identically")
	assert.NotEqual(t, a, other)

	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestFakeChatResponseCompare(t *testing.T) {
	resp := fakeChatResponse([]Message{
		{Role: RoleSystem, Content: CompareSystemPrompt},
		{Role: RoleUser, Content: "OLD: a\nNEW: b"},
	})
	assert.Equal(t, "same", resp["relation"])
}

func TestFakeChatResponseRerank(t *testing.T) {
	resp := fakeChatResponse([]Message{
		{Role: RoleSystem, Content: RerankSystemPrompt},
		{Role: RoleUser, Content: "Pick the best chunks"},
	})
	ids, ok := resp["ids"].([]any)
	require.True(t, ok)
	assert.Empty(t, ids)
}

func TestFakeChatResponseDistill(t *testing.T) {
	resp := fakeChatResponse([]Message{
		{Role: RoleSystem, Content: DistillSystemPrompt},
		{Role: RoleUser, Content: "Conversation:\nuser: we reached a decision on storage"},
	})
	decisions, ok := resp["decisions"].([]any)
	require.True(t, ok)
	require.Len(t, decisions, 1, "mentioning a decision seeds one extracted decision")

	first, ok := decisions[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Use Postgres", first["title"])

	// Without the trigger word the bundle stays empty.
	resp = fakeChatResponse([]Message{
		{Role: RoleSystem, Content: DistillSystemPrompt},
		{Role: RoleUser, Content: "Conversation:\nuser: hello there"},
	})
	assert.Empty(t, resp["decisions"])
	assert.Empty(t, resp["constraints"])
}
