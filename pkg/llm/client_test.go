package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/metrics"
)

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:            baseURL,
		APIKey:             "test-key",
		Model:              "gpt-test",
		EmbeddingModel:     "embed-test",
		EmbeddingDim:       8,
		Timeout:            2 * time.Second,
		MaxRetries:         1,
		BreakerMaxFailures: 2,
		BreakerTTL:         50 * time.Millisecond,
		MaxConcurrency:     2,
	}
}

func newTestMediator(t *testing.T, cfg config.LLMConfig) *Mediator {
	t.Helper()
	return NewMediator(cfg, config.CacheConfig{MaxEntries: 16, TTL: time.Minute}, metrics.New())
}

func writeEmbeddingResponse(w http.ResponseWriter, count, dim int) {
	type item struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, count)
	for i := range data {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = float32(i+1) / 10
		}
		data[i] = item{Object: "embedding", Index: i, Embedding: vec}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  "embed-test",
	})
}

func writeChatResponse(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"role": "assistant", "content": content},
			},
		},
	})
}

func TestMediatorEmbedServesRepeatsFromCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEmbeddingResponse(w, 1, 8)
	}))
	defer server.Close()

	m := newTestMediator(t, testLLMConfig(server.URL+"/v1"))
	ctx := context.Background()

	first, err := m.Embed(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, first[0], 8)

	second, err := m.Embed(ctx, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "cache hit must not reach the upstream")
}

func TestMediatorEmbedBatchesOnlyMisses(t *testing.T) {
	var lastBatch atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		lastBatch.Store(int32(len(req.Input)))
		writeEmbeddingResponse(w, len(req.Input), 8)
	}))
	defer server.Close()

	m := newTestMediator(t, testLLMConfig(server.URL+"/v1"))
	ctx := context.Background()

	_, err := m.Embed(ctx, []string{"a"})
	require.NoError(t, err)

	vectors, err := m.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 8)
	}
	assert.Equal(t, int32(2), lastBatch.Load(), "cached text must be excluded from the upstream batch")
}

func TestMediatorChatJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, `{"relation":"update","reason":"changed"}`)
	}))
	defer server.Close()

	m := newTestMediator(t, testLLMConfig(server.URL+"/v1"))
	resp, err := m.ChatJSON(context.Background(), []Message{
		{Role: RoleSystem, Content: CompareSystemPrompt},
		{Role: RoleUser, Content: "OLD: a\nNEW: b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "update", resp["relation"])
}

func TestMediatorChatMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "this is not json")
	}))
	defer server.Close()

	m := newTestMediator(t, testLLMConfig(server.URL+"/v1"))
	_, err := m.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestMediatorBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testLLMConfig(server.URL + "/v1")
	cfg.BreakerTTL = time.Minute
	m := newTestMediator(t, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.BreakerMaxFailures; i++ {
		_, err := m.ChatJSON(ctx, []Message{{Role: RoleUser, Content: fmt.Sprintf("call %d", i)}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstreamExhausted)
	}

	_, err := m.ChatJSON(ctx, []Message{{Role: RoleUser, Content: "after open"}})
	assert.ErrorIs(t, err, ErrBreakerOpen, "breaker must fail fast once open")
}

func TestMediatorRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
			return
		}
		writeChatResponse(w, `{"ok":true}`)
	}))
	defer server.Close()

	cfg := testLLMConfig(server.URL + "/v1")
	cfg.MaxRetries = 2
	m := newTestMediator(t, cfg)

	resp, err := m.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "retry me"}})
	require.NoError(t, err)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestMediatorFakeMode(t *testing.T) {
	cfg := testLLMConfig("http://unreachable.invalid/v1")
	cfg.FakeMode = true
	m := newTestMediator(t, cfg)
	ctx := context.Background()

	assert.True(t, m.Fake())

	vectors, err := m.Embed(ctx, []string{"hello", "hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[1])
	assert.NotEqual(t, vectors[0], vectors[2])
	assert.Len(t, vectors[0], cfg.EmbeddingDim)

	resp, err := m.ChatJSON(ctx, []Message{
		{Role: RoleSystem, Content: CompareSystemPrompt},
		{Role: RoleUser, Content: "OLD: a\nNEW: b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "same", resp["relation"])
}
