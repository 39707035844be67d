package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/metrics"
	"github.com/codeready-toolchain/recall/pkg/services"
	"github.com/codeready-toolchain/recall/pkg/store"
	testdb "github.com/codeready-toolchain/recall/test/database"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	client := testdb.NewTestClient(t)
	st := store.New(client.DB())
	m := metrics.New()
	mediator := llm.NewMediator(config.LLMConfig{
		FakeMode:           true,
		EmbeddingDim:       1536,
		MaxRetries:         1,
		BreakerMaxFailures: 5,
		BreakerTTL:         time.Minute,
		MaxConcurrency:     2,
		Timeout:            time.Second,
	}, config.CacheConfig{MaxEntries: 64, TTL: time.Minute}, m)

	memory := services.NewMemoryService(st, mediator, config.DedupConfig{DedupThreshold: 0.9, SupersedeThreshold: 0.8, GuardMin: 0.75})
	return NewServer(client, Services{
		Plans:     services.NewPlanService(st),
		Turns:     services.NewTurnService(st, mediator, config.IngestConfig{}),
		Memory:    memory,
		Distill:   services.NewDistillService(st, mediator, memory),
		Retrieval: services.NewRetrievalService(st, mediator, m, config.RetrievalConfig{FastTopK: 8, DeepTopK: 20}),
		Audit:     services.NewAuditService(st, mediator),
		Shared:    services.NewSharedService(st, config.SharedConfig{HMACSecret: "secret"}),
	}, m, "0")
}

func callTool(t *testing.T, s *Server, tool string, arguments map[string]any) (int, map[string]any) {
	t.Helper()

	body, err := json.Marshal(map[string]any{"tool": tool, "arguments": arguments})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/mcp/call", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(recorder, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return recorder.Code, decoded
}

func TestDispatchUnknownTool(t *testing.T) {
	s := newTestServer(t)

	status, body := callTool(t, s, "nope.nothing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Unknown tool nope.nothing", body["error"])
}

func TestDispatchPlanRoundTrip(t *testing.T) {
	s := newTestServer(t)

	status, created := callTool(t, s, "plan.create", map[string]any{"name": "alpha"})
	require.Equal(t, http.StatusOK, status)
	planID, _ := created["plan_id"].(string)
	require.NotEmpty(t, planID)

	status, fetched := callTool(t, s, "plan.get", map[string]any{"plan_id": planID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alpha", fetched["name"])
	assert.Equal(t, "active", fetched["status"])

	// plan.archive defaults archived to true.
	status, archived := callTool(t, s, "plan.archive", map[string]any{"plan_id": planID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "archived", archived["status"])

	status, listed := callTool(t, s, "plan.list", nil)
	require.Equal(t, http.StatusOK, status)
	plans, _ := listed["plans"].([]any)
	assert.Empty(t, plans, "plan.list hides archived plans by default")

	status, listed = callTool(t, s, "plan.list", map[string]any{"include_archived": true})
	require.Equal(t, http.StatusOK, status)
	plans, _ = listed["plans"].([]any)
	assert.Len(t, plans, 1)
}

func TestDispatchIngestAndRetrieve(t *testing.T) {
	s := newTestServer(t)

	_, created := callTool(t, s, "plan.create", map[string]any{"name": "alpha"})
	planID, _ := created["plan_id"].(string)
	require.NotEmpty(t, planID)

	status, thread := callTool(t, s, "thread.create", map[string]any{"plan_id": planID})
	require.Equal(t, http.StatusOK, status)
	threadID, _ := thread["thread_id"].(string)
	require.NotEmpty(t, threadID)

	status, turn := callTool(t, s, "turn.ingest", map[string]any{
		"thread_id": threadID,
		"role":      "user",
		"text":      "We made a decision to use Postgres.",
	})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, turn["turn_id"])

	status, retrieved := callTool(t, s, "retrieve.context", map[string]any{
		"thread_id": threadID,
		"query":     "postgres",
	})
	require.Equal(t, http.StatusOK, status)
	_, hasChunks := retrieved["chunks"]
	assert.True(t, hasChunks)
	assert.NotNil(t, retrieved["debug_scores"])
}

func TestDispatchErrorMapping(t *testing.T) {
	s := newTestServer(t)

	// Validation failures map to 400.
	status, body := callTool(t, s, "plan.create", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	// Unknown resources map to 404.
	status, body = callTool(t, s, "plan.get", map[string]any{"plan_id": "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "resource not found", body["error"])

	// Malformed argument types map to 400.
	status, _ = callTool(t, s, "retrieve.context", map[string]any{"thread_id": 42})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	assert.Equal(t, "healthy", decoded["status"])
}
