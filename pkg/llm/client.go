// Package llm mediates all access to the upstream model: a counting
// semaphore bounds concurrency, a consecutive-failure circuit breaker
// contains outages, each physical call retries with exponential backoff, and
// embeddings are served from a bounded TTL+LRU cache. A deterministic fake
// mode replaces the network entirely for tests.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/metrics"
)

// Message roles understood by the chat endpoint.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the mediator surface consumed by the services. Fake reports
// whether deterministic fake mode is active; call sites with their own
// canned fake behavior (compare relation, supersede reason) branch on it.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ChatJSON(ctx context.Context, messages []Message) (map[string]any, error)
	Fake() bool
}

// Mediator implements Client against an OpenAI-compatible REST API.
type Mediator struct {
	cfg     config.LLMConfig
	api     *openai.Client
	sem     *semaphore.Weighted
	breaker *breaker
	cache   *Cache
	metrics *metrics.Metrics
}

// NewMediator builds the mediator from configuration. The HTTP client carries
// the per-call timeout; retries happen above it.
func NewMediator(cfg config.LLMConfig, cacheCfg config.CacheConfig, m *metrics.Metrics) *Mediator {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Mediator{
		cfg:     cfg,
		api:     openai.NewClientWithConfig(apiCfg),
		sem:     semaphore.NewWeighted(cfg.MaxConcurrency),
		breaker: newBreaker(cfg.BreakerMaxFailures, cfg.BreakerTTL),
		cache:   NewCache(cacheCfg.MaxEntries, cacheCfg.TTL),
		metrics: m,
	}
}

// Fake reports whether deterministic fake mode is enabled.
func (m *Mediator) Fake() bool {
	return m.cfg.FakeMode
}

// Embed returns one vector per input text, in order. Cache hits bypass the
// semaphore and the breaker entirely; all misses are batched into a single
// upstream call whose response order matches the missing-text order.
func (m *Mediator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.cfg.FakeMode {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = fakeEmbedding(text, m.cfg.EmbeddingDim)
		}
		return vectors, nil
	}

	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIndexes []int
	for i, text := range texts {
		if cached, ok := m.cache.Get(text); ok {
			vectors[i] = cached
			continue
		}
		missing = append(missing, text)
		missingIndexes = append(missingIndexes, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	if !m.breaker.Allow() {
		return nil, ErrBreakerOpen
	}
	m.metrics.LLMCalls.WithLabelValues("embedding").Inc()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire llm slot: %w", err)
	}
	defer m.sem.Release(1)

	resp, err := m.createEmbeddings(ctx, missing)
	if err != nil {
		m.breaker.RecordFailure()
		m.metrics.LLMFailures.WithLabelValues("embedding").Inc()
		return nil, err
	}
	if len(resp.Data) != len(missing) {
		m.breaker.RecordFailure()
		m.metrics.LLMFailures.WithLabelValues("embedding").Inc()
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrMalformedResponse, len(missing), len(resp.Data))
	}
	for j, item := range resp.Data {
		m.cache.Set(missing[j], item.Embedding)
		vectors[missingIndexes[j]] = item.Embedding
	}
	m.breaker.RecordSuccess()
	return vectors, nil
}

// ChatJSON sends the messages with a JSON response format and returns the
// parsed object.
func (m *Mediator) ChatJSON(ctx context.Context, messages []Message) (map[string]any, error) {
	if m.cfg.FakeMode {
		return fakeChatResponse(messages), nil
	}

	if !m.breaker.Allow() {
		return nil, ErrBreakerOpen
	}
	m.metrics.LLMCalls.WithLabelValues("chat").Inc()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire llm slot: %w", err)
	}
	defer m.sem.Release(1)

	resp, err := m.createChatCompletion(ctx, messages)
	if err != nil {
		m.breaker.RecordFailure()
		m.metrics.LLMFailures.WithLabelValues("chat").Inc()
		return nil, err
	}
	if len(resp.Choices) == 0 {
		m.breaker.RecordFailure()
		m.metrics.LLMFailures.WithLabelValues("chat").Inc()
		return nil, fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		m.breaker.RecordFailure()
		m.metrics.LLMFailures.WithLabelValues("chat").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	m.breaker.RecordSuccess()
	return parsed, nil
}

// createEmbeddings performs one logical embeddings call under the retry
// budget. Only the final outcome reaches the breaker.
func (m *Mediator) createEmbeddings(ctx context.Context, inputs []string) (openai.EmbeddingResponse, error) {
	var resp openai.EmbeddingResponse
	op := func() error {
		var err error
		resp, err = m.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(m.cfg.EmbeddingModel),
			Input: inputs,
		})
		return err
	}
	if err := m.retry(ctx, op); err != nil {
		return resp, fmt.Errorf("%w: embeddings: %v", ErrUpstreamExhausted, err)
	}
	return resp, nil
}

// createChatCompletion performs one logical chat call under the retry budget.
func (m *Mediator) createChatCompletion(ctx context.Context, messages []Message) (openai.ChatCompletionResponse, error) {
	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}
	req := openai.ChatCompletionRequest{
		Model:    m.cfg.Model,
		Messages: apiMessages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp openai.ChatCompletionResponse
	op := func() error {
		var err error
		resp, err = m.api.CreateChatCompletion(ctx, req)
		return err
	}
	if err := m.retry(ctx, op); err != nil {
		return resp, fmt.Errorf("%w: chat: %v", ErrUpstreamExhausted, err)
	}
	return resp, nil
}

// retry runs op up to MaxRetries attempts with exponential backoff, stopping
// early when the context is cancelled.
func (m *Mediator) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(m.cfg.MaxRetries-1)),
		ctx,
	)
	return backoff.Retry(op, policy)
}
