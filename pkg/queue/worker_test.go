package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/metrics"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/queue"
	"github.com/codeready-toolchain/recall/pkg/services"
	"github.com/codeready-toolchain/recall/pkg/store"
	testdb "github.com/codeready-toolchain/recall/test/database"
)

type workerEnv struct {
	store    *store.Store
	mediator *llm.Mediator
	distill  *services.DistillService
	threadID string
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()
	ctx := context.Background()

	st := store.New(testdb.NewTestClient(t).DB())
	mediator := llm.NewMediator(config.LLMConfig{
		FakeMode:           true,
		EmbeddingDim:       1536,
		MaxRetries:         1,
		BreakerMaxFailures: 5,
		BreakerTTL:         time.Minute,
		MaxConcurrency:     2,
		Timeout:            time.Second,
	}, config.CacheConfig{MaxEntries: 64, TTL: time.Minute}, metrics.New())

	memory := services.NewMemoryService(st, mediator, config.DedupConfig{DedupThreshold: 0.9, SupersedeThreshold: 0.8, GuardMin: 0.75})
	distill := services.NewDistillService(st, mediator, memory)

	plan, err := st.CreatePlan(ctx, "worker plan", models.JSONMap{})
	require.NoError(t, err)
	thread, err := st.CreateThread(ctx, plan.ID, models.JSONMap{})
	require.NoError(t, err)

	return &workerEnv{store: st, mediator: mediator, distill: distill, threadID: thread.ID}
}

func (e *workerEnv) newWorker(retention config.RetentionConfig) *queue.Worker {
	handlers := queue.NewHandlers(e.store, e.mediator, e.distill, retention)
	return queue.NewWorker("worker-test", e.store, handlers, config.JobsConfig{
		PollInterval: time.Millisecond,
		MaxAttempts:  3,
		WorkerCount:  1,
	})
}

func TestWorkerProcessOneEmptyQueue(t *testing.T) {
	env := newWorkerEnv(t)

	processed, err := env.newWorker(config.RetentionConfig{}).ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorkerFailsUnknownJobType(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	job, err := env.store.EnqueueJob(ctx, models.JobType("bogus"), models.JSONMap{}, nil)
	require.NoError(t, err)

	processed, err := env.newWorker(config.RetentionConfig{}).ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := env.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, stored.Status, "the failure goes through the retry path")
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "Unknown job type bogus", *stored.LastError)
}

func TestWorkerFailsMalformedPayload(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	job, err := env.store.EnqueueJob(ctx, models.JobTypeEmbedTurn, models.JSONMap{}, nil)
	require.NoError(t, err)

	processed, err := env.newWorker(config.RetentionConfig{}).ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := env.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "embed_turn payload missing turn_id", *stored.LastError)
}

func TestRetentionCleanupDeletesOldTurns(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	oldTS := time.Now().UTC().AddDate(0, 0, -60)
	freshTS := time.Now().UTC()
	require.NoError(t, env.store.InsertTurn(ctx, &models.Turn{
		ID: "00000000-0000-0000-0000-000000000001", ThreadID: env.threadID,
		Role: "user", Text: "ancient history", TS: oldTS,
	}))
	require.NoError(t, env.store.InsertTurn(ctx, &models.Turn{
		ID: "00000000-0000-0000-0000-000000000002", ThreadID: env.threadID,
		Role: "user", Text: "still relevant", TS: freshTS,
	}))

	_, err := env.store.EnqueueJob(ctx, models.JobTypeRetentionCleanup, models.JSONMap{}, nil)
	require.NoError(t, err)

	processed, err := env.newWorker(config.RetentionConfig{DaysTurns: 30}).ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	turns, err := env.store.RecentTurns(ctx, env.threadID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "still relevant", turns[0].Text)
}

func TestRetentionCleanupDisabledByZeroDays(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.InsertTurn(ctx, &models.Turn{
		ID: "00000000-0000-0000-0000-000000000003", ThreadID: env.threadID,
		Role: "user", Text: "ancient history", TS: time.Now().UTC().AddDate(0, 0, -365),
	}))

	_, err := env.store.EnqueueJob(ctx, models.JobTypeRetentionCleanup, models.JSONMap{}, nil)
	require.NoError(t, err)

	processed, err := env.newWorker(config.RetentionConfig{}).ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	turns, err := env.store.RecentTurns(ctx, env.threadID, 10)
	require.NoError(t, err)
	assert.Len(t, turns, 1, "zero retention days disables the sweep")
}

func TestWorkerPoolStartStop(t *testing.T) {
	env := newWorkerEnv(t)
	ctx := context.Background()

	turn := &models.Turn{
		ID:       uuid.New().String(),
		ThreadID: env.threadID,
		Role:     "user",
		Text:     "embed me",
		TS:       time.Now().UTC(),
	}
	require.NoError(t, env.store.InsertTurn(ctx, turn))
	_, err := env.store.EnqueueJob(ctx, models.JobTypeEmbedTurn, models.JSONMap{"turn_id": turn.ID, "text": turn.Text}, nil)
	require.NoError(t, err)

	pool := queue.NewWorkerPool(env.store, queue.NewHandlers(env.store, env.mediator, env.distill, config.RetentionConfig{}), config.JobsConfig{
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  3,
		WorkerCount:  2,
	})
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	require.Eventually(t, func() bool {
		stored, err := env.store.GetTurn(ctx, turn.ID)
		return err == nil && stored.Embedding != nil
	}, 5*time.Second, 20*time.Millisecond)
}
