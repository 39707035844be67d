package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 1536, cfg.LLM.EmbeddingDim)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.LLM.BreakerMaxFailures)
	assert.Equal(t, 0.9, cfg.Dedup.DedupThreshold)
	assert.Equal(t, 0.8, cfg.Dedup.SupersedeThreshold)
	assert.Equal(t, 0.75, cfg.Dedup.GuardMin)
	assert.Equal(t, 8, cfg.Retrieval.FastTopK)
	assert.Equal(t, 2400, cfg.Retrieval.TokenBudgetDeep)
	assert.Equal(t, time.Second, cfg.Jobs.PollInterval)
	assert.Equal(t, 3650, cfg.Retention.DaysMemory)
	assert.Equal(t, VectorIndexAuto, cfg.Vector.IndexType)
	assert.False(t, cfg.LLM.FakeMode)
	assert.False(t, cfg.Retrieval.EnableLLMRerank)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://example/db")
	t.Setenv("LLM_TIMEOUT_S", "2.5")
	t.Setenv("LLM_MAX_CONCURRENCY", "2")
	t.Setenv("DEDUP_SIM_THRESHOLD", "0.99")
	t.Setenv("FAKE_LLM", "true")
	t.Setenv("JOB_POLL_INTERVAL_S", "0.05")
	t.Setenv("VECTOR_INDEX_TYPE", "ivfflat")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgresql://example/db", cfg.DatabaseURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.LLM.Timeout)
	assert.Equal(t, int64(2), cfg.LLM.MaxConcurrency)
	assert.Equal(t, 0.99, cfg.Dedup.DedupThreshold)
	assert.True(t, cfg.LLM.FakeMode)
	assert.Equal(t, 50*time.Millisecond, cfg.Jobs.PollInterval)
	assert.Equal(t, VectorIndexIVFFlat, cfg.Vector.IndexType)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_DIM")
}

func TestValidate(t *testing.T) {
	t.Run("rejects zero embedding dim", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.EmbeddingDim = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown vector index type", func(t *testing.T) {
		cfg := Default()
		cfg.Vector.IndexType = "btree"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects zero workers", func(t *testing.T) {
		cfg := Default()
		cfg.Jobs.WorkerCount = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("accepts defaults", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}
