package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Load builds the configuration from environment variables layered over
// Default(). Unset variables keep their defaults; malformed values fail
// loudly rather than being silently ignored.
func Load() (*Config, error) {
	cfg := Default()
	var err error

	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", cfg.HTTPPort)

	cfg.LLM.BaseURL = getEnvOrDefault("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnvOrDefault("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnvOrDefault("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnvOrDefault("EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	if cfg.LLM.EmbeddingDim, err = getEnvInt("EMBEDDING_DIM", cfg.LLM.EmbeddingDim); err != nil {
		return nil, err
	}
	if cfg.LLM.Timeout, err = getEnvSeconds("LLM_TIMEOUT_S", cfg.LLM.Timeout); err != nil {
		return nil, err
	}
	if cfg.LLM.MaxRetries, err = getEnvInt("LLM_MAX_RETRIES", cfg.LLM.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.LLM.BreakerMaxFailures, err = getEnvInt("LLM_CIRCUIT_BREAKER_FAILURES", cfg.LLM.BreakerMaxFailures); err != nil {
		return nil, err
	}
	if cfg.LLM.BreakerTTL, err = getEnvSeconds("LLM_CIRCUIT_BREAKER_TTL_S", cfg.LLM.BreakerTTL); err != nil {
		return nil, err
	}
	maxConc, err := getEnvInt("LLM_MAX_CONCURRENCY", int(cfg.LLM.MaxConcurrency))
	if err != nil {
		return nil, err
	}
	cfg.LLM.MaxConcurrency = int64(maxConc)
	if cfg.LLM.FakeMode, err = getEnvBool("FAKE_LLM", cfg.LLM.FakeMode); err != nil {
		return nil, err
	}

	if cfg.Cache.MaxEntries, err = getEnvInt("CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries); err != nil {
		return nil, err
	}
	if cfg.Cache.TTL, err = getEnvSeconds("CACHE_TTL_S", cfg.Cache.TTL); err != nil {
		return nil, err
	}

	if cfg.Dedup.DedupThreshold, err = getEnvFloat("DEDUP_SIM_THRESHOLD", cfg.Dedup.DedupThreshold); err != nil {
		return nil, err
	}
	if cfg.Dedup.SupersedeThreshold, err = getEnvFloat("SUPERSEDE_SIM_THRESHOLD", cfg.Dedup.SupersedeThreshold); err != nil {
		return nil, err
	}
	if cfg.Dedup.GuardMin, err = getEnvFloat("DEDUP_LLM_GUARD_MIN", cfg.Dedup.GuardMin); err != nil {
		return nil, err
	}

	if cfg.Retrieval.FastTopK, err = getEnvInt("FAST_TOP_K", cfg.Retrieval.FastTopK); err != nil {
		return nil, err
	}
	if cfg.Retrieval.DeepTopK, err = getEnvInt("DEEP_TOP_K", cfg.Retrieval.DeepTopK); err != nil {
		return nil, err
	}
	if cfg.Retrieval.TokenBudgetFast, err = getEnvInt("TOKEN_BUDGET_FAST", cfg.Retrieval.TokenBudgetFast); err != nil {
		return nil, err
	}
	if cfg.Retrieval.TokenBudgetDeep, err = getEnvInt("TOKEN_BUDGET_DEEP", cfg.Retrieval.TokenBudgetDeep); err != nil {
		return nil, err
	}
	if cfg.Retrieval.EnableLLMRerank, err = getEnvBool("ENABLE_LLM_RERANK", cfg.Retrieval.EnableLLMRerank); err != nil {
		return nil, err
	}

	if cfg.Ingest.EmbedSync, err = getEnvBool("INGEST_EMBED_SYNC", cfg.Ingest.EmbedSync); err != nil {
		return nil, err
	}
	if cfg.Ingest.AutoDistill, err = getEnvBool("AUTO_DISTILL_ON_INGEST", cfg.Ingest.AutoDistill); err != nil {
		return nil, err
	}

	if cfg.Jobs.PollInterval, err = getEnvSeconds("JOB_POLL_INTERVAL_S", cfg.Jobs.PollInterval); err != nil {
		return nil, err
	}
	if cfg.Jobs.MaxAttempts, err = getEnvInt("JOB_MAX_ATTEMPTS", cfg.Jobs.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.Jobs.WorkerCount, err = getEnvInt("JOB_WORKER_COUNT", cfg.Jobs.WorkerCount); err != nil {
		return nil, err
	}

	if cfg.Retention.DaysTurns, err = getEnvInt("RETENTION_DAYS_TURNS", cfg.Retention.DaysTurns); err != nil {
		return nil, err
	}
	if cfg.Retention.DaysMemory, err = getEnvInt("RETENTION_DAYS_MEMORY", cfg.Retention.DaysMemory); err != nil {
		return nil, err
	}
	if cfg.Retention.CleanupInterval, err = getEnvSeconds("RETENTION_CLEANUP_INTERVAL_S", cfg.Retention.CleanupInterval); err != nil {
		return nil, err
	}

	cfg.Shared.HMACSecret = getEnvOrDefault("SHARED_HMAC_SECRET", cfg.Shared.HMACSecret)
	if cfg.Shared.DefaultExpiresMinutes, err = getEnvInt("SHARED_DEFAULT_EXPIRES_MINUTES", cfg.Shared.DefaultExpiresMinutes); err != nil {
		return nil, err
	}

	cfg.Vector.IndexType = VectorIndexType(getEnvOrDefault("VECTOR_INDEX_TYPE", string(cfg.Vector.IndexType)))
	if cfg.Vector.IVFFlatLists, err = getEnvInt("VECTOR_IVFFLAT_LISTS", cfg.Vector.IVFFlatLists); err != nil {
		return nil, err
	}
	if cfg.Vector.HNSWM, err = getEnvInt("VECTOR_HNSW_M", cfg.Vector.HNSWM); err != nil {
		return nil, err
	}
	if cfg.Vector.HNSWEfConstruct, err = getEnvInt("VECTOR_HNSW_EF_CONSTRUCTION", cfg.Vector.HNSWEfConstruct); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.LLM.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.LLM.EmbeddingDim)
	}
	if c.LLM.MaxConcurrency <= 0 {
		return fmt.Errorf("LLM_MAX_CONCURRENCY must be positive, got %d", c.LLM.MaxConcurrency)
	}
	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("LLM_MAX_RETRIES must be at least 1, got %d", c.LLM.MaxRetries)
	}
	if c.Jobs.WorkerCount < 1 {
		return fmt.Errorf("JOB_WORKER_COUNT must be at least 1, got %d", c.Jobs.WorkerCount)
	}
	if c.Jobs.PollInterval <= 0 {
		return fmt.Errorf("JOB_POLL_INTERVAL_S must be positive")
	}
	switch c.Vector.IndexType {
	case VectorIndexAuto, VectorIndexHNSW, VectorIndexIVFFlat:
	default:
		return fmt.Errorf("VECTOR_INDEX_TYPE must be auto, hnsw or ivfflat, got %q", c.Vector.IndexType)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

// getEnvSeconds parses a possibly fractional seconds value (the *_S
// variables) into a Duration.
func getEnvSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return time.Duration(parsed * float64(time.Second)), nil
}
