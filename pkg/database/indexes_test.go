package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/database"
	"github.com/codeready-toolchain/recall/test/util"
)

func TestEnsureVectorIndexesIVFFlat(t *testing.T) {
	db := util.SetupTestDatabase(t)
	ctx := context.Background()

	cfg := config.VectorConfig{IndexType: config.VectorIndexIVFFlat, IVFFlatLists: 10}
	require.NoError(t, database.EnsureVectorIndexes(ctx, db, cfg))

	for _, name := range []string{"ix_turns_embedding_ivfflat", "ix_memory_embedding_ivfflat"} {
		var count int
		err := db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM pg_indexes WHERE schemaname = current_schema() AND indexname = $1`, name)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "index %s must exist", name)
	}

	// Re-running is a no-op.
	require.NoError(t, database.EnsureVectorIndexes(ctx, db, cfg))
}

func TestEnsureVectorIndexesAutoPicksSupportedMethod(t *testing.T) {
	db := util.SetupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, database.EnsureVectorIndexes(ctx, db, config.VectorConfig{
		IndexType:       config.VectorIndexAuto,
		HNSWM:           16,
		HNSWEfConstruct: 64,
		IVFFlatLists:    10,
	}))

	var count int
	err := db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM pg_indexes
		 WHERE schemaname = current_schema()
		   AND tablename = 'turns'
		   AND indexname IN ('ix_turns_embedding_hnsw', 'ix_turns_embedding_ivfflat')`)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "auto must create exactly one ANN index on turns")
}

func TestEnsureVectorIndexesRejectsUnknownType(t *testing.T) {
	db := util.SetupTestDatabase(t)

	err := database.EnsureVectorIndexes(context.Background(), db, config.VectorConfig{IndexType: "btree"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vector index type")
}
