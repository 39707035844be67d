package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/codeready-toolchain/recall/pkg/config"
)

// EnsureVectorIndexes creates ANN indexes over the embedding columns if they
// do not exist yet. With IndexType auto it probes the server for HNSW support
// and falls back to IVFFlat on older pgvector builds. Index creation is
// idempotent and runs outside the migration chain because the chosen access
// method depends on the server, not the schema version.
func EnsureVectorIndexes(ctx context.Context, db *sqlx.DB, cfg config.VectorConfig) error {
	kind := cfg.IndexType
	if kind == config.VectorIndexAuto {
		if hnswSupported(ctx, db) {
			kind = config.VectorIndexHNSW
		} else {
			kind = config.VectorIndexIVFFlat
		}
	}

	for _, table := range []string{"turns", "memory_items"} {
		name := vectorIndexName(table, kind)
		var stmt string
		switch kind {
		case config.VectorIndexHNSW:
			stmt = fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
				name, table, cfg.HNSWM, cfg.HNSWEfConstruct)
		case config.VectorIndexIVFFlat:
			stmt = fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
				name, table, cfg.IVFFlatLists)
		default:
			return fmt.Errorf("unknown vector index type: %s", kind)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create vector index %s: %w", name, err)
		}
	}

	slog.Info("Vector indexes ensured", "type", string(kind))
	return nil
}

func vectorIndexName(table string, kind config.VectorIndexType) string {
	if table == "turns" {
		return fmt.Sprintf("ix_turns_embedding_%s", kind)
	}
	return fmt.Sprintf("ix_memory_embedding_%s", kind)
}

// hnswSupported probes the server for the hnsw access method. Probe failure
// counts as unsupported so startup degrades to ivfflat instead of aborting.
func hnswSupported(ctx context.Context, db *sqlx.DB) bool {
	var one int
	err := db.GetContext(ctx, &one, `SELECT 1 FROM pg_am WHERE amname = 'hnsw'`)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Failed to probe hnsw support, falling back to ivfflat", "error", err)
		}
		return false
	}
	return true
}
