package store

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/recall/pkg/models"
)

const packageColumns = `id, created_at, expires_at, payload, signature, meta`

// InsertSharedPackage persists a signed export package.
func (s *Store) InsertSharedPackage(ctx context.Context, pkg *models.SharedPackage) error {
	if pkg.Payload == nil {
		pkg.Payload = models.JSONMap{}
	}
	if pkg.Meta == nil {
		pkg.Meta = models.JSONMap{}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO shared_packages (id, created_at, expires_at, payload, signature, meta)
		VALUES (:id, :created_at, :expires_at, :payload, :signature, :meta)`, pkg)
	if err != nil {
		return fmt.Errorf("failed to insert shared package: %w", translateError(err))
	}
	return nil
}

// GetSharedPackage loads a package by id.
func (s *Store) GetSharedPackage(ctx context.Context, id string) (*models.SharedPackage, error) {
	var pkg models.SharedPackage
	err := s.db.GetContext(ctx, &pkg,
		`SELECT `+packageColumns+` FROM shared_packages WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err)
	}
	return &pkg, nil
}
