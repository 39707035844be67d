package database

import (
	"testing"

	"github.com/codeready-toolchain/recall/pkg/database"
	"github.com/codeready-toolchain/recall/test/util"
)

// NewTestClient creates a test database client.
// In CI (when CI_DATABASE_URL is set): connects to the external PostgreSQL
// service container. In local dev: spins up a pgvector testcontainer.
// The schema and connections are cleaned up when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	return database.NewClientFromDB(util.SetupTestDatabase(t))
}
