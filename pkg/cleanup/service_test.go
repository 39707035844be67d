package cleanup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/recall/pkg/cleanup"
	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
	testdb "github.com/codeready-toolchain/recall/test/database"
)

func TestCleanupServiceEnqueuesSweepOnStart(t *testing.T) {
	st := store.New(testdb.NewTestClient(t).DB())
	ctx := context.Background()

	svc := cleanup.NewService(config.RetentionConfig{
		DaysTurns:       30,
		DaysMemory:      365,
		CleanupInterval: time.Hour,
	}, st)
	svc.Start(ctx)
	defer svc.Stop()

	require.Eventually(t, func() bool {
		jobs, err := st.ListJobsByStatus(ctx, models.JobStatusPending)
		if err != nil {
			return false
		}
		for _, job := range jobs {
			if job.Type == models.JobTypeRetentionCleanup {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "the first sweep is scheduled immediately")
}

func TestCleanupServiceStopIsIdempotent(t *testing.T) {
	st := store.New(testdb.NewTestClient(t).DB())

	svc := cleanup.NewService(config.RetentionConfig{CleanupInterval: time.Hour}, st)
	svc.Start(context.Background())
	svc.Stop()
	svc.Stop()
}
