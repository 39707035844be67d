// Package queue runs the durable job engine: workers lease jobs from the
// jobs table with FOR UPDATE SKIP LOCKED, dispatch them to registered
// handlers, and record completion or failure with exponential retry delays.
package queue

import (
	"context"

	"github.com/codeready-toolchain/recall/pkg/models"
)

// Handler processes one job payload. Returning an error sends the job
// through the retry path.
type Handler func(ctx context.Context, payload models.JSONMap) error

// Handlers maps job types to their handler.
type Handlers map[models.JobType]Handler
