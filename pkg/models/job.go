package models

import "time"

// JobType identifies the handler a job is dispatched to.
type JobType string

const (
	JobTypeEmbedTurn        JobType = "embed_turn"
	JobTypeDistillTurn      JobType = "distill_turn"
	JobTypeRetentionCleanup JobType = "retention_cleanup"
)

// JobStatus is the durable state of a job.
// pending → running → (done | failed), with running → pending on
// recoverable failure. done and failed are terminal.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Job is one durable task row.
type Job struct {
	ID        string    `json:"id" db:"id"`
	Type      JobType   `json:"type" db:"type"`
	Status    JobStatus `json:"status" db:"status"`
	Payload   JSONMap   `json:"payload" db:"payload"`
	RunAt     time.Time `json:"run_at" db:"run_at"`
	Attempts  int       `json:"attempts" db:"attempts"`
	LastError *string   `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
