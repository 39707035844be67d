package models

import "time"

// PlanStatus is the lifecycle state of a plan.
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusArchived PlanStatus = "archived"
)

// Plan is a named workspace owning threads. Plans are never hard-deleted;
// archiving is the terminal admin operation.
type Plan struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Status    PlanStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	Meta      JSONMap    `json:"meta" db:"meta"`
}

// Thread is one conversation under a plan. Deleting a thread cascades to its
// turns and memory items.
type Thread struct {
	ID        string    `json:"id" db:"id"`
	PlanID    string    `json:"plan_id" db:"plan_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Meta      JSONMap   `json:"meta" db:"meta"`
}
