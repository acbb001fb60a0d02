package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the derived lifecycle state of a batch. Clients never
// set it directly; it is rolled up from child job completions.
type BatchStatus string

const (
	BatchQueued     BatchStatus = "QUEUED"
	BatchProcessing BatchStatus = "PROCESSING"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// IsTerminal returns true if the batch status represents a final state.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchJob is a fan-out/fan-in grouping of jobs submitted together.
// TotalCount and ChildJobIDs are fixed at creation; CompletedCount only ever
// increases and never exceeds TotalCount.
type BatchJob struct {
	BatchJobID     uuid.UUID   `json:"batch_job_id"`
	UserID         string      `json:"user_id"`
	Status         BatchStatus `json:"status"`
	TotalCount     int         `json:"total_count"`
	CompletedCount int         `json:"completed_count"`
	ChildJobIDs    []uuid.UUID `json:"child_job_ids"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
