package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an image-processing job.
type JobStatus string

const (
	StatusQueued     JobStatus = "QUEUED"
	StatusProcessing JobStatus = "PROCESSING"
	StatusEditing    JobStatus = "EDITING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// statusRank orders the states so that transitions can only move forward.
// COMPLETED and FAILED share a rank: once terminal, nothing moves.
var statusRank = map[JobStatus]int{
	StatusQueued:     0,
	StatusProcessing: 1,
	StatusEditing:    2,
	StatusCompleted:  3,
	StatusFailed:     3,
}

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid checks if the status is a member of the closed enumeration.
func (s JobStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. Skipping intermediate states is allowed (a provider with no
// intermediate phase goes straight from PROCESSING to a terminal state);
// moving backwards or out of a terminal state is not.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// FileMeta describes the file a client intends to upload for a job.
type FileMeta struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Job represents one submitted image throughout its processing lifecycle.
type Job struct {
	JobID          uuid.UUID  `json:"job_id"`
	UserID         string     `json:"user_id"`
	Status         JobStatus  `json:"status"`
	BatchJobID     *uuid.UUID `json:"batch_job_id,omitempty"`
	Prompt         string     `json:"prompt"`
	FileMeta       FileMeta   `json:"file_meta"`
	InputLocation  string     `json:"input_location"`
	OutputLocation string     `json:"output_location,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SubmitJobRequest is an incoming single-job submission.
type SubmitJobRequest struct {
	FileMeta FileMeta `json:"file_meta" binding:"required"`
	Prompt   string   `json:"prompt" binding:"required"`
}

// SubmitJobResponse is returned after a successful job submission.
type SubmitJobResponse struct {
	JobID        uuid.UUID `json:"job_id"`
	Status       string    `json:"status"`
	UploadHandle string    `json:"upload_handle"`
}

// SubmitBatchRequest is an incoming batch submission: one shared prompt
// applied to several files.
type SubmitBatchRequest struct {
	Files        []FileMeta `json:"files" binding:"required"`
	SharedPrompt string     `json:"shared_prompt" binding:"required"`
}

// SubmitBatchResponse is returned after a successful batch submission.
// ChildJobIDs and UploadHandles are index-aligned with the request files.
type SubmitBatchResponse struct {
	BatchJobID    uuid.UUID   `json:"batch_job_id"`
	Status        string      `json:"status"`
	ChildJobIDs   []uuid.UUID `json:"child_job_ids"`
	UploadHandles []string    `json:"upload_handles"`
}
