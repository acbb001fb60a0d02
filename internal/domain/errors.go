package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyExists is returned when a job is created with a reused ID.
	// Callers must not retry the same ID.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrBatchNotFound is returned when a batch cannot be found by ID.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrBatchAlreadyExists is returned when a batch is created with a reused ID.
	ErrBatchAlreadyExists = errors.New("batch already exists")

	// ErrInvalidTransition is returned when a status update would move a job
	// backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyBatch is returned when a batch submission contains no files.
	ErrEmptyBatch = errors.New("batch must contain at least one file")

	// ErrEmptyFileName is returned when a submission has no file name.
	ErrEmptyFileName = errors.New("file name cannot be empty")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message queue")
)
