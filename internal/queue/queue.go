// Package queue defines the durable-queue contract between the submission
// path and the worker coordinator. Delivery is at-least-once; handlers must
// tolerate duplicates.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// Enqueuer publishes processing requests for the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
	Close() error
}

// JobMessage is one delivery handed to the worker pool. Ack and Nack settle
// the underlying broker delivery after handling completes.
type JobMessage struct {
	JobID uuid.UUID

	// DeliveryCount is how many times the broker has delivered this message
	// before, counted from zero on first delivery.
	DeliveryCount int64

	Ack  func() error
	Nack func(requeue bool) error
}
