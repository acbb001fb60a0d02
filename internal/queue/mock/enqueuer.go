// Package mock provides a test double for the queue enqueuer.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jeffreymoya/photoeditor-sub011/internal/queue"
)

// Ensure Enqueuer implements queue.Enqueuer.
var _ queue.Enqueuer = (*Enqueuer)(nil)

// Enqueuer is a mock message enqueuer for testing.
type Enqueuer struct {
	mu sync.Mutex

	EnqueueFn func(ctx context.Context, jobID uuid.UUID) error

	Enqueued []uuid.UUID
}

// NewEnqueuer creates a new mock enqueuer.
func NewEnqueuer() *Enqueuer {
	return &Enqueuer{}
}

func (m *Enqueuer) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, jobID)
	}
	m.mu.Lock()
	m.Enqueued = append(m.Enqueued, jobID)
	m.mu.Unlock()
	return nil
}

func (m *Enqueuer) Close() error {
	return nil
}
