package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
)

// ErrNoChange can be returned by an UpdateBatch mutator to signal that the
// current state already reflects the desired outcome; UpdateBatch then
// returns the unmodified batch without writing.
var ErrNoChange = errors.New("repository: no change")

// JobUpdate carries the optional fields merged into a job on a status
// transition. Nil fields are left untouched.
type JobUpdate struct {
	OutputLocation *string
	Error          *string
}

// JobRepository owns all persisted access to Job and BatchJob rows.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	// CreateJob inserts a new job. A reused ID yields domain.ErrJobAlreadyExists.
	CreateJob(ctx context.Context, job *domain.Job) error

	// FindJob retrieves a job by its ID.
	FindJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateJobStatus advances a job's status, merging the supplied optional
	// fields and bumping UpdatedAt. A missing row and a lost conditional write
	// are both reported as domain.ErrJobNotFound: exactly one writer advances
	// a given job, so a failed precondition means the row vanished, not that
	// a peer won a race.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, update JobUpdate) (*domain.Job, error)

	// CreateBatch inserts a new batch row.
	CreateBatch(ctx context.Context, batch *domain.BatchJob) error

	// FindBatch retrieves a batch by its ID.
	FindBatch(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error)

	// UpdateBatch applies mutate to the batch under a version-guarded
	// read-modify-write, retrying a bounded number of times when concurrent
	// writers collide. This is the atomic primitive behind the batch
	// completion counter.
	UpdateBatch(ctx context.Context, id uuid.UUID, mutate func(*domain.BatchJob) error) (*domain.BatchJob, error)

	// FindJobsByBatch returns all child jobs of a batch. No children is an
	// empty slice, not an error.
	FindJobsByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error)
}

// DedupeStore is a distributed first-delivery lock used by the worker to
// short-circuit duplicate queue deliveries before touching the database.
type DedupeStore interface {
	// Acquire attempts to take the processing lock for a job. Returns true on
	// first acquisition, false when another delivery already holds it.
	Acquire(ctx context.Context, jobID uuid.UUID) (bool, error)

	// Release keeps the lock alive with a TTL for eventual cleanup after a
	// successful handling.
	Release(ctx context.Context, jobID uuid.UUID) error

	// Forget drops the lock so a redelivery can retry after an infrastructure
	// failure.
	Forget(ctx context.Context, jobID uuid.UUID) error
}
