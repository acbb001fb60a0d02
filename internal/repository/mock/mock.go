// Package mock provides hand-rolled test doubles for the repository
// interfaces. Defaults behave like an in-memory happy path; override the
// function fields to inject failures.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
)

// ---- JobRepository mock ----

var _ repository.JobRepository = (*JobRepository)(nil)

// JobRepository is a test double for repository.JobRepository backed by maps.
type JobRepository struct {
	mu sync.Mutex

	jobs    map[uuid.UUID]*domain.Job
	batches map[uuid.UUID]*domain.BatchJob

	CreateJobFn       func(ctx context.Context, job *domain.Job) error
	FindJobFn         func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateJobStatusFn func(ctx context.Context, id uuid.UUID, status domain.JobStatus, update repository.JobUpdate) (*domain.Job, error)
	CreateBatchFn     func(ctx context.Context, batch *domain.BatchJob) error
	FindBatchFn       func(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error)
	UpdateBatchFn     func(ctx context.Context, id uuid.UUID, mutate func(*domain.BatchJob) error) (*domain.BatchJob, error)
	FindJobsByBatchFn func(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error)

	// Recorded calls for assertions.
	StatusUpdates []StatusUpdate
}

type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.JobStatus
	Update repository.JobUpdate
}

// NewJobRepository creates an empty mock repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs:    make(map[uuid.UUID]*domain.Job),
		batches: make(map[uuid.UUID]*domain.BatchJob),
	}
}

func (m *JobRepository) CreateJob(ctx context.Context, job *domain.Job) error {
	if m.CreateJobFn != nil {
		return m.CreateJobFn(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.JobID]; ok {
		return domain.ErrJobAlreadyExists
	}
	cp := *job
	m.jobs[job.JobID] = &cp
	return nil
}

func (m *JobRepository) FindJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.FindJobFn != nil {
		return m.FindJobFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *JobRepository) UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, update repository.JobUpdate) (*domain.Job, error) {
	m.mu.Lock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: status, Update: update})
	m.mu.Unlock()
	if m.UpdateJobStatusFn != nil {
		return m.UpdateJobStatusFn(ctx, id, status, update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if !job.Status.CanTransitionTo(status) {
		return nil, domain.ErrInvalidTransition
	}
	job.Status = status
	if update.OutputLocation != nil {
		job.OutputLocation = *update.OutputLocation
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	cp := *job
	return &cp, nil
}

func (m *JobRepository) CreateBatch(ctx context.Context, batch *domain.BatchJob) error {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(ctx, batch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[batch.BatchJobID]; ok {
		return domain.ErrBatchAlreadyExists
	}
	cp := *batch
	m.batches[batch.BatchJobID] = &cp
	return nil
}

func (m *JobRepository) FindBatch(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	if m.FindBatchFn != nil {
		return m.FindBatchFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *JobRepository) UpdateBatch(ctx context.Context, id uuid.UUID, mutate func(*domain.BatchJob) error) (*domain.BatchJob, error) {
	if m.UpdateBatchFn != nil {
		return m.UpdateBatchFn(ctx, id, mutate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	cp := *b
	if err := mutate(&cp); err != nil {
		if err == repository.ErrNoChange {
			unchanged := *b
			return &unchanged, nil
		}
		return nil, err
	}
	m.batches[id] = &cp
	out := cp
	return &out, nil
}

func (m *JobRepository) FindJobsByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error) {
	if m.FindJobsByBatchFn != nil {
		return m.FindJobsByBatchFn(ctx, batchID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, job := range m.jobs {
		if job.BatchJobID != nil && *job.BatchJobID == batchID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- DedupeStore mock ----

var _ repository.DedupeStore = (*DedupeStore)(nil)

// DedupeStore is a test double for repository.DedupeStore.
type DedupeStore struct {
	mu sync.Mutex

	AcquireFn func(ctx context.Context, jobID uuid.UUID) (bool, error)
	ReleaseFn func(ctx context.Context, jobID uuid.UUID) error
	ForgetFn  func(ctx context.Context, jobID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
	ForgetCalls  []uuid.UUID
}

func (m *DedupeStore) Acquire(ctx context.Context, jobID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, jobID)
	m.mu.Unlock()
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx, jobID)
	}
	return true, nil // default: lock acquired
}

func (m *DedupeStore) Release(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, jobID)
	m.mu.Unlock()
	if m.ReleaseFn != nil {
		return m.ReleaseFn(ctx, jobID)
	}
	return nil
}

func (m *DedupeStore) Forget(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.ForgetCalls = append(m.ForgetCalls, jobID)
	m.mu.Unlock()
	if m.ForgetFn != nil {
		return m.ForgetFn(ctx, jobID)
	}
	return nil
}
