package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/storage"
)

const (
	jobKeyPrefix     = "job:"
	batchKeyPrefix   = "batch:"
	batchIndexPrefix = "batch-jobs:"

	// maxBatchRetries bounds the CAS loop in UpdateBatch. Contention is
	// limited to children of one batch completing at once, so a handful of
	// retries is plenty.
	maxBatchRetries = 8
)

var _ JobRepository = (*itemRepo)(nil)

type itemRepo struct {
	store storage.ItemStore
}

// NewItemRepository creates a JobRepository backed by a conditional item store.
func NewItemRepository(store storage.ItemStore) JobRepository {
	return &itemRepo{store: store}
}

func jobKey(id uuid.UUID) string     { return jobKeyPrefix + id.String() }
func batchKey(id uuid.UUID) string   { return batchKeyPrefix + id.String() }
func batchIndex(id uuid.UUID) string { return batchIndexPrefix + id.String() }

func (r *itemRepo) CreateJob(ctx context.Context, job *domain.Job) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("repository: marshal job: %w", err)
	}

	item := &storage.Item{Key: jobKey(job.JobID), Payload: payload}
	if job.BatchJobID != nil {
		item.IndexKey = batchIndex(*job.BatchJobID)
	}

	if err := r.store.PutIfAbsent(ctx, item); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return domain.ErrJobAlreadyExists
		}
		return fmt.Errorf("repository: create job: %w", err)
	}
	return nil
}

func (r *itemRepo) FindJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	item, err := r.store.Get(ctx, jobKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("repository: find job: %w", err)
	}
	return unmarshalJob(item.Payload)
}

func (r *itemRepo) UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, update JobUpdate) (*domain.Job, error) {
	item, err := r.store.Get(ctx, jobKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("repository: update job status: %w", err)
	}

	job, err := unmarshalJob(item.Payload)
	if err != nil {
		return nil, err
	}

	if !job.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, status)
	}

	job.Status = status
	if update.OutputLocation != nil {
		job.OutputLocation = *update.OutputLocation
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	job.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("repository: marshal job: %w", err)
	}

	// No retry on a lost precondition: a single logical writer advances each
	// job, so a mismatch means the row is gone rather than contested.
	if _, err := r.store.UpdateConditional(ctx, jobKey(id), item.Version, payload); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrPreconditionFailed) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("repository: update job status: %w", err)
	}
	return job, nil
}

func (r *itemRepo) CreateBatch(ctx context.Context, batch *domain.BatchJob) error {
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("repository: marshal batch: %w", err)
	}

	item := &storage.Item{Key: batchKey(batch.BatchJobID), Payload: payload}
	if err := r.store.PutIfAbsent(ctx, item); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return domain.ErrBatchAlreadyExists
		}
		return fmt.Errorf("repository: create batch: %w", err)
	}
	return nil
}

func (r *itemRepo) FindBatch(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	item, err := r.store.Get(ctx, batchKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("repository: find batch: %w", err)
	}
	return unmarshalBatch(item.Payload)
}

func (r *itemRepo) UpdateBatch(ctx context.Context, id uuid.UUID, mutate func(*domain.BatchJob) error) (*domain.BatchJob, error) {
	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		item, err := r.store.Get(ctx, batchKey(id))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, domain.ErrBatchNotFound
			}
			return nil, fmt.Errorf("repository: update batch: %w", err)
		}

		batch, err := unmarshalBatch(item.Payload)
		if err != nil {
			return nil, err
		}

		if err := mutate(batch); err != nil {
			if errors.Is(err, ErrNoChange) {
				return batch, nil
			}
			return nil, err
		}
		batch.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(batch)
		if err != nil {
			return nil, fmt.Errorf("repository: marshal batch: %w", err)
		}

		_, err = r.store.UpdateConditional(ctx, batchKey(id), item.Version, payload)
		if err == nil {
			return batch, nil
		}
		if errors.Is(err, storage.ErrPreconditionFailed) {
			// Another child's completion landed first; re-read and re-apply.
			continue
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("repository: update batch: %w", err)
	}
	return nil, fmt.Errorf("repository: update batch %s: retries exhausted under contention", id)
}

func (r *itemRepo) FindJobsByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error) {
	items, err := r.store.QueryByIndex(ctx, batchIndex(batchID))
	if err != nil {
		return nil, fmt.Errorf("repository: find jobs by batch: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(items))
	for _, item := range items {
		job, err := unmarshalJob(item.Payload)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func unmarshalJob(payload []byte) (*domain.Job, error) {
	job := &domain.Job{}
	if err := json.Unmarshal(payload, job); err != nil {
		return nil, fmt.Errorf("repository: unmarshal job: %w", err)
	}
	return job, nil
}

func unmarshalBatch(payload []byte) (*domain.BatchJob, error) {
	batch := &domain.BatchJob{}
	if err := json.Unmarshal(payload, batch); err != nil {
		return nil, fmt.Errorf("repository: unmarshal batch: %w", err)
	}
	return batch, nil
}
