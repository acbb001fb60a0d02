// Package batch implements fan-out creation of batches and fan-in roll-up of
// child job completions into batch-level status and counts.
package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/metrics"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
)

// ChildSpec describes one child job of a batch fan-out.
type ChildSpec struct {
	FileMeta      domain.FileMeta
	Prompt        string
	InputLocation string
}

// Aggregator owns batch fan-out and fan-in. All state lives in the persisted
// rows; the aggregator itself is stateless and safe for concurrent use.
type Aggregator struct {
	repo   repository.JobRepository
	logger *zap.Logger
}

// NewAggregator creates a new batch aggregator.
func NewAggregator(repo repository.JobRepository, logger *zap.Logger) *Aggregator {
	return &Aggregator{repo: repo, logger: logger}
}

// CreateBatchWithChildren allocates one Job row per spec and the BatchJob row
// that owns them. Children are created first and the batch row last, so a
// failed fan-out never leaves a dangling batch behind. Any child colliding on
// an existing ID aborts the whole fan-out; the caller must retry with fresh
// IDs.
func (a *Aggregator) CreateBatchWithChildren(ctx context.Context, userID string, specs []ChildSpec) (*domain.BatchJob, []*domain.Job, error) {
	if len(specs) == 0 {
		return nil, nil, domain.ErrEmptyBatch
	}

	batchID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("batch: generate batch id: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(specs))
	childIDs := make([]uuid.UUID, 0, len(specs))
	for _, spec := range specs {
		jobID, err := uuid.NewV7()
		if err != nil {
			return nil, nil, fmt.Errorf("batch: generate job id: %w", err)
		}
		bid := batchID
		jobs = append(jobs, &domain.Job{
			JobID:         jobID,
			UserID:        userID,
			Status:        domain.StatusQueued,
			BatchJobID:    &bid,
			Prompt:        spec.Prompt,
			FileMeta:      spec.FileMeta,
			InputLocation: spec.InputLocation,
		})
		childIDs = append(childIDs, jobID)
	}

	for _, job := range jobs {
		if err := a.repo.CreateJob(ctx, job); err != nil {
			a.logger.Error("Batch fan-out aborted",
				zap.String("batch_job_id", batchID.String()),
				zap.String("job_id", job.JobID.String()),
				zap.Error(err),
			)
			return nil, nil, fmt.Errorf("batch: create child job: %w", err)
		}
	}

	batch := &domain.BatchJob{
		BatchJobID:     batchID,
		UserID:         userID,
		Status:         domain.BatchQueued,
		TotalCount:     len(specs),
		CompletedCount: 0,
		ChildJobIDs:    childIDs,
	}
	if err := a.repo.CreateBatch(ctx, batch); err != nil {
		return nil, nil, fmt.Errorf("batch: create batch: %w", err)
	}

	a.logger.Info("Batch created",
		zap.String("batch_job_id", batchID.String()),
		zap.Int("total_count", batch.TotalCount),
	)
	return batch, jobs, nil
}

// RecordChildCompletion rolls one child's terminal status into the batch: an
// atomic counter increment, then a finalization pass once every child has
// landed. Concurrent children are serialized by the store's conditional write;
// the finalization check may run more than once but only ever flips status
// forward, so repeating it is harmless.
func (a *Aggregator) RecordChildCompletion(ctx context.Context, batchID, jobID uuid.UUID, terminal domain.JobStatus) error {
	if !terminal.IsTerminal() {
		return fmt.Errorf("batch: child %s reported non-terminal status %s", jobID, terminal)
	}

	updated, err := a.repo.UpdateBatch(ctx, batchID, func(b *domain.BatchJob) error {
		if b.Status.IsTerminal() || b.CompletedCount >= b.TotalCount {
			return repository.ErrNoChange
		}
		b.CompletedCount++
		if b.Status == domain.BatchQueued {
			b.Status = domain.BatchProcessing
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.logger.Debug("Child completion recorded",
		zap.String("batch_job_id", batchID.String()),
		zap.String("job_id", jobID.String()),
		zap.Int("completed_count", updated.CompletedCount),
		zap.Int("total_count", updated.TotalCount),
	)

	if updated.CompletedCount < updated.TotalCount {
		return nil
	}
	return a.finalize(ctx, batchID)
}

// finalize inspects all children and flips the batch to its terminal status:
// FAILED if any child failed, else COMPLETED.
func (a *Aggregator) finalize(ctx context.Context, batchID uuid.UUID) error {
	children, err := a.repo.FindJobsByBatch(ctx, batchID)
	if err != nil {
		return err
	}

	anyFailed := false
	for _, child := range children {
		if child.Status == domain.StatusFailed {
			anyFailed = true
			break
		}
	}

	final := domain.BatchCompleted
	if anyFailed {
		final = domain.BatchFailed
	}

	updated, err := a.repo.UpdateBatch(ctx, batchID, func(b *domain.BatchJob) error {
		if b.Status.IsTerminal() {
			return repository.ErrNoChange
		}
		b.Status = final
		return nil
	})
	if err != nil {
		return err
	}

	if updated.Status.IsTerminal() {
		metrics.BatchesFinalized.WithLabelValues(string(updated.Status)).Inc()
		a.logger.Info("Batch finalized",
			zap.String("batch_job_id", batchID.String()),
			zap.String("status", string(updated.Status)),
		)
	}
	return nil
}
