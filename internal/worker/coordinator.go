// Package worker drives queued jobs through their state machine. The queue
// delivers at least once; the coordinator stays idempotent by dropping
// deliveries for jobs that are already terminal.
package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/batch"
	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/metrics"
	"github.com/jeffreymoya/photoeditor-sub011/internal/provider"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
)

// Aggregator is the slice of the batch aggregator the coordinator needs.
type Aggregator interface {
	RecordChildCompletion(ctx context.Context, batchID, jobID uuid.UUID, terminal domain.JobStatus) error
}

var _ Aggregator = (*batch.Aggregator)(nil)

// Coordinator handles one processing request end to end.
type Coordinator struct {
	repo     repository.JobRepository
	dedupe   repository.DedupeStore
	provider provider.Provider
	agg      Aggregator
	logger   *zap.Logger
}

// NewCoordinator creates a new worker coordinator.
func NewCoordinator(
	repo repository.JobRepository,
	dedupe repository.DedupeStore,
	prov provider.Provider,
	agg Aggregator,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		repo:     repo,
		dedupe:   dedupe,
		provider: prov,
		agg:      agg,
		logger:   logger,
	}
}

// Handle processes a single delivery: dedupe lock, terminal check, mark
// PROCESSING, run the provider, write the terminal status, roll up into the
// batch. Returns (isDuplicate, error).
// A returned error is an infrastructure fault and the message should be
// redelivered; provider failures are absorbed into a terminal FAILED job and
// return nil.
func (c *Coordinator) Handle(ctx context.Context, jobID uuid.UUID) (bool, error) {
	acquired, err := c.dedupe.Acquire(ctx, jobID)
	if err != nil {
		c.logger.Error("Failed to acquire dedupe lock", zap.Error(err), zap.String("job_id", jobID.String()))
		return false, err
	}
	if !acquired {
		c.logger.Info("Duplicate delivery detected, skipping", zap.String("job_id", jobID.String()))
		metrics.DuplicateDeliveries.Inc()
		return true, nil
	}

	job, err := c.repo.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			// The row expired or was never created; replaying forever helps
			// nobody, so drop the message.
			c.logger.Warn("Processing request for unknown job, dropping", zap.String("job_id", jobID.String()))
			return true, nil
		}
		c.forget(ctx, jobID)
		return false, err
	}

	if job.Status.IsTerminal() {
		c.logger.Debug("Job already terminal, dropping duplicate",
			zap.String("job_id", jobID.String()),
			zap.String("status", string(job.Status)),
		)
		metrics.DuplicateDeliveries.Inc()
		return true, nil
	}

	// A redelivery can find the job already mid-flight: a worker crashed after
	// the PROCESSING write, or an infra fault forgot the dedupe lock. Resume
	// from the current state rather than re-marking, which the forward-only
	// transition check would reject.
	if job.Status == domain.StatusQueued {
		if _, err := c.repo.UpdateJobStatus(ctx, jobID, domain.StatusProcessing, repository.JobUpdate{}); err != nil {
			c.logger.Error("Failed to mark job processing", zap.Error(err), zap.String("job_id", jobID.String()))
			c.forget(ctx, jobID)
			return false, err
		}
	}

	outputLocation, procErr := c.provider.Process(ctx, provider.Request{
		JobID:         job.JobID,
		InputLocation: job.InputLocation,
		Prompt:        job.Prompt,
		OnIntake: func() {
			// Best-effort: a job that never reaches EDITING still completes.
			// A resumed job may already be there.
			if job.Status == domain.StatusEditing {
				return
			}
			if _, err := c.repo.UpdateJobStatus(ctx, jobID, domain.StatusEditing, repository.JobUpdate{}); err != nil {
				c.logger.Warn("Failed to mark job editing", zap.Error(err), zap.String("job_id", jobID.String()))
			}
		},
	})

	terminal := domain.StatusCompleted
	update := repository.JobUpdate{OutputLocation: &outputLocation}
	if procErr != nil {
		// Provider errors are domain failures, not retry triggers.
		terminal = domain.StatusFailed
		cause := procErr.Error()
		update = repository.JobUpdate{Error: &cause}
		metrics.ProviderFailures.Inc()
		c.logger.Info("Provider failed job",
			zap.String("job_id", jobID.String()),
			zap.String("cause", cause),
		)
	}

	if _, err := c.repo.UpdateJobStatus(ctx, jobID, terminal, update); err != nil {
		c.logger.Error("Failed to write terminal status", zap.Error(err), zap.String("job_id", jobID.String()))
		c.forget(ctx, jobID)
		return false, err
	}
	metrics.JobsProcessed.WithLabelValues(string(terminal)).Inc()

	if job.BatchJobID != nil {
		if err := c.agg.RecordChildCompletion(ctx, *job.BatchJobID, jobID, terminal); err != nil {
			c.logger.Error("Failed to record child completion",
				zap.Error(err),
				zap.String("batch_job_id", job.BatchJobID.String()),
				zap.String("job_id", jobID.String()),
			)
			c.forget(ctx, jobID)
			return false, err
		}
	}

	_ = c.dedupe.Release(ctx, jobID)

	c.logger.Info("Job handled",
		zap.String("job_id", jobID.String()),
		zap.String("status", string(terminal)),
	)
	return false, nil
}

// forget drops the dedupe lock so the broker's redelivery can retry after an
// infrastructure fault.
func (c *Coordinator) forget(ctx context.Context, jobID uuid.UUID) {
	if err := c.dedupe.Forget(ctx, jobID); err != nil {
		c.logger.Warn("Failed to drop dedupe lock", zap.Error(err), zap.String("job_id", jobID.String()))
	}
}
