package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/batch"
	"github.com/jeffreymoya/photoeditor-sub011/internal/blob"
	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/queue"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
)

// SubmitBatchUsecase fans a multi-file submission out into child jobs under
// one batch and enqueues every child.
type SubmitBatchUsecase struct {
	repo     repository.JobRepository
	agg      *batch.Aggregator
	blobs    blob.Store
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

// NewSubmitBatchUsecase creates a new SubmitBatchUsecase.
func NewSubmitBatchUsecase(
	repo repository.JobRepository,
	agg *batch.Aggregator,
	blobs blob.Store,
	enqueuer queue.Enqueuer,
	logger *zap.Logger,
) *SubmitBatchUsecase {
	return &SubmitBatchUsecase{
		repo:     repo,
		agg:      agg,
		blobs:    blobs,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Execute reserves an upload slot per file, creates the batch with its
// children, and enqueues each child. A child whose enqueue fails is marked
// FAILED and rolled into the batch immediately so the batch still converges.
func (uc *SubmitBatchUsecase) Execute(ctx context.Context, userID string, req *domain.SubmitBatchRequest) (*domain.SubmitBatchResponse, error) {
	if len(req.Files) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	for _, meta := range req.Files {
		if strings.TrimSpace(meta.FileName) == "" {
			return nil, domain.ErrEmptyFileName
		}
	}

	specs := make([]batch.ChildSpec, 0, len(req.Files))
	handles := make([]string, 0, len(req.Files))
	for _, meta := range req.Files {
		slot, err := uc.blobs.RequestUploadLocation(ctx, meta)
		if err != nil {
			return nil, err
		}
		specs = append(specs, batch.ChildSpec{
			FileMeta:      meta,
			Prompt:        req.SharedPrompt,
			InputLocation: slot.Locator,
		})
		handles = append(handles, slot.Handle)
	}

	b, jobs, err := uc.agg.CreateBatchWithChildren(ctx, userID, specs)
	if err != nil {
		uc.logger.Error("Batch fan-out failed", zap.Error(err), zap.String("user_id", userID))
		return nil, err
	}

	for _, job := range jobs {
		if err := uc.enqueuer.Enqueue(ctx, job.JobID); err != nil {
			uc.logger.Error("Failed to enqueue batch child",
				zap.Error(err),
				zap.String("batch_job_id", b.BatchJobID.String()),
				zap.String("job_id", job.JobID.String()),
			)
			cause := "could not enqueue processing request"
			if _, updErr := uc.repo.UpdateJobStatus(ctx, job.JobID, domain.StatusFailed, repository.JobUpdate{Error: &cause}); updErr == nil {
				_ = uc.agg.RecordChildCompletion(ctx, b.BatchJobID, job.JobID, domain.StatusFailed)
			}
		}
	}

	uc.logger.Info("Batch submitted",
		zap.String("batch_job_id", b.BatchJobID.String()),
		zap.String("user_id", userID),
		zap.Int("total_count", b.TotalCount),
	)

	return &domain.SubmitBatchResponse{
		BatchJobID:    b.BatchJobID,
		Status:        string(b.Status),
		ChildJobIDs:   b.ChildJobIDs,
		UploadHandles: handles,
	}, nil
}
