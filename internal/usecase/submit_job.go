package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/blob"
	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/queue"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
)

// SubmitJobUsecase handles the business logic for submitting a single
// image-processing job: reserve an upload slot, persist the job, enqueue the
// processing request.
type SubmitJobUsecase struct {
	repo     repository.JobRepository
	blobs    blob.Store
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase.
func NewSubmitJobUsecase(repo repository.JobRepository, blobs blob.Store, enqueuer queue.Enqueuer, logger *zap.Logger) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		repo:     repo,
		blobs:    blobs,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Execute creates the job row, reserves its upload location, and publishes
// the processing request. If the publish fails the job is marked FAILED so it
// never sits QUEUED forever with nothing coming.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, userID string, req *domain.SubmitJobRequest) (*domain.SubmitJobResponse, error) {
	if strings.TrimSpace(req.FileMeta.FileName) == "" {
		return nil, domain.ErrEmptyFileName
	}

	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}

	slot, err := uc.blobs.RequestUploadLocation(ctx, req.FileMeta)
	if err != nil {
		return nil, fmt.Errorf("request upload location: %w", err)
	}

	job := &domain.Job{
		JobID:         jobID,
		UserID:        userID,
		Status:        domain.StatusQueued,
		Prompt:        req.Prompt,
		FileMeta:      req.FileMeta,
		InputLocation: slot.Locator,
	}
	if err := uc.repo.CreateJob(ctx, job); err != nil {
		uc.logger.Error("Failed to create job", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, err
	}

	if err := uc.enqueuer.Enqueue(ctx, jobID); err != nil {
		uc.logger.Error("Failed to enqueue job", zap.Error(err), zap.String("job_id", jobID.String()))
		cause := "could not enqueue processing request"
		_, _ = uc.repo.UpdateJobStatus(ctx, jobID, domain.StatusFailed, repository.JobUpdate{Error: &cause})
		return nil, domain.ErrPublishFailed
	}

	uc.logger.Info("Job submitted",
		zap.String("job_id", jobID.String()),
		zap.String("user_id", userID),
	)

	return &domain.SubmitJobResponse{
		JobID:        jobID,
		Status:       string(domain.StatusQueued),
		UploadHandle: slot.Handle,
	}, nil
}
