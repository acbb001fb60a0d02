package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
)

// GetBatchUsecase handles fetching batch status and completion counts.
type GetBatchUsecase struct {
	repo   repository.JobRepository
	logger *zap.Logger
}

// NewGetBatchUsecase creates a new GetBatchUsecase.
func NewGetBatchUsecase(repo repository.JobRepository, logger *zap.Logger) *GetBatchUsecase {
	return &GetBatchUsecase{repo: repo, logger: logger}
}

// Execute retrieves a batch by its ID.
func (uc *GetBatchUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	b, err := uc.repo.FindBatch(ctx, id)
	if err != nil {
		uc.logger.Debug("Batch lookup failed", zap.String("batch_job_id", id.String()), zap.Error(err))
		return nil, err
	}
	return b, nil
}
