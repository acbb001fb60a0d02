package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/batch"
	"github.com/jeffreymoya/photoeditor-sub011/internal/blob"
	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	mockqueue "github.com/jeffreymoya/photoeditor-sub011/internal/queue/mock"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
	"github.com/jeffreymoya/photoeditor-sub011/internal/storage/memory"
)

func deps(t *testing.T) (repository.JobRepository, *batch.Aggregator, *blob.LocalFS, *mockqueue.Enqueuer) {
	t.Helper()
	repo := repository.NewItemRepository(memory.NewStore())
	logger := zap.NewNop()
	return repo, batch.NewAggregator(repo, logger), blob.NewLocalFS(t.TempDir(), "http://localhost:8080", time.Minute), mockqueue.NewEnqueuer()
}

func TestSubmitJob_PersistsBeforeEnqueue(t *testing.T) {
	repo, _, blobs, enq := deps(t)
	uc := NewSubmitJobUsecase(repo, blobs, enq, zap.NewNop())

	resp, err := uc.Execute(context.Background(), "user-1", &domain.SubmitJobRequest{
		FileMeta: domain.FileMeta{FileName: "cat.png"},
		Prompt:   "sharpen",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	job, err := repo.FindJob(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Errorf("status %s, want QUEUED", job.Status)
	}
	if job.InputLocation == "" {
		t.Error("input location not reserved")
	}
	if len(enq.Enqueued) != 1 || enq.Enqueued[0] != resp.JobID {
		t.Errorf("expected one enqueue for %s, got %v", resp.JobID, enq.Enqueued)
	}
}

func TestSubmitJob_EmptyFileName(t *testing.T) {
	repo, _, blobs, enq := deps(t)
	uc := NewSubmitJobUsecase(repo, blobs, enq, zap.NewNop())

	_, err := uc.Execute(context.Background(), "user-1", &domain.SubmitJobRequest{
		FileMeta: domain.FileMeta{FileName: "  "},
		Prompt:   "sharpen",
	})
	if !errors.Is(err, domain.ErrEmptyFileName) {
		t.Errorf("expected ErrEmptyFileName, got %v", err)
	}
	if len(enq.Enqueued) != 0 {
		t.Error("invalid submission must not enqueue")
	}
}

func TestSubmitJob_EnqueueFailureFailsJob(t *testing.T) {
	repo, _, blobs, enq := deps(t)
	var attempted uuid.UUID
	enq.EnqueueFn = func(ctx context.Context, jobID uuid.UUID) error {
		attempted = jobID
		return errors.New("broker down")
	}
	uc := NewSubmitJobUsecase(repo, blobs, enq, zap.NewNop())

	_, err := uc.Execute(context.Background(), "user-1", &domain.SubmitJobRequest{
		FileMeta: domain.FileMeta{FileName: "cat.png"},
		Prompt:   "sharpen",
	})
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}

	// The job must not be left QUEUED with nothing coming.
	job, err := repo.FindJob(context.Background(), attempted)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if job.Status != domain.StatusFailed {
		t.Errorf("status %s, want FAILED", job.Status)
	}
	if job.Error == "" {
		t.Error("failure cause not recorded")
	}
}

func TestSubmitBatch_ChildEnqueueFailureStillConverges(t *testing.T) {
	repo, agg, blobs, enq := deps(t)

	// Only the second child's enqueue fails.
	calls := 0
	enq.EnqueueFn = func(ctx context.Context, jobID uuid.UUID) error {
		calls++
		if calls == 2 {
			return errors.New("broker hiccup")
		}
		return nil
	}
	uc := NewSubmitBatchUsecase(repo, agg, blobs, enq, zap.NewNop())

	resp, err := uc.Execute(context.Background(), "user-1", &domain.SubmitBatchRequest{
		Files:        []domain.FileMeta{{FileName: "a.png"}, {FileName: "b.png"}, {FileName: "c.png"}},
		SharedPrompt: "edit",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// The failed child is terminal FAILED and already rolled into the batch.
	failed, err := repo.FindJob(context.Background(), resp.ChildJobIDs[1])
	if err != nil {
		t.Fatalf("find child: %v", err)
	}
	if failed.Status != domain.StatusFailed {
		t.Errorf("child status %s, want FAILED", failed.Status)
	}

	b, _ := repo.FindBatch(context.Background(), resp.BatchJobID)
	if b.CompletedCount != 1 {
		t.Errorf("completed count %d, want 1", b.CompletedCount)
	}
	if b.Status.IsTerminal() {
		t.Errorf("batch terminal too early: %s", b.Status)
	}
}

func TestSubmitBatch_EmptyRejected(t *testing.T) {
	repo, agg, blobs, enq := deps(t)
	uc := NewSubmitBatchUsecase(repo, agg, blobs, enq, zap.NewNop())

	_, err := uc.Execute(context.Background(), "user-1", &domain.SubmitBatchRequest{SharedPrompt: "edit"})
	if !errors.Is(err, domain.ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestGetJob_And_GetBatch(t *testing.T) {
	repo, agg, blobs, enq := deps(t)
	submit := NewSubmitBatchUsecase(repo, agg, blobs, enq, zap.NewNop())
	getJob := NewGetJobUsecase(repo, zap.NewNop())
	getBatch := NewGetBatchUsecase(repo, zap.NewNop())

	resp, err := submit.Execute(context.Background(), "user-1", &domain.SubmitBatchRequest{
		Files:        []domain.FileMeta{{FileName: "a.png"}},
		SharedPrompt: "edit",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	job, err := getJob.Execute(context.Background(), resp.ChildJobIDs[0])
	if err != nil {
		t.Fatalf("get job failed: %v", err)
	}
	if job.BatchJobID == nil || *job.BatchJobID != resp.BatchJobID {
		t.Error("child not linked to batch")
	}

	b, err := getBatch.Execute(context.Background(), resp.BatchJobID)
	if err != nil {
		t.Fatalf("get batch failed: %v", err)
	}
	if b.TotalCount != 1 {
		t.Errorf("total count %d, want 1", b.TotalCount)
	}

	if _, err := getJob.Execute(context.Background(), uuid.New()); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := getBatch.Execute(context.Background(), uuid.New()); !errors.Is(err, domain.ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
}
