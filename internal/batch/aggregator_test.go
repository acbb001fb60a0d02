package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository"
	"github.com/jeffreymoya/photoeditor-sub011/internal/storage/memory"
)

func setup() (*Aggregator, repository.JobRepository) {
	repo := repository.NewItemRepository(memory.NewStore())
	return NewAggregator(repo, zap.NewNop()), repo
}

func specs(n int) []ChildSpec {
	out := make([]ChildSpec, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ChildSpec{
			FileMeta:      domain.FileMeta{FileName: "img.png", ContentType: "image/png"},
			Prompt:        "sharpen",
			InputLocation: "blobs/in/img.png",
		})
	}
	return out
}

func TestCreateBatchWithChildren(t *testing.T) {
	agg, repo := setup()
	ctx := context.Background()

	batch, jobs, err := agg.CreateBatchWithChildren(ctx, "user-1", specs(3))
	if err != nil {
		t.Fatalf("fan-out failed: %v", err)
	}
	if batch.TotalCount != 3 || batch.CompletedCount != 0 || batch.Status != domain.BatchQueued {
		t.Errorf("unexpected batch: %+v", batch)
	}
	if len(jobs) != 3 || len(batch.ChildJobIDs) != 3 {
		t.Fatalf("expected 3 children, got %d jobs, %d ids", len(jobs), len(batch.ChildJobIDs))
	}

	for i, job := range jobs {
		if job.JobID != batch.ChildJobIDs[i] {
			t.Errorf("child %d id mismatch", i)
		}
		if job.BatchJobID == nil || *job.BatchJobID != batch.BatchJobID {
			t.Errorf("child %d not linked to batch", i)
		}
		stored, err := repo.FindJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("child %d not persisted: %v", i, err)
		}
		if stored.Status != domain.StatusQueued {
			t.Errorf("child %d status %s, want QUEUED", i, stored.Status)
		}
	}
}

func TestCreateBatchWithChildren_Empty(t *testing.T) {
	agg, _ := setup()
	if _, _, err := agg.CreateBatchWithChildren(context.Background(), "user-1", nil); err != domain.ErrEmptyBatch {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestRecordChildCompletion_ConcurrentChildrenExactCount(t *testing.T) {
	agg, repo := setup()
	ctx := context.Background()

	// Contention here is bounded by the CAS retry budget: with n writers a
	// goroutine can lose at most n-1 rounds, so n must stay within it.
	n := 8
	batch, jobs, err := agg.CreateBatchWithChildren(ctx, "user-1", specs(n))
	if err != nil {
		t.Fatalf("fan-out failed: %v", err)
	}

	// All children land COMPLETED at the same time.
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := repo.UpdateJobStatus(ctx, id, domain.StatusCompleted, repository.JobUpdate{}); err != nil {
				t.Errorf("complete child: %v", err)
				return
			}
			if err := agg.RecordChildCompletion(ctx, batch.BatchJobID, id, domain.StatusCompleted); err != nil {
				t.Errorf("record completion: %v", err)
			}
		}(job.JobID)
	}
	wg.Wait()

	final, err := repo.FindBatch(ctx, batch.BatchJobID)
	if err != nil {
		t.Fatalf("find batch failed: %v", err)
	}
	if final.CompletedCount != n {
		t.Errorf("completed count %d, want %d", final.CompletedCount, n)
	}
	if final.Status != domain.BatchCompleted {
		t.Errorf("status %s, want COMPLETED", final.Status)
	}
}

func TestRecordChildCompletion_OneFailureFailsBatch(t *testing.T) {
	agg, repo := setup()
	ctx := context.Background()

	batch, jobs, err := agg.CreateBatchWithChildren(ctx, "user-1", specs(3))
	if err != nil {
		t.Fatalf("fan-out failed: %v", err)
	}

	statuses := []domain.JobStatus{domain.StatusCompleted, domain.StatusFailed, domain.StatusCompleted}
	for i, job := range jobs {
		if _, err := repo.UpdateJobStatus(ctx, job.JobID, statuses[i], repository.JobUpdate{}); err != nil {
			t.Fatalf("terminal write %d failed: %v", i, err)
		}
		if err := agg.RecordChildCompletion(ctx, batch.BatchJobID, job.JobID, statuses[i]); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
	}

	final, _ := repo.FindBatch(ctx, batch.BatchJobID)
	if final.Status != domain.BatchFailed {
		t.Errorf("status %s, want FAILED", final.Status)
	}
	if final.CompletedCount != 3 {
		t.Errorf("completed count %d, want 3", final.CompletedCount)
	}
}

func TestRecordChildCompletion_IdempotentAfterTerminal(t *testing.T) {
	agg, repo := setup()
	ctx := context.Background()

	batch, jobs, err := agg.CreateBatchWithChildren(ctx, "user-1", specs(1))
	if err != nil {
		t.Fatalf("fan-out failed: %v", err)
	}
	job := jobs[0]

	if _, err := repo.UpdateJobStatus(ctx, job.JobID, domain.StatusCompleted, repository.JobUpdate{}); err != nil {
		t.Fatalf("terminal write failed: %v", err)
	}
	if err := agg.RecordChildCompletion(ctx, batch.BatchJobID, job.JobID, domain.StatusCompleted); err != nil {
		t.Fatalf("first record failed: %v", err)
	}

	// A redelivered completion must not bump the counter or flip status.
	if err := agg.RecordChildCompletion(ctx, batch.BatchJobID, job.JobID, domain.StatusCompleted); err != nil {
		t.Fatalf("duplicate record failed: %v", err)
	}

	final, _ := repo.FindBatch(ctx, batch.BatchJobID)
	if final.CompletedCount != 1 {
		t.Errorf("counter moved on duplicate: %d", final.CompletedCount)
	}
	if final.Status != domain.BatchCompleted {
		t.Errorf("status %s, want COMPLETED", final.Status)
	}
}

func TestRecordChildCompletion_RejectsNonTerminal(t *testing.T) {
	agg, _ := setup()
	batch, jobs, err := agg.CreateBatchWithChildren(context.Background(), "user-1", specs(1))
	if err != nil {
		t.Fatalf("fan-out failed: %v", err)
	}
	if err := agg.RecordChildCompletion(context.Background(), batch.BatchJobID, jobs[0].JobID, domain.StatusEditing); err == nil {
		t.Error("expected error for non-terminal status")
	}
}
