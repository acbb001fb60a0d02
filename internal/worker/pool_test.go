package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	"github.com/jeffreymoya/photoeditor-sub011/internal/queue"
	"github.com/jeffreymoya/photoeditor-sub011/internal/repository/mock"
)

type settlement struct {
	acked   bool
	nacked  bool
	requeue bool
}

func makeMessage(jobID uuid.UUID, deliveryCount int64) (*queue.JobMessage, *settlement, chan struct{}) {
	st := &settlement{}
	done := make(chan struct{})
	var once sync.Once
	msg := &queue.JobMessage{
		JobID:         jobID,
		DeliveryCount: deliveryCount,
		Ack: func() error {
			st.acked = true
			once.Do(func() { close(done) })
			return nil
		},
		Nack: func(requeue bool) error {
			st.nacked = true
			st.requeue = requeue
			once.Do(func() { close(done) })
			return nil
		},
	}
	return msg, st, done
}

func startPool(t *testing.T, repo *mock.JobRepository, maxDeliveries int64) (chan *queue.JobMessage, func()) {
	t.Helper()
	jobs := make(chan *queue.JobMessage, 4)
	c := NewCoordinator(repo, &mock.DedupeStore{}, &stubProvider{}, &stubAggregator{}, zap.NewNop())
	p := NewPool(2, maxDeliveries, jobs, c, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	return jobs, func() {
		cancel()
		close(jobs)
		p.Stop()
	}
}

func waitSettled(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("message never settled")
	}
}

func TestPool_AcksHandledJob(t *testing.T) {
	repo := mock.NewJobRepository()
	job := seedJob(t, repo, domain.StatusQueued, nil)

	jobs, stop := startPool(t, repo, 5)
	defer stop()

	msg, st, done := makeMessage(job.JobID, 0)
	jobs <- msg
	waitSettled(t, done)

	if !st.acked {
		t.Error("handled job not acked")
	}
	final, _ := repo.FindJob(context.Background(), job.JobID)
	if final.Status != domain.StatusCompleted {
		t.Errorf("status %s, want COMPLETED", final.Status)
	}
}

func TestPool_AcksDuplicateDelivery(t *testing.T) {
	repo := mock.NewJobRepository()
	job := seedJob(t, repo, domain.StatusCompleted, nil)

	jobs, stop := startPool(t, repo, 5)
	defer stop()

	msg, st, done := makeMessage(job.JobID, 1)
	jobs <- msg
	waitSettled(t, done)

	if !st.acked {
		t.Error("duplicate delivery must be acked, not redelivered")
	}
}

func TestPool_NacksInfraFaultWithinBudget(t *testing.T) {
	repo := mock.NewJobRepository()
	repo.FindJobFn = func(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
		return nil, errors.New("store unavailable")
	}

	jobs, stop := startPool(t, repo, 5)
	defer stop()

	msg, st, done := makeMessage(uuid.New(), 0)
	jobs <- msg
	waitSettled(t, done)

	if !st.nacked {
		t.Fatal("infra fault not nacked")
	}
	if !st.requeue {
		t.Error("fault within budget must requeue")
	}
}

func TestPool_DeadLettersAfterDeliveryBudget(t *testing.T) {
	repo := mock.NewJobRepository()
	repo.FindJobFn = func(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
		return nil, errors.New("store unavailable")
	}

	jobs, stop := startPool(t, repo, 3)
	defer stop()

	// Third delivery of a poisoned message exhausts the budget.
	msg, st, done := makeMessage(uuid.New(), 2)
	jobs <- msg
	waitSettled(t, done)

	if !st.nacked {
		t.Fatal("fault not nacked")
	}
	if st.requeue {
		t.Error("exhausted budget must dead-letter, not requeue")
	}
}
