package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/metrics"
	"github.com/jeffreymoya/photoeditor-sub011/internal/queue"
)

// Pool manages a fixed-size set of goroutines that consume JobMessages and
// settle each delivery after the coordinator is done with it.
type Pool struct {
	size          int
	maxDeliveries int64
	jobs          <-chan *queue.JobMessage
	coordinator   *Coordinator
	logger        *zap.Logger
	wg            sync.WaitGroup
}

// NewPool creates a new fixed-size worker pool. maxDeliveries bounds broker
// redelivery for infrastructure faults; once exceeded the message is
// dead-lettered instead of requeued.
func NewPool(size int, maxDeliveries int64, jobs <-chan *queue.JobMessage, coordinator *Coordinator, logger *zap.Logger) *Pool {
	return &Pool{
		size:          size,
		maxDeliveries: maxDeliveries,
		jobs:          jobs,
		coordinator:   coordinator,
		logger:        logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *Pool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
		}
	}()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

func (p *Pool) handle(ctx context.Context, id int, msg *queue.JobMessage) {
	p.logger.Info("Worker handling job",
		zap.Int("worker_id", id),
		zap.String("job_id", msg.JobID.String()),
	)

	metrics.WorkersActive.Inc()
	startTime := time.Now()

	isDuplicate, err := p.coordinator.Handle(ctx, msg.JobID)

	metrics.WorkersActive.Dec()
	metrics.JobDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		// Infrastructure fault: requeue within the delivery budget, then
		// dead-letter. Domain failures never reach this branch; they end as
		// terminal FAILED jobs inside the coordinator.
		requeue := msg.DeliveryCount+1 < p.maxDeliveries
		p.logger.Error("Job handling failed",
			zap.Int("worker_id", id),
			zap.String("job_id", msg.JobID.String()),
			zap.Int64("delivery_count", msg.DeliveryCount),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		if nackErr := msg.Nack(requeue); nackErr != nil {
			p.logger.Error("Failed to NACK message",
				zap.String("job_id", msg.JobID.String()),
				zap.Error(nackErr),
			)
		}
		return
	}

	if isDuplicate {
		p.logger.Debug("Duplicate delivery dropped",
			zap.Int("worker_id", id),
			zap.String("job_id", msg.JobID.String()),
		)
	}

	// Handled or harmless duplicate: either way the message is done.
	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Error("Failed to ACK message",
			zap.String("job_id", msg.JobID.String()),
			zap.Error(ackErr),
		)
	}
}
