// Package client implements the resilient client side of the engine: submit a
// job or batch, upload the file(s) out-of-band, then poll for completion with
// bounded retries, exponential backoff and a circuit breaker.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
)

// ErrTimeout is returned when the poll budget runs out before a terminal
// status is observed. It does not imply failure: the job may still finish.
var ErrTimeout = errors.New("processing is taking longer than expected, check back later")

// ProcessingError is a terminal FAILED job or batch; Message carries the
// backend's error text verbatim.
type ProcessingError struct {
	Message string
}

func (e *ProcessingError) Error() string { return e.Message }

// Stage identifies a progress milestone.
type Stage string

const (
	StageSubmitted Stage = "submitted"
	StageUploaded  Stage = "uploaded"
	StagePolling   Stage = "polling"
	StageDone      Stage = "done"
)

// Progress is one callback-reported milestone. For batches CompletedCount and
// TotalCount expose the evolving completion ratio.
type Progress struct {
	Stage          Stage
	Percent        int
	CompletedCount int
	TotalCount     int
}

// JobSpec describes one file submission.
type JobSpec struct {
	Meta    domain.FileMeta
	Prompt  string
	Payload []byte
}

// BatchSpec describes a multi-file submission sharing one prompt.
type BatchSpec struct {
	Files        []BatchFile
	SharedPrompt string
}

// BatchFile is one file of a batch.
type BatchFile struct {
	Meta    domain.FileMeta
	Payload []byte
}

// JobResult is the outcome of a successful single-job wait.
type JobResult struct {
	JobID          uuid.UUID
	OutputLocation string
}

// BatchResult is the outcome of a successful batch wait. OutputLocations are
// ordered like the submitted files.
type BatchResult struct {
	BatchJobID      uuid.UUID
	OutputLocations []string
}

// Poller is the client-side completion engine. It holds no mutable state
// across calls; concurrent SubmitAndWait calls share only the breaker, which
// is safe for concurrent use.
type Poller struct {
	api     API
	policy  Policy
	clock   Clock
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock, letting tests walk the poll budget
// deterministically.
func WithClock(clock Clock) Option {
	return func(p *Poller) { p.clock = clock }
}

// NewPoller creates a polling engine with the given resilience policy.
func NewPoller(api API, policy Policy, logger *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		api:    api,
		policy: policy,
		clock:  realClock{},
		logger: logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "submission-api",
		Timeout: policy.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= policy.BreakerThreshold
		},
		// Caller errors must not open the breaker; only transport faults do.
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
	})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SubmitAndWait submits one job, uploads its payload, and polls until the job
// reaches a terminal status or the poll budget runs out. Abandoning the wait
// is done by cancelling ctx; in-flight calls are not forcibly aborted but
// their results are discarded.
func (p *Poller) SubmitAndWait(ctx context.Context, spec JobSpec, onProgress func(Progress)) (*JobResult, error) {
	var resp *domain.SubmitJobResponse
	err := p.call(ctx, func(ctx context.Context) error {
		r, err := p.api.SubmitJob(ctx, domain.SubmitJobRequest{FileMeta: spec.Meta, Prompt: spec.Prompt})
		if err == nil {
			resp = r
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	report(onProgress, Progress{Stage: StageSubmitted, Percent: 10})

	if err := p.call(ctx, func(ctx context.Context) error {
		return p.api.Upload(ctx, resp.UploadHandle, spec.Payload)
	}); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	report(onProgress, Progress{Stage: StageUploaded, Percent: 25})

	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxPolls; attempt++ {
		var job *domain.Job
		err := p.call(ctx, func(ctx context.Context) error {
			j, err := p.api.GetJob(ctx, resp.JobID)
			if err == nil {
				job = j
			}
			return err
		})
		switch {
		case err != nil && isPermanent(err):
			return nil, err
		case err != nil:
			lastErr = err
			p.logger.Debug("Status poll failed", zap.Int("attempt", attempt), zap.Error(err))
		case job.Status == domain.StatusCompleted:
			report(onProgress, Progress{Stage: StageDone, Percent: 100})
			return &JobResult{JobID: job.JobID, OutputLocation: job.OutputLocation}, nil
		case job.Status == domain.StatusFailed:
			return nil, &ProcessingError{Message: job.Error}
		default:
			lastErr = nil
			report(onProgress, Progress{Stage: StagePolling, Percent: pollPercent(job.Status)})
		}

		if attempt < p.policy.MaxPolls {
			if err := p.sleep(ctx, p.policy.PollInterval); err != nil {
				return nil, err
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("status polling kept failing: %w", lastErr)
	}
	return nil, ErrTimeout
}

// SubmitBatchAndWait submits a batch, uploads all payloads, and polls the
// batch until it is terminal or the poll budget runs out.
func (p *Poller) SubmitBatchAndWait(ctx context.Context, spec BatchSpec, onProgress func(Progress)) (*BatchResult, error) {
	files := make([]domain.FileMeta, 0, len(spec.Files))
	for _, f := range spec.Files {
		files = append(files, f.Meta)
	}

	var resp *domain.SubmitBatchResponse
	err := p.call(ctx, func(ctx context.Context) error {
		r, err := p.api.SubmitBatch(ctx, domain.SubmitBatchRequest{Files: files, SharedPrompt: spec.SharedPrompt})
		if err == nil {
			resp = r
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}
	report(onProgress, Progress{Stage: StageSubmitted, Percent: 10, TotalCount: len(spec.Files)})

	if len(resp.UploadHandles) != len(spec.Files) {
		return nil, fmt.Errorf("submit batch: %d upload handles for %d files", len(resp.UploadHandles), len(spec.Files))
	}
	for i, f := range spec.Files {
		handle := resp.UploadHandles[i]
		payload := f.Payload
		if err := p.call(ctx, func(ctx context.Context) error {
			return p.api.Upload(ctx, handle, payload)
		}); err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Meta.FileName, err)
		}
	}
	report(onProgress, Progress{Stage: StageUploaded, Percent: 25, TotalCount: len(spec.Files)})

	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxPolls; attempt++ {
		var b *domain.BatchJob
		err := p.call(ctx, func(ctx context.Context) error {
			got, err := p.api.GetBatch(ctx, resp.BatchJobID)
			if err == nil {
				b = got
			}
			return err
		})
		switch {
		case err != nil && isPermanent(err):
			return nil, err
		case err != nil:
			lastErr = err
			p.logger.Debug("Batch poll failed", zap.Int("attempt", attempt), zap.Error(err))
		case b.Status.IsTerminal():
			return p.resolveBatch(ctx, b, onProgress)
		default:
			lastErr = nil
			report(onProgress, Progress{
				Stage:          StagePolling,
				Percent:        batchPercent(b),
				CompletedCount: b.CompletedCount,
				TotalCount:     b.TotalCount,
			})
		}

		if attempt < p.policy.MaxPolls {
			if err := p.sleep(ctx, p.policy.PollInterval); err != nil {
				return nil, err
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("status polling kept failing: %w", lastErr)
	}
	return nil, ErrTimeout
}

// resolveBatch turns a terminal batch into a result or a ProcessingError by
// inspecting the child jobs.
func (p *Poller) resolveBatch(ctx context.Context, b *domain.BatchJob, onProgress func(Progress)) (*BatchResult, error) {
	outputs := make([]string, 0, len(b.ChildJobIDs))
	var failures []string
	for _, childID := range b.ChildJobIDs {
		var child *domain.Job
		err := p.call(ctx, func(ctx context.Context) error {
			j, err := p.api.GetJob(ctx, childID)
			if err == nil {
				child = j
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		if child.Status == domain.StatusFailed {
			failures = append(failures, fmt.Sprintf("%s: %s", child.FileMeta.FileName, child.Error))
			continue
		}
		outputs = append(outputs, child.OutputLocation)
	}

	if b.Status == domain.BatchFailed {
		msg := fmt.Sprintf("%d of %d jobs failed", len(failures), b.TotalCount)
		for _, f := range failures {
			msg += "; " + f
		}
		return nil, &ProcessingError{Message: msg}
	}

	report(onProgress, Progress{Stage: StageDone, Percent: 100, CompletedCount: b.CompletedCount, TotalCount: b.TotalCount})
	return &BatchResult{BatchJobID: b.BatchJobID, OutputLocations: outputs}, nil
}

// call runs one network operation through the circuit breaker and the retry
// policy. Permanent errors (caller errors, not-found) short-circuit; transient
// errors are retried up to MaxAttempts with exponential backoff.
func (p *Poller) call(ctx context.Context, op func(context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.policy.InitialBackoff
	bo.MaxInterval = p.policy.MaxBackoff
	bo.MaxElapsedTime = 0

	attempts := p.policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	wrapped := func() error {
		_, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx)
	return backoff.RetryNotifyWithTimer(wrapped, b, nil, newBackoffTimer(p.clock))
}

// sleep waits on the injected clock, honoring cancellation.
func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}

// isPermanent reports whether retrying could not possibly help: domain-level
// rejections and 4xx responses, as opposed to transport faults and open
// breakers.
func isPermanent(err error) bool {
	if errors.Is(err, domain.ErrJobNotFound) ||
		errors.Is(err, domain.ErrBatchNotFound) ||
		errors.Is(err, domain.ErrJobAlreadyExists) {
		return true
	}
	if apiErr, ok := asAPIError(err); ok {
		return !apiErr.Temporary()
	}
	return false
}

func pollPercent(status domain.JobStatus) int {
	switch status {
	case domain.StatusProcessing:
		return 50
	case domain.StatusEditing:
		return 75
	default:
		return 30
	}
}

func batchPercent(b *domain.BatchJob) int {
	if b.TotalCount == 0 {
		return 25
	}
	return 25 + (70*b.CompletedCount)/b.TotalCount
}

func report(onProgress func(Progress), p Progress) {
	if onProgress != nil {
		onProgress(p)
	}
}
