// Package executor runs operation handlers on background goroutines
// bound to a job, one bounded worker pool per operation kind, honoring
// per-job cancellation and a per-operation timeout. It generalizes the
// teacher's single "one queue per binary" JobQueue/AIJobQueue pattern
// to "one queue per operation kind" inside a single process.
package executor

import (
	"context"
	"time"

	"github.com/vidflow/pipeline/internal/jobstore"
)

// Task is an operation handler's unit of background work. It receives
// the job's cancellable, deadline-bound context and a progress
// reporter, and returns either a job-facing result or a job error.
// A Task is responsible for writing its workflow-step outcome (via
// workflowstore) BEFORE returning, so that by the time Executor calls
// jobstore.SetResult/SetError, a poller who only observes the job as
// completed is guaranteed the workflow record already reflects it.
type Task func(ctx context.Context, report ProgressFunc) (result any, err *jobstore.JobError)

// ProgressFunc reports progress (0-100) and an optional message. The
// underlying job store clamps and enforces monotonicity.
type ProgressFunc func(progress int, message string)

type pool struct {
	sem     chan struct{}
	timeout time.Duration
}

// Executor owns one bounded worker pool per operation kind.
type Executor struct {
	jobs *jobstore.Store

	pools map[string]*pool
}

// New creates an Executor that reports job lifecycle transitions to
// jobs. Concurrency/timeout are configured per operation via
// Configure before the first Submit for that operation.
func New(jobs *jobstore.Store) *Executor {
	return &Executor{
		jobs:  jobs,
		pools: make(map[string]*pool),
	}
}

// Configure sets the concurrency ceiling and timeout for an operation
// kind. Must be called before any Submit for that operation; calling it
// again is a no-op once the pool exists.
func (e *Executor) Configure(operation string, concurrency int, timeout time.Duration) {
	if _, ok := e.pools[operation]; ok {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	e.pools[operation] = &pool{
		sem:     make(chan struct{}, concurrency),
		timeout: timeout,
	}
}

// Submit runs task on a background goroutine for jobID/operation, bound
// to jobCtx (the job's own cancellation context) and the operation's
// configured timeout. If the pool is saturated, the job is left queued
// with a waiting message until a slot frees up.
func (e *Executor) Submit(jobCtx context.Context, jobID, operation string, task Task) {
	p, ok := e.pools[operation]
	if !ok {
		// Unconfigured operations get a default pool of 1 lazily; this
		// should not happen once the composition root has configured
		// every known operation.
		p = &pool{sem: make(chan struct{}, 1), timeout: 10 * time.Minute}
		e.pools[operation] = p
	}

	go func() {
		_ = e.jobs.UpdateStatus(jobID, jobstore.StatusQueued, "waiting for executor slot")

		select {
		case p.sem <- struct{}{}:
		case <-jobCtx.Done():
			_, _ = e.jobs.Cancel(jobID, "cancelled before an executor slot became available")
			return
		}
		defer func() { <-p.sem }()

		ctx := jobCtx
		var cancel context.CancelFunc
		if p.timeout > 0 {
			ctx, cancel = context.WithTimeout(jobCtx, p.timeout)
			defer cancel()
		}

		if err := e.jobs.UpdateStatus(jobID, jobstore.StatusRunning, "processing"); err != nil {
			return
		}

		report := func(progress int, message string) {
			_ = e.jobs.UpdateProgress(jobID, progress, message, nil)
		}

		result, taskErr := task(ctx, report)

		if ctx.Err() == context.DeadlineExceeded {
			_ = e.jobs.SetError(jobID, &jobstore.JobError{
				Code:         jobstore.CodeTimeout,
				Message:      "operation exceeded its configured timeout",
				Retryable:    true,
				RetryAfterMS: 60000,
			})
			return
		}
		if jobCtx.Err() == context.Canceled {
			// Cancel() already set status/CancelledAt; nothing further
			// to record on the job. The task itself is responsible for
			// leaving the workflow step in a recoverable state.
			return
		}

		if taskErr != nil {
			_ = e.jobs.SetError(jobID, taskErr)
			return
		}
		_ = e.jobs.SetResult(jobID, result)
	}()
}
