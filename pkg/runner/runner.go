// Package runner executes a single fire of a job: up to N executor attempts
// under a per-attempt timeout, backoff between attempts, one appended run
// record, and a failure notification when the job asks for one. The runner
// classifies every executor error itself and never propagates one to the
// scheduler.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cronx/pkg/executor"
	"cronx/pkg/metrics"
	"cronx/pkg/models"
	"cronx/pkg/storage"
)

// Result is the outcome of one fire.
type Result struct {
	Status     models.RunStatus
	Attempts   int
	Err        error
	DurationMs int64
	Response   *executor.Response
}

// Runner fires jobs against an executor and records outcomes.
type Runner struct {
	exec   executor.Executor
	store  storage.Store
	logger *zap.Logger

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates a Runner.
func New(exec executor.Executor, store storage.Store, logger *zap.Logger) *Runner {
	return &Runner{
		exec:   exec,
		store:  store,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first; reports whether the
// full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run fires the job once. It always returns a Result; failures are encoded in
// Status and Err, never raised.
func (r *Runner) Run(ctx context.Context, job models.Job) Result {
	start := r.now()
	retry := job.RetryOrDefault()

	var (
		attempts int
		lastErr  error
		resp     *executor.Response
		status   = models.RunFailed
	)

	for attempts < retry.Attempts {
		attempts++

		res, err := r.attempt(ctx, job, retry.Timeout())
		if err == nil && res != nil && res.Success {
			status = models.RunSuccess
			resp = res
			break
		}

		if err != nil {
			lastErr = err
			if errors.Is(err, context.DeadlineExceeded) {
				// A timed-out attempt ends the fire; retrying would blow
				// straight through the next deadline too.
				status = models.RunTimeout
				break
			}
			if executor.IsFatal(err) {
				break
			}
			if ctx.Err() != nil {
				break
			}
		} else {
			resp = res
			lastErr = responseError(res)
		}

		if attempts < retry.Attempts {
			if !r.sleep(ctx, backoffDelay(attempts, retry.Backoff)) {
				break
			}
		}
	}

	end := r.now()
	result := Result{
		Status:     status,
		Attempts:   attempts,
		Err:        lastErr,
		DurationMs: end.Sub(start).Milliseconds(),
		Response:   resp,
	}
	if status == models.RunSuccess {
		result.Err = nil
	}

	r.record(ctx, job, start, end, result)
	metrics.RecordFire(job.Name, string(result.Status), result.Attempts, float64(result.DurationMs)/1000)

	if result.Status != models.RunSuccess && job.OnFailure != models.FailureSilent {
		r.notifyFailure(ctx, job, result)
	}

	return result
}

// attempt makes one executor call under the per-attempt deadline.
func (r *Runner) attempt(ctx context.Context, job models.Job, timeout time.Duration) (*executor.Response, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	action := executor.Action{
		Message:  job.Action.Message,
		Priority: priorityOrNormal(job.Action.Priority),
	}
	if job.Delivery != nil {
		action.Context = map[string]string{}
		if job.Delivery.Recipient != "" {
			action.Context["recipient"] = job.Delivery.Recipient
		}
		if job.Delivery.Thinking != "" {
			action.Context["thinking"] = job.Delivery.Thinking
		}
	}

	res, err := r.exec.Trigger(actx, action)
	if actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		// The attempt deadline won the race, whatever the transport reported.
		return nil, fmt.Errorf("attempt timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	return res, err
}

// record appends the run record; persistence failures are logged, not raised.
func (r *Runner) record(ctx context.Context, job models.Job, start, end time.Time, result Result) {
	rec := &models.RunRecord{
		JobName:     job.Name,
		ScheduledAt: start.UnixMilli(),
		TriggeredAt: start.UnixMilli(),
		CompletedAt: end.UnixMilli(),
		DurationMs:  result.DurationMs,
		Status:      result.Status,
		Attempts:    result.Attempts,
	}
	if result.Response != nil {
		if body, err := json.Marshal(result.Response); err == nil {
			s := string(body)
			rec.Response = &s
		}
	}
	if result.Err != nil {
		s := result.Err.Error()
		rec.Error = &s
	}

	if _, err := r.store.RecordRun(ctx, rec); err != nil {
		r.logger.Error("failed to record run",
			zap.String("job", job.Name),
			zap.Error(err),
		)
	}
}

// notifyFailure sends the user-facing failure message. Notification errors
// are logged and swallowed; they never change the recorded fire status.
func (r *Runner) notifyFailure(ctx context.Context, job models.Job, result Result) {
	msg := fmt.Sprintf("Job %q failed after %d attempt(s)", job.Name, result.Attempts)
	if result.Err != nil {
		msg += ": " + result.Err.Error()
	}

	priority := models.PriorityNormal
	if job.OnFailure == models.FailureEscalate {
		msg = "[ESCALATE] " + msg
		priority = models.PriorityHigh
	}

	if err := r.exec.Notify(ctx, msg, priority); err != nil {
		metrics.NotifyFailures.Inc()
		r.logger.Error("failure notification failed",
			zap.String("job", job.Name),
			zap.Error(err),
		)
	}
}

// responseError extracts the error carried by a non-success response.
func responseError(res *executor.Response) error {
	if res == nil {
		return errors.New("executor returned no response")
	}
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return errors.New("executor reported failure")
}

func priorityOrNormal(p models.Priority) models.Priority {
	if p == "" {
		return models.PriorityNormal
	}
	return p
}

// backoffDelay returns the sleep before the next attempt. attempt is the
// 1-based number of the attempt that just failed.
func backoffDelay(attempt int, kind models.BackoffKind) time.Duration {
	switch kind {
	case models.BackoffFixed:
		return time.Second
	case models.BackoffLinear:
		return time.Duration(attempt) * time.Second
	default: // exponential
		return time.Duration(1<<attempt) * time.Second
	}
}
