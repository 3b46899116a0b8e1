package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cronx/pkg/executor"
	"cronx/pkg/models"
	"cronx/pkg/storage"
)

// scriptedExecutor returns one scripted outcome per Trigger call and records
// every notification.
type scriptedExecutor struct {
	mu       sync.Mutex
	script   []func(ctx context.Context) (*executor.Response, error)
	triggers int

	notifyMsgs []string
	notifyPrio []models.Priority
	notifyErr  error
}

func (f *scriptedExecutor) Trigger(ctx context.Context, _ executor.Action) (*executor.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	if len(f.script) == 0 {
		return &executor.Response{Success: true}, nil
	}
	step := f.script[0]
	f.script = f.script[1:]
	return step(ctx)
}

func (f *scriptedExecutor) Notify(_ context.Context, msg string, prio models.Priority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyMsgs = append(f.notifyMsgs, msg)
	f.notifyPrio = append(f.notifyPrio, prio)
	return f.notifyErr
}

func succeed() func(context.Context) (*executor.Response, error) {
	return func(context.Context) (*executor.Response, error) {
		return &executor.Response{Success: true, Message: "ok"}, nil
	}
}

func refuse(reason string) func(context.Context) (*executor.Response, error) {
	return func(context.Context) (*executor.Response, error) {
		return &executor.Response{Success: false, Error: reason}, nil
	}
}

// memoryStore captures appended run records.
type memoryStore struct {
	mu   sync.Mutex
	runs []models.RunRecord
}

func (m *memoryStore) SaveJobState(context.Context, *models.JobState) error { return nil }
func (m *memoryStore) GetJobState(context.Context, string) (*models.JobState, error) {
	return nil, storage.ErrNotFound
}
func (m *memoryStore) GetAllJobStates(context.Context) ([]models.JobState, error) { return nil, nil }
func (m *memoryStore) RecordRun(_ context.Context, rec *models.RunRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *rec)
	return int64(len(m.runs)), nil
}
func (m *memoryStore) GetRecentRuns(context.Context, string, int) ([]models.RunRecord, error) {
	return nil, nil
}
func (m *memoryStore) Close() error { return nil }

// newTestRunner wires a runner whose backoff sleeps are recorded, not slept.
func newTestRunner(exec executor.Executor, store storage.Store) (*Runner, *[]time.Duration) {
	r := New(exec, store, zap.NewNop())
	slept := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) bool {
		*slept = append(*slept, d)
		return true
	}
	return r, slept
}

func testJob(retry *models.RetryPolicy, onFailure models.FailurePolicy) models.Job {
	return models.Job{
		Name:     "nudge",
		Strategy: models.StrategyInterval,
		Interval: &models.IntervalConfig{MinSeconds: 60, MaxSeconds: 120},
		Action: models.Action{
			Message:  "time to check in",
			Priority: models.PriorityNormal,
		},
		Enabled:   true,
		Retry:     retry,
		OnFailure: onFailure,
	}
}

func TestRetryThenSuccess(t *testing.T) {
	exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
		refuse("busy"), refuse("busy"), succeed(),
	}}
	store := &memoryStore{}
	r, slept := newTestRunner(exec, store)

	result := r.Run(context.Background(), testJob(&models.RetryPolicy{
		Attempts: 3, Backoff: models.BackoffFixed, TimeoutSeconds: 5,
	}, ""))

	assert.Equal(t, models.RunSuccess, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.NoError(t, result.Err)

	// Two fixed 1s backoffs between the three attempts.
	require.Len(t, *slept, 2)
	assert.Equal(t, time.Second, (*slept)[0])
	assert.Equal(t, time.Second, (*slept)[1])

	require.Len(t, store.runs, 1)
	rec := store.runs[0]
	assert.Equal(t, models.RunSuccess, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, rec.ScheduledAt, rec.TriggeredAt)
	assert.Nil(t, rec.Error)
	require.NotNil(t, rec.Response)
	assert.Contains(t, *rec.Response, `"success":true`)

	// Success means no failure notification.
	assert.Empty(t, exec.notifyMsgs)
}

func TestAttemptCap(t *testing.T) {
	exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
		refuse("no"), refuse("no"), refuse("no"), refuse("no"),
	}}
	store := &memoryStore{}
	r, _ := newTestRunner(exec, store)

	result := r.Run(context.Background(), testJob(&models.RetryPolicy{
		Attempts: 2, Backoff: models.BackoffFixed, TimeoutSeconds: 5,
	}, models.FailureSilent))

	assert.Equal(t, models.RunFailed, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.EqualError(t, result.Err, "no")
	assert.Equal(t, 2, exec.triggers)
}

func TestBackoffCurves(t *testing.T) {
	cases := []struct {
		kind models.BackoffKind
		want []time.Duration
	}{
		{models.BackoffFixed, []time.Duration{time.Second, time.Second}},
		{models.BackoffLinear, []time.Duration{1 * time.Second, 2 * time.Second}},
		{models.BackoffExponential, []time.Duration{2 * time.Second, 4 * time.Second}},
	}
	for _, tc := range cases {
		exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
			refuse("a"), refuse("b"), refuse("c"),
		}}
		r, slept := newTestRunner(exec, &memoryStore{})

		r.Run(context.Background(), testJob(&models.RetryPolicy{
			Attempts: 3, Backoff: tc.kind, TimeoutSeconds: 5,
		}, models.FailureSilent))

		assert.Equal(t, tc.want, *slept, "backoff %s", tc.kind)
	}
}

func TestTimeoutIsTerminal(t *testing.T) {
	calls := 0
	exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
		func(ctx context.Context) (*executor.Response, error) {
			calls++
			return nil, context.DeadlineExceeded
		},
		succeed(), // must never be reached
	}}
	store := &memoryStore{}
	r, slept := newTestRunner(exec, store)

	result := r.Run(context.Background(), testJob(&models.RetryPolicy{
		Attempts: 3, Backoff: models.BackoffFixed, TimeoutSeconds: 1,
	}, models.FailureSilent))

	assert.Equal(t, models.RunTimeout, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)

	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunTimeout, store.runs[0].Status)
}

func TestFatalErrorStopsRetries(t *testing.T) {
	exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
		func(context.Context) (*executor.Response, error) {
			return nil, &executor.FatalError{Reason: "permission denied"}
		},
		succeed(),
	}}
	r, _ := newTestRunner(exec, &memoryStore{})

	result := r.Run(context.Background(), testJob(&models.RetryPolicy{
		Attempts: 3, Backoff: models.BackoffFixed, TimeoutSeconds: 5,
	}, models.FailureSilent))

	assert.Equal(t, models.RunFailed, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.True(t, executor.IsFatal(result.Err))
}

func TestEscalateNotification(t *testing.T) {
	exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
		refuse("agent unreachable"),
	}}
	store := &memoryStore{}
	r, _ := newTestRunner(exec, store)

	result := r.Run(context.Background(), testJob(&models.RetryPolicy{
		Attempts: 1, Backoff: models.BackoffFixed, TimeoutSeconds: 5,
	}, models.FailureEscalate))

	assert.Equal(t, models.RunFailed, result.Status)
	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunFailed, store.runs[0].Status)

	require.Len(t, exec.notifyMsgs, 1)
	assert.True(t, strings.HasPrefix(exec.notifyMsgs[0], "[ESCALATE] "))
	assert.Contains(t, exec.notifyMsgs[0], "agent unreachable")
	assert.Equal(t, models.PriorityHigh, exec.notifyPrio[0])
}

func TestSilentFailureSkipsNotification(t *testing.T) {
	exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
		refuse("nope"),
	}}
	r, _ := newTestRunner(exec, &memoryStore{})

	r.Run(context.Background(), testJob(&models.RetryPolicy{
		Attempts: 1, Backoff: models.BackoffFixed, TimeoutSeconds: 5,
	}, models.FailureSilent))

	assert.Empty(t, exec.notifyMsgs)
}

func TestNotifyErrorDoesNotChangeStatus(t *testing.T) {
	exec := &scriptedExecutor{
		script:    []func(context.Context) (*executor.Response, error){refuse("down")},
		notifyErr: errors.New("notify channel down"),
	}
	store := &memoryStore{}
	r, _ := newTestRunner(exec, store)

	result := r.Run(context.Background(), testJob(&models.RetryPolicy{
		Attempts: 1, Backoff: models.BackoffFixed, TimeoutSeconds: 5,
	}, models.FailureNotify))

	assert.Equal(t, models.RunFailed, result.Status)
	require.Len(t, store.runs, 1)
	assert.Equal(t, models.RunFailed, store.runs[0].Status)
	assert.Len(t, exec.notifyMsgs, 1)
}

func TestDefaultRetryPolicyApplies(t *testing.T) {
	exec := &scriptedExecutor{script: []func(context.Context) (*executor.Response, error){
		refuse("1"), refuse("2"), refuse("3"), succeed(),
	}}
	r, slept := newTestRunner(exec, &memoryStore{})

	result := r.Run(context.Background(), testJob(nil, models.FailureSilent))

	// Default policy: 3 attempts, exponential backoff.
	assert.Equal(t, models.RunFailed, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}
