// Package scheduler owns one timer per job and drives the fire cycle: wake at
// the time the job's strategy picked, run the job through the runner, advance
// the persisted state, re-arm. Different jobs fire in parallel; within one job
// the timer is re-armed only after the fire completes, so at most one fire per
// job is ever in flight.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cronx/pkg/metrics"
	"cronx/pkg/models"
	"cronx/pkg/runner"
	"cronx/pkg/storage"
	"cronx/pkg/strategy"
)

// prober is the extra surface of the probabilistic strategy: the scheduler
// asks it on every wake-up whether this one actually fires.
type prober interface {
	ShouldRun() bool
	NextCheckTime(now int64) int64
}

// entry bundles everything the scheduler tracks per job.
type entry struct {
	job   models.Job
	strat strategy.Strategy
	state *models.JobState
	timer *time.Timer
}

// JobStatus is one row of the status snapshot. Timestamps are absolute
// millisecond Unix times.
type JobStatus struct {
	Name      string `json:"name"`
	NextRun   *int64 `json:"next_run"`
	LastRun   *int64 `json:"last_run"`
	Enabled   bool   `json:"enabled"`
	FailCount int    `json:"fail_count"`
}

// Scheduler conducts all registered jobs.
type Scheduler struct {
	store  storage.Store
	runner *runner.Runner
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	// fireCtx is the caller's context, deliberately not cancelled by Stop:
	// an in-flight fire must be allowed to complete.
	fireCtx context.Context

	// Overridable in tests.
	now func() time.Time
}

// New creates a Scheduler. Jobs are registered with Add before Start.
func New(store storage.Store, r *runner.Runner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		runner:  r,
		logger:  logger,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Add registers a job with its strategy. Jobs cannot be added while the
// scheduler is running.
func (s *Scheduler) Add(job models.Job, strat strategy.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("cannot add jobs to a running scheduler")
	}
	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	s.entries[job.Name] = &entry{job: job, strat: strat}
	s.order = append(s.order, job.Name)
	return nil
}

// Start loads or initializes every job's state and arms a timer for each
// enabled job. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.fireCtx = ctx
	s.running = true

	enabled := 0
	for _, name := range s.order {
		e := s.entries[name]
		if err := s.loadState(e); err != nil {
			s.running = false
			s.cancel()
			return err
		}
		if e.state.Enabled {
			enabled++
			s.arm(e)
		}
	}
	metrics.JobsEnabled.Set(float64(enabled))

	s.logger.Info("scheduler started",
		zap.Int("jobs", len(s.order)),
		zap.Int("enabled", enabled),
	)
	return nil
}

// loadState fetches or initializes the state for one entry. Must be called
// with mu held. A corrupt record is logged and replaced by a fresh state; a
// stale next-run left behind by a crash is recomputed from the current time
// rather than fired retroactively.
func (s *Scheduler) loadState(e *entry) error {
	nowMs := s.now().UnixMilli()

	state, err := s.store.GetJobState(s.ctx, e.job.Name)
	switch {
	case err == nil:
		// The job definition is the source of truth for the enabled flag.
		state.Enabled = e.job.Enabled
		if state.NextRun == nil || *state.NextRun <= nowMs {
			// A stale or missing next run (crash, long downtime) is not made
			// up; the strategy picks a fresh one from the current time.
			next := e.strat.CalculateNextRun(state.LastRun, nowMs)
			state.NextRun = &next
		}
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrCorruptState):
		if errors.Is(err, storage.ErrCorruptState) {
			s.logger.Warn("discarding corrupt job state",
				zap.String("job", e.job.Name),
				zap.Error(err),
			)
		}
		next := e.strat.CalculateNextRun(nil, nowMs)
		state = &models.JobState{
			Name:    e.job.Name,
			Enabled: e.job.Enabled,
			NextRun: &next,
		}
	default:
		return fmt.Errorf("failed to load state for %q: %w", e.job.Name, err)
	}

	if !state.Enabled {
		state.NextRun = nil
	}

	e.state = state
	if err := s.store.SaveJobState(s.ctx, state); err != nil {
		return fmt.Errorf("failed to persist state for %q: %w", e.job.Name, err)
	}
	return nil
}

// Stop cancels all timers, persists the state map, and marks the scheduler
// stopped. In-flight fires are allowed to complete; their re-arm no-ops.
// Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	for _, name := range s.order {
		e := s.entries[name]
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		if e.state != nil {
			if err := s.store.SaveJobState(context.Background(), e.state); err != nil {
				s.logger.Error("failed to persist state on stop",
					zap.String("job", name),
					zap.Error(err),
				)
			}
		}
	}
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// Status returns a snapshot of every job in insertion order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		st := JobStatus{Name: name, Enabled: e.job.Enabled}
		if e.state != nil {
			st.NextRun = copyTs(e.state.NextRun)
			st.LastRun = copyTs(e.state.LastRun)
			st.Enabled = e.state.Enabled
			st.FailCount = e.state.FailCount
		}
		out = append(out, st)
	}
	return out
}

// arm schedules the next wake-up for an entry. Must be called with mu held
// and a non-nil state.
func (s *Scheduler) arm(e *entry) {
	name := e.job.Name
	delay := time.Duration(0)
	if e.state.NextRun != nil {
		if d := *e.state.NextRun - s.now().UnixMilli(); d > 0 {
			delay = time.Duration(d) * time.Millisecond
		}
	}
	e.timer = time.AfterFunc(delay, func() { s.executeJob(name) })
}

// executeJob is the timer callback: it decides (for probabilistic jobs)
// whether to fire, runs the job, advances the state, and re-arms. Any panic
// escaping the runner is recovered and treated as a failed fire.
func (s *Scheduler) executeJob(name string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return
	}

	nowMs := s.now().UnixMilli()
	if e.state.NextRun != nil && nowMs > *e.state.NextRun {
		metrics.RecordWakeup(float64(nowMs-*e.state.NextRun) / 1000)
	}

	// Probabilistic jobs flip their coin before anything runs; a declined
	// wake-up just advances the cadence.
	if p, ok := e.strat.(prober); ok && !p.ShouldRun() {
		next := p.NextCheckTime(nowMs)
		e.state.NextRun = &next
		s.persistLocked(e)
		metrics.ProbabilisticSkips.WithLabelValues(name).Inc()
		s.arm(e)
		s.mu.Unlock()
		return
	}

	job := e.job
	ctx := s.fireCtx
	s.mu.Unlock()

	result := s.runFire(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		// Stopped while the fire was in flight; Stop already persisted the
		// state snapshot and the re-arm must not happen.
		return
	}

	last := s.now().UnixMilli()
	e.state.LastRun = &last
	if result.Status == models.RunSuccess {
		e.state.FailCount = 0
	} else {
		e.state.FailCount++
	}
	next := e.strat.CalculateNextRun(e.state.LastRun, s.now().UnixMilli())
	e.state.NextRun = &next
	s.persistLocked(e)

	if s.running && e.state.Enabled {
		s.arm(e)
	}
}

// runFire invokes the runner with panic isolation: one misbehaving executor
// must never take the scheduler down.
func (s *Scheduler) runFire(ctx context.Context, job models.Job) (result runner.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fire panicked",
				zap.String("job", job.Name),
				zap.Any("panic", r),
			)
			result = runner.Result{
				Status:   models.RunFailed,
				Attempts: 1,
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return s.runner.Run(ctx, job)
}

// persistLocked saves an entry's state; persistence failures are logged, the
// cadence continues from memory. Must be called with mu held.
func (s *Scheduler) persistLocked(e *entry) {
	if err := s.store.SaveJobState(context.Background(), e.state); err != nil {
		s.logger.Error("failed to persist job state",
			zap.String("job", e.job.Name),
			zap.Error(err),
		)
	}
}

func copyTs(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
