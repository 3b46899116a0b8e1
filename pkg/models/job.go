package models

import (
	"fmt"
	"regexp"
	"time"
)

// StrategyType selects the scheduling rule for a job.
type StrategyType string

const (
	StrategyWindow        StrategyType = "window"
	StrategyInterval      StrategyType = "interval"
	StrategyProbabilistic StrategyType = "probabilistic"
)

// Distribution selects how the window strategy spreads fires inside the window.
type Distribution string

const (
	DistUniform  Distribution = "uniform"
	DistGaussian Distribution = "gaussian"
	DistWeighted Distribution = "weighted"
)

// Priority is the urgency hint passed to the executor.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// BackoffKind selects the delay curve between retry attempts.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// FailurePolicy controls what happens after a fire ends without success.
type FailurePolicy string

const (
	FailureNotify   FailurePolicy = "notify"
	FailureSilent   FailurePolicy = "silent"
	FailureEscalate FailurePolicy = "escalate"
)

// WindowConfig schedules fires at random points inside a [start, end]
// time-of-day window. Times are "HH:MM" wall-clock in the configured IANA timezone; the
// window spans midnight when end <= start.
type WindowConfig struct {
	Start        string       `json:"start" yaml:"start"`
	End          string       `json:"end" yaml:"end"`
	Distribution Distribution `json:"distribution" yaml:"distribution"`
}

// IntervalConfig schedules fires a random number of seconds apart, optionally
// perturbed by a multiplicative jitter in [0, 1].
type IntervalConfig struct {
	MinSeconds int     `json:"min" yaml:"min"`
	MaxSeconds int     `json:"max" yaml:"max"`
	Jitter     float64 `json:"jitter" yaml:"jitter"`
}

// ProbabilisticConfig wakes every check interval and fires with the given
// probability on each wake-up.
type ProbabilisticConfig struct {
	CheckIntervalSeconds int     `json:"check_interval" yaml:"check_interval"`
	Probability          float64 `json:"probability" yaml:"probability"`
}

// RetryPolicy bounds the executor attempts made within a single fire.
type RetryPolicy struct {
	Attempts       int         `json:"attempts" yaml:"attempts"`
	Backoff        BackoffKind `json:"backoff" yaml:"backoff"`
	TimeoutSeconds int         `json:"timeout" yaml:"timeout"`
}

// DefaultRetryPolicy is applied when a job carries no retry block.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		Backoff:        BackoffExponential,
		TimeoutSeconds: 30,
	}
}

// Timeout returns the per-attempt deadline as a duration.
func (r RetryPolicy) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Action is the message handed to the executor when the job fires.
type Action struct {
	Message  string   `json:"message" yaml:"message"`
	Priority Priority `json:"priority" yaml:"priority"`
}

// Delivery carries opaque hints forwarded to the executor unchanged.
type Delivery struct {
	Recipient string `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	Thinking  string `json:"thinking,omitempty" yaml:"thinking,omitempty"`
}

// Job is the immutable definition of one scheduled nudge. Jobs are produced by
// the config loader and never mutated after validation; all mutable scheduling
// state lives in JobState.
type Job struct {
	Name          string               `json:"name" yaml:"name"`
	Strategy      StrategyType         `json:"strategy" yaml:"strategy"`
	Window        *WindowConfig        `json:"window,omitempty" yaml:"window,omitempty"`
	Interval      *IntervalConfig      `json:"interval,omitempty" yaml:"interval,omitempty"`
	Probabilistic *ProbabilisticConfig `json:"probabilistic,omitempty" yaml:"probabilistic,omitempty"`
	Action        Action               `json:"action" yaml:"action"`
	Enabled       bool                 `json:"enabled" yaml:"enabled"`
	Retry         *RetryPolicy         `json:"retry,omitempty" yaml:"retry,omitempty"`
	OnFailure     FailurePolicy        `json:"on_failure,omitempty" yaml:"on_failure,omitempty"`
	Delivery      *Delivery            `json:"delivery,omitempty" yaml:"delivery,omitempty"`
}

// timeOfDayRe matches "H:MM" and "HH:MM" wall-clock times.
var timeOfDayRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// Validate re-asserts the invariants the config loader is expected to enforce.
// A Job that fails validation must never reach the scheduler.
func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if j.Action.Message == "" {
		return fmt.Errorf("job %q: action message is required", j.Name)
	}
	switch j.Action.Priority {
	case "", PriorityLow, PriorityNormal, PriorityHigh:
	default:
		return fmt.Errorf("job %q: invalid priority %q", j.Name, j.Action.Priority)
	}
	switch j.OnFailure {
	case "", FailureNotify, FailureSilent, FailureEscalate:
	default:
		return fmt.Errorf("job %q: invalid on_failure %q", j.Name, j.OnFailure)
	}
	if j.Retry != nil {
		if j.Retry.Attempts < 1 {
			return fmt.Errorf("job %q: retry attempts must be >= 1", j.Name)
		}
		switch j.Retry.Backoff {
		case "", BackoffFixed, BackoffLinear, BackoffExponential:
		default:
			return fmt.Errorf("job %q: invalid backoff %q", j.Name, j.Retry.Backoff)
		}
		if j.Retry.TimeoutSeconds < 1 {
			return fmt.Errorf("job %q: retry timeout must be >= 1s", j.Name)
		}
	}

	switch j.Strategy {
	case StrategyWindow:
		if j.Window == nil {
			return fmt.Errorf("job %q: window strategy requires a window block", j.Name)
		}
		if !timeOfDayRe.MatchString(j.Window.Start) {
			return fmt.Errorf("job %q: invalid window start %q", j.Name, j.Window.Start)
		}
		if !timeOfDayRe.MatchString(j.Window.End) {
			return fmt.Errorf("job %q: invalid window end %q", j.Name, j.Window.End)
		}
		switch j.Window.Distribution {
		case "", DistUniform, DistGaussian, DistWeighted:
		default:
			return fmt.Errorf("job %q: invalid distribution %q", j.Name, j.Window.Distribution)
		}
	case StrategyInterval:
		if j.Interval == nil {
			return fmt.Errorf("job %q: interval strategy requires an interval block", j.Name)
		}
		if j.Interval.MinSeconds < 1 {
			return fmt.Errorf("job %q: interval min must be >= 1", j.Name)
		}
		if j.Interval.MaxSeconds < j.Interval.MinSeconds {
			return fmt.Errorf("job %q: interval max must be >= min", j.Name)
		}
		if j.Interval.Jitter < 0 || j.Interval.Jitter > 1 {
			return fmt.Errorf("job %q: jitter must be in [0, 1]", j.Name)
		}
	case StrategyProbabilistic:
		if j.Probabilistic == nil {
			return fmt.Errorf("job %q: probabilistic strategy requires a probabilistic block", j.Name)
		}
		if j.Probabilistic.CheckIntervalSeconds < 1 {
			return fmt.Errorf("job %q: check_interval must be >= 1", j.Name)
		}
		if j.Probabilistic.Probability < 0 || j.Probabilistic.Probability > 1 {
			return fmt.Errorf("job %q: probability must be in [0, 1]", j.Name)
		}
	default:
		return fmt.Errorf("job %q: unknown strategy %q", j.Name, j.Strategy)
	}
	return nil
}

// RetryOrDefault returns the job's retry policy, falling back to the defaults.
func (j *Job) RetryOrDefault() RetryPolicy {
	if j.Retry == nil {
		return DefaultRetryPolicy()
	}
	p := *j.Retry
	if p.Backoff == "" {
		p.Backoff = BackoffExponential
	}
	return p
}
