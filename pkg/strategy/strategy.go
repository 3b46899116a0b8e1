// Package strategy implements the three scheduling rules that decide when a
// job fires next: a daily time-of-day window, a randomized interval, and a
// probabilistic coin-flip on a fixed check cadence. Strategies are pure with
// respect to time: they take the last run and the current time as millisecond
// Unix timestamps and return the next one.
package strategy

import (
	"fmt"

	"cronx/pkg/models"
	"cronx/pkg/random"
)

// Strategy computes the next fire time for a job.
type Strategy interface {
	// CalculateNextRun returns the next fire timestamp in ms since epoch.
	// lastRun is nil when the job has never fired.
	CalculateNextRun(lastRun *int64, now int64) int64
}

// New builds the strategy for a validated job. tz is the IANA timezone used by
// window strategies; rng must be owned exclusively by the returned strategy.
func New(job models.Job, tz string, rng *random.Source) (Strategy, error) {
	switch job.Strategy {
	case models.StrategyWindow:
		return NewWindow(*job.Window, tz, rng)
	case models.StrategyInterval:
		return NewInterval(*job.Interval, rng), nil
	case models.StrategyProbabilistic:
		return NewProbabilistic(*job.Probabilistic, rng), nil
	default:
		return nil, fmt.Errorf("job %q: unknown strategy %q", job.Name, job.Strategy)
	}
}
