package strategy

import (
	"cronx/pkg/models"
	"cronx/pkg/random"
)

// Probabilistic wakes on a fixed check cadence and fires with a configured
// probability on each wake-up. The scheduler calls ShouldRun when the timer
// fires; CalculateNextRun only advances the check cadence.
type Probabilistic struct {
	checkIntervalSeconds int
	probability          float64
	rng                  *random.Source
}

func NewProbabilistic(cfg models.ProbabilisticConfig, rng *random.Source) *Probabilistic {
	return &Probabilistic{
		checkIntervalSeconds: cfg.CheckIntervalSeconds,
		probability:          cfg.Probability,
		rng:                  rng,
	}
}

// ShouldRun reports whether this wake-up fires. The degenerate probabilities
// short-circuit without consuming a draw, keeping seeded sequences stable.
func (p *Probabilistic) ShouldRun() bool {
	if p.probability <= 0 {
		return false
	}
	if p.probability >= 1 {
		return true
	}
	return p.rng.Float64() < p.probability
}

// NextCheckTime returns the next wake-up timestamp in ms since epoch.
func (p *Probabilistic) NextCheckTime(now int64) int64 {
	return now + int64(p.checkIntervalSeconds)*1000
}

func (p *Probabilistic) CalculateNextRun(_ *int64, now int64) int64 {
	return p.NextCheckTime(now)
}
