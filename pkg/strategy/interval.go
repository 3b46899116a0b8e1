package strategy

import (
	"math"

	"cronx/pkg/models"
	"cronx/pkg/random"
)

// Interval fires a random number of seconds after the previous run, with an
// optional multiplicative jitter. The next run is max(lastRun+d, now+d) for a
// drawn delay d, so whenever lastRun is earlier than now the result is now+d
// and a fire is never scheduled in the past.
type Interval struct {
	minSeconds float64
	maxSeconds float64
	jitter     float64
	rng        *random.Source
}

func NewInterval(cfg models.IntervalConfig, rng *random.Source) *Interval {
	return &Interval{
		minSeconds: float64(cfg.MinSeconds),
		maxSeconds: float64(cfg.MaxSeconds),
		jitter:     cfg.Jitter,
		rng:        rng,
	}
}

func (i *Interval) CalculateNextRun(lastRun *int64, now int64) int64 {
	interval := i.rng.Uniform(i.minSeconds, i.maxSeconds)
	if i.jitter > 0 {
		interval = i.rng.Jittered(interval, i.jitter)
		if interval < 0 {
			interval = 0
		}
	}
	delayMs := int64(math.Floor(interval * 1000))

	if lastRun == nil {
		return now + delayMs
	}
	next := *lastRun + delayMs
	if rebased := now + delayMs; next < rebased {
		next = rebased
	}
	return next
}
