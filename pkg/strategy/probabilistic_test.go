package strategy

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronx/pkg/models"
	"cronx/pkg/random"
)

func TestShouldRunConverges(t *testing.T) {
	const trials = 2000
	for _, p := range []float64{0.1, 0.3, 0.5, 0.9} {
		s := NewProbabilistic(models.ProbabilisticConfig{
			CheckIntervalSeconds: 60,
			Probability:          p,
		}, random.New(fmt.Sprintf("conv-%.1f", p)))

		hits := 0
		for i := 0; i < trials; i++ {
			if s.ShouldRun() {
				hits++
			}
		}
		rate := float64(hits) / trials
		assert.LessOrEqual(t, math.Abs(rate-p), 0.05, "p=%.1f produced rate %.3f", p, rate)
	}
}

func TestShouldRunEdgesConsumeNoDraw(t *testing.T) {
	// A degenerate probability must not touch the generator, so the sequence
	// observed afterwards matches a fresh source with the same seed.
	for _, p := range []float64{0, 1} {
		s := NewProbabilistic(models.ProbabilisticConfig{
			CheckIntervalSeconds: 60,
			Probability:          p,
		}, random.New("edge"))

		want := p >= 1
		for i := 0; i < 100; i++ {
			require.Equal(t, want, s.ShouldRun())
		}
		require.Equal(t, random.New("edge").Float64(), s.rng.Float64())
	}
}

func TestNextCheckTime(t *testing.T) {
	s := NewProbabilistic(models.ProbabilisticConfig{
		CheckIntervalSeconds: 60,
		Probability:          0.5,
	}, random.New(""))

	now := int64(1_700_000_000_000)
	assert.Equal(t, now+60_000, s.NextCheckTime(now))
	assert.Equal(t, s.NextCheckTime(now), s.CalculateNextRun(nil, now))
}
