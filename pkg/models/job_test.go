package models

import (
	"strings"
	"testing"
)

func validWindowJob() Job {
	return Job{
		Name:     "morning",
		Strategy: StrategyWindow,
		Window:   &WindowConfig{Start: "09:00", End: "17:00", Distribution: DistWeighted},
		Action:   Action{Message: "check in", Priority: PriorityNormal},
		Enabled:  true,
	}
}

func TestValidateAcceptsEachStrategy(t *testing.T) {
	jobs := []Job{
		validWindowJob(),
		{
			Name:     "poke",
			Strategy: StrategyInterval,
			Interval: &IntervalConfig{MinSeconds: 1, MaxSeconds: 1},
			Action:   Action{Message: "hi"},
		},
		{
			Name:          "maybe",
			Strategy:      StrategyProbabilistic,
			Probabilistic: &ProbabilisticConfig{CheckIntervalSeconds: 60, Probability: 0.5},
			Action:        Action{Message: "hi", Priority: PriorityLow},
			Retry:         &RetryPolicy{Attempts: 1, Backoff: BackoffFixed, TimeoutSeconds: 10},
			OnFailure:     FailureEscalate,
		},
	}
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			t.Errorf("job %q: unexpected error: %v", j.Name, err)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Job)
		wantSub string
	}{
		{"empty name", func(j *Job) { j.Name = "" }, "name is required"},
		{"empty message", func(j *Job) { j.Action.Message = "" }, "message is required"},
		{"bad priority", func(j *Job) { j.Action.Priority = "urgent" }, "invalid priority"},
		{"bad on_failure", func(j *Job) { j.OnFailure = "page" }, "invalid on_failure"},
		{"bad start", func(j *Job) { j.Window.Start = "24:00" }, "invalid window start"},
		{"bad end", func(j *Job) { j.Window.End = "9:5" }, "invalid window end"},
		{"bad distribution", func(j *Job) { j.Window.Distribution = "bimodal" }, "invalid distribution"},
		{"missing block", func(j *Job) { j.Window = nil }, "requires a window block"},
		{"unknown strategy", func(j *Job) { j.Strategy = "lunar" }, "unknown strategy"},
		{"zero retry attempts", func(j *Job) { j.Retry = &RetryPolicy{Attempts: 0, TimeoutSeconds: 5} }, "attempts must be"},
		{"zero retry timeout", func(j *Job) { j.Retry = &RetryPolicy{Attempts: 1, TimeoutSeconds: 0} }, "timeout must be"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := validWindowJob()
			tc.mutate(&j)
			err := j.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidateIntervalBounds(t *testing.T) {
	j := Job{
		Name:     "poke",
		Strategy: StrategyInterval,
		Interval: &IntervalConfig{MinSeconds: 0, MaxSeconds: 10},
		Action:   Action{Message: "hi"},
	}
	if err := j.Validate(); err == nil {
		t.Error("min below 1 must fail")
	}
	j.Interval = &IntervalConfig{MinSeconds: 20, MaxSeconds: 10}
	if err := j.Validate(); err == nil {
		t.Error("max below min must fail")
	}
	j.Interval = &IntervalConfig{MinSeconds: 10, MaxSeconds: 20, Jitter: 1.2}
	if err := j.Validate(); err == nil {
		t.Error("jitter above 1 must fail")
	}
}

func TestValidateProbabilisticBounds(t *testing.T) {
	j := Job{
		Name:          "maybe",
		Strategy:      StrategyProbabilistic,
		Probabilistic: &ProbabilisticConfig{CheckIntervalSeconds: 0, Probability: 0.5},
		Action:        Action{Message: "hi"},
	}
	if err := j.Validate(); err == nil {
		t.Error("check_interval below 1 must fail")
	}
	j.Probabilistic = &ProbabilisticConfig{CheckIntervalSeconds: 60, Probability: -0.1}
	if err := j.Validate(); err == nil {
		t.Error("negative probability must fail")
	}
}

func TestRetryOrDefault(t *testing.T) {
	j := Job{}
	got := j.RetryOrDefault()
	if got.Attempts != 3 || got.Backoff != BackoffExponential || got.TimeoutSeconds != 30 {
		t.Errorf("unexpected default policy: %+v", got)
	}

	j.Retry = &RetryPolicy{Attempts: 2, TimeoutSeconds: 5}
	got = j.RetryOrDefault()
	if got.Backoff != BackoffExponential {
		t.Errorf("empty backoff should default to exponential, got %q", got.Backoff)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts overridden: %d", got.Attempts)
	}
}
