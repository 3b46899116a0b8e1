// Package jobfile loads job definitions from a YAML file and turns them into
// validated models.Job values. It is the only producer of jobs; everything
// past this boundary assumes validation already happened (and re-asserts it).
package jobfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cronx/pkg/models"
)

// File is the parsed job file: global scheduling settings plus the job list.
type File struct {
	Timezone string       `yaml:"timezone"`
	Seed     string       `yaml:"seed"`
	Jobs     []models.Job `yaml:"-"`
}

// rawFile mirrors File for decoding; jobs carry an optional enabled flag that
// defaults to true, which the models.Job bool cannot express on its own.
type rawFile struct {
	Timezone string   `yaml:"timezone"`
	Seed     string   `yaml:"seed"`
	Jobs     []rawJob `yaml:"jobs"`
}

type rawJob struct {
	Name          string                      `yaml:"name"`
	Strategy      models.StrategyType         `yaml:"strategy"`
	Window        *models.WindowConfig        `yaml:"window"`
	Interval      *models.IntervalConfig      `yaml:"interval"`
	Probabilistic *models.ProbabilisticConfig `yaml:"probabilistic"`
	Action        models.Action               `yaml:"action"`
	Enabled       *bool                       `yaml:"enabled"`
	Retry         *models.RetryPolicy         `yaml:"retry"`
	OnFailure     models.FailurePolicy        `yaml:"on_failure"`
	Delivery      *models.Delivery            `yaml:"delivery"`
}

func (r rawJob) toJob() models.Job {
	return models.Job{
		Name:          r.Name,
		Strategy:      r.Strategy,
		Window:        r.Window,
		Interval:      r.Interval,
		Probabilistic: r.Probabilistic,
		Action:        r.Action,
		Enabled:       r.Enabled == nil || *r.Enabled,
		Retry:         r.Retry,
		OnFailure:     r.OnFailure,
		Delivery:      r.Delivery,
	}
}

// Load reads and validates a job file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates job file contents.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}

	f := &File{
		Timezone: raw.Timezone,
		Seed:     raw.Seed,
	}
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(f.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", f.Timezone, err)
	}

	seen := make(map[string]bool, len(raw.Jobs))
	for i, rj := range raw.Jobs {
		job := rj.toJob()
		if job.Action.Priority == "" {
			job.Action.Priority = models.PriorityNormal
		}
		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		if seen[job.Name] {
			return nil, fmt.Errorf("duplicate job name %q", job.Name)
		}
		seen[job.Name] = true
		f.Jobs = append(f.Jobs, job)
	}

	if len(f.Jobs) == 0 {
		return nil, fmt.Errorf("job file defines no jobs")
	}
	return f, nil
}
