// Package storage defines the data access layer for scheduler state and run
// history. The scheduler's control path is the only writer; implementations
// must be safe for serialized access but are not required to support
// concurrent mutators.
package storage

import (
	"context"
	"errors"

	"cronx/pkg/models"
)

var (
	// ErrNotFound is returned when a job has no persisted state.
	ErrNotFound = errors.New("record not found")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")
	// ErrCorruptState wraps an unreadable persisted record. The affected job
	// is skipped and re-initialized from its definition.
	ErrCorruptState = errors.New("corrupt job state")
)

// Store persists job states and appends run records.
type Store interface {
	// SaveJobState upserts the state by job name.
	SaveJobState(ctx context.Context, state *models.JobState) error

	// GetJobState retrieves the state for a job, or ErrNotFound.
	GetJobState(ctx context.Context, name string) (*models.JobState, error)

	// GetAllJobStates returns every persisted state, sorted by name.
	GetAllJobStates(ctx context.Context) ([]models.JobState, error)

	// RecordRun appends a run record and returns its surrogate id.
	RecordRun(ctx context.Context, rec *models.RunRecord) (int64, error)

	// GetRecentRuns returns up to limit records for a job, newest first.
	GetRecentRuns(ctx context.Context, name string, limit int) ([]models.RunRecord, error)

	// Close tears the store down. Closing twice is a no-op; any other
	// operation after Close fails with ErrClosed.
	Close() error
}
