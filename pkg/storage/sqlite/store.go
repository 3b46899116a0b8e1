// Package sqlite implements storage.Store on an embedded SQLite database via
// GORM. The whole scheduler state lives in a single file: a "jobs" table
// holding per-job scheduling state and an append-only "runs" table holding
// fire history.
package sqlite

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"cronx/pkg/models"
	"cronx/pkg/storage"
)

// Store is the SQLite-backed storage.Store.
type Store struct {
	db     *gorm.DB
	closed atomic.Bool
}

// Open opens (creating if needed) the database file and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}

	if err := db.AutoMigrate(&models.JobState{}, &models.RunRecord{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	// Partial index for the due-job lookup; GORM tags can't express the
	// WHERE clause, so it is created directly.
	if err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_jobs_due ON jobs(next_run) WHERE enabled = 1",
	).Error; err != nil {
		return nil, fmt.Errorf("failed to create due index: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) guard() error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return nil
}

// SaveJobState upserts the state row by job name.
func (s *Store) SaveJobState(ctx context.Context, state *models.JobState) error {
	if err := s.guard(); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"next_run", "last_run", "enabled", "fail_count", "updated_at",
		}),
	}).Create(state)
	if result.Error != nil {
		return fmt.Errorf("failed to save state for %q: %w", state.Name, result.Error)
	}
	return nil
}

// GetJobState retrieves the state for one job.
func (s *Store) GetJobState(ctx context.Context, name string) (*models.JobState, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var state models.JobState
	result := s.db.WithContext(ctx).First(&state, "name = ?", name)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: job %q: %v", storage.ErrCorruptState, name, result.Error)
	}
	return &state, nil
}

// GetAllJobStates returns every state row sorted by name.
func (s *Store) GetAllJobStates(ctx context.Context) ([]models.JobState, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var states []models.JobState
	result := s.db.WithContext(ctx).Order("name asc").Find(&states)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list job states: %w", result.Error)
	}
	return states, nil
}

// RecordRun appends one run record and returns its id.
func (s *Store) RecordRun(ctx context.Context, rec *models.RunRecord) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to record run for %q: %w", rec.JobName, result.Error)
	}
	return rec.ID, nil
}

// GetRecentRuns returns up to limit records for a job, newest first.
func (s *Store) GetRecentRuns(ctx context.Context, name string, limit int) ([]models.RunRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var runs []models.RunRecord
	result := s.db.WithContext(ctx).
		Where("job_name = ?", name).
		Order("triggered_at desc").
		Limit(limit).
		Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list runs for %q: %w", name, result.Error)
	}
	return runs, nil
}

// Close releases the underlying connection. Repeated calls are no-ops.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
