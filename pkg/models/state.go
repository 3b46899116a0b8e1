package models

import "encoding/json"

// JobState is the persisted, mutable scheduling state of a job.
// NextRun and LastRun are millisecond Unix timestamps; NextRun is nil only for
// a job that has never been scheduled or is disabled.
type JobState struct {
	Name      string `json:"name" gorm:"primaryKey"`
	NextRun   *int64 `json:"next_run" gorm:"column:next_run"`
	LastRun   *int64 `json:"last_run" gorm:"column:last_run"`
	Enabled   bool   `json:"enabled" gorm:"not null"`
	FailCount int    `json:"fail_count" gorm:"not null;default:0"`
	CreatedAt int64  `json:"created_at" gorm:"autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"autoUpdateTime:milli"`
}

// TableName pins the table used in the embedded database.
func (JobState) TableName() string { return "jobs" }

// RunStatus is the outcome of a single fire.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunTimeout RunStatus = "timeout"
)

// RunRecord is one append-only entry in the run history. ScheduledAt is the
// timestamp the scheduler intended to fire; TriggeredAt is when the runner
// actually started. The runner currently records them equal.
type RunRecord struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	JobName     string    `json:"job_name" gorm:"not null;index:idx_runs_job_triggered,priority:1"`
	ScheduledAt int64     `json:"scheduled_at" gorm:"not null"`
	TriggeredAt int64     `json:"triggered_at" gorm:"not null;index:idx_runs_job_triggered,priority:2"`
	CompletedAt int64     `json:"completed_at" gorm:"not null"`
	DurationMs  int64     `json:"duration_ms" gorm:"not null"`
	Status      RunStatus `json:"status" gorm:"type:varchar(16);not null"`
	Response    *string   `json:"response"`
	Error       *string   `json:"error"`
	Attempts    int       `json:"attempts" gorm:"not null;default:0"`
}

// TableName pins the table used in the embedded database.
func (RunRecord) TableName() string { return "runs" }

// DecodedResponse parses the stored response body back into its original
// shape. Bodies that are not valid JSON come back as the raw string.
func (r *RunRecord) DecodedResponse() any {
	if r.Response == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(*r.Response), &v); err != nil {
		return *r.Response
	}
	return v
}
