package domain

import "time"

// JobStatus represents the status of a batch job.
// Values include JobStatusPending, JobStatusRunning, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// BatchJob records one tagging run over a date window.
type BatchJob struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	SourceID       string     `gorm:"type:text;not null;index" json:"source_id"`
	WindowStart    string     `gorm:"type:text" json:"window_start"`
	WindowEnd      string     `gorm:"type:text;index" json:"window_end"`
	Status         JobStatus  `gorm:"default:pending" json:"status"`
	TotalItems     int        `gorm:"default:0" json:"total_items"`
	SucceededItems int        `gorm:"default:0" json:"succeeded_items"`
	PartialItems   int        `gorm:"default:0" json:"partial_items"`
	FailedItems    int        `gorm:"default:0" json:"failed_items"`
	ExportPath     string     `json:"export_path,omitempty"`
	ExportURL      string     `json:"export_url,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorLog       string     `json:"error_log,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for BatchJob.
func (BatchJob) TableName() string {
	return "batch_jobs"
}
