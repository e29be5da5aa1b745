package types

import "time"

// JobStatus represents the current status of a scan job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ScanJob represents a folder import in the queue
type ScanJob struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Root        string     `json:"root"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	Added       int        `json:"added"`
	Skipped     int        `json:"skipped"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
