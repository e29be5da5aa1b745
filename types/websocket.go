package types

import "time"

// ProgressMessage represents a WebSocket scan progress update
type ProgressMessage struct {
	JobID       string    `json:"jobId"`
	Type        string    `json:"type"`     // "progress", "status", "complete", "error"
	Progress    float64   `json:"progress"` // 0-100 percentage
	Status      string    `json:"status"`
	CurrentFile string    `json:"currentFile"`
	Added       int       `json:"added"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
