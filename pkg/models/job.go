package models

import "time"

// JobMode distinguishes why a pipeline run was started.
type JobMode string

const (
	JobModeBatch       JobMode = "batch"
	JobModeRecalculate JobMode = "recalculate"
	JobModeSingle      JobMode = "single"
)

// Job is the snapshot of the singleton pipeline run. The zero value is the
// idle state. Counters satisfy Processed <= Total and Failed <= Processed.
type Job struct {
	Running       bool      `json:"running"`
	Mode          JobMode   `json:"mode,omitempty"`
	Total         int       `json:"total"`
	Processed     int       `json:"processed"`
	Failed        int       `json:"failed"`
	CurrentItemID string    `json:"current_item_id,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
}
