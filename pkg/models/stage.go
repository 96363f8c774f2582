package models

import "time"

// StageStatus represents the current state of a stage.
type StageStatus string

const (
	// StageStatusPending indicates the stage has not started dispatching.
	StageStatusPending StageStatus = "pending"
	// StageStatusRunning indicates member tasks are in flight.
	StageStatusRunning StageStatus = "running"
	// StageStatusCompleted indicates all members are terminal and at least one succeeded.
	StageStatusCompleted StageStatus = "completed"
	// StageStatusFailed indicates all members are terminal and none succeeded.
	StageStatusFailed StageStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s StageStatus) Valid() bool {
	switch s {
	case StageStatusPending, StageStatusRunning, StageStatusCompleted, StageStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the stage has concluded.
func (s StageStatus) Terminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailed
}

// Stage is a named group of tasks meant to run concurrently, optionally
// gated on other stages completing first.
type Stage struct {
	// ID is the unique identifier for this stage (stage-NN).
	ID string `json:"id"`
	// Name is the human-readable stage name (e.g. "implementation").
	Name string `json:"name"`
	// Status is the current state of the stage.
	Status StageStatus `json:"status"`
	// TaskIDs lists the member tasks.
	TaskIDs []string `json:"task_ids"`
	// DependsOn lists stage IDs that must be completed before this stage starts.
	DependsOn []string `json:"depends_on"`
	// StartedAt is when dispatching began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the stage concluded.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// CriticalPath is the longest member task duration, measured at rollup.
	CriticalPath time.Duration `json:"critical_path_ms,omitempty"`
}
