package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task has been created but not sent.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusDispatched indicates the instruction was sent but not yet confirmed running.
	TaskStatusDispatched TaskStatus = "dispatched"
	// TaskStatusRunning indicates the agent is working on the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished with a result.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the dispatch or the work itself failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusTimeout indicates no response arrived within the wait ceiling.
	TaskStatusTimeout TaskStatus = "timeout"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusDispatched, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusTimeout:
		return true
	default:
		return false
	}
}

// Terminal returns true if the task will never change state again.
// Terminal tasks are immutable; a retry creates a new task record.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusTimeout
}

// Task is one unit of work sent to exactly one agent.
type Task struct {
	// ID is the unique identifier for this task (task-NNNN).
	ID string `json:"id"`
	// AgentID is the agent this task was dispatched to.
	AgentID string `json:"agent_id"`
	// WorkspaceID is the workspace the instruction was sent to.
	WorkspaceID string `json:"workspace_id"`
	// Role is the agent's role at dispatch time (denormalized).
	Role string `json:"role"`
	// Instruction is the text sent to the workspace.
	Instruction string `json:"instruction"`
	// StageID groups this task into a parallel stage, if any.
	StageID string `json:"stage_id,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority is 1-10, higher is more important.
	Priority int `json:"priority"`
	// DispatchedAt is when the instruction was sent.
	DispatchedAt time.Time `json:"dispatched_at"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Result is the agent's response text on success.
	Result string `json:"result,omitempty"`
	// Error holds the failure or timeout reason.
	Error string `json:"error,omitempty"`
	// DependsOn lists task IDs this task declares a dependency on.
	// Dependency ordering is enforced at the stage level, not here.
	DependsOn []string `json:"depends_on,omitempty"`
	// BaselineMessageCount is the workspace message count at dispatch time,
	// used to detect the agent's new output.
	BaselineMessageCount int `json:"baseline_message_count"`
}

// Duration returns the task's wall time, or zero if it has not completed.
func (t *Task) Duration() time.Duration {
	if t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(t.DispatchedAt)
}
