package models

import "time"

// AgentStatus represents the current state of a swarm agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent is available for work.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusWorking indicates the agent has a task in flight.
	AgentStatusWorking AgentStatus = "working"
	// AgentStatusCompleted indicates the agent finished its assignment.
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusFailed indicates the agent's workspace is gone or unreachable.
	AgentStatusFailed AgentStatus = "failed"
	// AgentStatusRetired indicates the agent was retired and its workspace archived.
	AgentStatusRetired AgentStatus = "retired"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusWorking, AgentStatusCompleted,
		AgentStatusFailed, AgentStatusRetired:
		return true
	default:
		return false
	}
}

// Terminal returns true if the agent can no longer accept work.
func (s AgentStatus) Terminal() bool {
	return s == AgentStatusRetired || s == AgentStatusFailed
}

// Agent is a durable binding between a role label and one workbench workspace.
// An agent accepts at most one task at a time.
type Agent struct {
	// ID is the unique identifier for this agent (agent-NNN).
	ID string `json:"id"`
	// WorkspaceID is the backing workbench workspace.
	WorkspaceID string `json:"workspace_id"`
	// Role is the free-form specialist role (e.g. "react-ui", "go-backend").
	Role string `json:"role"`
	// SystemPrompt is the optional specialization prompt primed into the workspace.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Status is the current state of the agent.
	Status AgentStatus `json:"status"`
	// SpawnedAt is when the agent was created.
	SpawnedAt time.Time `json:"spawned_at"`
	// LastActiveAt is the last time the agent dispatched or finished work.
	LastActiveAt time.Time `json:"last_active_at"`
	// TasksCompleted counts successfully completed tasks.
	TasksCompleted int `json:"tasks_completed"`
	// CurrentTaskID is set iff Status is working.
	CurrentTaskID string `json:"current_task_id,omitempty"`
}
