package swarm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/swarmbench/swarmbench/internal/store"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// RetryResult describes the outcome of a retry request: either a fresh task
// was dispatched, or the original was parked in the dead-letter queue.
type RetryResult struct {
	// DeadLettered is true when the retry budget was exhausted.
	DeadLettered bool              `json:"dead_lettered"`
	Attempt      int               `json:"attempt,omitempty"`
	MaxRetries   int               `json:"max_retries"`
	NewTaskID    string            `json:"new_task_id,omitempty"`
	AgentID      string            `json:"agent_id,omitempty"`
	Role         string            `json:"role,omitempty"`
	Status       models.TaskStatus `json:"status,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// RetryTask re-dispatches a terminal task as a brand-new task record, on the
// same or a different agent. Once the per-original-task retry counter reaches
// maxRetries the task is moved to the dead-letter queue instead and no
// further automatic retries occur for that id. maxRetries <= 0 uses the
// engine default.
func (e *Engine) RetryTask(ctx context.Context, taskID, targetAgentID string, maxRetries int) (*RetryResult, error) {
	if maxRetries <= 0 {
		maxRetries = e.maxRetries
	}

	task, ok := e.store.GetTask(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !task.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s (status: %s)", ErrTaskNotTerminal, taskID, task.Status)
	}

	count := e.store.RetryCount(taskID)
	if count >= maxRetries {
		e.store.AddDeadLetter(store.DeadLetter{
			TaskID:      taskID,
			Instruction: task.Instruction,
			Role:        task.Role,
			Error:       task.Error,
			Retries:     count,
			FailedAt:    task.CompletedAt,
		})
		e.journal.Record("task", taskID, "dead-lettered", fmt.Sprintf("after %d retries", count))
		e.persist()
		return &RetryResult{DeadLettered: true, Attempt: count, MaxRetries: maxRetries}, nil
	}

	agentID := targetAgentID
	if agentID == "" {
		agentID = task.AgentID
	}
	agent, ok := e.store.GetAgent(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if agent.Status == models.AgentStatusWorking {
		return nil, fmt.Errorf("%w: %s", ErrAgentBusy, agentID)
	}

	attempt := count + 1
	newTaskID := e.store.NextTaskID()

	baseline, err := e.client.MessageCount(ctx, agent.WorkspaceID)
	if err != nil {
		baseline = 0
	}

	message := fmt.Sprintf("[RETRY %d/%d] %s", attempt, maxRetries, task.Instruction)
	if task.Error != "" {
		message += fmt.Sprintf("\n\n[Previous attempt failed: %s]", task.Error)
	}
	message = e.prefixSharedContext(message)

	newTask := models.Task{
		ID:                   newTaskID,
		AgentID:              agentID,
		WorkspaceID:          agent.WorkspaceID,
		Role:                 agent.Role,
		Instruction:          task.Instruction,
		StageID:              task.StageID,
		Status:               models.TaskStatusRunning,
		Priority:             task.Priority,
		DispatchedAt:         time.Now(),
		BaselineMessageCount: baseline,
	}

	sendErr := e.client.SendMessage(ctx, agent.WorkspaceID, message)
	if sendErr != nil {
		newTask.Status = models.TaskStatusFailed
		newTask.Error = sendErr.Error()
	}
	e.store.PutTask(&newTask)

	if sendErr == nil {
		e.store.UpdateAgent(agentID, func(a *models.Agent) {
			a.Status = models.AgentStatusWorking
			a.CurrentTaskID = newTaskID
			a.LastActiveAt = time.Now()
		})
		e.startWatcher(newTaskID)
	}

	e.store.SetRetryCount(taskID, attempt)
	e.journal.Record("task", newTaskID, "retry-dispatched", fmt.Sprintf("attempt %d/%d of %s", attempt, maxRetries, taskID))
	e.persist()

	return &RetryResult{
		Attempt:    attempt,
		MaxRetries: maxRetries,
		NewTaskID:  newTaskID,
		AgentID:    agentID,
		Role:       agent.Role,
		Status:     newTask.Status,
		Error:      newTask.Error,
	}, nil
}

// prefixSharedContext prepends shared memory as a context block without the
// task header, for retry messages that carry their own annotation.
func (e *Engine) prefixSharedContext(message string) string {
	mem := e.store.UserMemory()
	if len(mem) == 0 {
		return message
	}
	var lines []string
	for _, k := range store.UserMemoryKeys(mem) {
		lines = append(lines, fmt.Sprintf("[%s]: %s", k, mem[k]))
	}
	return fmt.Sprintf("[SHARED CONTEXT]\n%s\n\n%s", strings.Join(lines, "\n"), message)
}

// ListDeadLetters enumerates the dead-letter queue, sorted by task id.
func (e *Engine) ListDeadLetters() []store.DeadLetter {
	return e.store.DeadLetters()
}
