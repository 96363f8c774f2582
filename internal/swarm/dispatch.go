package swarm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/swarmbench/swarmbench/internal/graph"
	"github.com/swarmbench/swarmbench/internal/store"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// DispatchResult describes a single-task dispatch.
type DispatchResult struct {
	TaskID  string            `json:"task_id"`
	AgentID string            `json:"agent_id"`
	Role    string            `json:"role"`
	Status  models.TaskStatus `json:"status"`
	Error   string            `json:"error,omitempty"`
}

// Dispatch sends one instruction to an agent and returns immediately; a
// completion watcher tracks the response in the background. Shared memory is
// injected as a context block ahead of the instruction. A send failure is
// recorded as a failed task, not returned as an error.
func (e *Engine) Dispatch(ctx context.Context, agentID, instruction string, priority int) (*DispatchResult, error) {
	agent, ok := e.store.GetAgent(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if priority <= 0 {
		priority = 5
	}

	task := e.launchTask(ctx, &agent, instruction, "", priority)
	e.persist()

	return &DispatchResult{
		TaskID:  task.ID,
		AgentID: agentID,
		Role:    agent.Role,
		Status:  task.Status,
		Error:   task.Error,
	}, nil
}

// launchTask runs the shared per-task dispatch path: baseline fetch, shared
// memory injection, send, and watcher start. The returned task has already
// been recorded in the store. Callers persist.
func (e *Engine) launchTask(ctx context.Context, agent *models.Agent, instruction, stageID string, priority int) models.Task {
	taskID := e.store.NextTaskID()

	// Baseline is best-effort; without it the watcher just sees every
	// prior message as "new" and settles on the latest.
	baseline, err := e.client.MessageCount(ctx, agent.WorkspaceID)
	if err != nil {
		debugLog("[dispatch] %s baseline fetch failed, defaulting to 0: %v", taskID, err)
		baseline = 0
	}

	message := e.injectSharedContext(instruction)

	task := models.Task{
		ID:                   taskID,
		AgentID:              agent.ID,
		WorkspaceID:          agent.WorkspaceID,
		Role:                 agent.Role,
		Instruction:          instruction,
		StageID:              stageID,
		Status:               models.TaskStatusRunning,
		Priority:             priority,
		DispatchedAt:         time.Now(),
		BaselineMessageCount: baseline,
	}

	if err := e.client.SendMessage(ctx, agent.WorkspaceID, message); err != nil {
		task.Status = models.TaskStatusFailed
		task.Error = err.Error()
		e.store.PutTask(&task)
		e.journal.Record("task", taskID, "dispatch-failed", err.Error())
		return task
	}

	e.store.PutTask(&task)
	e.store.UpdateAgent(agent.ID, func(a *models.Agent) {
		a.Status = models.AgentStatusWorking
		a.CurrentTaskID = taskID
		a.LastActiveAt = time.Now()
	})
	e.journal.Record("task", taskID, "dispatched", agent.ID)
	e.startWatcher(taskID)
	return task
}

// injectSharedContext prepends the user-visible shared memory entries to an
// instruction as a context block. Empty memory leaves the instruction as-is.
func (e *Engine) injectSharedContext(instruction string) string {
	mem := e.store.UserMemory()
	if len(mem) == 0 {
		return instruction
	}
	var lines []string
	for _, k := range store.UserMemoryKeys(mem) {
		lines = append(lines, fmt.Sprintf("[%s]: %s", k, mem[k]))
	}
	return fmt.Sprintf("[SHARED CONTEXT]\n%s\n\n[TASK]\n%s", strings.Join(lines, "\n"), instruction)
}

// StageTaskSpec is one task inside a stage request.
type StageTaskSpec struct {
	AgentID     string
	Instruction string
}

// StageLaunch is the per-task outcome of a stage launch.
type StageLaunch struct {
	TaskID  string `json:"task_id,omitempty"`
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
	Status  string `json:"status"`
}

// StageResult aggregates one stage launch.
type StageResult struct {
	StageID   string        `json:"stage_id"`
	Name      string        `json:"name"`
	DependsOn []string      `json:"depends_on,omitempty"`
	Launches  []StageLaunch `json:"launches"`
}

// Launched counts the tasks that actually started running.
func (r *StageResult) Launched() int {
	n := 0
	for _, l := range r.Launches {
		if l.Status == string(models.TaskStatusRunning) {
			n++
		}
	}
	return n
}

// ExecuteStage dispatches a batch of tasks concurrently as one named stage.
// It fails fast if any dependency stage is missing or not completed, or if
// the declared dependencies would form a cycle. Partial failures inside the
// batch are recorded as failed tasks within the stage rather than aborting
// the launch.
func (e *Engine) ExecuteStage(ctx context.Context, name string, specs []StageTaskSpec, dependsOn []string) (*StageResult, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no tasks in stage %q", name)
	}

	for _, depID := range dependsOn {
		dep, ok := e.store.GetStage(depID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStageNotFound, depID)
		}
		if dep.Status != models.StageStatusCompleted {
			return nil, fmt.Errorf("%w: %s (status: %s)", ErrStageNotReady, depID, dep.Status)
		}
	}

	stageID := e.store.NextStageID()

	// Validate the declared edges against the existing stage set.
	candidate := append(e.store.Stages(), models.Stage{ID: stageID, DependsOn: dependsOn})
	if err := graph.Validate(candidate); err != nil {
		return nil, fmt.Errorf("validate stage dependencies: %w", err)
	}

	launches := make([]StageLaunch, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec StageTaskSpec) {
			defer wg.Done()

			agent, ok := e.store.GetAgent(spec.AgentID)
			if !ok {
				launches[i] = StageLaunch{AgentID: spec.AgentID, Role: "unknown", Status: "agent not found"}
				return
			}

			task := e.launchTask(ctx, &agent, spec.Instruction, stageID, 5)
			launches[i] = StageLaunch{
				TaskID:  task.ID,
				AgentID: spec.AgentID,
				Role:    agent.Role,
				Status:  string(task.Status),
			}
		}(i, spec)
	}
	wg.Wait()

	var taskIDs []string
	for _, l := range launches {
		if l.TaskID != "" {
			taskIDs = append(taskIDs, l.TaskID)
		}
	}

	e.store.PutStage(&models.Stage{
		ID:        stageID,
		Name:      name,
		Status:    models.StageStatusRunning,
		TaskIDs:   taskIDs,
		DependsOn: dependsOn,
		StartedAt: time.Now(),
	})
	e.journal.Record("stage", stageID, "launched", name)

	// If every send failed the stage is already decided; roll it up now
	// instead of leaving it running with no watchers.
	e.CheckStageCompletion(stageID)
	e.persist()

	return &StageResult{StageID: stageID, Name: name, DependsOn: dependsOn, Launches: launches}, nil
}
