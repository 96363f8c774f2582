package swarm

import (
	"fmt"
	"time"

	"github.com/swarmbench/swarmbench/internal/workbench"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// resumeWatchers re-arms completion watchers for tasks a previous process
// left running. Called once at construction so in-flight work survives
// restarts.
func (e *Engine) resumeWatchers() int {
	n := 0
	for _, t := range e.store.Tasks() {
		if t.Status == models.TaskStatusRunning {
			e.startWatcher(t.ID)
			n++
		}
	}
	if n > 0 {
		debugLog("[watcher] resumed %d watcher(s)", n)
	}
	return n
}

// startWatcher registers and launches the completion watcher for a task.
// Watchers are tracked in the engine's WaitGroup so Close can drain them.
func (e *Engine) startWatcher(taskID string) {
	e.watchers.Add(1)
	go func() {
		defer e.watchers.Done()
		e.watch(taskID)
	}()
}

// watch blocks on the workbench until the task's agent produces a new
// response or the timeout ceiling elapses, then settles the task, its agent,
// and its stage. The task may have been externally mutated or removed in the
// meantime; in that case the watcher is a no-op.
func (e *Engine) watch(taskID string) {
	task, ok := e.store.GetTask(taskID)
	if !ok || task.Status != models.TaskStatusRunning {
		return
	}

	response, err := e.client.WaitForResponse(e.ctx, task.WorkspaceID, task.BaselineMessageCount, e.taskTimeout)

	if err != nil && e.ctx.Err() != nil {
		// Engine shutdown, not a watch failure. The task stays running in
		// the persisted state and a later process re-arms its watcher.
		debugLog("[watcher] %s suspended on shutdown", taskID)
		return
	}

	now := time.Now()
	settled := false
	var outcome models.TaskStatus

	e.store.UpdateTask(taskID, func(t *models.Task) {
		if t.Status != models.TaskStatusRunning {
			return
		}
		settled = true
		t.CompletedAt = &now

		switch {
		case err != nil:
			t.Status = models.TaskStatusTimeout
			t.Error = fmt.Sprintf("response watcher failed: %v", err)
		case workbench.IsTimeoutMarker(response):
			t.Status = models.TaskStatusTimeout
			t.Error = fmt.Sprintf("agent did not respond within %s", e.taskTimeout)
		default:
			t.Status = models.TaskStatusCompleted
			t.Result = response
		}
		outcome = t.Status
	})
	if !settled {
		return
	}

	e.store.UpdateAgent(task.AgentID, func(a *models.Agent) {
		a.Status = models.AgentStatusIdle
		a.LastActiveAt = now
		a.CurrentTaskID = ""
		if outcome == models.TaskStatusCompleted {
			a.TasksCompleted++
		}
	})

	e.journal.Record("task", taskID, string(outcome), "")
	debugLog("[watcher] %s settled as %s", taskID, outcome)

	if task.StageID != "" {
		e.CheckStageCompletion(task.StageID)
	}
	e.persist()
}
