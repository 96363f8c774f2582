package swarm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/swarmbench/swarmbench/pkg/models"
)

// CollectResult holds the tasks gathered by a Collect call.
type CollectResult struct {
	// StageID is set when the collection targeted a stage.
	StageID string `json:"stage_id,omitempty"`
	// Tasks are the collected task records, sorted by id.
	Tasks []models.Task `json:"tasks"`
	// Completed counts the tasks that finished successfully.
	Completed int `json:"completed"`
}

// Collect blocks until the targeted tasks are all terminal or the timeout
// elapses, polling at the engine interval. Stragglers still running when the
// budget runs out are force-marked timeout. With no stage or explicit task
// ids, all currently in-flight tasks are collected. timeout <= 0 uses the
// watcher ceiling.
func (e *Engine) Collect(ctx context.Context, stageID string, taskIDs []string, timeout time.Duration) (*CollectResult, error) {
	if timeout <= 0 {
		timeout = e.taskTimeout
	}

	var targets []string
	switch {
	case stageID != "":
		stage, ok := e.store.GetStage(stageID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
		}
		targets = stage.TaskIDs
	case len(taskIDs) > 0:
		targets = taskIDs
	default:
		for _, t := range e.store.Tasks() {
			if t.Status == models.TaskStatusRunning || t.Status == models.TaskStatusDispatched {
				targets = append(targets, t.ID)
			}
		}
	}

	if len(targets) == 0 {
		return &CollectResult{StageID: stageID}, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	expired := false
	for !expired && !e.allTerminal(targets) {
		select {
		case <-ticker.C:
		case <-deadline.C:
			expired = true
		case <-ctx.Done():
			expired = true
		}
	}
	if expired {
		e.forceTimeout(targets)
	}

	result := &CollectResult{StageID: stageID}
	for _, id := range targets {
		if t, ok := e.store.GetTask(id); ok {
			result.Tasks = append(result.Tasks, t)
			if t.Status == models.TaskStatusCompleted {
				result.Completed++
			}
		}
	}
	sort.Slice(result.Tasks, func(i, j int) bool { return result.Tasks[i].ID < result.Tasks[j].ID })
	return result, nil
}

// allTerminal reports whether every targeted task exists and is terminal.
func (e *Engine) allTerminal(ids []string) bool {
	for _, id := range ids {
		t, ok := e.store.GetTask(id)
		if !ok || !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// forceTimeout marks any still-in-flight targets as timed out.
func (e *Engine) forceTimeout(ids []string) {
	now := time.Now()
	for _, id := range ids {
		e.store.UpdateTask(id, func(t *models.Task) {
			if t.Status != models.TaskStatusRunning && t.Status != models.TaskStatusDispatched {
				return
			}
			t.Status = models.TaskStatusTimeout
			t.CompletedAt = &now
			t.Error = "Collection timeout"
		})
	}
	e.persist()
}
