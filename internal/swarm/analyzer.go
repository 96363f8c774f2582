package swarm

import (
	"math"
	"time"

	"github.com/swarmbench/swarmbench/internal/graph"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// CheckStageCompletion rolls up a running stage once every member task is
// terminal. The stage fails only when no member completed; its critical path
// is the longest member task wall time. No-op for non-running stages.
func (e *Engine) CheckStageCompletion(stageID string) {
	stage, ok := e.store.GetStage(stageID)
	if !ok || stage.Status != models.StageStatusRunning {
		return
	}

	var members []models.Task
	for _, id := range stage.TaskIDs {
		if t, ok := e.store.GetTask(id); ok {
			members = append(members, t)
		}
	}

	anyCompleted := false
	var longest time.Duration
	for _, t := range members {
		if !t.Status.Terminal() {
			return
		}
		if t.Status == models.TaskStatusCompleted {
			anyCompleted = true
		}
		if d := t.Duration(); d > longest {
			longest = d
		}
	}

	now := time.Now()
	final := models.StageStatusFailed
	if anyCompleted {
		final = models.StageStatusCompleted
	}
	e.store.UpdateStage(stageID, func(st *models.Stage) {
		st.Status = final
		st.CompletedAt = &now
		st.CriticalPath = longest
	})

	e.journal.Record("stage", stageID, string(final), "")
	debugLog("[analyzer] stage %s rolled up as %s (critical path %s)", stageID, final, longest)
	e.persist()
}

// CriticalPathReport summarizes the longest dependency chain across completed
// stages and the achieved parallel speedup.
type CriticalPathReport struct {
	// Total is the accumulated duration of the longest chain.
	Total time.Duration `json:"total_ms"`
	// Stages lists the chain's stage IDs, root first.
	Stages []string `json:"stages"`
	// ParallelEfficiency is the speedup multiplier versus sequential
	// execution: sum of completed task durations over the critical path.
	// Zero when nothing has completed.
	ParallelEfficiency float64 `json:"parallel_efficiency"`
}

// CalculateCriticalPath walks completed stages depth-first along dependency
// chains and reports the longest total, its path, and parallel efficiency.
func (e *Engine) CalculateCriticalPath() CriticalPathReport {
	chain := graph.LongestChain(e.store.Stages())

	var sequential time.Duration
	for _, t := range e.store.Tasks() {
		if t.Status == models.TaskStatusCompleted {
			sequential += t.Duration()
		}
	}

	report := CriticalPathReport{Total: chain.Total, Stages: chain.Stages}
	if sequential > 0 {
		denom := chain.Total
		if denom < time.Millisecond {
			denom = time.Millisecond
		}
		report.ParallelEfficiency = math.Round(float64(sequential)/float64(denom)*100) / 100
	}
	return report
}
