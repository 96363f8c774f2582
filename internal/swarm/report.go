package swarm

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/swarmbench/swarmbench/internal/history"
	"github.com/swarmbench/swarmbench/internal/resources"
	"github.com/swarmbench/swarmbench/internal/store"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// Resources returns a capacity snapshot for the current working-agent count.
func (e *Engine) Resources() resources.Snapshot {
	working := 0
	for _, a := range e.store.Agents() {
		if a.Status == models.AgentStatusWorking {
			working++
		}
	}
	return e.estimator.Snapshot(working)
}

// Status renders the full swarm dashboard: resources, agents, stages,
// running tasks, critical path, and shared memory keys.
func (e *Engine) Status() string {
	agents := e.store.Agents()
	tasks := e.store.Tasks()
	stages := e.store.Stages()
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	sort.Slice(stages, func(i, j int) bool { return stages[i].ID < stages[j].ID })

	res := e.Resources()
	criticalPath := e.CalculateCriticalPath()

	var working, idle, retired []models.Agent
	for _, a := range agents {
		switch a.Status {
		case models.AgentStatusWorking:
			working = append(working, a)
		case models.AgentStatusIdle:
			idle = append(idle, a)
		case models.AgentStatusRetired:
			retired = append(retired, a)
		}
	}

	var running, completed, failed []models.Task
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusRunning:
			running = append(running, t)
		case models.TaskStatusCompleted:
			completed = append(completed, t)
		case models.TaskStatusFailed, models.TaskStatusTimeout:
			failed = append(failed, t)
		}
	}

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("=== SWARM DASHBOARD ===")
	line("")
	line("SYSTEM: %d CPUs | %.1fGB RAM (%.1f%% used)", res.CPUs, res.TotalMemGB, res.UsedPercent)
	line("   Free: %.1fGB | Capacity: ~%d parallel agents", res.FreeMemGB, res.MaxParallelAgents)
	line("")

	line("AGENTS: %d working, %d idle, %d retired (%d total)", len(working), len(idle), len(retired), len(agents))
	for _, a := range append(append([]models.Agent{}, working...), idle...) {
		icon := "[IDLE]"
		elapsed := ""
		if a.Status == models.AgentStatusWorking {
			icon = "[BUSY]"
			elapsed = fmt.Sprintf(" %s", time.Since(a.LastActiveAt).Round(time.Second))
		}
		line("   %s %s [%s] %s%s (%d tasks done)", icon, a.ID, a.Role, a.Status, elapsed, a.TasksCompleted)
	}
	line("")

	if len(stages) > 0 {
		line("STAGES:")
		for _, s := range stages {
			icon := "[WAIT]"
			switch s.Status {
			case models.StageStatusCompleted:
				icon = "[DONE]"
			case models.StageStatusRunning:
				icon = "[RUN]"
			case models.StageStatusFailed:
				icon = "[FAIL]"
			}
			duration := ""
			switch {
			case s.CompletedAt != nil:
				duration = s.CompletedAt.Sub(s.StartedAt).Round(time.Second).String()
			case !s.StartedAt.IsZero():
				duration = time.Since(s.StartedAt).Round(time.Second).String() + "..."
			}
			line("   %s %s %q - %s %s (%d tasks)", icon, s.ID, s.Name, s.Status, duration, len(s.TaskIDs))
		}
		line("")
	}

	line("TASKS: %d running, %d done, %d failed", len(running), len(completed), len(failed))
	if len(running) > 0 {
		line("   Running:")
		for _, t := range running {
			line("   [RUN] %s [%s] - %s: %s", t.ID, t.Role,
				time.Since(t.DispatchedAt).Round(time.Second), truncate(t.Instruction, 80))
		}
	}
	line("")

	if criticalPath.Total > 0 {
		line("CRITICAL PATH: %s", criticalPath.Total.Round(time.Second))
		line("   Parallel efficiency: %.2fx speedup vs sequential", criticalPath.ParallelEfficiency)
		if len(criticalPath.Stages) > 0 {
			line("   Bottleneck stages: %s", strings.Join(criticalPath.Stages, " -> "))
		}
		line("")
	}

	mem := e.store.UserMemory()
	if len(mem) > 0 {
		line("SHARED MEMORY: %d entries", len(mem))
		for _, k := range store.UserMemoryKeys(mem) {
			line("   - %s", k)
		}
		line("")
	}

	line("PERSISTENCE: %s | %s",
		fileStatus(e.store.StateFilePath(), "state.json"),
		fileStatus(e.store.MemoryFilePath(), "memory.json"))

	return b.String()
}

// fileStatus reports whether a persisted file exists on disk.
func fileStatus(path, name string) string {
	if _, err := os.Stat(path); err == nil {
		return name + " saved"
	}
	return name + " not persisted"
}

// truncate shortens s for one-line display.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// TaskDetail is a task record plus its elapsed wall time for display.
type TaskDetail struct {
	models.Task
	Elapsed string `json:"elapsed"`
}

// GetTask returns full detail for one task.
func (e *Engine) GetTask(taskID string) (*TaskDetail, error) {
	task, ok := e.store.GetTask(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	elapsed := ""
	if task.CompletedAt != nil {
		elapsed = task.Duration().Round(time.Second).String()
	} else {
		elapsed = fmt.Sprintf("%s (running)", time.Since(task.DispatchedAt).Round(time.Second))
	}
	return &TaskDetail{Task: task, Elapsed: elapsed}, nil
}

// ListAgents returns agents filtered by status. An empty or "all" filter
// returns every non-retired agent.
func (e *Engine) ListAgents(status string) []models.Agent {
	var out []models.Agent
	for _, a := range e.store.Agents() {
		switch status {
		case "", "all":
			if a.Status != models.AgentStatusRetired {
				out = append(out, a)
			}
		default:
			if string(a.Status) == status {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Metrics is the structured export for programmatic consumption.
type Metrics struct {
	Uptime string `json:"uptime"`
	Agents struct {
		Total   int `json:"total"`
		Working int `json:"working"`
		Idle    int `json:"idle"`
		Retired int `json:"retired"`
		Failed  int `json:"failed"`
	} `json:"agents"`
	Tasks struct {
		Total            int     `json:"total"`
		Running          int     `json:"running"`
		Completed        int     `json:"completed"`
		Failed           int     `json:"failed"`
		ThroughputPerMin float64 `json:"throughput_per_min"`
		ErrorRate        string  `json:"error_rate"`
	} `json:"tasks"`
	Latency struct {
		AvgMs int64 `json:"avg_ms"`
		MaxMs int64 `json:"max_ms"`
		MinMs int64 `json:"min_ms"`
	} `json:"latency"`
	Stages struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
		Running   int `json:"running"`
	} `json:"stages"`
	CriticalPath struct {
		TotalMs            int64   `json:"total_ms"`
		ParallelEfficiency float64 `json:"parallel_efficiency"`
	} `json:"critical_path"`
	Resources struct {
		CPUs              int     `json:"cpus"`
		FreeMemGB         float64 `json:"free_mem_gb"`
		EstimatedCapacity int     `json:"estimated_capacity"`
	} `json:"resources"`
}

// Metrics computes throughput, latency, error rate, and efficiency across
// the whole swarm.
func (e *Engine) Metrics() Metrics {
	tasks := e.store.Tasks()
	agents := e.store.Agents()
	stages := e.store.Stages()

	var m Metrics

	uptime := time.Since(e.store.StartedAt())
	m.Uptime = uptime.Round(time.Second).String()

	m.Agents.Total = len(agents)
	for _, a := range agents {
		switch a.Status {
		case models.AgentStatusWorking:
			m.Agents.Working++
		case models.AgentStatusIdle:
			m.Agents.Idle++
		case models.AgentStatusRetired:
			m.Agents.Retired++
		case models.AgentStatusFailed:
			m.Agents.Failed++
		}
	}

	var durations []time.Duration
	m.Tasks.Total = len(tasks)
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusRunning:
			m.Tasks.Running++
		case models.TaskStatusCompleted:
			m.Tasks.Completed++
			if t.CompletedAt != nil {
				durations = append(durations, t.Duration())
			}
		case models.TaskStatusFailed, models.TaskStatusTimeout:
			m.Tasks.Failed++
		}
	}

	if uptime > 0 {
		perMin := float64(m.Tasks.Completed) / uptime.Minutes()
		m.Tasks.ThroughputPerMin = math.Round(perMin*100) / 100
	}
	errorRate := 0.0
	if len(tasks) > 0 {
		errorRate = math.Round(float64(m.Tasks.Failed)/float64(len(tasks))*1000) / 10
	}
	m.Tasks.ErrorRate = fmt.Sprintf("%.1f%%", errorRate)

	if len(durations) > 0 {
		var sum, max, min time.Duration
		min = durations[0]
		for _, d := range durations {
			sum += d
			if d > max {
				max = d
			}
			if d < min {
				min = d
			}
		}
		m.Latency.AvgMs = (sum / time.Duration(len(durations))).Milliseconds()
		m.Latency.MaxMs = max.Milliseconds()
		m.Latency.MinMs = min.Milliseconds()
	}

	m.Stages.Total = len(stages)
	for _, s := range stages {
		switch s.Status {
		case models.StageStatusCompleted:
			m.Stages.Completed++
		case models.StageStatusRunning:
			m.Stages.Running++
		}
	}

	cp := e.CalculateCriticalPath()
	m.CriticalPath.TotalMs = cp.Total.Milliseconds()
	m.CriticalPath.ParallelEfficiency = cp.ParallelEfficiency

	res := e.Resources()
	m.Resources.CPUs = res.CPUs
	m.Resources.FreeMemGB = res.FreeMemGB
	m.Resources.EstimatedCapacity = res.EstimatedCapacity

	return m
}

// ClearStats summarizes what a Clear dropped and what remains.
type ClearStats struct {
	ClearedTasks, ClearedAgents, ClearedStages       int
	RemainingTasks, RemainingAgents, RemainingStages int
}

// Clear drops terminal tasks, retired agents, and concluded stages. Running
// tasks and active agents are kept.
func (e *Engine) Clear() ClearStats {
	var stats ClearStats

	for _, t := range e.store.Tasks() {
		if t.Status != models.TaskStatusRunning && t.Status != models.TaskStatusDispatched {
			if e.store.DeleteTask(t.ID) {
				stats.ClearedTasks++
			}
		}
	}
	for _, a := range e.store.Agents() {
		if a.Status == models.AgentStatusRetired {
			if e.store.DeleteAgent(a.ID) {
				stats.ClearedAgents++
			}
		}
	}
	for _, s := range e.store.Stages() {
		if s.Status.Terminal() {
			if e.store.DeleteStage(s.ID) {
				stats.ClearedStages++
			}
		}
	}

	stats.RemainingTasks = len(e.store.Tasks())
	stats.RemainingAgents = len(e.store.Agents())
	stats.RemainingStages = len(e.store.Stages())

	e.persist()
	return stats
}

// Reset wipes all swarm state: agents, tasks, stages, memory, counters.
func (e *Engine) Reset() store.ResetStats {
	stats := e.store.Reset()
	e.journal.Record("swarm", "all", "reset", "")
	e.persist()
	return stats
}

// History returns the most recent journal events, newest first. Returns nil
// when journaling is disabled.
func (e *Engine) History(limit int) ([]history.Event, error) {
	return e.journal.Recent(limit)
}
