package swarm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/swarmbench/swarmbench/internal/workbench"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// HealthStatus classifies one agent's health-check outcome.
type HealthStatus string

const (
	// HealthOK means the workspace responded and the agent is not stale.
	HealthOK HealthStatus = "ok"
	// HealthStale means a working agent exceeded the inactivity threshold
	// and was reclaimed to idle, timing out its current task.
	HealthStale HealthStatus = "stale"
	// HealthDead means the workbench has no such workspace; the agent is
	// marked failed.
	HealthDead HealthStatus = "dead"
	// HealthError means the probe itself failed; the agent is marked failed.
	HealthError HealthStatus = "error"
)

// HealthResult is the per-agent outcome of a health check.
type HealthResult struct {
	AgentID string       `json:"agent_id"`
	Role    string       `json:"role"`
	Status  HealthStatus `json:"status"`
	Detail  string       `json:"detail"`
}

// Healthy reports whether the agent passed.
func (r HealthResult) Healthy() bool { return r.Status == HealthOK }

// HealthCheck probes every working or idle agent's workspace concurrently.
// Unreachable workspaces mark the agent failed; a working agent inactive past
// the threshold is reclaimed to idle with its current task timed out.
// threshold <= 0 uses the engine default.
func (e *Engine) HealthCheck(ctx context.Context, threshold time.Duration) ([]HealthResult, error) {
	if threshold <= 0 {
		threshold = e.staleThreshold
	}

	var active []models.Agent
	for _, a := range e.store.Agents() {
		if a.Status == models.AgentStatusWorking || a.Status == models.AgentStatusIdle {
			active = append(active, a)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	if len(active) == 0 {
		return nil, nil
	}

	results := make([]HealthResult, len(active))
	var wg sync.WaitGroup
	for i, agent := range active {
		wg.Add(1)
		go func(i int, agent models.Agent) {
			defer wg.Done()
			results[i] = e.checkOne(ctx, agent, threshold)
		}(i, agent)
	}
	wg.Wait()

	e.persist()
	return results, nil
}

// checkOne probes a single agent and applies the staleness policy.
func (e *Engine) checkOne(ctx context.Context, agent models.Agent, threshold time.Duration) HealthResult {
	probe := e.client.Probe(ctx, agent.WorkspaceID)

	switch probe.Status {
	case workbench.ProbeNotFound:
		e.store.UpdateAgent(agent.ID, func(a *models.Agent) {
			a.Status = models.AgentStatusFailed
		})
		e.journal.Record("agent", agent.ID, "failed", "workspace not found")
		return HealthResult{AgentID: agent.ID, Role: agent.Role, Status: HealthDead, Detail: "workspace not found"}

	case workbench.ProbeError:
		e.store.UpdateAgent(agent.ID, func(a *models.Agent) {
			a.Status = models.AgentStatusFailed
		})
		e.journal.Record("agent", agent.ID, "failed", probe.Reason)
		return HealthResult{AgentID: agent.ID, Role: agent.Role, Status: HealthError, Detail: probe.Reason}
	}

	inactive := time.Since(agent.LastActiveAt)
	if agent.Status == models.AgentStatusWorking && inactive > threshold {
		// Time out the current task before clearing the reference.
		if agent.CurrentTaskID != "" {
			now := time.Now()
			e.store.UpdateTask(agent.CurrentTaskID, func(t *models.Task) {
				if t.Status != models.TaskStatusRunning {
					return
				}
				t.Status = models.TaskStatusTimeout
				t.CompletedAt = &now
				t.Error = fmt.Sprintf("agent stale, no activity for %s", inactive.Round(time.Second))
			})
		}
		e.store.UpdateAgent(agent.ID, func(a *models.Agent) {
			a.Status = models.AgentStatusIdle
			a.CurrentTaskID = ""
		})
		e.journal.Record("agent", agent.ID, "reclaimed", fmt.Sprintf("inactive %s", inactive.Round(time.Second)))
		return HealthResult{
			AgentID: agent.ID, Role: agent.Role, Status: HealthStale,
			Detail: fmt.Sprintf("inactive %s, reset to idle", inactive.Round(time.Second)),
		}
	}

	return HealthResult{
		AgentID: agent.ID, Role: agent.Role, Status: HealthOK,
		Detail: fmt.Sprintf("active %s ago", inactive.Round(time.Second)),
	}
}
