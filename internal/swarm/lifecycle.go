package swarm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/swarmbench/swarmbench/internal/resources"
	"github.com/swarmbench/swarmbench/internal/workbench"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// AgentSpec describes one specialist to spawn.
type AgentSpec struct {
	// Role is the free-form specialist label (e.g. "react-ui-specialist").
	Role string
	// SystemPrompt, if set, is sent as a priming instruction after spawn.
	SystemPrompt string
	// Title overrides the workspace title.
	Title string
}

// SpawnOutcome is the per-agent result of a spawn request.
type SpawnOutcome struct {
	AgentID     string `json:"agent_id"`
	Role        string `json:"role"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	// Status is "ready" on success, otherwise a failure reason.
	Status string `json:"status"`
}

// Ready reports whether the agent came up.
func (o SpawnOutcome) Ready() bool { return o.Status == "ready" }

// SpawnResult aggregates the outcomes of one spawn request.
type SpawnResult struct {
	Outcomes []SpawnOutcome
	// Capacity is the resource snapshot taken before spawning.
	Capacity resources.Snapshot
	// Warning is set when the request exceeded estimated capacity.
	// Spawning proceeds regardless.
	Warning string
}

// Spawn creates one workspace-backed agent per spec, concurrently. The trunk
// branch is resolved through the workbench, defaulting to "main" on failure.
// A request beyond the capacity estimate produces a warning, never a refusal.
// Per-agent failures are reported in the outcomes; Spawn itself only fails on
// an empty request.
func (e *Engine) Spawn(ctx context.Context, projectPath string, specs []AgentSpec, trunkBranch string) (*SpawnResult, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no agents requested")
	}

	capacity := e.Resources()
	result := &SpawnResult{Capacity: capacity}
	if len(specs) > capacity.EstimatedCapacity {
		result.Warning = fmt.Sprintf(
			"requesting %d agents but system estimates capacity for ~%d parallel agents (%.1fGB free, ~%.1fGB per agent); proceeding anyway",
			len(specs), capacity.MaxParallelAgents, capacity.FreeMemGB, capacity.PerAgentMemGB)
		debugLog("[spawn] %s", result.Warning)
	}

	trunk := trunkBranch
	if trunk == "" {
		trunk = "main"
		if info, err := e.client.ListBranches(ctx, projectPath); err == nil && info.RecommendedTrunk != "" {
			trunk = info.RecommendedTrunk
		}
	}

	outcomes := make([]SpawnOutcome, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec AgentSpec) {
			defer wg.Done()
			outcomes[i] = e.spawnOne(ctx, projectPath, trunk, spec)
		}(i, spec)
	}
	wg.Wait()

	result.Outcomes = outcomes
	e.persist()
	return result, nil
}

// spawnOne creates one workspace, registers the agent, and best-effort primes
// it with its specialization prompt.
func (e *Engine) spawnOne(ctx context.Context, projectPath, trunk string, spec AgentSpec) SpawnOutcome {
	agentID := e.store.NextAgentID()

	title := spec.Title
	if title == "" {
		title = fmt.Sprintf("[swarm] %s", spec.Role)
	}

	wsID, err := e.client.CreateWorkspace(ctx, workbench.CreateWorkspaceParams{
		ProjectPath: projectPath,
		BranchName:  branchNameFor(spec.Role),
		TrunkBranch: trunk,
		Title:       title,
	})
	if err != nil {
		debugLog("[spawn] %s [%s] workspace creation failed: %v", agentID, spec.Role, err)
		return SpawnOutcome{AgentID: agentID, Role: spec.Role, Status: fmt.Sprintf("failed: %v", err)}
	}

	now := time.Now()
	e.store.PutAgent(&models.Agent{
		ID:           agentID,
		WorkspaceID:  wsID,
		Role:         spec.Role,
		SystemPrompt: spec.SystemPrompt,
		Status:       models.AgentStatusIdle,
		SpawnedAt:    now,
		LastActiveAt: now,
	})
	e.journal.Record("agent", agentID, "spawned", spec.Role)

	if spec.SystemPrompt != "" {
		priming := fmt.Sprintf("[SYSTEM] You are a specialized agent with role: %s\n\n%s\n\nAcknowledge your role briefly.",
			spec.Role, spec.SystemPrompt)
		if err := e.client.SendMessage(ctx, wsID, priming); err != nil {
			// Non-fatal: the agent works unprimed.
			debugLog("[spawn] %s priming failed: %v", agentID, err)
		}
	}

	return SpawnOutcome{AgentID: agentID, Role: spec.Role, WorkspaceID: wsID, Status: "ready"}
}

// branchNameFor derives a workspace branch name from a role label.
func branchNameFor(role string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, role)
	return fmt.Sprintf("swarm-%s-%s", sanitized, uuid.NewString()[:8])
}

// Specialize re-specializes an idle agent with a new role and prompt, reusing
// its workspace. Fails if the agent is currently working.
func (e *Engine) Specialize(ctx context.Context, agentID, newRole, systemPrompt string) error {
	agent, ok := e.store.GetAgent(agentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if agent.Status == models.AgentStatusWorking {
		return fmt.Errorf("%w: %s", ErrAgentBusy, agentID)
	}

	e.store.UpdateAgent(agentID, func(a *models.Agent) {
		a.Role = newRole
		a.SystemPrompt = systemPrompt
		a.Status = models.AgentStatusIdle
	})

	priming := fmt.Sprintf("[SYSTEM] Your role has changed. You are now: %s\n\n%s\n\nAcknowledge briefly.",
		newRole, systemPrompt)
	if err := e.client.SendMessage(ctx, agent.WorkspaceID, priming); err != nil {
		debugLog("[specialize] %s re-priming failed: %v", agentID, err)
	}

	e.journal.Record("agent", agentID, "specialized", newRole)
	e.persist()
	return nil
}

// Retire marks an agent retired and, unless archive is false, archives its
// workspace. Archival is best-effort. Returns the retired agent record.
func (e *Engine) Retire(ctx context.Context, agentID string, archive bool) (models.Agent, error) {
	agent, ok := e.store.GetAgent(agentID)
	if !ok {
		return models.Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	e.store.UpdateAgent(agentID, func(a *models.Agent) {
		a.Status = models.AgentStatusRetired
	})

	if archive {
		if err := e.client.ArchiveWorkspace(ctx, agent.WorkspaceID); err != nil {
			debugLog("[retire] %s archive failed: %v", agentID, err)
		}
	}

	e.journal.Record("agent", agentID, "retired", "")
	e.persist()

	retired, _ := e.store.GetAgent(agentID)
	return retired, nil
}
