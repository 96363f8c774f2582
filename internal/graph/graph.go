// Package graph provides dependency analysis over swarm stages: validation
// of declared stage dependencies and the critical-path walk used for swarm
// timing analysis.
package graph

import (
	"errors"
	"fmt"
	"time"

	"github.com/swarmbench/swarmbench/pkg/models"
)

// ErrCycleDetected indicates a circular dependency among stages.
var ErrCycleDetected = errors.New("circular stage dependency detected")

// Validate checks the declared dependency edges of a stage set. Every
// dependency must reference a known stage and the edges must form no cycle.
func Validate(stages []models.Stage) error {
	known := make(map[string]bool, len(stages))
	for _, st := range stages {
		known[st.ID] = true
	}

	edges := make(map[string][]string, len(stages))
	for _, st := range stages {
		for _, depID := range st.DependsOn {
			if !known[depID] {
				return fmt.Errorf("stage %s depends on unknown stage %s", st.ID, depID)
			}
			edges[st.ID] = append(edges[st.ID], depID)
		}
	}

	if hasCycle(known, edges) {
		return ErrCycleDetected
	}
	return nil
}

// hasCycle runs a depth-first search with coloring to detect back edges.
func hasCycle(nodes map[string]bool, edges map[string][]string) bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int)

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for id := range nodes {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// ChainResult is the outcome of a critical-path walk.
type ChainResult struct {
	// Total is the accumulated duration of the longest dependency chain.
	Total time.Duration
	// Stages lists the stage IDs along that chain, root first.
	Stages []string
}

// LongestChain walks completed stages depth-first from the roots (stages
// with no dependencies), accumulating each stage's measured critical-path
// duration along dependency chains, and returns the maximum total and the
// path that produced it. Stages that are not completed are ignored.
func LongestChain(stages []models.Stage) ChainResult {
	byID := make(map[string]*models.Stage, len(stages))
	for i := range stages {
		if stages[i].Status == models.StageStatusCompleted {
			byID[stages[i].ID] = &stages[i]
		}
	}

	// dependents among completed stages only
	dependents := make(map[string][]string)
	for _, st := range byID {
		for _, depID := range st.DependsOn {
			dependents[depID] = append(dependents[depID], st.ID)
		}
	}

	var best ChainResult

	var dfs func(id string, total time.Duration, path []string)
	dfs = func(id string, total time.Duration, path []string) {
		st, ok := byID[id]
		if !ok || st.CriticalPath <= 0 {
			return
		}

		total += st.CriticalPath
		path = append(path[:len(path):len(path)], id)

		if total > best.Total {
			best = ChainResult{Total: total, Stages: path}
		}

		for _, depID := range dependents[id] {
			dfs(depID, total, path)
		}
	}

	for id, st := range byID {
		if len(st.DependsOn) == 0 {
			dfs(id, 0, nil)
		}
	}

	return best
}
