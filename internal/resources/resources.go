// Package resources estimates how many parallel agents the host can sustain.
// It is a pure read of host metrics; nothing here mutates swarm state.
package resources

import (
	"math"
	"runtime"

	"golang.org/x/sys/unix"
)

const bytesPerGB = 1 << 30

// Snapshot is a point-in-time view of host capacity.
type Snapshot struct {
	CPUs        int     `json:"cpus"`
	TotalMemGB  float64 `json:"total_mem_gb"`
	FreeMemGB   float64 `json:"free_mem_gb"`
	UsedMemGB   float64 `json:"used_mem_gb"`
	UsedPercent float64 `json:"used_percent"`
	// ActiveAgents is the number of agents currently working.
	ActiveAgents int `json:"active_agents"`
	// MaxParallelAgents is the estimated ceiling given free memory.
	MaxParallelAgents int `json:"max_parallel_agents"`
	// EstimatedCapacity is MaxParallelAgents minus ActiveAgents.
	EstimatedCapacity int  `json:"estimated_capacity"`
	CanSpawnMore      bool `json:"can_spawn_more"`
	// PerAgentMemGB is the heuristic memory cost of one agent.
	PerAgentMemGB float64 `json:"per_agent_mem_gb"`
}

// Estimator produces capacity snapshots using a fixed per-agent memory cost.
type Estimator struct {
	perAgentGB float64
	// readMem returns total and free memory in bytes; swapped out in tests.
	readMem func() (total, free uint64, err error)
}

// NewEstimator creates an estimator with the given per-agent memory heuristic
// in GiB. Values <= 0 fall back to 3 GiB, the typical footprint of one
// agent workspace runtime.
func NewEstimator(perAgentGB float64) *Estimator {
	if perAgentGB <= 0 {
		perAgentGB = 3
	}
	return &Estimator{
		perAgentGB: perAgentGB,
		readMem:    readSysinfo,
	}
}

// Snapshot reads host CPU and memory and derives capacity for the given
// number of currently-working agents.
func (e *Estimator) Snapshot(activeAgents int) Snapshot {
	s := Snapshot{
		CPUs:          runtime.NumCPU(),
		ActiveAgents:  activeAgents,
		PerAgentMemGB: e.perAgentGB,
	}

	total, free, err := e.readMem()
	if err != nil {
		// No memory numbers means no capacity estimate; report zeros.
		return s
	}

	totalGB := float64(total) / bytesPerGB
	freeGB := float64(free) / bytesPerGB
	usedGB := totalGB - freeGB

	s.TotalMemGB = round1(totalGB)
	s.FreeMemGB = round1(freeGB)
	s.UsedMemGB = round1(usedGB)
	if totalGB > 0 {
		s.UsedPercent = round1(usedGB / totalGB * 100)
	}

	s.MaxParallelAgents = int(freeGB / e.perAgentGB)
	s.EstimatedCapacity = s.MaxParallelAgents - activeAgents
	s.CanSpawnMore = activeAgents < s.MaxParallelAgents

	return s
}

// readSysinfo reads total and available memory from the kernel.
// Buffered pages count as free; they are reclaimable under pressure.
func readSysinfo() (total, free uint64, err error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total = uint64(info.Totalram) * unit
	free = (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	return total, free, nil
}

// round1 rounds to one decimal place for display parity with the dashboard.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
