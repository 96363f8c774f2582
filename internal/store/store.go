// Package store owns all swarm entity state: agents, tasks, stages, and the
// shared key/value memory. It is the single writer for those maps and
// serializes everything to disk on demand.
//
// Layout on disk is two files under the data directory: state.json (entities
// and counters) and memory.json (the shared key/value namespace, including
// retry counters and dead-letter records under reserved prefixes).
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/swarmbench/swarmbench/pkg/models"
)

// SchemaVersion is written into both persisted files. Loads of a newer
// schema than we understand fall back to a cold state.
const SchemaVersion = 1

// Store holds the full swarm state behind a single mutex.
// All other components operate through its accessors; entity values returned
// to callers are copies, and in-place mutation goes through the Update methods.
type Store struct {
	mu  sync.Mutex
	dir string

	agents map[string]*models.Agent
	tasks  map[string]*models.Task
	stages map[string]*models.Stage
	memory map[string]string

	agentCounter int
	taskCounter  int
	stageCounter int
	startedAt    time.Time

	// logf receives persistence diagnostics; defaults to a no-op.
	logf func(format string, args ...interface{})
}

// Open loads (or cold-starts) a store rooted at dir. Missing or corrupt
// files never fail the open; they produce an empty state. Any non-terminal
// records left by a crash are sanitized, see load.
func Open(dir string) *Store {
	s := &Store{
		dir:       dir,
		agents:    make(map[string]*models.Agent),
		tasks:     make(map[string]*models.Task),
		stages:    make(map[string]*models.Stage),
		memory:    make(map[string]string),
		startedAt: time.Now(),
		logf:      func(string, ...interface{}) {},
	}
	s.load()
	return s
}

// SetLogf sets the diagnostic log function used for persistence failures.
func (s *Store) SetLogf(fn func(format string, args ...interface{})) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.logf = fn
	}
}

// StartedAt returns the process-start timestamp carried in the state file.
func (s *Store) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// NextAgentID mints the next monotonic agent id.
func (s *Store) NextAgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentCounter++
	return fmt.Sprintf("agent-%03d", s.agentCounter)
}

// NextTaskID mints the next monotonic task id.
func (s *Store) NextTaskID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskCounter++
	return fmt.Sprintf("task-%04d", s.taskCounter)
}

// NextStageID mints the next monotonic stage id.
func (s *Store) NextStageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stageCounter++
	return fmt.Sprintf("stage-%02d", s.stageCounter)
}

// ── Agents ───────────────────────────────────────────────────────────

// PutAgent registers or replaces an agent record.
func (s *Store) PutAgent(a *models.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.agents[a.ID] = &copied
}

// GetAgent returns a copy of the agent, if present.
func (s *Store) GetAgent(id string) (models.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return models.Agent{}, false
	}
	return *a, true
}

// UpdateAgent applies fn to the agent under the store lock.
// Returns false if the agent does not exist.
func (s *Store) UpdateAgent(id string, fn func(*models.Agent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// Agents returns copies of all agent records.
func (s *Store) Agents() []models.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a)
	}
	return out
}

// DeleteAgent removes an agent record. Returns true if it existed.
func (s *Store) DeleteAgent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return false
	}
	delete(s.agents, id)
	return true
}

// ── Tasks ────────────────────────────────────────────────────────────

// PutTask registers or replaces a task record.
func (s *Store) PutTask(t *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *t
	s.tasks[t.ID] = &copied
}

// GetTask returns a copy of the task, if present.
func (s *Store) GetTask(id string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *t, true
}

// UpdateTask applies fn to the task under the store lock.
// Returns false if the task does not exist.
func (s *Store) UpdateTask(id string, fn func(*models.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// Tasks returns copies of all task records.
func (s *Store) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// DeleteTask removes a task record. Returns true if it existed.
func (s *Store) DeleteTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// ── Stages ───────────────────────────────────────────────────────────

// PutStage registers or replaces a stage record.
func (s *Store) PutStage(st *models.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *st
	s.stages[st.ID] = &copied
}

// GetStage returns a copy of the stage, if present.
func (s *Store) GetStage(id string) (models.Stage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stages[id]
	if !ok {
		return models.Stage{}, false
	}
	return *st, true
}

// UpdateStage applies fn to the stage under the store lock.
// Returns false if the stage does not exist.
func (s *Store) UpdateStage(id string, fn func(*models.Stage)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stages[id]
	if !ok {
		return false
	}
	fn(st)
	return true
}

// Stages returns copies of all stage records.
func (s *Store) Stages() []models.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Stage, 0, len(s.stages))
	for _, st := range s.stages {
		out = append(out, *st)
	}
	return out
}

// DeleteStage removes a stage record. Returns true if it existed.
func (s *Store) DeleteStage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stages[id]; !ok {
		return false
	}
	delete(s.stages, id)
	return true
}

// ── Reset ────────────────────────────────────────────────────────────

// ResetStats summarizes what a Reset wiped.
type ResetStats struct {
	Agents, Tasks, Stages, MemoryEntries int
}

// Reset wipes everything: entities, shared memory, counters, start time.
func (s *Store) Reset() ResetStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := ResetStats{
		Agents:        len(s.agents),
		Tasks:         len(s.tasks),
		Stages:        len(s.stages),
		MemoryEntries: len(s.memory),
	}

	s.agents = make(map[string]*models.Agent)
	s.tasks = make(map[string]*models.Task)
	s.stages = make(map[string]*models.Stage)
	s.memory = make(map[string]string)
	s.agentCounter = 0
	s.taskCounter = 0
	s.stageCounter = 0
	s.startedAt = time.Now()

	return stats
}
