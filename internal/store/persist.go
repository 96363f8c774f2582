package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/swarmbench/swarmbench/pkg/models"
)

const (
	stateFileName  = "state.json"
	memoryFileName = "memory.json"
)

// stateEnvelope is the on-disk layout of state.json. Entity records are kept
// as raw JSON so one unreadable record does not poison the whole load.
type stateEnvelope struct {
	Schema       int                        `json:"schema"`
	Agents       map[string]json.RawMessage `json:"agents"`
	Tasks        map[string]json.RawMessage `json:"tasks"`
	Stages       map[string]json.RawMessage `json:"stages"`
	AgentCounter int                        `json:"agent_counter"`
	TaskCounter  int                        `json:"task_counter"`
	StageCounter int                        `json:"stage_counter"`
	StartedAt    time.Time                  `json:"started_at"`
	// CleanShutdown marks a file written by an orderly shutdown. Running
	// records in such a file are resumable; without the marker they are
	// crash leftovers and get sanitized on load.
	CleanShutdown bool `json:"clean_shutdown,omitempty"`
}

// memoryEnvelope is the on-disk layout of memory.json.
type memoryEnvelope struct {
	Schema  int               `json:"schema"`
	Entries map[string]string `json:"entries"`
}

// StateFilePath returns the path of the persisted entity file.
func (s *Store) StateFilePath() string {
	return filepath.Join(s.dir, stateFileName)
}

// MemoryFilePath returns the path of the persisted shared-memory file.
func (s *Store) MemoryFilePath() string {
	return filepath.Join(s.dir, memoryFileName)
}

// Save serializes the full state to state.json and shared memory to
// memory.json, rewriting both files. Persistence is best-effort durability:
// callers log and swallow the error, since in-memory state stays
// authoritative for the running process.
func (s *Store) Save() error {
	return s.save(false)
}

// SaveFinal is the last save of an orderly shutdown. It sets the
// clean-shutdown marker so running tasks survive the next load for watcher
// resume instead of being sanitized as crash leftovers.
func (s *Store) SaveFinal() error {
	return s.save(true)
}

func (s *Store) save(clean bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	env := stateEnvelope{
		Schema:        SchemaVersion,
		Agents:        make(map[string]json.RawMessage, len(s.agents)),
		Tasks:         make(map[string]json.RawMessage, len(s.tasks)),
		Stages:        make(map[string]json.RawMessage, len(s.stages)),
		AgentCounter:  s.agentCounter,
		TaskCounter:   s.taskCounter,
		StageCounter:  s.stageCounter,
		StartedAt:     s.startedAt,
		CleanShutdown: clean,
	}
	for id, a := range s.agents {
		data, err := json.Marshal(a)
		if err != nil {
			s.logf("[store] marshal agent %s: %v", id, err)
			continue
		}
		env.Agents[id] = data
	}
	for id, t := range s.tasks {
		data, err := json.Marshal(t)
		if err != nil {
			s.logf("[store] marshal task %s: %v", id, err)
			continue
		}
		env.Tasks[id] = data
	}
	for id, st := range s.stages {
		data, err := json.Marshal(st)
		if err != nil {
			s.logf("[store] marshal stage %s: %v", id, err)
			continue
		}
		env.Stages[id] = data
	}

	if err := writeJSONFile(filepath.Join(s.dir, stateFileName), env); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	mem := memoryEnvelope{Schema: SchemaVersion, Entries: s.memory}
	if err := writeJSONFile(filepath.Join(s.dir, memoryFileName), mem); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}

	return nil
}

// writeJSONFile writes v as indented JSON via a temp file and rename, so a
// crash mid-write never leaves a truncated file behind.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// load restores state from disk if present. Missing or corrupt files leave
// the store cold and empty. Records that fail to decode are dropped
// individually. A state file without the clean-shutdown marker is a crash
// leftover and gets sanitized: running/dispatched tasks become timeout,
// working agents return to idle, running stages become failed. A cleanly
// written file keeps its running records so the engine can re-arm their
// watchers.
func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, err := os.ReadFile(filepath.Join(s.dir, stateFileName)); err == nil {
		var env stateEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logf("[store] corrupt state file, starting cold: %v", err)
		} else if env.Schema > SchemaVersion {
			s.logf("[store] state file schema %d is newer than %d, starting cold", env.Schema, SchemaVersion)
		} else {
			for id, raw := range env.Agents {
				var a models.Agent
				if err := json.Unmarshal(raw, &a); err != nil {
					s.logf("[store] dropping unreadable agent %s: %v", id, err)
					continue
				}
				s.agents[id] = &a
			}
			for id, raw := range env.Tasks {
				var t models.Task
				if err := json.Unmarshal(raw, &t); err != nil {
					s.logf("[store] dropping unreadable task %s: %v", id, err)
					continue
				}
				s.tasks[id] = &t
			}
			for id, raw := range env.Stages {
				var st models.Stage
				if err := json.Unmarshal(raw, &st); err != nil {
					s.logf("[store] dropping unreadable stage %s: %v", id, err)
					continue
				}
				s.stages[id] = &st
			}
			s.agentCounter = env.AgentCounter
			s.taskCounter = env.TaskCounter
			s.stageCounter = env.StageCounter
			if !env.StartedAt.IsZero() {
				s.startedAt = env.StartedAt
			}
			if !env.CleanShutdown {
				s.sanitizeLocked()
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(s.dir, memoryFileName)); err == nil {
		var mem memoryEnvelope
		if err := json.Unmarshal(data, &mem); err != nil {
			s.logf("[store] corrupt memory file, starting with empty memory: %v", err)
		} else if mem.Schema > SchemaVersion {
			s.logf("[store] memory file schema %d is newer than %d, ignoring", mem.Schema, SchemaVersion)
		} else if mem.Entries != nil {
			s.memory = mem.Entries
		}
	}
}

// sanitizeLocked forces every record left non-terminal by a crash into a
// terminal state. Caller must hold s.mu.
func (s *Store) sanitizeLocked() {
	now := time.Now()

	for _, t := range s.tasks {
		if t.Status == models.TaskStatusRunning || t.Status == models.TaskStatusDispatched {
			t.Status = models.TaskStatusTimeout
			t.CompletedAt = &now
			t.Error = "orchestrator restarted, task outcome unknown"
		}
	}
	for _, a := range s.agents {
		if a.Status == models.AgentStatusWorking {
			a.Status = models.AgentStatusIdle
			a.CurrentTaskID = ""
		}
	}
	for _, st := range s.stages {
		if st.Status == models.StageStatusRunning {
			st.Status = models.StageStatusFailed
			st.CompletedAt = &now
		}
	}
}
