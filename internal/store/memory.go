package store

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Reserved key prefixes. Retry counters and dead-letter records live in the
// shared memory namespace for layout compatibility, but callers go through
// the typed accessors below and user-facing memory operations refuse these
// prefixes.
const (
	retryPrefix      = "retry:"
	deadLetterPrefix = "dead-letter:"
)

// IsReservedKey reports whether a shared-memory key belongs to the engine's
// internal bookkeeping rather than to users.
func IsReservedKey(key string) bool {
	return strings.HasPrefix(key, retryPrefix) || strings.HasPrefix(key, deadLetterPrefix)
}

// MemorySet stores a key/value entry in shared memory.
func (s *Store) MemorySet(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[key] = value
}

// MemoryGet retrieves a shared memory entry.
func (s *Store) MemoryGet(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.memory[key]
	return v, ok
}

// MemoryDelete removes a shared memory entry. Returns true if it existed.
func (s *Store) MemoryDelete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memory[key]; !ok {
		return false
	}
	delete(s.memory, key)
	return true
}

// MemoryLen returns the total number of shared memory entries, reserved
// bookkeeping included.
func (s *Store) MemoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memory)
}

// UserMemoryKeys returns the keys of a memory map in sorted order, for
// deterministic context injection and listings.
func UserMemoryKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UserMemory returns a copy of the user-visible shared memory entries.
func (s *Store) UserMemory() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for k, v := range s.memory {
		if IsReservedKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// ── Retry bookkeeping ────────────────────────────────────────────────

// RetryCount returns the number of retries recorded for the original task id.
func (s *Store) RetryCount(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.memory[retryPrefix+taskID]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// SetRetryCount records the retry counter for the original task id.
func (s *Store) SetRetryCount(taskID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[retryPrefix+taskID] = strconv.Itoa(count)
}

// ── Dead letters ─────────────────────────────────────────────────────

// DeadLetter is a task parked after exhausting its retry budget.
type DeadLetter struct {
	TaskID      string     `json:"task_id"`
	Instruction string     `json:"instruction"`
	Role        string     `json:"role"`
	Error       string     `json:"error,omitempty"`
	Retries     int        `json:"retries"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// AddDeadLetter records a dead-letter entry for the original task id.
func (s *Store) AddDeadLetter(dl DeadLetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(dl)
	if err != nil {
		s.logf("[store] marshal dead letter %s: %v", dl.TaskID, err)
		return
	}
	s.memory[deadLetterPrefix+dl.TaskID] = string(data)
}

// DeadLetters enumerates all dead-letter records, sorted by task id.
func (s *Store) DeadLetters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []DeadLetter
	for k, v := range s.memory {
		if !strings.HasPrefix(k, deadLetterPrefix) {
			continue
		}
		var dl DeadLetter
		if err := json.Unmarshal([]byte(v), &dl); err != nil {
			// Unreadable record; surface what we can.
			dl = DeadLetter{TaskID: strings.TrimPrefix(k, deadLetterPrefix), Error: v}
		}
		if dl.TaskID == "" {
			dl.TaskID = strings.TrimPrefix(k, deadLetterPrefix)
		}
		out = append(out, dl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}
