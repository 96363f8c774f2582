package swarm

import (
	"fmt"

	"github.com/swarmbench/swarmbench/internal/store"
)

// MemorySet stores a shared memory entry visible to every dispatched task.
// Reserved bookkeeping prefixes are refused.
func (e *Engine) MemorySet(key, value string) error {
	if store.IsReservedKey(key) {
		return fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	e.store.MemorySet(key, value)
	e.persist()
	return nil
}

// MemoryGet retrieves a shared memory entry. Reserved prefixes are refused;
// retry counters and dead letters have their own typed accessors.
func (e *Engine) MemoryGet(key string) (string, error) {
	if store.IsReservedKey(key) {
		return "", fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	v, ok := e.store.MemoryGet(key)
	if !ok {
		return "", fmt.Errorf("memory key %q not found", key)
	}
	return v, nil
}

// MemoryDelete removes a shared memory entry. Reserved prefixes are refused.
// Returns false if the key did not exist.
func (e *Engine) MemoryDelete(key string) (bool, error) {
	if store.IsReservedKey(key) {
		return false, fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	deleted := e.store.MemoryDelete(key)
	e.persist()
	return deleted, nil
}

// MemoryList returns a copy of all user-visible shared memory entries.
func (e *Engine) MemoryList() map[string]string {
	return e.store.UserMemory()
}
