package history

import (
	"path/filepath"
	"testing"
)

func TestOpenAndRecord(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	j.Record("task", "task-0001", "dispatched", "agent-001")
	j.Record("task", "task-0001", "completed", "")
	j.Record("agent", "agent-001", "retired", "")

	events, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	taskEvents, err := j.ForEntity("task", "task-0001")
	if err != nil {
		t.Fatalf("ForEntity failed: %v", err)
	}
	if len(taskEvents) != 2 {
		t.Fatalf("task events = %d, want 2", len(taskEvents))
	}
	if taskEvents[0].Event != "dispatched" || taskEvents[1].Event != "completed" {
		t.Errorf("task events out of order: %v", taskEvents)
	}
}

func TestRecentLimit(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	for i := 0; i < 5; i++ {
		j.Record("task", "task-0001", "dispatched", "")
	}

	events, err := j.Recent(3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("events = %d, want 3", len(events))
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	j.Record("task", "task-0001", "dispatched", "")
	j.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events after reopen = %d, want 1", len(events))
	}
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal

	j.Record("task", "task-0001", "dispatched", "")
	if err := j.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
	events, err := j.Recent(10)
	if err != nil || events != nil {
		t.Errorf("nil Recent = %v, %v", events, err)
	}
}
