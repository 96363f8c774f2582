package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swarmbench/swarmbench/pkg/models"
)

func TestOpenColdStart(t *testing.T) {
	s := Open(t.TempDir())

	if len(s.Agents()) != 0 || len(s.Tasks()) != 0 || len(s.Stages()) != 0 {
		t.Error("cold store should be empty")
	}
	if s.MemoryLen() != 0 {
		t.Error("cold store memory should be empty")
	}
}

func TestIDGeneration(t *testing.T) {
	s := Open(t.TempDir())

	if id := s.NextAgentID(); id != "agent-001" {
		t.Errorf("first agent id = %q", id)
	}
	if id := s.NextAgentID(); id != "agent-002" {
		t.Errorf("second agent id = %q", id)
	}
	if id := s.NextTaskID(); id != "task-0001" {
		t.Errorf("first task id = %q", id)
	}
	if id := s.NextStageID(); id != "stage-01" {
		t.Errorf("first stage id = %q", id)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)

	s.PutAgent(&models.Agent{
		ID: s.NextAgentID(), WorkspaceID: "ws-1", Role: "fe",
		Status: models.AgentStatusIdle, SpawnedAt: time.Now(),
	})
	done := time.Now()
	s.PutTask(&models.Task{
		ID: s.NextTaskID(), AgentID: "agent-001", WorkspaceID: "ws-1",
		Role: "fe", Instruction: "build UI", Status: models.TaskStatusCompleted,
		Priority: 5, DispatchedAt: time.Now().Add(-time.Minute), CompletedAt: &done,
		Result: "ok",
	})
	s.MemorySet("schema", "v2")

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := Open(dir)
	if len(reloaded.Agents()) != 1 {
		t.Fatalf("agents = %d, want 1", len(reloaded.Agents()))
	}
	task, ok := reloaded.GetTask("task-0001")
	if !ok {
		t.Fatal("task-0001 missing after reload")
	}
	if task.Status != models.TaskStatusCompleted || task.Result != "ok" {
		t.Errorf("task = %+v", task)
	}
	if v, _ := reloaded.MemoryGet("schema"); v != "v2" {
		t.Errorf("memory schema = %q", v)
	}
	// Counters continue where they left off.
	if id := reloaded.NextTaskID(); id != "task-0002" {
		t.Errorf("next task id after reload = %q, want task-0002", id)
	}
}

func TestLoadSanitizesCrashedState(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)

	s.PutAgent(&models.Agent{
		ID: "agent-001", WorkspaceID: "ws-1", Role: "fe",
		Status: models.AgentStatusWorking, CurrentTaskID: "task-0001",
	})
	s.PutTask(&models.Task{
		ID: "task-0001", AgentID: "agent-001", Status: models.TaskStatusRunning,
		StageID: "stage-01", DispatchedAt: time.Now(),
	})
	s.PutStage(&models.Stage{
		ID: "stage-01", Name: "impl", Status: models.StageStatusRunning,
		TaskIDs: []string{"task-0001"}, StartedAt: time.Now(),
	})
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := Open(dir)

	task, _ := reloaded.GetTask("task-0001")
	if task.Status != models.TaskStatusTimeout {
		t.Errorf("crashed task status = %q, want timeout", task.Status)
	}
	if task.Error == "" {
		t.Error("crashed task should carry an explanatory error")
	}
	if task.CompletedAt == nil {
		t.Error("crashed task should have a completion time")
	}

	agent, _ := reloaded.GetAgent("agent-001")
	if agent.Status != models.AgentStatusIdle {
		t.Errorf("crashed agent status = %q, want idle", agent.Status)
	}
	if agent.CurrentTaskID != "" {
		t.Errorf("crashed agent current task = %q, want empty", agent.CurrentTaskID)
	}

	stage, _ := reloaded.GetStage("stage-01")
	if stage.Status != models.StageStatusFailed {
		t.Errorf("crashed stage status = %q, want failed", stage.Status)
	}
}

func TestSaveFinalKeepsRunningWorkForResume(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)

	s.PutAgent(&models.Agent{
		ID: "agent-001", WorkspaceID: "ws-1", Role: "fe",
		Status: models.AgentStatusWorking, CurrentTaskID: "task-0001",
	})
	s.PutTask(&models.Task{
		ID: "task-0001", AgentID: "agent-001", Status: models.TaskStatusRunning,
		DispatchedAt: time.Now(),
	})
	if err := s.SaveFinal(); err != nil {
		t.Fatalf("SaveFinal failed: %v", err)
	}

	reloaded := Open(dir)

	task, _ := reloaded.GetTask("task-0001")
	if task.Status != models.TaskStatusRunning {
		t.Errorf("task status after clean shutdown = %q, want running", task.Status)
	}
	agent, _ := reloaded.GetAgent("agent-001")
	if agent.Status != models.AgentStatusWorking || agent.CurrentTaskID != "task-0001" {
		t.Errorf("agent after clean shutdown = %+v", agent)
	}

	// A plain Save clears the marker: the same state reloaded afterwards is
	// treated as a crash again.
	if err := reloaded.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	crashed := Open(dir)
	task, _ = crashed.GetTask("task-0001")
	if task.Status != models.TaskStatusTimeout {
		t.Errorf("task status after dirty save = %q, want timeout", task.Status)
	}
}

func TestLoadCorruptFilesStartsCold(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "memory.json"), []byte("also not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := Open(dir)
	if len(s.Tasks()) != 0 || s.MemoryLen() != 0 {
		t.Error("corrupt files should yield a cold state")
	}
}

func TestLoadDropsUnreadableRecordsIndividually(t *testing.T) {
	dir := t.TempDir()
	env := map[string]any{
		"schema": SchemaVersion,
		"tasks": map[string]any{
			"task-0001": map[string]any{"id": "task-0001", "status": "completed"},
			"task-0002": json.RawMessage(`"not an object"`),
		},
		"task_counter": 2,
	}
	data, _ := json.Marshal(env)
	if err := os.WriteFile(filepath.Join(dir, "state.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	s := Open(dir)
	if _, ok := s.GetTask("task-0001"); !ok {
		t.Error("readable record should survive")
	}
	if _, ok := s.GetTask("task-0002"); ok {
		t.Error("unreadable record should be dropped")
	}
}

func TestReservedKeys(t *testing.T) {
	if !IsReservedKey("retry:task-0001") {
		t.Error("retry: prefix should be reserved")
	}
	if !IsReservedKey("dead-letter:task-0001") {
		t.Error("dead-letter: prefix should be reserved")
	}
	if IsReservedKey("api-schema") {
		t.Error("plain key should not be reserved")
	}
}

func TestRetryCounter(t *testing.T) {
	s := Open(t.TempDir())

	if n := s.RetryCount("task-0001"); n != 0 {
		t.Errorf("initial retry count = %d", n)
	}
	s.SetRetryCount("task-0001", 1)
	s.SetRetryCount("task-0001", 2)
	if n := s.RetryCount("task-0001"); n != 2 {
		t.Errorf("retry count = %d, want 2", n)
	}
}

func TestDeadLetters(t *testing.T) {
	s := Open(t.TempDir())

	now := time.Now()
	s.AddDeadLetter(DeadLetter{
		TaskID: "task-0002", Instruction: "build API", Role: "be",
		Error: "timeout", Retries: 3, FailedAt: &now,
	})
	s.AddDeadLetter(DeadLetter{TaskID: "task-0001", Instruction: "build UI", Role: "fe", Retries: 3})

	dls := s.DeadLetters()
	if len(dls) != 2 {
		t.Fatalf("dead letters = %d, want 2", len(dls))
	}
	if dls[0].TaskID != "task-0001" || dls[1].TaskID != "task-0002" {
		t.Errorf("dead letters not sorted: %v", dls)
	}
	if dls[1].Error != "timeout" || dls[1].Retries != 3 {
		t.Errorf("dead letter detail = %+v", dls[1])
	}
}

func TestUserMemoryFiltersReserved(t *testing.T) {
	s := Open(t.TempDir())

	s.MemorySet("api-schema", "v1")
	s.SetRetryCount("task-0001", 1)
	s.AddDeadLetter(DeadLetter{TaskID: "task-0002"})

	mem := s.UserMemory()
	if len(mem) != 1 {
		t.Fatalf("user memory = %v, want only api-schema", mem)
	}
	if mem["api-schema"] != "v1" {
		t.Errorf("api-schema = %q", mem["api-schema"])
	}
}

func TestReset(t *testing.T) {
	s := Open(t.TempDir())

	s.PutAgent(&models.Agent{ID: s.NextAgentID(), Status: models.AgentStatusIdle})
	s.MemorySet("k", "v")

	stats := s.Reset()
	if stats.Agents != 1 || stats.MemoryEntries != 1 {
		t.Errorf("reset stats = %+v", stats)
	}
	if len(s.Agents()) != 0 || s.MemoryLen() != 0 {
		t.Error("reset should wipe everything")
	}
	if id := s.NextAgentID(); id != "agent-001" {
		t.Errorf("counter after reset = %q, want agent-001", id)
	}
}

func TestUpdateTask(t *testing.T) {
	s := Open(t.TempDir())
	s.PutTask(&models.Task{ID: "task-0001", Status: models.TaskStatusRunning})

	ok := s.UpdateTask("task-0001", func(task *models.Task) {
		task.Status = models.TaskStatusCompleted
		task.Result = "done"
	})
	if !ok {
		t.Fatal("UpdateTask should find the task")
	}
	task, _ := s.GetTask("task-0001")
	if task.Status != models.TaskStatusCompleted || task.Result != "done" {
		t.Errorf("task = %+v", task)
	}

	if s.UpdateTask("task-9999", func(*models.Task) {}) {
		t.Error("UpdateTask on missing id should return false")
	}
}
