package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swarmbench/swarmbench/internal/store"
	"github.com/swarmbench/swarmbench/internal/workbench"
	"github.com/swarmbench/swarmbench/pkg/models"
)

// fakeClient is an in-memory workbench for engine tests. Responses are fed
// through per-workspace channels; an unfed workspace times out.
type fakeClient struct {
	mu        sync.Mutex
	wsCounter int
	createErr error
	sendErr   error
	sent      map[string][]string
	responses map[string]chan string
	probes    map[string]workbench.ProbeResult
	trunk     string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		sent:      make(map[string][]string),
		responses: make(map[string]chan string),
		probes:    make(map[string]workbench.ProbeResult),
		trunk:     "main",
	}
}

func (f *fakeClient) responseChan(workspaceID string) chan string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.responses[workspaceID]
	if !ok {
		ch = make(chan string, 4)
		f.responses[workspaceID] = ch
	}
	return ch
}

func (f *fakeClient) respond(workspaceID, text string) {
	f.responseChan(workspaceID) <- text
}

func (f *fakeClient) sentMessages(workspaceID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[workspaceID]...)
}

func (f *fakeClient) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeClient) setCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *fakeClient) setProbe(workspaceID string, result workbench.ProbeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes[workspaceID] = result
}

func (f *fakeClient) ListBranches(ctx context.Context, projectPath string) (*workbench.BranchInfo, error) {
	return &workbench.BranchInfo{Branches: []string{f.trunk}, RecommendedTrunk: f.trunk}, nil
}

func (f *fakeClient) CreateWorkspace(ctx context.Context, params workbench.CreateWorkspaceParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.wsCounter++
	return fmt.Sprintf("ws-%d", f.wsCounter), nil
}

func (f *fakeClient) ArchiveWorkspace(ctx context.Context, workspaceID string) error {
	return nil
}

func (f *fakeClient) SendMessage(ctx context.Context, workspaceID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent[workspaceID] = append(f.sent[workspaceID], message)
	return nil
}

func (f *fakeClient) MessageCount(ctx context.Context, workspaceID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[workspaceID]), nil
}

func (f *fakeClient) WaitForResponse(ctx context.Context, workspaceID string, baseline int, timeout time.Duration) (string, error) {
	select {
	case resp := <-f.responseChan(workspaceID):
		return resp, nil
	case <-time.After(timeout):
		return fmt.Sprintf("%s: agent did not respond within %s]", workbench.TimeoutMarkerPrefix, timeout), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeClient) Probe(ctx context.Context, workspaceID string) workbench.ProbeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.probes[workspaceID]; ok {
		return r
	}
	return workbench.ProbeResult{Status: workbench.ProbeAlive}
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *fakeClient) {
	t.Helper()
	if opts.TaskTimeout == 0 {
		opts.TaskTimeout = 2 * time.Second
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	client := newFakeClient()
	e := New(store.Open(t.TempDir()), client, opts)
	t.Cleanup(func() { e.Close() })
	return e, client
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

func spawnAgents(t *testing.T, e *Engine, roles ...string) []string {
	t.Helper()
	specs := make([]AgentSpec, len(roles))
	for i, r := range roles {
		specs[i] = AgentSpec{Role: r}
	}
	result, err := e.Spawn(context.Background(), "/repo", specs, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	ids := make([]string, len(result.Outcomes))
	for i, o := range result.Outcomes {
		if !o.Ready() {
			t.Fatalf("agent %d not ready: %s", i, o.Status)
		}
		ids[i] = o.AgentID
	}
	return ids
}

func TestSpawnRegistersIdleAgents(t *testing.T) {
	e, client := newTestEngine(t, Options{})

	result, err := e.Spawn(context.Background(), "/repo", []AgentSpec{
		{Role: "fe", SystemPrompt: "you build UIs"},
		{Role: "be"},
	}, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(result.Outcomes))
	}

	for _, o := range result.Outcomes {
		if !o.Ready() {
			t.Errorf("outcome %s: %s", o.AgentID, o.Status)
		}
		agent, ok := e.store.GetAgent(o.AgentID)
		if !ok {
			t.Fatalf("agent %s not registered", o.AgentID)
		}
		if agent.Status != models.AgentStatusIdle {
			t.Errorf("agent %s status = %s, want idle", o.AgentID, agent.Status)
		}
	}

	// The fe agent got a priming message.
	var feWs string
	for _, o := range result.Outcomes {
		if o.Role == "fe" {
			feWs = o.WorkspaceID
		}
	}
	msgs := client.sentMessages(feWs)
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "[SYSTEM]") {
		t.Errorf("priming messages = %v", msgs)
	}
}

func TestSpawnReportsPerAgentFailure(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.setCreateErr(errors.New("workbench down"))

	result, err := e.Spawn(context.Background(), "/repo", []AgentSpec{{Role: "fe"}}, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if result.Outcomes[0].Ready() {
		t.Error("outcome should report the workspace failure")
	}
	if len(e.store.Agents()) != 0 {
		t.Error("no agent record should exist for a failed spawn")
	}
}

func TestDispatchUnknownAgent(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	_, err := e.Dispatch(context.Background(), "agent-999", "do things", 0)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestDispatchAndComplete(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe")

	result, err := e.Dispatch(context.Background(), ids[0], "build UI", 0)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Status != models.TaskStatusRunning {
		t.Fatalf("task status = %s, want running", result.Status)
	}

	// Working agent invariant: current task set and running.
	agent, _ := e.store.GetAgent(ids[0])
	if agent.Status != models.AgentStatusWorking || agent.CurrentTaskID != result.TaskID {
		t.Errorf("agent = %+v", agent)
	}

	client.respond(agent.WorkspaceID, "UI built")

	waitFor(t, func() bool {
		task, _ := e.store.GetTask(result.TaskID)
		return task.Status == models.TaskStatusCompleted
	}, "task completion")

	task, _ := e.store.GetTask(result.TaskID)
	if task.Result != "UI built" {
		t.Errorf("task result = %q", task.Result)
	}
	waitFor(t, func() bool {
		a, _ := e.store.GetAgent(ids[0])
		return a.Status == models.AgentStatusIdle && a.CurrentTaskID == "" && a.TasksCompleted == 1
	}, "agent back to idle")
}

func TestDispatchSendFailureRecordsFailedTask(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe")
	client.setSendErr(errors.New("connection refused"))

	result, err := e.Dispatch(context.Background(), ids[0], "build UI", 0)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Status != models.TaskStatusFailed || result.Error == "" {
		t.Errorf("result = %+v, want failed with error", result)
	}

	agent, _ := e.store.GetAgent(ids[0])
	if agent.Status != models.AgentStatusIdle {
		t.Errorf("agent status = %s, want idle after failed send", agent.Status)
	}
}

func TestDispatchTimesOut(t *testing.T) {
	e, _ := newTestEngine(t, Options{TaskTimeout: 50 * time.Millisecond})
	ids := spawnAgents(t, e, "fe")

	result, err := e.Dispatch(context.Background(), ids[0], "build UI", 0)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	waitFor(t, func() bool {
		task, _ := e.store.GetTask(result.TaskID)
		return task.Status == models.TaskStatusTimeout
	}, "task timeout")

	task, _ := e.store.GetTask(result.TaskID)
	if task.Error == "" {
		t.Error("timed-out task should carry an error")
	}
	waitFor(t, func() bool {
		a, _ := e.store.GetAgent(ids[0])
		return a.Status == models.AgentStatusIdle && a.TasksCompleted == 0
	}, "agent reclaimed without credit")
}

func TestSharedMemoryInjection(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe")

	if err := e.MemorySet("schema", "v2"); err != nil {
		t.Fatalf("MemorySet failed: %v", err)
	}
	if _, err := e.Dispatch(context.Background(), ids[0], "build UI", 0); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	agent, _ := e.store.GetAgent(ids[0])
	msgs := client.sentMessages(agent.WorkspaceID)
	last := msgs[len(msgs)-1]
	if !strings.HasPrefix(last, "[SHARED CONTEXT]\n[schema]: v2") {
		t.Errorf("message missing context block: %q", last)
	}
	if !strings.Contains(last, "\n\n[TASK]\nbuild UI") {
		t.Errorf("message missing task block: %q", last)
	}
}

func TestStageDependencyGating(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe", "be", "qa")

	impl, err := e.ExecuteStage(context.Background(), "impl", []StageTaskSpec{
		{AgentID: ids[0], Instruction: "build UI"},
		{AgentID: ids[1], Instruction: "build API"},
	}, nil)
	if err != nil {
		t.Fatalf("ExecuteStage failed: %v", err)
	}
	if impl.Launched() != 2 {
		t.Fatalf("launched = %d, want 2", impl.Launched())
	}

	// Test stage must be rejected while impl is still running.
	_, err = e.ExecuteStage(context.Background(), "test", []StageTaskSpec{
		{AgentID: ids[2], Instruction: "run e2e"},
	}, []string{impl.StageID})
	if !errors.Is(err, ErrStageNotReady) {
		t.Fatalf("err = %v, want ErrStageNotReady", err)
	}

	// Unknown dependency is a distinct error.
	_, err = e.ExecuteStage(context.Background(), "test", []StageTaskSpec{
		{AgentID: ids[2], Instruction: "run e2e"},
	}, []string{"stage-99"})
	if !errors.Is(err, ErrStageNotFound) {
		t.Fatalf("err = %v, want ErrStageNotFound", err)
	}

	// Complete both impl tasks; stage rolls up.
	for _, id := range ids[:2] {
		agent, _ := e.store.GetAgent(id)
		client.respond(agent.WorkspaceID, "done")
	}
	waitFor(t, func() bool {
		st, _ := e.store.GetStage(impl.StageID)
		return st.Status == models.StageStatusCompleted
	}, "impl stage completion")

	st, _ := e.store.GetStage(impl.StageID)
	if st.CriticalPath <= 0 {
		t.Error("completed stage should record a critical-path duration")
	}

	// Now the dependent stage is accepted.
	testStage, err := e.ExecuteStage(context.Background(), "test", []StageTaskSpec{
		{AgentID: ids[2], Instruction: "run e2e"},
	}, []string{impl.StageID})
	if err != nil {
		t.Fatalf("dependent stage rejected after dependency completed: %v", err)
	}
	if testStage.Launched() != 1 {
		t.Errorf("launched = %d, want 1", testStage.Launched())
	}
}

func TestStageRecordsUnknownAgent(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe")

	result, err := e.ExecuteStage(context.Background(), "impl", []StageTaskSpec{
		{AgentID: ids[0], Instruction: "build UI"},
		{AgentID: "agent-999", Instruction: "build API"},
	}, nil)
	if err != nil {
		t.Fatalf("ExecuteStage failed: %v", err)
	}
	if result.Launched() != 1 {
		t.Errorf("launched = %d, want 1", result.Launched())
	}

	found := false
	for _, l := range result.Launches {
		if l.AgentID == "agent-999" && l.Status == "agent not found" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing per-task failure: %+v", result.Launches)
	}
}

func TestStageFailsWhenNoTaskCompletes(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe")
	client.setSendErr(errors.New("connection refused"))

	result, err := e.ExecuteStage(context.Background(), "impl", []StageTaskSpec{
		{AgentID: ids[0], Instruction: "build UI"},
	}, nil)
	if err != nil {
		t.Fatalf("ExecuteStage failed: %v", err)
	}

	// All sends failed, so the stage is already decided at launch.
	st, _ := e.store.GetStage(result.StageID)
	if st.Status != models.StageStatusFailed {
		t.Errorf("stage status = %s, want failed", st.Status)
	}
}

func TestSpecializePreconditions(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe")

	if err := e.Specialize(context.Background(), "agent-999", "qa", "test things"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}

	if _, err := e.Dispatch(context.Background(), ids[0], "build UI", 0); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := e.Specialize(context.Background(), ids[0], "qa", "test things"); !errors.Is(err, ErrAgentBusy) {
		t.Errorf("err = %v, want ErrAgentBusy", err)
	}

	agent, _ := e.store.GetAgent(ids[0])
	client.respond(agent.WorkspaceID, "done")
	waitFor(t, func() bool {
		a, _ := e.store.GetAgent(ids[0])
		return a.Status == models.AgentStatusIdle
	}, "agent idle")

	if err := e.Specialize(context.Background(), ids[0], "qa", "test things"); err != nil {
		t.Fatalf("Specialize failed: %v", err)
	}
	agent, _ = e.store.GetAgent(ids[0])
	if agent.Role != "qa" || agent.SystemPrompt != "test things" {
		t.Errorf("agent = %+v", agent)
	}
}

func TestRetire(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	ids := spawnAgents(t, e, "fe")

	retired, err := e.Retire(context.Background(), ids[0], true)
	if err != nil {
		t.Fatalf("Retire failed: %v", err)
	}
	if retired.Status != models.AgentStatusRetired {
		t.Errorf("status = %s, want retired", retired.Status)
	}
}

func TestCloseDrainsWatchers(t *testing.T) {
	e, _ := newTestEngine(t, Options{TaskTimeout: time.Hour})
	ids := spawnAgents(t, e, "fe")

	if _, err := e.Dispatch(context.Background(), ids[0], "build UI", 0); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not drain watchers")
	}
}

func TestCloseSuspendsRunningTaskForResume(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	opts := Options{TaskTimeout: time.Hour, PollInterval: 10 * time.Millisecond}

	e1 := New(store.Open(dir), client, opts)
	ids := spawnAgents(t, e1, "fe")
	result, err := e1.Dispatch(context.Background(), ids[0], "build UI", 0)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	e1.Close()

	// The interrupted watcher must not settle the task.
	task, err2 := e1.GetTask(result.TaskID)
	if err2 != nil {
		t.Fatalf("GetTask failed: %v", err2)
	}
	if task.Status != models.TaskStatusRunning {
		t.Fatalf("task after Close = %s, want running", task.Status)
	}

	// A new engine over the same state re-arms the watcher.
	e2 := New(store.Open(dir), client, opts)
	defer e2.Close()

	client.respond(task.WorkspaceID, "done")
	waitFor(t, func() bool {
		got, err := e2.GetTask(result.TaskID)
		return err == nil && got.Status == models.TaskStatusCompleted
	}, "resumed watcher completed the task")
}
