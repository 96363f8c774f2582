package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/swarmbench/swarmbench/pkg/models"
)

func completedStage(id string, dur time.Duration, deps ...string) models.Stage {
	return models.Stage{
		ID:           id,
		Status:       models.StageStatusCompleted,
		DependsOn:    deps,
		CriticalPath: dur,
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	err := Validate([]models.Stage{
		{ID: "stage-01", DependsOn: []string{"stage-99"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	err := Validate([]models.Stage{
		{ID: "stage-01", DependsOn: []string{"stage-02"}},
		{ID: "stage-02", DependsOn: []string{"stage-01"}},
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("err = %v, want ErrCycleDetected", err)
	}
}

func TestValidateAcceptsAcyclic(t *testing.T) {
	err := Validate([]models.Stage{
		{ID: "stage-01"},
		{ID: "stage-02", DependsOn: []string{"stage-01"}},
		{ID: "stage-03", DependsOn: []string{"stage-01", "stage-02"}},
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLongestChainLinear(t *testing.T) {
	// A linear chain of stages: total = sum of durations.
	stages := []models.Stage{
		completedStage("stage-01", 10*time.Second),
		completedStage("stage-02", 20*time.Second, "stage-01"),
		completedStage("stage-03", 30*time.Second, "stage-02"),
	}

	result := LongestChain(stages)
	if result.Total != 60*time.Second {
		t.Errorf("total = %v, want 60s", result.Total)
	}
	want := []string{"stage-01", "stage-02", "stage-03"}
	if len(result.Stages) != len(want) {
		t.Fatalf("path = %v, want %v", result.Stages, want)
	}
	for i := range want {
		if result.Stages[i] != want[i] {
			t.Errorf("path[%d] = %q, want %q", i, result.Stages[i], want[i])
		}
	}
}

func TestLongestChainBranching(t *testing.T) {
	// Two chains off one root: the longer branch wins.
	stages := []models.Stage{
		completedStage("stage-01", 10*time.Second),
		completedStage("stage-02", 5*time.Second, "stage-01"),
		completedStage("stage-03", 45*time.Second, "stage-01"),
	}

	result := LongestChain(stages)
	if result.Total != 55*time.Second {
		t.Errorf("total = %v, want 55s", result.Total)
	}
	if len(result.Stages) != 2 || result.Stages[1] != "stage-03" {
		t.Errorf("path = %v, want [stage-01 stage-03]", result.Stages)
	}
}

func TestLongestChainIgnoresIncomplete(t *testing.T) {
	stages := []models.Stage{
		completedStage("stage-01", 10*time.Second),
		{
			ID: "stage-02", Status: models.StageStatusRunning,
			DependsOn: []string{"stage-01"}, CriticalPath: 99 * time.Hour,
		},
	}

	result := LongestChain(stages)
	if result.Total != 10*time.Second {
		t.Errorf("total = %v, want 10s (running stage excluded)", result.Total)
	}
}

func TestLongestChainEmpty(t *testing.T) {
	result := LongestChain(nil)
	if result.Total != 0 || len(result.Stages) != 0 {
		t.Errorf("empty chain = %+v, want zero", result)
	}
}
