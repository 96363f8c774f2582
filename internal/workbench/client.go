// Package workbench provides the client contract for the external workbench
// service that owns workspace creation, messaging, and archival. The engine
// treats every call as fallible and possibly slow; failures degrade the local
// record instead of propagating.
package workbench

import (
	"context"
	"strings"
	"time"
)

// TimeoutMarkerPrefix prefixes the string WaitForResponse returns when the
// agent produced no new output within the deadline.
const TimeoutMarkerPrefix = "[Timeout"

// IsTimeoutMarker reports whether a WaitForResponse result is the timeout
// marker rather than a real agent response.
func IsTimeoutMarker(response string) bool {
	return strings.HasPrefix(response, TimeoutMarkerPrefix)
}

// BranchInfo describes a project's branches as reported by the workbench.
type BranchInfo struct {
	Branches         []string `json:"branches"`
	RecommendedTrunk string   `json:"recommendedTrunk"`
}

// CreateWorkspaceParams are the inputs to workspace creation.
type CreateWorkspaceParams struct {
	ProjectPath string `json:"projectPath"`
	BranchName  string `json:"branchName"`
	TrunkBranch string `json:"trunkBranch,omitempty"`
	Title       string `json:"title,omitempty"`
}

// ProbeStatus classifies the result of a workspace liveness probe.
type ProbeStatus int

const (
	// ProbeAlive means the workspace exists and responded.
	ProbeAlive ProbeStatus = iota
	// ProbeNotFound means the workbench has no such workspace.
	ProbeNotFound
	// ProbeError means the probe itself failed (network, server error).
	ProbeError
)

// ProbeResult is the explicit outcome of a liveness probe.
type ProbeResult struct {
	Status ProbeStatus
	// Reason carries detail for ProbeError results.
	Reason string
}

// Client is the narrow contract the engine consumes. The real implementation
// talks HTTP to the workbench; tests substitute a fake.
type Client interface {
	// ListBranches returns branch information for a project. Callers treat
	// failure as "use main".
	ListBranches(ctx context.Context, projectPath string) (*BranchInfo, error)

	// CreateWorkspace creates an isolated workspace and returns its id.
	CreateWorkspace(ctx context.Context, params CreateWorkspaceParams) (string, error)

	// ArchiveWorkspace archives a workspace. Best-effort; callers swallow errors.
	ArchiveWorkspace(ctx context.Context, workspaceID string) error

	// SendMessage delivers an instruction into a workspace, triggering its
	// agent loop. The response streams back asynchronously.
	SendMessage(ctx context.Context, workspaceID, message string) error

	// MessageCount returns the number of prior outputs in a workspace,
	// used as the baseline for detecting new responses. Best-effort;
	// callers default to 0 on failure.
	MessageCount(ctx context.Context, workspaceID string) (int, error)

	// WaitForResponse blocks until the workspace produces a new assistant
	// message beyond the baseline count, or the timeout elapses. On timeout
	// it returns a marker string recognizable by IsTimeoutMarker.
	WaitForResponse(ctx context.Context, workspaceID string, baseline int, timeout time.Duration) (string, error)

	// Probe checks whether a workspace is still alive.
	Probe(ctx context.Context, workspaceID string) ProbeResult
}
