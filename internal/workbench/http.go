package workbench

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to the workbench ORPC API over HTTP JSON.
// All methods correspond to routes exposed at /orpc/*.
type HTTPClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	// pollInterval is how often WaitForResponse re-reads the replay.
	pollInterval time.Duration
}

// NewHTTPClient creates a workbench client for the given endpoint.
// The authToken may be empty for unauthenticated local workbenches.
func NewHTTPClient(baseURL, authToken string, requestTimeout time.Duration) *HTTPClient {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		authToken:    authToken,
		client:       &http.Client{Timeout: requestTimeout},
		pollInterval: 2 * time.Second,
	}
}

// apiError is a non-2xx reply from the workbench API. It keeps the status
// code so callers can branch on it instead of parsing the message.
type apiError struct {
	StatusCode int
	Route      string
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("workbench API error %d on %s: %s", e.StatusCode, e.Route, e.Body)
}

// post issues a JSON POST to an ORPC route and decodes the response into out.
func (c *HTTPClient) post(ctx context.Context, route string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orpc"+route, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("workbench request %s: %w", route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{StatusCode: resp.StatusCode, Route: route, Body: strings.TrimSpace(string(text))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", route, err)
		}
	}
	return nil
}

// Ping reports whether the workbench health endpoint responds.
func (c *HTTPClient) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListBranches returns branch information for a project.
func (c *HTTPClient) ListBranches(ctx context.Context, projectPath string) (*BranchInfo, error) {
	var info BranchInfo
	err := c.post(ctx, "/projects.listBranches", map[string]string{"projectPath": projectPath}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// createWorkspaceResponse is the workbench's create envelope.
type createWorkspaceResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Metadata struct {
			ID string `json:"id"`
		} `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

// CreateWorkspace creates an isolated workspace and returns its id.
func (c *HTTPClient) CreateWorkspace(ctx context.Context, params CreateWorkspaceParams) (string, error) {
	var resp createWorkspaceResponse
	if err := c.post(ctx, "/workspace.create", params, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Data == nil || resp.Data.Metadata.ID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("create workspace: %s", resp.Error)
		}
		return "", fmt.Errorf("create workspace: no workspace id in response")
	}
	return resp.Data.Metadata.ID, nil
}

// ackResponse is the workbench's generic success envelope.
type ackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ArchiveWorkspace archives a workspace.
func (c *HTTPClient) ArchiveWorkspace(ctx context.Context, workspaceID string) error {
	var resp ackResponse
	if err := c.post(ctx, "/workspace.archive", map[string]string{"workspaceId": workspaceID}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("archive workspace: %s", resp.Error)
	}
	return nil
}

// SendMessage delivers an instruction into a workspace.
func (c *HTTPClient) SendMessage(ctx context.Context, workspaceID, message string) error {
	var resp ackResponse
	body := map[string]string{"workspaceId": workspaceID, "message": message}
	if err := c.post(ctx, "/workspace.sendMessage", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("send message: %s", resp.Error)
	}
	return nil
}

// replayMessage is one entry of a workspace's full replay.
type replayMessage struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Text    string `json:"text"`
}

func (m replayMessage) isAssistant() bool {
	return m.Role == "assistant" || m.Type == "assistant"
}

func (m replayMessage) body() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Text
}

// getFullReplay fetches the full message replay for a workspace.
func (c *HTTPClient) getFullReplay(ctx context.Context, workspaceID string) ([]replayMessage, error) {
	var replay []replayMessage
	err := c.post(ctx, "/workspace.getFullReplay", map[string]string{"workspaceId": workspaceID}, &replay)
	if err != nil {
		return nil, err
	}
	return replay, nil
}

// MessageCount returns the number of prior outputs in a workspace.
func (c *HTTPClient) MessageCount(ctx context.Context, workspaceID string) (int, error) {
	replay, err := c.getFullReplay(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	return len(replay), nil
}

// WaitForResponse polls the workspace replay until a new assistant message
// appears beyond the baseline, then returns its text. Transient replay
// failures keep the poll alive. On deadline it returns the timeout marker.
func (c *HTTPClient) WaitForResponse(ctx context.Context, workspaceID string, baseline int, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		replay, err := c.getFullReplay(ctx, workspaceID)
		if err != nil {
			continue
		}
		if len(replay) <= baseline {
			continue
		}

		text := lastAssistantText(replay)
		if text == "" {
			continue
		}

		// One more poll so a still-streaming message settles.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
		if final, err := c.getFullReplay(ctx, workspaceID); err == nil {
			if settled := lastAssistantText(final); settled != "" {
				return settled, nil
			}
		}
		return text, nil
	}

	return fmt.Sprintf("%s: agent did not respond within %s]", TimeoutMarkerPrefix, timeout), nil
}

// lastAssistantText returns the body of the last assistant message, or "".
func lastAssistantText(replay []replayMessage) string {
	for i := len(replay) - 1; i >= 0; i-- {
		if replay[i].isAssistant() {
			return replay[i].body()
		}
	}
	return ""
}

// Probe checks whether a workspace is still alive via workspace.getInfo.
func (c *HTTPClient) Probe(ctx context.Context, workspaceID string) ProbeResult {
	var info map[string]any
	err := c.post(ctx, "/workspace.getInfo", map[string]string{"workspaceId": workspaceID}, &info)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return ProbeResult{Status: ProbeNotFound}
		}
		return ProbeResult{Status: ProbeError, Reason: err.Error()}
	}
	if len(info) == 0 {
		return ProbeResult{Status: ProbeNotFound}
	}
	return ProbeResult{Status: ProbeAlive}
}
