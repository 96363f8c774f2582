package workbench

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, routes map[string]func(body map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		status, resp := handler(body)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClientCreateWorkspace(t *testing.T) {
	srv := newTestServer(t, map[string]func(map[string]any) (int, any){
		"/orpc/workspace.create": func(body map[string]any) (int, any) {
			if body["projectPath"] != "/repo" {
				t.Errorf("projectPath = %v", body["projectPath"])
			}
			return 200, map[string]any{
				"success": true,
				"data":    map[string]any{"metadata": map[string]any{"id": "ws-42"}},
			}
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	id, err := c.CreateWorkspace(context.Background(), CreateWorkspaceParams{
		ProjectPath: "/repo",
		BranchName:  "swarm-fe",
	})
	if err != nil {
		t.Fatalf("CreateWorkspace failed: %v", err)
	}
	if id != "ws-42" {
		t.Errorf("workspace id = %q, want ws-42", id)
	}
}

func TestHTTPClientCreateWorkspaceError(t *testing.T) {
	srv := newTestServer(t, map[string]func(map[string]any) (int, any){
		"/orpc/workspace.create": func(map[string]any) (int, any) {
			return 200, map[string]any{"success": false, "error": "branch exists"}
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	_, err := c.CreateWorkspace(context.Background(), CreateWorkspaceParams{ProjectPath: "/repo"})
	if err == nil {
		t.Fatal("expected error for unsuccessful create")
	}
}

func TestHTTPClientAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok-123", 5*time.Second)
	if err := c.SendMessage(context.Background(), "ws-1", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", gotAuth)
	}
}

func TestHTTPClientMessageCount(t *testing.T) {
	srv := newTestServer(t, map[string]func(map[string]any) (int, any){
		"/orpc/workspace.getFullReplay": func(map[string]any) (int, any) {
			return 200, []map[string]any{
				{"role": "user", "content": "task"},
				{"role": "assistant", "content": "done"},
			}
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	n, err := c.MessageCount(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("MessageCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestHTTPClientWaitForResponse(t *testing.T) {
	srv := newTestServer(t, map[string]func(map[string]any) (int, any){
		"/orpc/workspace.getFullReplay": func(map[string]any) (int, any) {
			return 200, []map[string]any{
				{"role": "user", "content": "task"},
				{"role": "assistant", "content": "the result"},
			}
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	c.pollInterval = 10 * time.Millisecond
	resp, err := c.WaitForResponse(context.Background(), "ws-1", 1, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForResponse failed: %v", err)
	}
	if resp != "the result" {
		t.Errorf("response = %q", resp)
	}
}

func TestHTTPClientWaitForResponseTimeout(t *testing.T) {
	srv := newTestServer(t, map[string]func(map[string]any) (int, any){
		"/orpc/workspace.getFullReplay": func(map[string]any) (int, any) {
			return 200, []map[string]any{{"role": "user", "content": "task"}}
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	c.pollInterval = 10 * time.Millisecond
	resp, err := c.WaitForResponse(context.Background(), "ws-1", 1, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForResponse failed: %v", err)
	}
	if !IsTimeoutMarker(resp) {
		t.Errorf("expected timeout marker, got %q", resp)
	}
}

func TestHTTPClientProbe(t *testing.T) {
	srv := newTestServer(t, map[string]func(map[string]any) (int, any){
		"/orpc/workspace.getInfo": func(body map[string]any) (int, any) {
			switch body["workspaceId"] {
			case "ws-alive":
				return 200, map[string]any{"id": "ws-alive", "title": "t"}
			case "ws-broken":
				// Server fault whose message happens to mention 404.
				return 500, map[string]any{"error": "lookup of shard 404 failed"}
			default:
				return 404, map[string]any{}
			}
		},
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)

	if got := c.Probe(context.Background(), "ws-alive"); got.Status != ProbeAlive {
		t.Errorf("probe alive status = %v", got.Status)
	}
	if got := c.Probe(context.Background(), "ws-gone"); got.Status != ProbeNotFound {
		t.Errorf("probe missing status = %v, want not-found", got.Status)
	}
	if got := c.Probe(context.Background(), "ws-broken"); got.Status != ProbeError {
		t.Errorf("probe server-fault status = %v, want error", got.Status)
	}
}

func TestIsTimeoutMarker(t *testing.T) {
	if !IsTimeoutMarker("[Timeout: agent did not respond within 10m0s]") {
		t.Error("marker not recognized")
	}
	if IsTimeoutMarker("all done") {
		t.Error("normal response misclassified as timeout")
	}
}
