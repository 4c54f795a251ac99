//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/claude-relay/internal/config"
	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/ashureev/claude-relay/internal/executor"
	"github.com/ashureev/claude-relay/internal/terminal"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records commands and answers by command prefix.
type fakeExecutor struct {
	mu       sync.Mutex
	commands []string
	replies  map[string]string
	failures map[string]string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{replies: map[string]string{}, failures: map[string]string{}}
}

func (f *fakeExecutor) Run(_ context.Context, command string) (executor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	for prefix, msg := range f.failures {
		if strings.HasPrefix(command, prefix) {
			return executor.Result{}, &executor.ExecutionError{Message: msg}
		}
	}
	for prefix, out := range f.replies {
		if strings.HasPrefix(command, prefix) {
			return executor.Result{Stdout: out}, nil
		}
	}
	return executor.Result{}, nil
}

func (f *fakeExecutor) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type testServer struct {
	router http.Handler
	exec   *fakeExecutor
	cache  *terminal.LastSeen
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	exec := newFakeExecutor()
	remote := config.NewRemoteCell(config.Remote{
		Host:          "192.0.2.10",
		Port:          22,
		User:          "dev",
		Session:       domain.DefaultSessionName,
		LaunchCommand: "claude --dangerously-skip-permissions",
	})
	cache := &terminal.LastSeen{}
	fetcher := terminal.NewFetcher(exec, remote)
	poller := terminal.NewPoller(fetcher, cache, config.PollConfig{
		MaxWait:       60 * time.Millisecond,
		CheckInterval: 10 * time.Millisecond,
	})

	h := NewHandler(terminal.NewController(exec, remote), fetcher, poller, cache)
	r := chi.NewRouter()
	r.NotFound(NotFound)
	NewHealthHandler(func() string { return "http://10.43.215.37" }, cache).RegisterHealth(r)
	h.RegisterRoutes(r, 5*time.Second)

	return &testServer{router: r, exec: exec, cache: cache}
}

func (s *testServer) do(t *testing.T, method, path, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"foo":"bar"}`, w.Body.String())
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/nope", "/whatever"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	got := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, map[string]any{"ok": true, "api": "http://10.43.215.37"}, got)
	assert.Empty(t, s.exec.Commands())
}

func TestHealthReportsLastOutput(t *testing.T) {
	s := newTestServer(t)
	s.exec.replies["tmux capture-pane"] = "hello world"
	s.do(t, http.MethodGet, "/api/output", "")

	got := s.do(t, http.MethodGet, "/health", "")
	last, ok := got["last_output"].(map[string]any)
	require.True(t, ok, got)
	assert.Equal(t, "6aefe2c4", last["hash"])
	seenAt, err := time.Parse(time.RFC3339Nano, last["seen_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), seenAt, time.Minute)
	assert.Len(t, s.exec.Commands(), 1)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeExecutor)
		want  map[string]any
	}{
		{
			name:  "active",
			setup: func(e *fakeExecutor) { e.replies["tmux has-session"] = "ACTIVE\n" },
			want:  map[string]any{"connected": true, "session": "ACTIVE", "error": nil},
		},
		{
			name:  "none",
			setup: func(e *fakeExecutor) { e.replies["tmux has-session"] = "NONE\n" },
			want:  map[string]any{"connected": true, "session": "NONE", "error": nil},
		},
		{
			name:  "unreachable",
			setup: func(e *fakeExecutor) { e.failures["tmux has-session"] = "Timed out while waiting for handshake" },
			want:  map[string]any{"connected": false, "session": "ERROR", "error": "Timed out while waiting for handshake"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setup(s.exec)
			assert.Equal(t, tt.want, s.do(t, http.MethodGet, "/api/status", ""))
		})
	}
}

func TestNewKillsThenCreatesEvenWhenKillFails(t *testing.T) {
	s := newTestServer(t)
	s.exec.failures["tmux kill-session"] = "no server running on /tmp/tmux-501/default"

	got := s.do(t, http.MethodPost, "/api/new", "")
	assert.Equal(t, map[string]any{"ok": true, "message": "Session started"}, got)

	cmds := s.exec.Commands()
	require.Len(t, cmds, 2)
	assert.True(t, strings.HasPrefix(cmds[0], "tmux kill-session -t claude-ui"))
	assert.True(t, strings.HasPrefix(cmds[1], "tmux new-session -d -s claude-ui"))
}

func TestNewFailure(t *testing.T) {
	s := newTestServer(t)
	s.exec.failures["tmux new-session"] = "All configured authentication methods failed"

	got := s.do(t, http.MethodPost, "/api/new", "")
	assert.Equal(t, map[string]any{"ok": false, "error": "All configured authentication methods failed"}, got)
}

func TestResume(t *testing.T) {
	s := newTestServer(t)

	got := s.do(t, http.MethodPost, "/api/resume", "")
	assert.Equal(t, map[string]any{"ok": true, "message": "Resume started"}, got)

	cmds := s.exec.Commands()
	require.Len(t, cmds, 2)
	assert.Contains(t, cmds[1], "--resume' Enter")
}

func TestSendValidation(t *testing.T) {
	for _, body := range []string{"", "{}", `{"text":""}`, `{not json`} {
		t.Run(body, func(t *testing.T) {
			s := newTestServer(t)
			got := s.do(t, http.MethodPost, "/api/send", body)
			assert.Equal(t, map[string]any{"ok": false, "error": "No text provided"}, got)
			assert.Empty(t, s.exec.Commands())
		})
	}
}

func TestSend(t *testing.T) {
	s := newTestServer(t)

	got := s.do(t, http.MethodPost, "/api/send", `{"text":"fix the failing test"}`)
	assert.Equal(t, map[string]any{"ok": true, "error": nil}, got)
	assert.Equal(t, []string{"tmux send-keys -t claude-ui 'fix the failing test' Enter"}, s.exec.Commands())
}

func TestSendExecutorFailure(t *testing.T) {
	s := newTestServer(t)
	s.exec.failures["tmux send-keys"] = "Connection refused"

	got := s.do(t, http.MethodPost, "/api/send", `{"text":"hi"}`)
	assert.Equal(t, map[string]any{"ok": false, "error": "Connection refused"}, got)
}

func TestKey(t *testing.T) {
	s := newTestServer(t)

	got := s.do(t, http.MethodPost, "/api/key", `{}`)
	assert.Equal(t, map[string]any{"ok": false, "error": "No key provided"}, got)

	got = s.do(t, http.MethodPost, "/api/key", `{"key":"Escape"}`)
	assert.Equal(t, map[string]any{"ok": true, "error": nil}, got)
	assert.Equal(t, []string{"tmux send-keys -t claude-ui Escape"}, s.exec.Commands())
}

func TestOutput(t *testing.T) {
	s := newTestServer(t)
	s.exec.replies["tmux capture-pane"] = "hello world"

	got := s.do(t, http.MethodGet, "/api/output", "")
	assert.Equal(t, map[string]any{"ok": true, "output": "hello world", "hash": "6aefe2c4"}, got)

	snap, fp, _ := s.cache.Get()
	assert.Equal(t, domain.Snapshot("hello world"), snap)
	assert.Equal(t, domain.Fingerprint("6aefe2c4"), fp)
}

func TestOutputFailure(t *testing.T) {
	s := newTestServer(t)
	s.exec.failures["tmux capture-pane"] = "can't find session: claude-ui"

	got := s.do(t, http.MethodGet, "/api/output", "")
	assert.Equal(t, map[string]any{"ok": false, "output": "", "hash": "", "error": "can't find session: claude-ui"}, got)
}

func TestPollWithoutHash(t *testing.T) {
	s := newTestServer(t)
	s.exec.replies["tmux capture-pane"] = "X"

	got := s.do(t, http.MethodGet, "/api/poll", "")
	assert.Equal(t, map[string]any{"ok": true, "output": "X", "hash": "58", "changed": true}, got)
	assert.Len(t, s.exec.Commands(), 1)
}

func TestPollUnchanged(t *testing.T) {
	s := newTestServer(t)
	s.exec.replies["tmux capture-pane"] = "X"

	start := time.Now()
	got := s.do(t, http.MethodGet, "/api/poll?hash=58", "")
	assert.Equal(t, map[string]any{"ok": true, "output": "", "hash": "58", "changed": false}, got)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Greater(t, len(s.exec.Commands()), 1)
}

func TestPollFailure(t *testing.T) {
	s := newTestServer(t)
	s.exec.failures["tmux capture-pane"] = "Connection refused"

	got := s.do(t, http.MethodGet, "/api/poll?hash=58", "")
	assert.Equal(t, map[string]any{"ok": false, "output": "", "hash": "", "changed": false, "error": "Connection refused"}, got)
	assert.Len(t, s.exec.Commands(), 1)
}

func TestKillAlwaysSucceeds(t *testing.T) {
	s := newTestServer(t)
	s.exec.failures["tmux kill-session"] = "Connection refused"

	got := s.do(t, http.MethodPost, "/api/kill", "")
	assert.Equal(t, map[string]any{"ok": true}, got)
	assert.Equal(t, []string{"tmux kill-session -t claude-ui 2>/dev/null || true"}, s.exec.Commands())
}
