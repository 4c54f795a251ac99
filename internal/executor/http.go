package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ashureev/claude-relay/internal/config"
)

const maxResponseBytes = 8 << 20

// HTTPExecutor delegates to a command execution service that accepts
// POST <base>/ssh with the target host, credentials and command, and answers
// with {stdout, stderr, error}.
type HTTPExecutor struct {
	baseURL string
	remote  *config.RemoteCell
	client  *http.Client
}

// NewHTTPExecutor creates an executor for the service at baseURL. A nil
// client uses http.DefaultClient.
func NewHTTPExecutor(baseURL string, remote *config.RemoteCell, client *http.Client) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		remote:  remote,
		client:  client,
	}
}

type sshRequest struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Command  string `json:"command"`
	Port     int    `json:"port"`
}

type sshResponse struct {
	Stdout string          `json:"stdout"`
	Stderr string          `json:"stderr"`
	Error  json.RawMessage `json:"error"`
}

// Run implements Executor.
func (e *HTTPExecutor) Run(ctx context.Context, command string) (Result, error) {
	remote := e.remote.Load()

	body, err := json.Marshal(sshRequest{
		Host:     remote.Host,
		Username: remote.User,
		Password: remote.Password,
		Command:  command,
		Port:     remote.Port,
	})
	if err != nil {
		return Result{}, Failed(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/ssh", bytes.NewReader(body))
	if err != nil {
		return Result{}, Failed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, Failed(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var data sshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&data); err != nil {
		return Result{}, Failed(fmt.Errorf("decode %s response (status %d): %w", e.baseURL, resp.StatusCode, err))
	}

	if msg := errorText(data.Error); msg != "" {
		return Result{}, &ExecutionError{Message: msg}
	}

	return Result{Stdout: data.Stdout, Stderr: data.Stderr}, nil
}

// errorText renders the service's error field. Strings are used as-is; any
// other truthy JSON value is passed through in its raw form.
func errorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch string(raw) {
	case "null", "false", `""`, "0":
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Endpoint returns the service base URL.
func (e *HTTPExecutor) Endpoint() string {
	return e.baseURL
}
