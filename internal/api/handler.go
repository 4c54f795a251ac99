// Package api provides the relay's HTTP handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/ashureev/claude-relay/internal/executor"
	"github.com/ashureev/claude-relay/internal/logging"
)

// SessionControl manages the remote tmux session.
type SessionControl interface {
	Start(ctx context.Context) error
	Resume(ctx context.Context) error
	Kill(ctx context.Context)
	Status(ctx context.Context) (domain.SessionState, error)
	SendText(ctx context.Context, text string) error
	SendKey(ctx context.Context, key string) error
}

// SnapshotSource captures the current pane contents.
type SnapshotSource interface {
	Fetch(ctx context.Context) (domain.Snapshot, error)
}

// ChangePoller waits for the pane to differ from a known fingerprint.
type ChangePoller interface {
	Poll(ctx context.Context, lastKnown domain.Fingerprint) (domain.PollResult, error)
}

// SnapshotRecorder receives every snapshot served to a client.
type SnapshotRecorder interface {
	Record(snapshot domain.Snapshot, fp domain.Fingerprint)
}

// Handler provides common handler dependencies.
type Handler struct {
	session   SessionControl
	snapshots SnapshotSource
	poller    ChangePoller
	recorder  SnapshotRecorder
	log       *slog.Logger
}

// NewHandler creates a Handler. recorder may be nil.
func NewHandler(session SessionControl, snapshots SnapshotSource, poller ChangePoller, recorder SnapshotRecorder) *Handler {
	return &Handler{
		session:   session,
		snapshots: snapshots,
		poller:    poller,
		recorder:  recorder,
		log:       logging.ForComponent(logging.CompHTTP),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// NotFound answers unmatched routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusNotFound, "Not found")
}

// decodeBody reads a JSON object into v. Empty or malformed bodies leave v
// at its zero value.
func decodeBody(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("Ignoring malformed request body", "path", r.URL.Path, "error", err)
	}
}

// errorText returns nil for success so the field encodes as JSON null.
func errorText(err error) *string {
	if err == nil {
		return nil
	}
	msg := message(err)
	return &msg
}

func message(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return executor.Message(err)
}
