package terminal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/ashureev/claude-relay/internal/executor"
	"github.com/ashureev/claude-relay/internal/logging"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// ChangePoller runs change-detection polls.
type ChangePoller interface {
	Poll(ctx context.Context, lastKnown domain.Fingerprint) (domain.PollResult, error)
	Interval() time.Duration
}

// watchEvent is a message pushed to output watchers.
type watchEvent struct {
	Type   string `json:"type"`
	Output string `json:"output,omitempty"`
	Hash   string `json:"hash,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WatchHandler streams snapshot changes over a WebSocket. Each change found
// by the poll loop is pushed as an "output" event; fetch failures are pushed
// as "error" events and polling resumes after one check interval.
type WatchHandler struct {
	poller         ChangePoller
	mgr            *WatcherManager
	originPatterns []string
	log            *slog.Logger
}

// NewWatchHandler creates the /ws/output handler.
func NewWatchHandler(poller ChangePoller, mgr *WatcherManager, allowedOrigins []string) *WatchHandler {
	return &WatchHandler{
		poller:         poller,
		mgr:            mgr,
		originPatterns: originPatterns(allowedOrigins),
		log:            logging.ForComponent(logging.CompWatch),
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "watch ended"); closeErr != nil {
			h.log.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	id := h.mgr.Register(ws)
	defer h.mgr.Unregister(id, ws)

	// Clients never send; CloseRead cancels ctx when the peer goes away.
	ctx := ws.CloseRead(r.Context())
	hash := domain.Fingerprint(r.URL.Query().Get("hash"))
	h.log.Info("Output watch started", "watcher_id", id, "hash", hash)

	h.watch(ctx, ws, hash)
	h.log.Info("Output watch ended", "watcher_id", id)
}

func (h *WatchHandler) watch(ctx context.Context, ws *websocket.Conn, hash domain.Fingerprint) {
	for {
		res, err := h.poller.Poll(ctx, hash)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if h.send(ctx, ws, watchEvent{Type: "error", Error: executor.Message(err)}) != nil {
				return
			}
			if sleepContext(ctx, h.poller.Interval()) != nil {
				return
			}
			continue
		}

		if !res.Changed {
			continue
		}
		hash = res.Fingerprint
		event := watchEvent{Type: "output", Output: string(res.Snapshot), Hash: string(res.Fingerprint)}
		if h.send(ctx, ws, event) != nil {
			return
		}
	}
}

func (h *WatchHandler) send(ctx context.Context, ws *websocket.Conn, event watchEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, ws, event); err != nil {
		h.log.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}

// originPatterns converts configured origins into coder/websocket host
// patterns. An empty list or "*" allows any origin.
func originPatterns(allowed []string) []string {
	if len(allowed) == 0 {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return []string{"*"}
		}
		patterns = append(patterns, hostOf(o))
	}
	return patterns
}

func hostOf(origin string) string {
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
}
