package api

import (
	"net/http"
	"time"

	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/go-chi/chi/v5"
)

// LastSeenReader exposes the most recent snapshot served to any client.
type LastSeenReader interface {
	Get() (domain.Snapshot, domain.Fingerprint, time.Time)
}

// HealthHandler answers liveness checks.
type HealthHandler struct {
	endpoint func() string
	lastSeen LastSeenReader
}

// NewHealthHandler creates a health handler reporting the executor endpoint
// and, once any client has read the pane, the last fingerprint served.
func NewHealthHandler(endpoint func() string, lastSeen LastSeenReader) *HealthHandler {
	return &HealthHandler{endpoint: endpoint, lastSeen: lastSeen}
}

type lastOutput struct {
	Hash   domain.Fingerprint `json:"hash"`
	SeenAt time.Time          `json:"seen_at"`
}

// Health reports process liveness. It never contacts the remote host.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"ok":  true,
		"api": h.endpoint(),
	}
	if h.lastSeen != nil {
		if _, fp, at := h.lastSeen.Get(); !at.IsZero() {
			resp["last_output"] = lastOutput{Hash: fp, SeenAt: at.UTC()}
		}
	}
	JSON(w, http.StatusOK, resp)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
