package api

import (
	"net/http"

	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/ashureev/claude-relay/internal/terminal"
)

type outputResponse struct {
	OK     bool   `json:"ok"`
	Output string `json:"output"`
	Hash   string `json:"hash"`
	Error  string `json:"error,omitempty"`
}

type pollResponse struct {
	OK      bool   `json:"ok"`
	Output  string `json:"output"`
	Hash    string `json:"hash"`
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// Output returns the current pane snapshot and its fingerprint.
func (h *Handler) Output(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Fetch(r.Context())
	if err != nil {
		JSON(w, http.StatusOK, outputResponse{Error: message(err)})
		return
	}

	fp := terminal.Fingerprint(string(snapshot))
	if h.recorder != nil {
		h.recorder.Record(snapshot, fp)
	}
	JSON(w, http.StatusOK, outputResponse{OK: true, Output: string(snapshot), Hash: string(fp)})
}

// Poll long-polls until the pane differs from ?hash= or the wait budget
// runs out.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	lastKnown := domain.Fingerprint(r.URL.Query().Get("hash"))
	h.log.Debug("Poll requested", "hash", lastKnown)

	res, err := h.poller.Poll(r.Context(), lastKnown)
	if err != nil {
		if r.Context().Err() != nil {
			h.log.Debug("Poll abandoned", "error", r.Context().Err())
		}
		JSON(w, http.StatusOK, pollResponse{Error: message(err)})
		return
	}

	JSON(w, http.StatusOK, pollResponse{
		OK:      true,
		Output:  string(res.Snapshot),
		Hash:    string(res.Fingerprint),
		Changed: res.Changed,
	})
}
