package api

import (
	"net/http"

	"github.com/ashureev/claude-relay/internal/domain"
)

type statusResponse struct {
	Connected bool                `json:"connected"`
	Session   domain.SessionState `json:"session"`
	Error     *string             `json:"error"`
}

type launchResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ackResponse struct {
	OK    bool    `json:"ok"`
	Error *string `json:"error"`
}

type sendRequest struct {
	Text string `json:"text"`
}

type keyRequest struct {
	Key string `json:"key"`
}

// Status reports whether the remote session exists.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state, err := h.session.Status(r.Context())
	JSON(w, http.StatusOK, statusResponse{
		Connected: err == nil,
		Session:   state,
		Error:     errorText(err),
	})
}

// New replaces the session with a fresh assistant.
func (h *Handler) New(w http.ResponseWriter, r *http.Request) {
	h.log.Info("New session requested")
	if err := h.session.Start(r.Context()); err != nil {
		h.log.Warn("New session failed", "error", err)
		JSON(w, http.StatusOK, launchResponse{Error: message(err)})
		return
	}
	JSON(w, http.StatusOK, launchResponse{OK: true, Message: "Session started"})
}

// Resume replaces the session with one resuming the last conversation.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.log.Info("Resume session requested")
	if err := h.session.Resume(r.Context()); err != nil {
		h.log.Warn("Resume session failed", "error", err)
		JSON(w, http.StatusOK, launchResponse{Error: message(err)})
		return
	}
	JSON(w, http.StatusOK, launchResponse{OK: true, Message: "Resume started"})
}

// Send types a line of text into the session.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	decodeBody(r, &req)

	err := h.session.SendText(r.Context(), req.Text)
	JSON(w, http.StatusOK, ackResponse{OK: err == nil, Error: errorText(err)})
}

// Key sends a named key to the session.
func (h *Handler) Key(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	decodeBody(r, &req)

	h.log.Debug("Key requested", "key", req.Key)
	err := h.session.SendKey(r.Context(), req.Key)
	JSON(w, http.StatusOK, ackResponse{OK: err == nil, Error: errorText(err)})
}

// Kill terminates the session. It always succeeds.
func (h *Handler) Kill(w http.ResponseWriter, r *http.Request) {
	h.log.Info("Kill session requested")
	h.session.Kill(r.Context())
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
