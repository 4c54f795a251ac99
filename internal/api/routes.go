package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers the session and output endpoints under /api.
//
// None of these routes authenticate, and there is no route that changes the
// remote connection settings: those come from the environment and the
// optional config file at startup. The config file is watched for changes,
// so anyone able to write it can retarget the relay.
//
// requestTimeout bounds each request, including long polls; it must exceed
// the poll wait budget.
func (h *Handler) RegisterRoutes(r chi.Router, requestTimeout time.Duration) {
	r.Route("/api", func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(chiMiddleware.Timeout(requestTimeout))
		}
		r.Get("/status", h.Status)
		r.Post("/new", h.New)
		r.Post("/resume", h.Resume)
		r.Post("/send", h.Send)
		r.Post("/key", h.Key)
		r.Get("/output", h.Output)
		r.Get("/poll", h.Poll)
		r.Post("/kill", h.Kill)
	})
}
