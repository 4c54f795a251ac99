// Package web embeds the browser client (public/) and serves its single page.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
)

//go:embed all:public
var publicFS embed.FS

const indexFile = "index.html"

// Assets returns the embedded public/ directory.
func Assets() fs.FS {
	sub, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return sub
}

// IndexHandler serves index.html from assets, or 500 when it is missing.
func IndexHandler(assets fs.FS) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		page, err := fs.ReadFile(assets, indexFile)
		if err != nil {
			slog.Error("web: index page unavailable", "error", err)
			http.Error(w, "index.html not found", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(page); err != nil {
			slog.Debug("web: failed to write index page", "error", err)
		}
	})
}
