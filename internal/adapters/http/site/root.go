// Package site serves the embedded presentation overlay.
package site

import (
	"context"
	"net/http"
)

// Register attaches the overlay routes to mux. The overlay consumes /stream
// and /telemetry.png, so it must share a mux with the API.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/overlay/", http.StripPrefix("/overlay/", http.FileServer(FS())))
	mux.Handle("/{$}", http.RedirectHandler("/overlay/", http.StatusFound))
}
