package web

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var indexHTML []byte

// ServeIndex serves the embedded anonymization form
func ServeIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}
