package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleStatic serves the built web client from dir, falling back to
// index.html for client-side routes
func HandleStatic(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")

		// Prevent directory traversal attacks
		if strings.Contains(path, "..") {
			http.Error(w, "Invalid file path", http.StatusBadRequest)
			return
		}
		if path == "" || !strings.Contains(filepath.Base(path), ".") {
			path = "index.html"
		}

		switch {
		case strings.HasSuffix(path, ".css"):
			w.Header().Set("Content-Type", "text/css")
		case strings.HasSuffix(path, ".js"):
			w.Header().Set("Content-Type", "application/javascript")
		case strings.HasSuffix(path, ".html"):
			w.Header().Set("Content-Type", "text/html")
		}

		http.ServeFile(w, r, filepath.Join(dir, filepath.FromSlash(path)))
	}
}
