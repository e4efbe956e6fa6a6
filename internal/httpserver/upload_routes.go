package httpserver

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// UploadRoutes returns a sub-router mounted at /api/uploads that serves
// files written by the media uploader.
func UploadRoutes(uploadDir string) chi.Router {
	r := chi.NewRouter()

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" {
			http.Error(w, "missing filename", http.StatusBadRequest)
			return
		}
		// Prevent path traversal by not allowing separators.
		if filepath.Base(filename) != filename || filename == "." || filename == ".." {
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(uploadDir, filename))
	})

	return r
}
