// Package media serves sample media files over HTTP. Requests name files
// relative to a configured root and can never read outside it: paths are
// normalized before use and symlinks are resolved and checked against the
// root.
package media

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Handler serves files from below its root directory.
type Handler struct {
	root string
	log  zerolog.Logger
}

// NewHandler returns a Handler rooted at root, which must exist. The root
// is resolved once so later symlink checks compare real paths.
func NewHandler(root string, log zerolog.Logger) (*Handler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Handler{root: resolved, log: log}, nil
}

// ServeHTTP serves the file named by the path query parameter. The
// mime_type parameter overrides content type detection, which matters for
// media whose extension lies about its codec.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	if filepath.IsAbs(rel) {
		http.Error(w, "path must be relative to the media root", http.StatusForbidden)
		return
	}

	// Rooting the clean at / makes any .. prefix fold away instead of
	// climbing above the root.
	full := filepath.Join(h.root, filepath.Clean("/"+rel))

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if resolved != h.root && !strings.HasPrefix(resolved, h.root+string(os.PathSeparator)) {
		h.log.Warn().Str("path", rel).Str("remote", r.RemoteAddr).Msg("media request escaped the root")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	f, err := os.Open(resolved)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType := r.URL.Query().Get("mime_type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(resolved))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}
