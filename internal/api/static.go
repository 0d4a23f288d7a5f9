package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/yegors/co-studio/pkg/logger"
)

// StaticFileHandler serves the browser UI without caching. Unknown paths
// fall back to index.html so panel URLs survive a reload.
type StaticFileHandler struct {
	root   fs.FS
	files  http.Handler
	logger *logger.Logger
}

// NewStaticFileHandler creates a handler serving staticDir
func NewStaticFileHandler(staticDir string, log *logger.Logger) *StaticFileHandler {
	root := os.DirFS(staticDir)
	return &StaticFileHandler{
		root:   root,
		files:  http.FileServerFS(root),
		logger: log.Named("static-handler"),
	}
}

// ServeHTTP serves a file, or index.html for unknown non-file paths
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	if _, err := fs.Stat(h.root, name); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Error("Failed to stat static file", logger.String("path", name), logger.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		// asset requests keep their 404
		if path.Ext(name) != "" {
			http.NotFound(w, r)
			return
		}
		h.logger.Debug("Falling back to index", logger.String("path", name))
		http.ServeFileFS(w, r, h.root, "index.html")
		return
	}

	h.files.ServeHTTP(w, r)
}
