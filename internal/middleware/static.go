package middleware

import (
	"io/fs"
	"net/http"
	"strings"
)

// StaticHandler serves files from an embedded tree. Directories and missing
// files are 404s; there is no index fallback.
type StaticHandler struct {
	fs     http.FileSystem
	prefix string
}

func NewStaticHandler(fsys fs.FS, prefix string) *StaticHandler {
	return &StaticHandler{
		fs:     http.FS(fsys),
		prefix: prefix,
	}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	path := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, h.prefix), "/")
	if path == "" {
		http.NotFound(w, r)
		return
	}
	f, err := h.fs.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
}
