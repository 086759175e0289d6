// Package site serves the embedded plan form.
package site

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// Register mounts the plan form and its assets at /. Paths with no
// embedded file get a 404 from the file server.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("site: nil mux")
	}
	mux.Handle("/", NewRootHandler())
}

// RootHandler serves the embedded static directory.
type RootHandler struct {
	files http.Handler
}

func NewRootHandler() *RootHandler {
	root, err := fs.Sub(assets, "static")
	if err != nil {
		// Only reachable if the embed directive above stops matching.
		panic("site: " + err.Error())
	}
	return &RootHandler{files: http.FileServerFS(root)}
}

// ServeHTTP refuses anything but GET and HEAD. The form is small and
// changes with each deploy, so browsers revalidate it every time.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	h.files.ServeHTTP(w, r)
}
