package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var content embed.FS

// indexPath is served for the root and for any path without a matching asset.
const indexPath = "/"

// Handler returns an http.Handler that serves the log viewer.
//
// When dir is non-empty and the directory exists, assets are served from the
// filesystem (dev mode, edits show up on reload).
// When dir is empty, assets are served from the embedded go:embed FS (production).
//
// Both modes fall back to index.html for unknown paths.
// Panics if the embedded web assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	assets := assetFS(dir)
	fileServer := http.FileServer(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		upath := path.Clean("/" + r.URL.Path)
		if upath != indexPath && !exists(assets, upath) {
			r.URL.Path = indexPath
		}
		fileServer.ServeHTTP(w, r)
	})
}

// assetFS picks the on-disk directory when usable, else the embedded assets.
func assetFS(dir string) http.FileSystem {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}

	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
	}
	return http.FS(webFS)
}

// exists reports whether name is a file (not a directory) in fsys.
func exists(fsys http.FileSystem, name string) bool {
	f, err := fsys.Open(strings.TrimPrefix(name, "/"))
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	return err == nil && !info.IsDir()
}
