package panel

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var placeholder embed.FS

// Handler returns an http.Handler serving the wall panel web UI.
//
// When dir names an existing directory, assets come from the filesystem,
// so a deployed UI build can be swapped without recompiling. Otherwise the
// embedded placeholder serves. Paths with no file behind them fall back to
// index.html with a 200, which is what a client-side router needs on hard
// reload.
func Handler(dir string) http.Handler {
	assets := pickAssets(dir)
	return &spaHandler{assets: assets, files: http.FileServer(assets)}
}

// pickAssets prefers the on-disk UI directory, falling back to the
// embedded placeholder. Panics only on a broken embed, which is a build
// error.
func pickAssets(dir string) http.FileSystem {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}
	sub, err := fs.Sub(placeholder, "web")
	if err != nil {
		panic("panel: embedded web assets missing: " + err.Error())
	}
	return http.FS(sub)
}

type spaHandler struct {
	assets http.FileSystem
	files  http.Handler
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// index.html mutates across deploys and must revalidate; build
	// pipelines hash everything else, so a blanket no-cache is safe.
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")

	if !h.exists(r.URL.Path) {
		r = r.Clone(r.Context())
		r.URL.Path = "/"
	}
	h.files.ServeHTTP(w, r)
}

// exists reports whether a real file backs the request path. The root
// always counts; FileServer resolves it to index.html itself.
func (h *spaHandler) exists(p string) bool {
	name := strings.TrimPrefix(path.Clean(p), "/")
	if name == "" || name == "." {
		return true
	}
	f, err := h.assets.Open(name)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
