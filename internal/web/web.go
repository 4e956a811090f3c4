package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var assets embed.FS

// Handler serves the operator UI. Unknown paths fall back to index.html.
func Handler() http.Handler {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return spaHandler{files: static, indexPath: "index.html"}
}

type spaHandler struct {
	files     fs.FS
	indexPath string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name != "" {
		if info, err := fs.Stat(h.files, name); err == nil && !info.IsDir() {
			http.FileServerFS(h.files).ServeHTTP(w, r)
			return
		}
	}
	http.ServeFileFS(w, r, h.files, h.indexPath)
}
