package static

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed dist
var dist embed.FS

var assetExt = map[string]bool{
	".js": true, ".css": true, ".svg": true, ".ico": true, ".png": true,
	".jpg": true, ".txt": true, ".map": true, ".webp": true,
}

func files() fs.FS {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}
	return sub
}

// Page returns an embedded HTML page shell such as "quiz.html".
func Page(name string) ([]byte, error) {
	return fs.ReadFile(files(), name)
}

// Handler serves embedded assets (flags, scripts, styles) by extension and
// 404s everything else.
func Handler() http.Handler {
	sub := files()
	fileServer := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := strings.ToLower(path.Ext(r.URL.Path))
		if strings.HasPrefix(r.URL.Path, "/assets/") || strings.HasPrefix(r.URL.Path, "/flags/") || assetExt[ext] {
			if strings.HasPrefix(r.URL.Path, "/flags/") {
				w.Header().Set("Cache-Control", "public, max-age=86400")
			}
			fileServer.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}
