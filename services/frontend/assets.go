package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/styles.css
var staticAssets embed.FS

// StaticHandler serves the embedded assets. They change only with a new
// build, so clients may cache them for a day.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(staticAssets, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(subFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fileServer.ServeHTTP(w, r)
	})
}
