package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const placeholderCover = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 120 180"><rect width="120" height="180" fill="#f0ece2"/><rect x="10" y="10" width="100" height="160" fill="none" stroke="#b5a88a" stroke-width="2"/><path d="M35 60h50M35 75h50M35 90h30" stroke="#b5a88a" stroke-width="4"/><text x="60" y="150" text-anchor="middle" font-family="Georgia" font-size="12" fill="#8a7d60">NO COVER</text></svg>`

// MediaFileServer serves uploaded book covers from dir and falls back to a
// placeholder cover for anything missing.
func MediaFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		path := filepath.Join(dir, name)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderCover))
	})
}
