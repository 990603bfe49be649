package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"
)

// spaFileSystem falls back to index.html for paths that do not exist, so
// client-side routes survive a reload.
type spaFileSystem struct {
	root http.FileSystem
}

func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return s.root.Open("index.html")
	}
	return f, err
}

// staticFileSystem serves files only; directories are reported missing.
type staticFileSystem struct {
	root http.FileSystem
}

func (s staticFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// spaHandler serves the client bundle. Unknown /api/ paths get a JSON 404
// instead of the index page.
func spaHandler(dist fs.FS) http.Handler {
	files := http.FileServer(&spaFileSystem{root: http.FS(dist)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		files.ServeHTTP(w, r)
	})
}
