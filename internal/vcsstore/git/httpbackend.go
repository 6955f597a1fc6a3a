package git

import (
	"net/http"
	"net/http/cgi"
	"strings"
)

// HTTPBackendHandler wraps the system git-http-backend CGI binary to serve
// the smart-HTTP protocol (info/refs, git-upload-pack, git-receive-pack)
// against repositories rooted at store.BaseDir. readOnly disables
// git-receive-pack, used on the public-facing mux while the admin mux
// keeps push enabled.
func (s *Store) HTTPBackendHandler(readOnly bool) http.Handler {
	env := []string{
		"GIT_PROJECT_ROOT=" + s.BaseDir,
		"GIT_HTTP_EXPORT_ALL=1",
	}
	if readOnly {
		env = append(env, "GIT_HTTP_RECEIVE_PACK=0")
	}
	h := &cgi.Handler{
		Path: "/usr/lib/git-core/git-http-backend",
		Root: "/",
		Dir:  s.BaseDir,
		Env:  env,
	}
	if !readOnly {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "git-receive-pack") {
			http.Error(w, "push disabled on this endpoint", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}
