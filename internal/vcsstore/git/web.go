package git

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

// Router builds the HTTP surface spec.md §4.7 specifies for the Git VCS
// store: a listing root, per-codebase metadata, remote registration, diff,
// and revision-info routes, plus the git smart-HTTP passthrough. admin
// controls whether git-receive-pack and the remote-registration route are
// enabled, mirroring runner.Server.Router's worker/operator split.
func (s *Store) Router(admin bool) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleListCodebases).Methods(http.MethodGet)
	r.HandleFunc("/{codebase}", s.handleGetCodebase).Methods(http.MethodGet)
	r.HandleFunc("/{codebase}/diff", s.handleDiff).Methods(http.MethodGet)
	r.HandleFunc("/{codebase}/revision", s.handleRevision).Methods(http.MethodGet)
	if admin {
		r.HandleFunc("/{codebase}/remote/{name}", s.handleSetRemote).Methods(http.MethodPost)
	}

	backend := s.HTTPBackendHandler(!admin)
	r.PathPrefix("/{codebase}.git/").Handler(backend)

	return r
}

// handleListCodebases implements GET /: a directory listing of every
// codebase this store currently holds a bare repository for.
func (s *Store) handleListCodebases(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		http.Error(w, "listing store: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var codebases []string
	for _, e := range entries {
		if e.IsDir() {
			codebases = append(codebases, trimDotGit(e.Name()))
		}
	}
	writeJSON(w, http.StatusOK, codebases)
}

// handleGetCodebase implements GET /{codebase}: whether a repository
// exists, and its current HEAD if so.
func (s *Store) handleGetCodebase(w http.ResponseWriter, r *http.Request) {
	codebase := mux.Vars(r)["codebase"]
	dir := s.repoDir(codebase)
	if _, err := os.Stat(dir); err != nil {
		http.Error(w, "no such codebase", http.StatusNotFound)
		return
	}
	head, err := s.RevParse(r.Context(), codebase, "HEAD")
	if err != nil {
		// An empty bare repo has no HEAD commit yet; report it as such
		// rather than failing the request.
		writeJSON(w, http.StatusOK, map[string]string{"codebase": codebase})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"codebase": codebase, "head": head})
}

// handleSetRemote implements POST /{codebase}/remote/{name}: the request
// body is the remote URL to register. The repository is created on first
// write, per spec.md §4.7's "repo creation is implicit" rule.
func (s *Store) handleSetRemote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	codebase, name := vars["codebase"], vars["name"]

	body, err := readLimited(r)
	if err != nil {
		http.Error(w, "reading request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	url := string(body)
	if url == "" {
		http.Error(w, "request body must be the remote URL", http.StatusBadRequest)
		return
	}

	dir, err := s.EnsureRepo(r.Context(), codebase)
	if err != nil {
		http.Error(w, "creating repository: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := s.executor.Run(dir, "remote", "remove", name); err != nil {
		s.logger.WithField("codebase", codebase).WithField("remote", name).Debug("remote remove before add (likely didn't exist)")
	}
	if _, err := s.executor.Run(dir, "remote", "add", name, url); err != nil {
		http.Error(w, "setting remote: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDiff implements GET /{codebase}/diff?old=&new=&path=.
func (s *Store) handleDiff(w http.ResponseWriter, r *http.Request) {
	codebase := mux.Vars(r)["codebase"]
	q := r.URL.Query()
	oldRev, newRev, path := q.Get("old"), q.Get("new"), q.Get("path")

	if !shaRE.MatchString(oldRev) || !shaRE.MatchString(newRev) {
		http.Error(w, "old and new must be full 40-character hex SHAs", http.StatusBadRequest)
		return
	}

	diff, err := s.Diff(r.Context(), codebase, oldRev, newRev, path)
	if err != nil {
		http.Error(w, "computing diff: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/x-diff")
	w.Write(diff)
}

// handleRevision implements GET /{codebase}/revision?rev=.
func (s *Store) handleRevision(w http.ResponseWriter, r *http.Request) {
	codebase := mux.Vars(r)["codebase"]
	rev := r.URL.Query().Get("rev")
	if !shaRE.MatchString(rev) {
		http.Error(w, "rev must be a full 40-character hex SHA", http.StatusBadRequest)
		return
	}

	info, err := s.GetRevision(r.Context(), codebase, rev)
	if err != nil {
		http.Error(w, "resolving revision: "+err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func trimDotGit(name string) string {
	const suffix = ".git"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}

func readLimited(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
