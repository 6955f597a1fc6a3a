package bzr

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

// Router builds the HTTP surface spec.md §4.7 specifies for the Bazaar VCS
// store. Bazaar's dumb-HTTP transport has no push, so the only
// state-changing route is remote registration; admin gates it the same
// way package git gates push and remote registration.
func (s *Store) Router(admin bool) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleListCodebases).Methods(http.MethodGet)
	r.HandleFunc("/{codebase}", s.handleGetCodebase).Methods(http.MethodGet)
	r.HandleFunc("/{codebase}/revision", s.handleRevision).Methods(http.MethodGet)
	if admin {
		r.HandleFunc("/{codebase}/remote/{name}", s.handleSetRemote).Methods(http.MethodPost)
	}

	r.PathPrefix("/{codebase}/").Handler(s.HTTPBackendHandler())

	return r
}

func (s *Store) handleListCodebases(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		http.Error(w, "listing store: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var codebases []string
	for _, e := range entries {
		if e.IsDir() {
			codebases = append(codebases, e.Name())
		}
	}
	writeJSON(w, http.StatusOK, codebases)
}

func (s *Store) handleGetCodebase(w http.ResponseWriter, r *http.Request) {
	codebase := mux.Vars(r)["codebase"]
	dir := s.repoDir(codebase)
	if _, err := os.Stat(dir); err != nil {
		http.Error(w, "no such codebase", http.StatusNotFound)
		return
	}
	rev, err := s.LastRevisionID(codebase)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"codebase": codebase})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"codebase": codebase, "head": rev})
}

// handleSetRemote implements POST /{codebase}/remote/{name}: the request
// body is a URL to pull the named remote's tip into codebase's repository.
// Repo creation is implicit on first write, per spec.md §4.7.
func (s *Store) handleSetRemote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	codebase, name := vars["codebase"], vars["name"]

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	r.Body.Close()
	if err != nil {
		http.Error(w, "reading request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	url := string(body)
	if url == "" {
		http.Error(w, "request body must be the remote URL", http.StatusBadRequest)
		return
	}

	dir, err := s.EnsureRepo(codebase)
	if err != nil {
		http.Error(w, "creating repository: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := s.executor.Run(dir, "pull", "--remember", url); err != nil {
		http.Error(w, "pulling "+name+": "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Store) handleRevision(w http.ResponseWriter, r *http.Request) {
	codebase := mux.Vars(r)["codebase"]
	rev := r.URL.Query().Get("rev")
	if rev == "" {
		http.Error(w, "rev is required", http.StatusBadRequest)
		return
	}
	info, err := s.GetRevision(codebase, rev)
	if err != nil {
		http.Error(w, "resolving revision: "+err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
