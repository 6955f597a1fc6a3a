// Package runner implements the central dispatcher: it hands queued work
// to workers over HTTP, tracks in-flight runs, ingests results, and
// enqueues publish requests for successful ones. Routing follows the
// gorilla/mux style the teacher's hook/plugin webhook server uses, rather
// than a bare http.ServeMux, since the worker contract needs path
// variables ({id}, {name}).
package runner

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/artifactstore"
	"github.com/janitor-project/janitord/internal/auth"
	"github.com/janitor-project/janitord/internal/logstore"
	"github.com/janitor-project/janitord/internal/metrics"
	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/runner/backchannel"
	"github.com/janitor-project/janitord/internal/scheduler"
	"github.com/janitor-project/janitord/internal/store"
)

// PublishRequest is what the runner hands to the publish pipeline when a
// run finishes successfully under a non-skip publish policy. The
// publisher owns draining this; the runner only enqueues.
type PublishRequest struct {
	RunID    string
	Codebase string
	Campaign string
}

// PublishQueue decouples the runner from the publish pipeline's concrete
// implementation; an in-process channel satisfies it in the single-binary
// deployment, a Redis list/stream could in a split deployment.
type PublishQueue interface {
	Enqueue(ctx context.Context, req PublishRequest) error
}

// Server is the runner's HTTP surface plus its background sweeper.
type Server struct {
	Store      *store.Store
	Scheduler  *scheduler.Scheduler
	Logs       *logstore.Store
	Artifacts  *artifactstore.Store
	Metrics    *metrics.Metrics
	Backchannel backchannel.Backchannel
	Publish    PublishQueue

	// RunTimeout bounds how long a worker may hold an active run before
	// the sweeper marks it worker-timeout.
	RunTimeout time.Duration
	// LogsBaseURL is embedded in every Assignment so a worker knows where
	// to report progress logs.
	LogsBaseURL string
	// PublishModes maps a campaign name to its configured publish mode;
	// runs under "skip" never reach PublishQueue.
	PublishModes map[string]model.PublishMode

	logger *logrus.Entry
}

// New constructs a Server. Call Router to obtain the http.Handler and
// RunSweeper (typically in its own goroutine) to enforce run_timeout.
func New(st *store.Store, sched *scheduler.Scheduler, logs *logstore.Store, artifacts *artifactstore.Store, m *metrics.Metrics, bc backchannel.Backchannel, pq PublishQueue) *Server {
	return &Server{
		Store:       st,
		Scheduler:   sched,
		Logs:        logs,
		Artifacts:   artifacts,
		Metrics:     m,
		Backchannel: bc,
		Publish:     pq,
		RunTimeout:  60 * time.Minute,
		logger:      logrus.WithField("component", "runner"),
	}
}

// Router builds the gorilla/mux handler for the runner's HTTP surface.
// verifier gates every worker-facing route behind Basic Auth; operator
// routes (log tailing) are left to the caller's own network-level ACLs,
// matching spec.md's "operator" framing for GET .../log/{name}.
func (s *Server) Router(verifier auth.Verifier) http.Handler {
	r := mux.NewRouter()
	workerAuth := auth.RequireWorkerCredential(verifier)

	r.Handle("/active-runs", workerAuth(http.HandlerFunc(s.handleAssign))).Methods(http.MethodPost)
	r.Handle("/active-runs", http.HandlerFunc(s.handleListActiveRuns)).Methods(http.MethodGet)
	r.Handle("/active-runs/{id}/finish", workerAuth(http.HandlerFunc(s.handleFinish))).Methods(http.MethodPost)
	r.HandleFunc("/active-runs/{id}/log/{name}", s.handleStreamLog).Methods(http.MethodGet)
	r.HandleFunc("/queue/position", s.handleQueuePosition).Methods(http.MethodGet)
	r.HandleFunc("/run/{id}", s.handleGetRun).Methods(http.MethodGet)

	return r
}
