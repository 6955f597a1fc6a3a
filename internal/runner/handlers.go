package runner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/google/uuid"

	"github.com/janitor-project/janitord/internal/assignment"
	"github.com/janitor-project/janitord/internal/auth"
	"github.com/janitor-project/janitord/internal/loganalyzer"
	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/store"
)

// assignRequest is a worker's request for work. Only ExcludeHosts narrows
// the claim; Codebase and Campaign are decoded but not used to filter it.
type assignRequest struct {
	Codebase     string   `json:"codebase,omitempty"`
	Campaign     string   `json:"campaign,omitempty"`
	ExcludeHosts []string `json:"exclude_hosts,omitempty"`
	WorkerName   string   `json:"worker_name"`
}

// handleAssign implements POST /active-runs: a worker asks for the next
// assignable item.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "decoding request: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.WorkerName == "" {
		req.WorkerName = auth.WorkerName(r.Context())
	}

	runID := uuid.NewString()
	deadline := time.Now().Add(s.RunTimeout)

	item, err := s.Scheduler.NextItem(r.Context(), runID, req.WorkerName, deadline, req.ExcludeHosts)
	if errors.Is(err, store.ErrNoQueueItem) {
		writeJSONError(w, http.StatusServiceUnavailable, "queue-empty", "no assignable queue item")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("claiming next queue item")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	cb, err := s.Store.GetCodebase(r.Context(), item.Codebase)
	if err != nil {
		s.logger.WithError(err).WithField("codebase", item.Codebase).Error("fetching codebase for assignment")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	asg := assignment.Assignment{
		RunID:    runID,
		Codebase: item.Codebase,
		Campaign: item.Campaign,
		Branch: assignment.BranchSpec{
			VCSType: string(cb.VCSType),
			URL:     cb.BranchURL,
			Subpath: cb.Subpath,
		},
		Command:     strings.Fields(item.Command),
		Deadline:    deadline,
		LogsBaseURL: s.LogsBaseURL,
	}

	s.Metrics.RunsStarted.WithLabelValues(item.Campaign).Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asg)
}

// handleListActiveRuns implements GET /active-runs for operator tooling.
func (s *Server) handleListActiveRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Store.ListActiveRuns(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("listing active runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// handleFinish implements POST /active-runs/{id}/finish: a multipart
// request carrying the Metadata JSON part plus named log/artifact file
// parts.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	active, err := s.Store.GetActiveRun(r.Context(), id)
	if err != nil {
		// Idempotent: if the run already finished, a repeat POST of the
		// same terminal result is accepted silently rather than erroring.
		if existing, getErr := s.Store.GetRun(r.Context(), id); getErr == nil && existing.Finished() {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "unknown active run", http.StatusNotFound)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart body: "+err.Error(), http.StatusBadRequest)
		return
	}

	meta, logs, artifacts, err := readFinishParts(mr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run := s.buildRun(active, meta)

	for name, content := range logs {
		if err := s.Logs.Put(r.Context(), run.Codebase, run.Campaign, run.ID, name, content); err != nil {
			s.Metrics.LogStoreErrors.WithLabelValues("put").Inc()
			s.logger.WithError(err).WithField("name", name).Warn("storing log")
		}
	}

	if len(artifacts) > 0 {
		result, err := s.Artifacts.StoreArtifactsWithBackup(r.Context(), run.Codebase, run.Campaign, run.ID, artifacts)
		if err != nil {
			s.Metrics.ArtifactStoreErrors.WithLabelValues("store").Inc()
			s.logger.WithError(err).Warn("storing artifacts")
		} else if len(result.ArtifactsMissing) > 0 {
			s.logger.WithField("missing", result.ArtifactsMissing).Info("artifacts not backed up")
		}
	}

	s.reclassifyFromLogs(run, logs)

	if err := s.Store.FinishRun(r.Context(), run); err != nil {
		s.logger.WithError(err).Error("finishing run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Metrics.RunsFinished.WithLabelValues(run.Campaign, labelOrSuccess(run.ResultCode)).Inc()
	if run.FinishTime != nil {
		s.Metrics.RunDuration.WithLabelValues(run.Campaign).Observe(run.FinishTime.Sub(run.StartTime).Seconds())
	}

	if run.ResultCode == "" && s.Publish != nil {
		mode := s.PublishModes[run.Campaign]
		if mode != "" && mode != model.PublishSkip {
			if err := s.Publish.Enqueue(r.Context(), PublishRequest{RunID: run.ID, Codebase: run.Codebase, Campaign: run.Campaign}); err != nil {
				s.logger.WithError(err).Warn("enqueuing publish request")
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func labelOrSuccess(code string) string {
	if code == "" {
		return "success"
	}
	return code
}

// readFinishParts splits a worker's multipart finish body into the
// Metadata JSON part (named "metadata"), named log file parts (prefixed
// "log:") and named artifact file parts (prefixed "artifact:").
func readFinishParts(mr *multipart.Reader) (*assignment.Metadata, map[string][]byte, map[string][]byte, error) {
	var meta *assignment.Metadata
	logs := map[string][]byte{}
	artifacts := map[string][]byte{}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading multipart body: %w", err)
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading part %s: %w", part.FormName(), err)
		}

		name := part.FormName()
		switch {
		case name == "metadata":
			var m assignment.Metadata
			if err := json.Unmarshal(content, &m); err != nil {
				return nil, nil, nil, fmt.Errorf("decoding metadata: %w", err)
			}
			meta = &m
		case strings.HasPrefix(name, "log:"):
			logs[strings.TrimPrefix(name, "log:")] = content
		case strings.HasPrefix(name, "artifact:"):
			artifacts[strings.TrimPrefix(name, "artifact:")] = content
		}
	}

	if meta == nil {
		return nil, nil, nil, errors.New("multipart body missing metadata part")
	}
	return meta, logs, artifacts, nil
}

// buildRun converts an ActiveRun lease and the worker's posted Metadata
// into a terminal model.Run.
func (s *Server) buildRun(active *model.ActiveRun, meta *assignment.Metadata) *model.Run {
	now := time.Now()
	transient := false
	if meta.Transient != nil {
		transient = *meta.Transient
	}

	branches := make([]model.ResultBranch, len(meta.Branches))
	for i, b := range meta.Branches {
		branches[i] = model.ResultBranch{Function: b.Function, Name: b.Name, BaseRevision: b.BaseRevision, NewRevision: b.NewRevision}
	}
	tags := make([]model.ResultTag, len(meta.Tags))
	for i, t := range meta.Tags {
		tags[i] = model.ResultTag{Name: t.Name, Revision: t.Revision}
	}

	return &model.Run{
		ID:                 active.ID,
		Codebase:           active.Codebase,
		Campaign:           active.Campaign,
		Command:            active.Command,
		StartTime:          active.StartTime,
		FinishTime:         &now,
		WorkerName:         active.WorkerName,
		ResultCode:         meta.Code,
		Description:        meta.Description,
		FailureDetails:     meta.Details,
		FailureStage:       meta.Stage,
		FailureTransient:   transient,
		MainBranchRevision: meta.MainBranchRevision,
		Result:             meta.Result,
		ResultBranches:     branches,
		ResultTags:         tags,
		Value:              meta.Value,
		PublishStatus:      model.PublishStatusUnknown,
	}
}

// reclassifyFromLogs runs the log analyzer over build.log/dist.log when
// present, overwriting the worker-reported result if the analyzer finds a
// more specific failure signature, per spec.md §4.2 step 5.
func (s *Server) reclassifyFromLogs(run *model.Run, logs map[string][]byte) {
	if run.ResultCode == "" {
		return
	}
	strategy := "generic"
	if strings.HasPrefix(run.ResultCode, "dist-") {
		strategy = "dist"
	} else if strings.HasPrefix(run.ResultCode, "sbuild-") {
		strategy = "sbuild"
	}

	var logName string
	for _, candidate := range []string{"build.log", "dist.log"} {
		if _, ok := logs[candidate]; ok {
			logName = candidate
			break
		}
	}
	if logName == "" {
		return
	}

	analyzer := loganalyzer.ForStrategy(strategy)
	failure, err := analyzer.Analyze(bytes.NewReader(logs[logName]))
	if err != nil {
		s.logger.WithError(err).Warn("log analyzer failed")
		return
	}
	if failure == nil {
		return
	}

	run.ResultCode = failure.Code
	run.Description = failure.Description
	run.FailureDetails = failure.Details
	run.FailureStage = failure.Stage
	run.FailureTransient = failure.Transient
}

// handleStreamLog implements GET /active-runs/{id}/log/{name}: an
// operator tails the in-progress log of a still-running worker via its
// backchannel, rather than the finalized LogStore copy.
func (s *Server) handleStreamLog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, name := vars["id"], vars["name"]

	rc, err := s.Backchannel.GetLogFile(r.Context(), id, name)
	if err != nil {
		http.Error(w, "fetching log: "+err.Error(), http.StatusNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.Copy(w, rc)
}

// handleQueuePosition implements GET /queue/position?codebase=...&campaign=....
func (s *Server) handleQueuePosition(w http.ResponseWriter, r *http.Request) {
	codebase := r.URL.Query().Get("codebase")
	campaign := r.URL.Query().Get("campaign")
	if codebase == "" || campaign == "" {
		http.Error(w, "codebase and campaign are required", http.StatusBadRequest)
		return
	}

	position, eta, err := s.Scheduler.GetPosition(r.Context(), codebase, campaign)
	if err != nil {
		http.Error(w, "fetching position: "+err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"position":     position,
		"eta_seconds":  eta.Seconds(),
	})
}

// handleGetRun implements GET /run/{id}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

func writeJSONError(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"reason": reason, "message": message})
}
