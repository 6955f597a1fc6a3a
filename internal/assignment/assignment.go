// Package assignment defines the wire contract between the runner and
// workers: the Assignment a worker receives when it asks for work, and the
// Metadata it posts back on completion. Field naming follows the
// snake_case json tag convention prow/apis/prowjobs/v1 uses for its own
// wire types.
package assignment

import (
	"encoding/json"
	"time"
)

// Assignment is returned from POST /active-runs. A worker that receives
// one owns the codebase/campaign pair until it posts Metadata back or its
// Deadline passes.
type Assignment struct {
	RunID    string `json:"run_id"`
	Codebase string `json:"codebase"`
	Campaign string `json:"campaign"`

	Branch BranchSpec `json:"branch"`
	Build  *BuildSpec `json:"build,omitempty"`

	Command  []string          `json:"command"`
	Env      map[string]string `json:"env,omitempty"`
	Resume   *ResumeSpec       `json:"resume,omitempty"`
	Deadline time.Time         `json:"deadline"`

	LogsBaseURL string `json:"logs_base_url,omitempty"`
}

// BranchSpec tells the worker which VCS branch to check out.
type BranchSpec struct {
	VCSType   string `json:"vcs_type"`
	URL       string `json:"url"`
	Subpath   string `json:"subpath,omitempty"`
	Revision  string `json:"revision,omitempty"`
}

// ResumeSpec lets the worker continue from a previous run's output
// branches instead of starting over from the main branch, used when a
// campaign's refresh flag is unset and a prior result already exists.
type ResumeSpec struct {
	BranchURL     string   `json:"branch_url"`
	Revisions     []string `json:"revisions,omitempty"`
	ResultBranches []string `json:"result_branches,omitempty"`
}

// BuildSpec describes how the worker should attempt a package build after
// a successful codemod, if the campaign requests one.
type BuildSpec struct {
	Target      string            `json:"target"`
	Distribution string           `json:"distribution,omitempty"`
	ExtraEnv    map[string]string `json:"extra_env,omitempty"`
}

// Metadata is posted back by the worker, alongside a multipart body
// carrying logs and artifacts, when a run finishes.
type Metadata struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	Stage       []string        `json:"stage,omitempty"`
	Transient   *bool           `json:"transient,omitempty"`

	MainBranchRevision string `json:"main_branch_revision,omitempty"`

	Branches []ResultBranch `json:"branches,omitempty"`
	Tags     []ResultTag    `json:"tags,omitempty"`

	Value  int             `json:"value,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	// RefreshedFiles names artifacts the worker uploaded in the request's
	// multipart body, for the runner to validate it received everything
	// it was told to expect.
	RefreshedFiles []string `json:"refreshed_files,omitempty"`
}

// ResultBranch mirrors model.ResultBranch with json tags matching the
// worker-facing wire contract rather than the store's internal shape.
type ResultBranch struct {
	Function     string `json:"function"`
	Name         string `json:"name"`
	BaseRevision string `json:"base_revision"`
	NewRevision  string `json:"new_revision"`
}

// ResultTag mirrors model.ResultTag.
type ResultTag struct {
	Name     string `json:"name"`
	Revision string `json:"revision"`
}
