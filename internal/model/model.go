// Package model holds the data-model types shared across janitord's
// services: codebases, campaigns, candidates, queue items, runs and
// merge proposals.
package model

import (
	"encoding/json"
	"time"
)

// VCSKind identifies the version-control system backing a Codebase.
type VCSKind string

const (
	VCSGit VCSKind = "git"
	VCSBzr VCSKind = "bzr"
)

// PublishMode is a campaign's default policy for turning a successful run
// into an upstream change.
type PublishMode string

const (
	PublishSkip        PublishMode = "skip"
	PublishBuildOnly   PublishMode = "build-only"
	PublishPush        PublishMode = "push"
	PublishPushDerived PublishMode = "push-derived"
	PublishPropose     PublishMode = "propose"
	PublishAttemptPush PublishMode = "attempt-push"
	PublishBTS         PublishMode = "bts"
)

// PublishStatus is the per-run decision about whether a merge proposal
// may or should be created.
type PublishStatus string

const (
	PublishStatusUnknown            PublishStatus = "unknown"
	PublishStatusBlocked            PublishStatus = "blocked"
	PublishStatusNeedsManualReview  PublishStatus = "needs-manual-review"
	PublishStatusRejected           PublishStatus = "rejected"
	PublishStatusApproved           PublishStatus = "approved"
	PublishStatusIgnored            PublishStatus = "ignored"
)

// Codebase is the logical identifier for an upstream project.
type Codebase struct {
	Name      string  `json:"name"`
	BranchURL string  `json:"branch_url"`
	Subpath   string  `json:"subpath"`
	VCSType   VCSKind `json:"vcs_type"`
	Archived  bool    `json:"archived"`
}

// Campaign is a named automated-change policy applied across many
// codebases.
type Campaign struct {
	Name          string      `json:"name"`
	Command       string      `json:"command"`
	PublishMode   PublishMode `json:"publish_mode"`
}

// Candidate is a (codebase, campaign) pair produced by an external policy
// and consumed by the scheduler.
type Candidate struct {
	Codebase string          `json:"codebase"`
	Campaign string          `json:"campaign"`
	Value    int             `json:"value"`
	Context  json.RawMessage `json:"context,omitempty"`
}

// QueueItem is a concrete scheduled attempt, not yet dispatched to a
// worker.
type QueueItem struct {
	ID              int64     `json:"id"`
	Bucket          string    `json:"bucket"`
	Codebase        string    `json:"codebase"`
	Campaign        string    `json:"campaign"`
	Command         string    `json:"command"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Requester       string    `json:"requester"`
	Refresh         bool      `json:"refresh"`
	Offset          int       `json:"offset"`
	CreatedAt       time.Time `json:"created_at"`
}

// DefaultBucket is the rate-limit grouping used when none is specified.
const DefaultBucket = "default"

// ResultBranch records one named branch produced by a codemod run.
type ResultBranch struct {
	Function string `json:"function"`
	Name     string `json:"name"`
	BaseRevision string `json:"base_revision"`
	NewRevision  string `json:"new_revision"`
}

// ResultTag records one tag produced by a codemod run.
type ResultTag struct {
	Name     string `json:"name"`
	Revision string `json:"revision"`
}

// FailureDetails is the structured failure taxonomy payload attached to a
// Run; see package taxonomy for the code space.
type FailureDetails struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details,omitempty"`
	Stage       []string        `json:"stage,omitempty"`
	Transient   *bool           `json:"transient,omitempty"`
}

// Run is the immutable record of one attempt. Once FinishTime is set, only
// ResultCode, Description, FailureDetails (by log reprocessing) and
// PublishStatus may be mutated.
type Run struct {
	ID                  string          `json:"id"`
	Codebase            string          `json:"codebase"`
	Campaign            string          `json:"campaign"`
	Command             string          `json:"command"`
	StartTime           time.Time       `json:"start_time"`
	FinishTime          *time.Time      `json:"finish_time,omitempty"`
	WorkerName          string          `json:"worker_name"`
	ResultCode          string          `json:"result_code,omitempty"`
	Description         string          `json:"description,omitempty"`
	FailureDetails      json.RawMessage `json:"failure_details,omitempty"`
	FailureStage        []string        `json:"failure_stage,omitempty"`
	FailureTransient    bool            `json:"failure_transient"`
	MainBranchRevision  string          `json:"main_branch_revision,omitempty"`
	BranchURL           string          `json:"branch_url,omitempty"`
	Subpath             string          `json:"subpath,omitempty"`
	Result              json.RawMessage `json:"result,omitempty"`
	ResultBranches      []ResultBranch  `json:"result_branches,omitempty"`
	ResultTags          []ResultTag     `json:"result_tags,omitempty"`
	Value               int             `json:"value"`
	PublishStatus       PublishStatus   `json:"publish_status"`
}

// Finished reports whether this run has a terminal result, by FinishTime
// alone: an empty ResultCode also marks a successful run, so ResultCode
// cannot tell a finished success from an unfinished run.
func (r *Run) Finished() bool {
	return r.FinishTime != nil
}

// ActiveRun is the transient sibling of Run for in-flight work, owned
// exclusively by the runner.
type ActiveRun struct {
	ID         string    `json:"id"`
	QueueID    int64     `json:"queue_id"`
	Codebase   string    `json:"codebase"`
	Campaign   string    `json:"campaign"`
	Command    string    `json:"command"`
	WorkerName string    `json:"worker_name"`
	StartTime  time.Time `json:"start_time"`
	Deadline   time.Time `json:"deadline"`
}

// MergeProposalStatus is the lifecycle state of a MergeProposal.
type MergeProposalStatus string

const (
	MergeProposalOpen    MergeProposalStatus = "open"
	MergeProposalMerged  MergeProposalStatus = "merged"
	MergeProposalApplied MergeProposalStatus = "applied"
	MergeProposalClosed  MergeProposalStatus = "closed"
)

// MergeProposal is keyed by its URL.
type MergeProposal struct {
	URL             string              `json:"url"`
	Status          MergeProposalStatus `json:"status"`
	Revision        string              `json:"revision"`
	TargetBranchURL string              `json:"target_branch_url"`
	Codebase        string              `json:"codebase"`
	RateLimitBucket string              `json:"rate_limit_bucket"`
	CanBeMerged     *bool               `json:"can_be_merged,omitempty"`
	MergedBy        string              `json:"merged_by,omitempty"`
	MergedByURL     string              `json:"merged_by_url,omitempty"`
	MergedAt        *time.Time          `json:"merged_at,omitempty"`
	LastScanned     time.Time           `json:"last_scanned"`
}

// PublishAttemptRole identifies which result-branch function an attempt
// published.
type PublishAttemptRole string

// PublishAttempt is stored for back-off calculation; see package publish.
type PublishAttempt struct {
	RunID       string      `json:"run_id"`
	Role        string      `json:"role"`
	Mode        PublishMode `json:"mode"`
	ProposalURL string      `json:"proposal_url,omitempty"`
	Code        string      `json:"code,omitempty"`
	Description string      `json:"description,omitempty"`
	Transient   bool        `json:"transient"`
	Timestamp   time.Time   `json:"timestamp"`
}
