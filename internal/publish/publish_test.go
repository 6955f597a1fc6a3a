package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janitor-project/janitord/internal/forge"
	"github.com/janitor-project/janitord/internal/model"
)

func TestBuildProposalRequestAppendsBranchQueryParam(t *testing.T) {
	p := &Pipeline{CoverLetterTemplate: "Fixes issues in {{.Codebase}}"}
	run := &model.Run{Codebase: "example", Campaign: "lintian-fixes", BranchURL: "https://example.invalid/example.git"}
	branch := model.ResultBranch{Function: "main", Name: "lintian-fixes", NewRevision: "abc123"}

	req, err := p.buildProposalRequest(run, branch)
	require.NoError(t, err)
	assert.Contains(t, req.TargetBranch, "branch=lintian-fixes")
	assert.Contains(t, req.Description, "Fixes issues in example")
	assert.Equal(t, "lintian-fixes", req.SourceBranch)
}

func TestBuildProposalRequestLeavesURLUnchangedWithoutBranchName(t *testing.T) {
	p := &Pipeline{CoverLetterTemplate: "n/a"}
	run := &model.Run{BranchURL: "https://example.invalid/example.git"}
	req, err := p.buildProposalRequest(run, model.ResultBranch{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/example.git", req.TargetBranch)
}

func TestStatusFromForgeState(t *testing.T) {
	assert.Equal(t, model.MergeProposalMerged, statusFromForgeState(forge.ProposalState{Merged: true}))
	assert.Equal(t, model.MergeProposalClosed, statusFromForgeState(forge.ProposalState{Closed: true}))
	assert.Equal(t, model.MergeProposalOpen, statusFromForgeState(forge.ProposalState{Open: true}))
}

func TestAttemptOneReturnsRateLimitedWithoutCallingForge(t *testing.T) {
	p := &Pipeline{RateLimiter: alwaysLimited{}}
	outcome := p.attemptOne(context.Background(), &model.Run{}, model.ResultBranch{}, model.PublishPropose, "default")
	assert.Equal(t, OutcomeRateLimited, outcome.Kind)
	require.NotNil(t, outcome.RateLimited)
}

type alwaysLimited struct{}

func (alwaysLimited) SetCounts(BucketCounts) {}
func (alwaysLimited) CheckAllowed(bucket string) *RateLimited {
	return &RateLimited{Bucket: bucket, Current: 1, MaxOpen: 1}
}
func (alwaysLimited) Inc(string)            {}
func (alwaysLimited) Stats() map[string]Stat { return nil }
