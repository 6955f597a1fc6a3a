package publish

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/forge"
	"github.com/janitor-project/janitord/internal/metrics"
	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/publish/coverletter"
	"github.com/janitor-project/janitord/internal/store"
)

// Pipeline ties together the rate limiter, forge client, cover-letter
// renderer and store bookkeeping into the per-attempt protocol described
// in spec.md §4.4.
type Pipeline struct {
	Store       *store.Store
	Forge       forge.Forge
	RateLimiter RateLimiter
	Metrics     *metrics.Metrics

	// CoverLetterTemplate is the campaign-wide default; per-campaign
	// overrides can be threaded in once config carries them.
	CoverLetterTemplate string

	logger *logrus.Entry
}

// New constructs a Pipeline.
func New(st *store.Store, f forge.Forge, rl RateLimiter, m *metrics.Metrics, coverLetterTemplate string) *Pipeline {
	return &Pipeline{
		Store:               st,
		Forge:               f,
		RateLimiter:         rl,
		Metrics:             m,
		CoverLetterTemplate: coverLetterTemplate,
		logger:              logrus.WithField("component", "publish"),
	}
}

// AttemptResult records, per role, what PublishOutcome resulted.
type AttemptResult struct {
	Role    string
	Outcome PublishOutcome
}

// PublishRun attempts to publish every result branch (role) of run in the
// given mode, counting proposals against bucket, honoring rate limits and
// back-off. Roles still within their back-off window are skipped without
// a new attempt being recorded.
func (p *Pipeline) PublishRun(ctx context.Context, run *model.Run, mode model.PublishMode, bucket string, now time.Time) ([]AttemptResult, error) {
	if mode == model.PublishSkip || mode == model.PublishBuildOnly {
		return nil, nil
	}

	var results []AttemptResult
	for _, branch := range run.ResultBranches {
		role := branch.Function

		attempts, err := p.Store.RecentPublishAttempts(ctx, run.Codebase, run.Campaign, role, 30*24*time.Hour, now)
		if err != nil {
			return results, fmt.Errorf("loading publish history for %s/%s role %s: %w", run.Codebase, run.Campaign, role, err)
		}
		if next := NextTryTime(attempts); next.After(now) {
			continue
		}

		outcome := p.attemptOne(ctx, run, branch, mode, bucket)
		if err := p.recordAttempt(ctx, run, role, mode, bucket, outcome, now); err != nil {
			return results, err
		}
		results = append(results, AttemptResult{Role: role, Outcome: outcome})
		p.Metrics.PublishAttempts.WithLabelValues(string(mode), string(outcome.Kind)).Inc()
	}
	return results, nil
}

func (p *Pipeline) attemptOne(ctx context.Context, run *model.Run, branch model.ResultBranch, mode model.PublishMode, bucket string) PublishOutcome {
	if limited := p.RateLimiter.CheckAllowed(bucket); limited != nil {
		return PublishOutcome{Kind: OutcomeRateLimited, RateLimited: limited}
	}

	req, err := p.buildProposalRequest(run, branch)
	if err != nil {
		return PublishOutcome{Kind: OutcomeFailed, Code: "cover-letter-error", Description: err.Error(), Transient: false}
	}

	state, err := p.Forge.Propose(ctx, req)
	if err != nil {
		return PublishOutcome{Kind: OutcomeFailed, Code: "propose-failed", Description: err.Error(), Transient: true}
	}

	p.RateLimiter.Inc(bucket)
	return PublishOutcome{Kind: OutcomeProposed, ProposalURL: state.URL, Revision: branch.NewRevision}
}

// buildProposalRequest renders the cover letter and appends the role
// branch name to the target branch URL per spec.md §4.4 step 2.
func (p *Pipeline) buildProposalRequest(run *model.Run, branch model.ResultBranch) (forge.ProposalRequest, error) {
	description, err := coverletter.Render(p.CoverLetterTemplate, coverletter.Context{
		Codebase:           run.Codebase,
		Campaign:           run.Campaign,
		MainBranchRevision: run.MainBranchRevision,
		Description:        run.Description,
	})
	if err != nil {
		return forge.ProposalRequest{}, fmt.Errorf("rendering cover letter: %w", err)
	}

	target := run.BranchURL
	if branch.Name != "" {
		u, err := url.Parse(target)
		if err != nil {
			return forge.ProposalRequest{}, fmt.Errorf("parsing target branch url %s: %w", target, err)
		}
		q := u.Query()
		q.Set("branch", branch.Name)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	return forge.ProposalRequest{
		SourceBranch: branch.Name,
		TargetBranch: target,
		Title:        fmt.Sprintf("%s: %s", run.Campaign, run.Codebase),
		Description:  description,
	}, nil
}

func (p *Pipeline) recordAttempt(ctx context.Context, run *model.Run, role string, mode model.PublishMode, bucket string, outcome PublishOutcome, now time.Time) error {
	pa := outcome.ToAttempt(run.ID, role, mode, now)
	if err := p.Store.RecordPublishAttempt(ctx, &pa); err != nil {
		return fmt.Errorf("recording publish attempt for run %s role %s: %w", run.ID, role, err)
	}

	if outcome.Kind != OutcomeProposed {
		return nil
	}

	mp := &model.MergeProposal{
		URL:             outcome.ProposalURL,
		Status:          model.MergeProposalOpen,
		Revision:        outcome.Revision,
		TargetBranchURL: run.BranchURL,
		Codebase:        run.Codebase,
		RateLimitBucket: bucket,
		LastScanned:     now,
	}
	return p.Store.UpsertMergeProposal(ctx, mp)
}

// RefreshProposals re-scans the N stalest open proposals against the
// forge, updating their stored status. janitor-publisher calls it on its
// --refresh-interval timer (default every 5 minutes).
func (p *Pipeline) RefreshProposals(ctx context.Context, limit int, now time.Time) (int, error) {
	stale, err := p.Store.StalestProposals(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("loading stalest proposals: %w", err)
	}

	refreshed := 0
	for _, mp := range stale {
		state, err := p.Forge.GetProposal(ctx, mp.URL)
		if err != nil {
			p.logger.WithError(err).WithField("url", mp.URL).Warn("refreshing proposal")
			continue
		}
		mp.Status = statusFromForgeState(state)
		mp.CanBeMerged = &state.CanBeMerged
		mp.MergedBy = state.MergedBy
		mp.LastScanned = now
		if mp.Status == model.MergeProposalMerged {
			mergedAt := now
			mp.MergedAt = &mergedAt
		}
		if err := p.Store.UpsertMergeProposal(ctx, mp); err != nil {
			return refreshed, fmt.Errorf("upserting refreshed proposal %s: %w", mp.URL, err)
		}
		refreshed++
	}
	return refreshed, nil
}

func statusFromForgeState(state forge.ProposalState) model.MergeProposalStatus {
	switch {
	case state.Merged:
		return model.MergeProposalMerged
	case state.Closed:
		return model.MergeProposalClosed
	default:
		return model.MergeProposalOpen
	}
}
