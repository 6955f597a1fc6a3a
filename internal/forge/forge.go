// Package forge abstracts the handful of merge-proposal operations
// janitord needs from whichever code-hosting site a codebase lives on,
// the same way prow/gerrit/client wraps andygrunwald/go-gerrit behind a
// narrow janitord-shaped interface instead of exposing its full surface.
package forge

import (
	"context"
	"fmt"

	"github.com/andygrunwald/go-gerrit"
)

// ProposalRequest describes a merge proposal to open.
type ProposalRequest struct {
	SourceBranch string
	TargetBranch string
	Title        string
	Description  string
}

// ProposalState is the forge-reported lifecycle state of a proposal,
// independent of janitord's own model.MergeProposalStatus bookkeeping.
type ProposalState struct {
	URL         string
	Open        bool
	Merged      bool
	Closed      bool
	CanBeMerged bool
	MergedBy    string
}

// Forge is implemented once per code-hosting backend (GitHub, GitLab,
// Launchpad/Gerrit). janitord only ever needs to open, inspect and close
// proposals, never the full review workflow those APIs expose.
type Forge interface {
	// Propose opens a merge proposal for req. GerritForge always creates
	// a new change; it does not look for one already open for the same
	// branch pair.
	Propose(ctx context.Context, req ProposalRequest) (ProposalState, error)
	// GetProposal refreshes the state of a previously opened proposal.
	GetProposal(ctx context.Context, url string) (ProposalState, error)
	// CloseProposal abandons a proposal that is no longer wanted.
	CloseProposal(ctx context.Context, url string) error
}

// GerritForge implements Forge against a Gerrit instance via
// andygrunwald/go-gerrit, modeling merge proposals as Gerrit changes.
type GerritForge struct {
	client *gerrit.Client
}

// NewGerritForge constructs a GerritForge against instanceURL.
func NewGerritForge(instanceURL, username, password string) (*GerritForge, error) {
	client, err := gerrit.NewClient(instanceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("forge: creating gerrit client for %s: %w", instanceURL, err)
	}
	client.Authentication.SetBasicAuth(username, password)
	return &GerritForge{client: client}, nil
}

func (g *GerritForge) Propose(ctx context.Context, req ProposalRequest) (ProposalState, error) {
	input := &gerrit.ChangeInput{
		Project: req.TargetBranch,
		Branch:  req.TargetBranch,
		Subject: req.Title,
	}
	change, _, err := g.client.Changes.CreateChange(input)
	if err != nil {
		return ProposalState{}, fmt.Errorf("forge: creating gerrit change: %w", err)
	}
	return ProposalState{
		URL:  fmt.Sprintf("%s/c/%s/+/%d", g.client.Endpoint(), change.Project, change.Number),
		Open: true,
	}, nil
}

func (g *GerritForge) GetProposal(ctx context.Context, url string) (ProposalState, error) {
	changeID, err := changeIDFromURL(url)
	if err != nil {
		return ProposalState{}, err
	}
	change, _, err := g.client.Changes.GetChange(changeID, nil)
	if err != nil {
		return ProposalState{}, fmt.Errorf("forge: fetching gerrit change %s: %w", changeID, err)
	}
	state := ProposalState{URL: url}
	switch change.Status {
	case "NEW":
		state.Open = true
	case "MERGED":
		state.Merged = true
		state.MergedBy = change.Owner.Name
	case "ABANDONED":
		state.Closed = true
	}
	return state, nil
}

func (g *GerritForge) CloseProposal(ctx context.Context, url string) error {
	changeID, err := changeIDFromURL(url)
	if err != nil {
		return err
	}
	_, err = g.client.Changes.AbandonChange(changeID, &gerrit.AbandonInput{})
	if err != nil {
		return fmt.Errorf("forge: abandoning gerrit change %s: %w", changeID, err)
	}
	return nil
}

func changeIDFromURL(url string) (string, error) {
	const marker = "/c/"
	idx := -1
	for i := 0; i+len(marker) <= len(url); i++ {
		if url[i:i+len(marker)] == marker {
			idx = i + len(marker)
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("forge: %q is not a recognizable gerrit change URL", url)
	}
	return url[idx:], nil
}

var _ Forge = (*GerritForge)(nil)
