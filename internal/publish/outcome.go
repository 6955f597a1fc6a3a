package publish

import (
	"time"

	"github.com/janitor-project/janitord/internal/model"
)

// OutcomeKind discriminates PublishOutcome's variants. PublishOutcome is
// deliberately a single struct with a Kind tag rather than a Go interface
// per result-branch type, since callers need to serialize it wholesale to
// the publish_attempt log and an interface would force a type switch at
// every serialization site.
type OutcomeKind string

const (
	OutcomeProposed     OutcomeKind = "proposed"
	OutcomePushed       OutcomeKind = "pushed"
	OutcomeRateLimited  OutcomeKind = "rate-limited"
	OutcomeNothingToDo  OutcomeKind = "nothing-to-do"
	OutcomeFailed       OutcomeKind = "failed"
)

// PublishOutcome is the result of attempting to publish one result branch.
type PublishOutcome struct {
	Kind OutcomeKind

	// Populated when Kind is OutcomeProposed or OutcomePushed.
	ProposalURL string
	Revision    string

	// Populated when Kind is OutcomeRateLimited.
	RateLimited *RateLimited

	// Populated when Kind is OutcomeFailed.
	Code        string
	Description string
	Transient   bool
}

// ToAttempt converts an outcome into the immutable log entry stored for
// backoff calculation.
func (o PublishOutcome) ToAttempt(runID, role string, mode model.PublishMode, timestamp time.Time) model.PublishAttempt {
	pa := model.PublishAttempt{
		RunID:       runID,
		Role:        role,
		Mode:        mode,
		ProposalURL: o.ProposalURL,
		Timestamp:   timestamp,
	}
	switch o.Kind {
	case OutcomeFailed:
		pa.Code = o.Code
		pa.Description = o.Description
		pa.Transient = o.Transient
	case OutcomeRateLimited:
		pa.Code = "rate-limited"
		pa.Description = o.RateLimited.Error()
		pa.Transient = true
	}
	return pa
}
