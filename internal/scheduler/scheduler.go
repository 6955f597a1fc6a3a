// Package scheduler turns policy-provided candidates into queue items and
// answers the runner's requests for the next item to dispatch, mirroring
// the role prow/pkg/scheduler plays between ProwJobs and pod creation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/store"
	"github.com/sirupsen/logrus"
)

// DefaultBucketPriorities is the built-in table used when no
// configuration overrides it. Lower-effort, high-value campaigns (short
// lintian-fixes-style runs) are prioritized over long-running full-archive
// rebuilds, matching the original scheduler's default weighting.
var DefaultBucketPriorities = store.BucketPriority{
	model.DefaultBucket: 0,
	"manual":            100,
	"backlog":           -50,
}

// Scheduler owns the translation from Candidate to QueueItem and exposes
// the claim/position operations the runner and public API need.
type Scheduler struct {
	store      *store.Store
	priorities store.BucketPriority
}

// New constructs a Scheduler. A nil priorities map falls back to
// DefaultBucketPriorities.
func New(st *store.Store, priorities store.BucketPriority) *Scheduler {
	if priorities == nil {
		priorities = DefaultBucketPriorities
	}
	return &Scheduler{store: st, priorities: priorities}
}

// Tick is the scheduler's single entry point for bulk ingestion of
// candidates, run once per policy refresh cycle. Each candidate is
// resolved against its campaign's command template and upserted into the
// queue; candidates referencing an unknown campaign are skipped and
// logged rather than failing the whole batch.
func (s *Scheduler) Tick(ctx context.Context, candidates []model.Candidate, campaigns map[string]*model.Campaign, requester string) (int, error) {
	added := 0
	for _, c := range candidates {
		campaign, ok := campaigns[c.Campaign]
		if !ok {
			logrus.WithFields(logrus.Fields{
				"codebase": c.Codebase,
				"campaign": c.Campaign,
			}).Warn("scheduler: skipping candidate for unknown campaign")
			continue
		}
		item := &model.QueueItem{
			Bucket:    model.DefaultBucket,
			Codebase:  c.Codebase,
			Campaign:  c.Campaign,
			Command:   campaign.Command,
			Requester: requester,
			Offset:    -c.Value,
		}
		if _, err := s.store.UpsertQueueItem(ctx, item); err != nil {
			return added, fmt.Errorf("queuing %s/%s: %w", c.Codebase, c.Campaign, err)
		}
		added++
	}
	return added, nil
}

// NextItem claims the highest-priority unassigned queue item for runID,
// leasing it to workerName until deadline.
func (s *Scheduler) NextItem(ctx context.Context, runID, workerName string, deadline time.Time, excludeHosts []string) (*model.QueueItem, error) {
	return s.store.ClaimNextItem(ctx, runID, workerName, deadline, s.priorities, excludeHosts)
}

// GetPosition reports where (codebase, campaign) sits in the unclaimed
// queue and the estimated wait before it would be dispatched.
func (s *Scheduler) GetPosition(ctx context.Context, codebase, campaign string) (int, time.Duration, error) {
	return s.store.QueuePosition(ctx, codebase, campaign)
}
