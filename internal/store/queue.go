package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/janitor-project/janitord/internal/model"
)

// ErrNoQueueItem is returned by ClaimNextItem when nothing matches.
var ErrNoQueueItem = errors.New("store: no queue item available")

// BucketPriority maps a rate-limit bucket name to its scheduling priority;
// higher values are served first. Buckets absent from the map fall back to
// priority 0. This is the declarative table resolving spec.md's
// Open Question on bucket_priority.
type BucketPriority map[string]int

// UpsertQueueItem implements bulk_add_to_queue's single-item semantics: a
// (codebase, campaign) pair already queued has its value, offset,
// requester and refresh flag updated in place rather than duplicated.
func (s *Store) UpsertQueueItem(ctx context.Context, item *model.QueueItem) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue (bucket, codebase, campaign, command, estimated_duration_seconds, requester, refresh, "offset")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (codebase, campaign) DO UPDATE SET
			bucket = EXCLUDED.bucket,
			command = EXCLUDED.command,
			estimated_duration_seconds = EXCLUDED.estimated_duration_seconds,
			requester = EXCLUDED.requester,
			refresh = EXCLUDED.refresh,
			"offset" = EXCLUDED."offset"
		RETURNING id`,
		item.Bucket, item.Codebase, item.Campaign, item.Command,
		int(item.EstimatedDuration.Seconds()), item.Requester, item.Refresh, item.Offset,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting queue item for %s/%s: %w", item.Codebase, item.Campaign, err)
	}
	return id, nil
}

// ClaimNextItem picks the highest-priority unassigned, unclaimed queue item
// and opens an active_run lease for it in the same transaction, so that two
// runners racing for work never double-claim. It mirrors prow's
// reconciler loop in spirit but uses SELECT ... FOR UPDATE SKIP LOCKED
// instead of an in-memory lock, since the queue is shared across runner
// replicas backed by one Postgres instance.
//
// excludeHosts filters out codebases whose branch host appears in the
// list (e.g. hosts currently rate-limited or known-down); priorities
// ranks queue rows by bucket before falling back to offset, then
// created_at ordering (the scheduler stores -value as the offset).
func (s *Store) ClaimNextItem(ctx context.Context, runID, workerName string, deadline time.Time, priorities BucketPriority, excludeHosts []string) (*model.QueueItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT q.id, q.bucket, q.codebase, q.campaign, q.command, q.estimated_duration_seconds,
		       q.requester, q.refresh, q."offset", q.created_at, c.branch_url
		FROM queue q
		JOIN codebase c ON c.name = q.codebase
		LEFT JOIN active_run a ON a.queue_id = q.id
		WHERE a.id IS NULL
		ORDER BY q.created_at
		FOR UPDATE OF q SKIP LOCKED`)
	if err != nil {
		return nil, fmt.Errorf("querying claimable queue items: %w", err)
	}

	type candidate struct {
		item      model.QueueItem
		branchURL string
	}
	var candidates []candidate
	for rows.Next() {
		var it model.QueueItem
		var seconds int
		var branchURL string
		if err := rows.Scan(&it.ID, &it.Bucket, &it.Codebase, &it.Campaign, &it.Command, &seconds,
			&it.Requester, &it.Refresh, &it.Offset, &it.CreatedAt, &branchURL); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}
		it.EstimatedDuration = time.Duration(seconds) * time.Second
		candidates = append(candidates, candidate{item: it, branchURL: branchURL})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue items: %w", err)
	}

	best := -1
	bestPriority := 0
	for i, c := range candidates {
		if hostExcluded(c.branchURL, excludeHosts) {
			continue
		}
		p := priorities[c.item.Bucket]
		if best == -1 || higherPriority(p, c.item, bestPriority, candidates[best].item) {
			best = i
			bestPriority = p
		}
	}
	if best == -1 {
		return nil, ErrNoQueueItem
	}
	chosen := candidates[best].item

	if _, err := tx.Exec(ctx, `
		INSERT INTO active_run (id, queue_id, codebase, campaign, command, worker_name, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		runID, chosen.ID, chosen.Codebase, chosen.Campaign, chosen.Command, workerName, deadline); err != nil {
		return nil, fmt.Errorf("creating active run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim transaction: %w", err)
	}
	return &chosen, nil
}

func hostExcluded(branchURL string, excludeHosts []string) bool {
	for _, h := range excludeHosts {
		if h != "" && strings.Contains(branchURL, h) {
			return true
		}
	}
	return false
}

// higherPriority implements the tie-break chain: bucket priority desc,
// then offset asc, then created_at asc.
func higherPriority(pa int, a model.QueueItem, pb int, b model.QueueItem) bool {
	if pa != pb {
		return pa > pb
	}
	if a.Offset != b.Offset {
		return a.Offset < b.Offset
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// QueuePosition returns the 1-indexed position of (codebase, campaign) in
// the unclaimed queue, and the total estimated wait computed by summing
// the estimated durations of every item ahead of it.
func (s *Store) QueuePosition(ctx context.Context, codebase, campaign string) (int, time.Duration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT q.id, q.codebase, q.campaign, q.estimated_duration_seconds
		FROM queue q
		LEFT JOIN active_run a ON a.queue_id = q.id
		WHERE a.id IS NULL
		ORDER BY q.created_at`)
	if err != nil {
		return 0, 0, fmt.Errorf("querying queue for position: %w", err)
	}
	defer rows.Close()

	position := 0
	var wait time.Duration
	found := false
	for rows.Next() {
		var id int64
		var cb, camp string
		var seconds int
		if err := rows.Scan(&id, &cb, &camp, &seconds); err != nil {
			return 0, 0, fmt.Errorf("scanning queue row: %w", err)
		}
		position++
		if cb == codebase && camp == campaign {
			found = true
			break
		}
		wait += time.Duration(seconds) * time.Second
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, pgx.ErrNoRows
	}
	return position, wait, nil
}
