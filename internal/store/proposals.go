package store

import (
	"context"
	"fmt"
	"time"

	"github.com/janitor-project/janitord/internal/model"
)

// UpsertMergeProposal records or refreshes a proposal's scan state. Called
// both when a proposal is first created and by the periodic proposal
// refresh job.
func (s *Store) UpsertMergeProposal(ctx context.Context, mp *model.MergeProposal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO merge_proposal (url, status, revision, target_branch_url, codebase, rate_limit_bucket,
		                             can_be_merged, merged_by, merged_by_url, merged_at, last_scanned)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (url) DO UPDATE SET
			status = EXCLUDED.status,
			revision = EXCLUDED.revision,
			can_be_merged = EXCLUDED.can_be_merged,
			merged_by = EXCLUDED.merged_by,
			merged_by_url = EXCLUDED.merged_by_url,
			merged_at = EXCLUDED.merged_at,
			last_scanned = EXCLUDED.last_scanned`,
		mp.URL, mp.Status, mp.Revision, mp.TargetBranchURL, mp.Codebase, mp.RateLimitBucket,
		mp.CanBeMerged, nullableString(mp.MergedBy), nullableString(mp.MergedByURL), mp.MergedAt, mp.LastScanned)
	if err != nil {
		return fmt.Errorf("upserting merge proposal %s: %w", mp.URL, err)
	}
	return nil
}

// OpenProposalsForBucket returns every still-open proposal in bucket, used
// by the rate limiter to count in-flight proposals against its ceiling.
func (s *Store) OpenProposalsForBucket(ctx context.Context, bucket string) ([]*model.MergeProposal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT url, status, revision, target_branch_url, codebase, rate_limit_bucket,
		       can_be_merged, COALESCE(merged_by, ''), COALESCE(merged_by_url, ''), merged_at, last_scanned
		FROM merge_proposal WHERE rate_limit_bucket = $1 AND status = 'open'`, bucket)
	if err != nil {
		return nil, fmt.Errorf("listing open proposals for bucket %s: %w", bucket, err)
	}
	defer rows.Close()

	var out []*model.MergeProposal
	for rows.Next() {
		var mp model.MergeProposal
		if err := rows.Scan(&mp.URL, &mp.Status, &mp.Revision, &mp.TargetBranchURL, &mp.Codebase,
			&mp.RateLimitBucket, &mp.CanBeMerged, &mp.MergedBy, &mp.MergedByURL, &mp.MergedAt, &mp.LastScanned); err != nil {
			return nil, fmt.Errorf("scanning merge proposal: %w", err)
		}
		out = append(out, &mp)
	}
	return out, rows.Err()
}

// StalestProposals returns open proposals ordered by last_scanned ascending,
// for the periodic refresh job to work through the oldest first.
func (s *Store) StalestProposals(ctx context.Context, limit int) ([]*model.MergeProposal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT url, status, revision, target_branch_url, codebase, rate_limit_bucket,
		       can_be_merged, COALESCE(merged_by, ''), COALESCE(merged_by_url, ''), merged_at, last_scanned
		FROM merge_proposal WHERE status = 'open' ORDER BY last_scanned ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stalest proposals: %w", err)
	}
	defer rows.Close()

	var out []*model.MergeProposal
	for rows.Next() {
		var mp model.MergeProposal
		if err := rows.Scan(&mp.URL, &mp.Status, &mp.Revision, &mp.TargetBranchURL, &mp.Codebase,
			&mp.RateLimitBucket, &mp.CanBeMerged, &mp.MergedBy, &mp.MergedByURL, &mp.MergedAt, &mp.LastScanned); err != nil {
			return nil, fmt.Errorf("scanning merge proposal: %w", err)
		}
		out = append(out, &mp)
	}
	return out, rows.Err()
}

// RecordPublishAttempt appends an immutable entry to the publish-attempt
// log, used by the rate limiter's next_try_time backoff formula.
func (s *Store) RecordPublishAttempt(ctx context.Context, pa *model.PublishAttempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO publish_attempt (run_id, role, mode, proposal_url, code, description, transient, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		pa.RunID, pa.Role, pa.Mode, nullableString(pa.ProposalURL), nullableString(pa.Code),
		nullableString(pa.Description), pa.Transient, pa.Timestamp)
	if err != nil {
		return fmt.Errorf("recording publish attempt for run %s: %w", pa.RunID, err)
	}
	return nil
}

// RecentPublishAttempts returns attempts for (codebase, campaign, role) in
// the last window, newest first, for backoff computation.
func (s *Store) RecentPublishAttempts(ctx context.Context, codebase, campaign, role string, window time.Duration, now time.Time) ([]*model.PublishAttempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pa.run_id, pa.role, pa.mode, COALESCE(pa.proposal_url, ''), COALESCE(pa.code, ''),
		       COALESCE(pa.description, ''), pa.transient, pa.created_at
		FROM publish_attempt pa
		JOIN run r ON r.id = pa.run_id
		WHERE r.codebase = $1 AND r.campaign = $2 AND pa.role = $3 AND pa.created_at >= $4
		ORDER BY pa.created_at DESC`, codebase, campaign, role, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("listing publish attempts for %s/%s: %w", codebase, campaign, err)
	}
	defer rows.Close()

	var out []*model.PublishAttempt
	for rows.Next() {
		var pa model.PublishAttempt
		if err := rows.Scan(&pa.RunID, &pa.Role, &pa.Mode, &pa.ProposalURL, &pa.Code,
			&pa.Description, &pa.Transient, &pa.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning publish attempt: %w", err)
		}
		out = append(out, &pa)
	}
	return out, rows.Err()
}
