package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/janitor-project/janitord/internal/model"
)

// GetActiveRun fetches the lease for a run that has not yet finished.
func (s *Store) GetActiveRun(ctx context.Context, id string) (*model.ActiveRun, error) {
	var ar model.ActiveRun
	err := s.pool.QueryRow(ctx, `
		SELECT id, queue_id, codebase, campaign, command, worker_name, start_time, deadline
		FROM active_run WHERE id = $1`, id).Scan(
		&ar.ID, &ar.QueueID, &ar.Codebase, &ar.Campaign, &ar.Command, &ar.WorkerName, &ar.StartTime, &ar.Deadline)
	if err != nil {
		return nil, fmt.Errorf("fetching active run %s: %w", id, err)
	}
	return &ar, nil
}

// ListActiveRuns returns every in-flight lease, for the runner's /active-runs
// endpoint and the timeout sweeper.
func (s *Store) ListActiveRuns(ctx context.Context) ([]*model.ActiveRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, queue_id, codebase, campaign, command, worker_name, start_time, deadline
		FROM active_run ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("listing active runs: %w", err)
	}
	defer rows.Close()

	var out []*model.ActiveRun
	for rows.Next() {
		var ar model.ActiveRun
		if err := rows.Scan(&ar.ID, &ar.QueueID, &ar.Codebase, &ar.Campaign, &ar.Command,
			&ar.WorkerName, &ar.StartTime, &ar.Deadline); err != nil {
			return nil, fmt.Errorf("scanning active run: %w", err)
		}
		out = append(out, &ar)
	}
	return out, rows.Err()
}

// FinishRun atomically closes out an active run: the active_run lease and
// its queue entry are deleted, and a terminal Run row is recorded. Called
// both by the runner's result-ingestion handler and by the timeout
// sweeper (with a synthesized worker-timeout Run).
func (s *Store) FinishRun(ctx context.Context, run *model.Run) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning finish transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var queueID int64
	err = tx.QueryRow(ctx, `DELETE FROM active_run WHERE id = $1 RETURNING queue_id`, run.ID).Scan(&queueID)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("deleting active run %s: %w", run.ID, err)
	}
	if queueID != 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM queue WHERE id = $1`, queueID); err != nil {
			return fmt.Errorf("deleting queue item %d: %w", queueID, err)
		}
	}

	branches, err := json.Marshal(run.ResultBranches)
	if err != nil {
		return fmt.Errorf("marshaling result branches: %w", err)
	}
	tags, err := json.Marshal(run.ResultTags)
	if err != nil {
		return fmt.Errorf("marshaling result tags: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO run (id, codebase, campaign, command, start_time, finish_time, worker_name,
		                  result_code, description, failure_details, failure_stage, failure_transient,
		                  main_branch_revision, branch_url, subpath, result, result_branches, result_tags,
		                  value, publish_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			finish_time = EXCLUDED.finish_time,
			result_code = EXCLUDED.result_code,
			description = EXCLUDED.description,
			failure_details = EXCLUDED.failure_details,
			failure_stage = EXCLUDED.failure_stage,
			failure_transient = EXCLUDED.failure_transient,
			result = EXCLUDED.result,
			result_branches = EXCLUDED.result_branches,
			result_tags = EXCLUDED.result_tags,
			publish_status = EXCLUDED.publish_status`,
		run.ID, run.Codebase, run.Campaign, run.Command, run.StartTime, run.FinishTime, run.WorkerName,
		nullableString(run.ResultCode), nullableString(run.Description), nullableJSON(run.FailureDetails),
		run.FailureStage, run.FailureTransient, nullableString(run.MainBranchRevision),
		nullableString(run.BranchURL), nullableString(run.Subpath), nullableJSON(run.Result),
		branches, tags, run.Value, run.PublishStatus)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing finish transaction: %w", err)
	}
	return nil
}

// GetRun fetches a single completed (or in-progress) run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	var branches, tags []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, codebase, campaign, command, start_time, finish_time, worker_name,
		       COALESCE(result_code, ''), COALESCE(description, ''), failure_details, failure_stage,
		       failure_transient, COALESCE(main_branch_revision, ''), COALESCE(branch_url, ''),
		       COALESCE(subpath, ''), result, result_branches, result_tags, value, publish_status
		FROM run WHERE id = $1`, id).Scan(
		&run.ID, &run.Codebase, &run.Campaign, &run.Command, &run.StartTime, &run.FinishTime, &run.WorkerName,
		&run.ResultCode, &run.Description, &run.FailureDetails, &run.FailureStage, &run.FailureTransient,
		&run.MainBranchRevision, &run.BranchURL, &run.Subpath, &run.Result, &branches, &tags,
		&run.Value, &run.PublishStatus)
	if err != nil {
		return nil, fmt.Errorf("fetching run %s: %w", id, err)
	}
	if len(branches) > 0 {
		if err := json.Unmarshal(branches, &run.ResultBranches); err != nil {
			return nil, fmt.Errorf("decoding result branches for run %s: %w", id, err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &run.ResultTags); err != nil {
			return nil, fmt.Errorf("decoding result tags for run %s: %w", id, err)
		}
	}
	return &run, nil
}

// LastRun returns the most recent run for a (codebase, campaign) pair, used
// by the publish pipeline to find the run whose branches should be
// proposed.
func (s *Store) LastRun(ctx context.Context, codebase, campaign string) (*model.Run, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM run WHERE codebase = $1 AND campaign = $2 AND finish_time IS NOT NULL
		ORDER BY finish_time DESC LIMIT 1`, codebase, campaign).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("finding last run for %s/%s: %w", codebase, campaign, err)
	}
	return s.GetRun(ctx, id)
}

// PruneTimedOutRuns closes out any active run whose deadline has passed,
// recording a worker-timeout Run for each. It is invoked periodically by
// the runner's cron-scheduled sweeper.
func (s *Store) PruneTimedOutRuns(ctx context.Context, now time.Time, code, description string) ([]string, error) {
	active, err := s.ListActiveRuns(ctx)
	if err != nil {
		return nil, err
	}
	var timedOut []string
	for _, ar := range active {
		if ar.Deadline.After(now) {
			continue
		}
		finish := now
		run := &model.Run{
			ID:          ar.ID,
			Codebase:    ar.Codebase,
			Campaign:    ar.Campaign,
			Command:     ar.Command,
			StartTime:   ar.StartTime,
			FinishTime:  &finish,
			WorkerName:  ar.WorkerName,
			ResultCode:  code,
			Description: description,
			FailureStage: []string{"timeout"},
			FailureTransient: true,
			PublishStatus: model.PublishStatusUnknown,
		}
		if err := s.FinishRun(ctx, run); err != nil {
			return timedOut, fmt.Errorf("finishing timed-out run %s: %w", ar.ID, err)
		}
		timedOut = append(timedOut, ar.ID)
	}
	return timedOut, nil
}

// BackfillFilter narrows ListSuccessfulRuns to a subset of historical runs
// for the auto-upload backfill job.
type BackfillFilter struct {
	Campaign      string
	Codebases     []string
	Distributions []string
	MaxCount      int
}

// ListSuccessfulRuns returns finished runs with an empty ResultCode
// (success), most recent first, matching filter. Distribution filtering
// is left to the caller, since distribution is an artifact-level concept
// the store does not index.
func (s *Store) ListSuccessfulRuns(ctx context.Context, filter BackfillFilter) ([]*model.Run, error) {
	query := `SELECT id FROM run WHERE finish_time IS NOT NULL AND COALESCE(result_code, '') = ''`
	args := []interface{}{}
	if filter.Campaign != "" {
		args = append(args, filter.Campaign)
		query += fmt.Sprintf(" AND campaign = $%d", len(args))
	}
	if len(filter.Codebases) > 0 {
		args = append(args, filter.Codebases)
		query += fmt.Sprintf(" AND codebase = ANY($%d)", len(args))
	}
	query += " ORDER BY finish_time DESC"
	if filter.MaxCount > 0 {
		args = append(args, filter.MaxCount)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing successful runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*model.Run
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
