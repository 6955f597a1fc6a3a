package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/janitor-project/janitord/internal/model"
)

// ErrCodebaseNotFound is returned by GetCodebase when no codebase has the
// requested name.
var ErrCodebaseNotFound = errors.New("store: codebase not found")

// GetCodebase fetches one codebase's VCS metadata, used by the runner to
// fill in an Assignment's branch spec.
func (s *Store) GetCodebase(ctx context.Context, name string) (*model.Codebase, error) {
	var cb model.Codebase
	err := s.pool.QueryRow(ctx, `
		SELECT name, branch_url, subpath, vcs_type, archived
		FROM codebase WHERE name = $1`, name).Scan(
		&cb.Name, &cb.BranchURL, &cb.Subpath, &cb.VCSType, &cb.Archived)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("codebase %s: %w", name, ErrCodebaseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching codebase %s: %w", name, err)
	}
	return &cb, nil
}

// UpsertCodebase inserts or updates a codebase's VCS metadata, used by the
// candidate-ingestion path when a new project is first seen.
func (s *Store) UpsertCodebase(ctx context.Context, cb *model.Codebase) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO codebase (name, branch_url, subpath, vcs_type, archived)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			branch_url = EXCLUDED.branch_url,
			subpath = EXCLUDED.subpath,
			vcs_type = EXCLUDED.vcs_type,
			archived = EXCLUDED.archived`,
		cb.Name, cb.BranchURL, cb.Subpath, cb.VCSType, cb.Archived)
	if err != nil {
		return fmt.Errorf("upserting codebase %s: %w", cb.Name, err)
	}
	return nil
}
