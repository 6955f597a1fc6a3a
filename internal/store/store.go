// Package store is janitord's Postgres-backed persistence layer. It owns
// the queue, run history, active-run leases, merge-proposal bookkeeping
// and publish-attempt log, all behind a single *pgxpool.Pool, mirroring
// the way prow/pkg/kube wraps a single client handle for every controller
// to share.
package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the shared handle used by the scheduler, runner, publisher and
// admin tooling. It is safe for concurrent use; methods that must be
// atomic (ClaimNextItem, FinishRun) open their own transactions.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	logrus.Debug("store: schema applied")
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the raw pool for packages that need direct SQL access
// outside this package's higher-level API.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
