package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// VerifyWorkerCredential checks username/password against the
// worker_credential table using Postgres' own crypt() function, so the
// bcrypt comparison never happens in Go and a timing side-channel never
// has to be reasoned about here. A missing username is reported as a
// clean "not authorized" rather than an error.
func (s *Store) VerifyWorkerCredential(ctx context.Context, username, password string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT password = crypt($2, password) AND NOT revoked
		FROM worker_credential WHERE username = $1`, username, password).Scan(&ok)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verifying credential for worker %s: %w", username, err)
	}
	return ok, nil
}

// SetWorkerCredential creates or rotates a worker's password, hashing it
// with bcrypt via the same crypt()/gen_salt() call used at verification
// time.
func (s *Store) SetWorkerCredential(ctx context.Context, username, password string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO worker_credential (username, password, revoked)
		VALUES ($1, crypt($2, gen_salt('bf')), false)
		ON CONFLICT (username) DO UPDATE SET password = EXCLUDED.password, revoked = false`,
		username, password)
	if err != nil {
		return fmt.Errorf("setting credential for worker %s: %w", username, err)
	}
	return nil
}

// RevokeWorkerCredential disables a worker's credential without deleting
// its audit history.
func (s *Store) RevokeWorkerCredential(ctx context.Context, username string) error {
	_, err := s.pool.Exec(ctx, `UPDATE worker_credential SET revoked = true WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("revoking credential for worker %s: %w", username, err)
	}
	return nil
}
