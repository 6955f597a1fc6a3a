// Package artifactstore persists the build/codemod artifacts a worker
// uploads alongside its Metadata: source packages, .deb files, diffs.
// Like logstore it is a thin gocloud.dev/blob wrapper, but it additionally
// understands a primary/backup bucket pair so a backup write failure never
// fails the run that produced the artifact.
package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

var ErrNotFound = errors.New("artifactstore: artifact not found")

// Store writes artifacts to a required primary bucket and an optional
// backup bucket.
type Store struct {
	primary *blob.Bucket
	backup  *blob.Bucket
}

// Open opens the primary bucket at primaryURL and, if backupURL is
// non-empty, a second bucket used only as a best-effort backup target.
func Open(ctx context.Context, primaryURL, backupURL string) (*Store, error) {
	primary, err := blob.OpenBucket(ctx, primaryURL)
	if err != nil {
		return nil, fmt.Errorf("opening primary artifact bucket %s: %w", primaryURL, err)
	}
	s := &Store{primary: primary}
	if backupURL != "" {
		backup, err := blob.OpenBucket(ctx, backupURL)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("opening backup artifact bucket %s: %w", backupURL, err)
		}
		s.backup = backup
	}
	return s, nil
}

func (s *Store) Close() error {
	var errs []error
	if err := s.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.backup != nil {
		if err := s.backup.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

func artifactKey(codebase, campaign, runID, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", codebase, campaign, runID, name)
}

// StoreArtifactsResult reports, per artifact, whether the backup write
// succeeded. ArtifactsMissing is a reachable, non-error outcome: a backup
// bucket that is simply unconfigured is not a failure, per the resolved
// Open Question on store_artifacts_with_backup.
type StoreArtifactsResult struct {
	Stored           []string
	ArtifactsMissing []string
	BackupErrors     map[string]error
}

// StoreArtifactsWithBackup writes every artifact to the primary bucket,
// then best-efforts the same artifacts to the backup bucket without ever
// failing the call for a backup error; backup failures are reported for
// the caller to log and/or feed to UploadBackupArtifacts for retry. If a
// primary write fails, every artifact is first written to the backup
// bucket (when one is configured) and the primary error is returned.
func (s *Store) StoreArtifactsWithBackup(ctx context.Context, codebase, campaign, runID string, artifacts map[string][]byte) (*StoreArtifactsResult, error) {
	result := &StoreArtifactsResult{BackupErrors: map[string]error{}}
	if len(artifacts) == 0 {
		return result, nil
	}

	for name, content := range artifacts {
		k := artifactKey(codebase, campaign, runID, name)
		if err := s.primary.WriteAll(ctx, k, content, nil); err != nil {
			if s.backup != nil {
				for bname, bcontent := range artifacts {
					if berr := s.backup.WriteAll(ctx, artifactKey(codebase, campaign, runID, bname), bcontent, nil); berr != nil {
						result.BackupErrors[bname] = berr
					}
				}
			}
			return result, fmt.Errorf("storing artifact %s: %w", name, err)
		}
		result.Stored = append(result.Stored, name)
	}

	if s.backup == nil {
		result.ArtifactsMissing = result.Stored
		return result, nil
	}

	for name, content := range artifacts {
		k := artifactKey(codebase, campaign, runID, name)
		if err := s.backup.WriteAll(ctx, k, content, nil); err != nil {
			result.BackupErrors[name] = err
			result.ArtifactsMissing = append(result.ArtifactsMissing, name)
		}
	}
	return result, nil
}

// Get reads an artifact from the primary bucket, falling back to the
// backup bucket if it is missing there, covering the case where a run's
// primary-bucket copy was pruned by a retention job.
func (s *Store) Get(ctx context.Context, codebase, campaign, runID, name string) (io.ReadCloser, error) {
	k := artifactKey(codebase, campaign, runID, name)
	r, err := s.primary.NewReader(ctx, k, nil)
	if err == nil {
		return r, nil
	}
	if !blob.IsNotExist(err) || s.backup == nil {
		return nil, classify(err)
	}
	r, err = s.backup.NewReader(ctx, k, nil)
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

// List enumerates artifact names stored for a run in the primary bucket.
func (s *Store) List(ctx context.Context, codebase, campaign, runID string) ([]string, error) {
	prefix := artifactKey(codebase, campaign, runID, "")
	var names []string
	iter := s.primary.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classify(err)
		}
		names = append(names, obj.Key[len(prefix):])
	}
	return names, nil
}

func classify(err error) error {
	if blob.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
