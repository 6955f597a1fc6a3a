// Package logstore is janitord's content-addressed log storage, backed by
// gocloud.dev/blob the same way pkg/io/providers opens a *blob.Bucket from
// a provider-prefixed path (gs://, s3://, file://) and leaves credential
// discovery to the driver.
package logstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// nameRE bounds log file names to a safe, predictable shape: a base name,
// a ".log" suffix, and an optional numeric rotation suffix.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+\.log(\.\d+)?$`)

// Sentinel errors returned by Store methods; callers (the runner's HTTP
// handlers) map these onto HTTP status codes.
var (
	ErrInvalidName      = errors.New("logstore: invalid log file name")
	ErrNotFound         = errors.New("logstore: log file not found")
	ErrPermissionDenied = errors.New("logstore: permission denied")
	ErrServiceUnavailable = errors.New("logstore: service unavailable")
)

// Store persists per-run log files under "<codebase>/<campaign>/<run-id>/<name>.gz".
type Store struct {
	bucket *blob.Bucket
}

// Open opens a log store at a gocloud.dev/blob URL, e.g.
// "file:///var/lib/janitord/logs" or "s3://janitor-logs".
func Open(ctx context.Context, urlstr string) (*Store, error) {
	bkt, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("opening log bucket %s: %w", urlstr, err)
	}
	return &Store{bucket: bkt}, nil
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

func key(codebase, campaign, runID, name string) (string, error) {
	if !nameRE.MatchString(name) {
		return "", ErrInvalidName
	}
	return fmt.Sprintf("%s/%s/%s/%s.gz", codebase, campaign, runID, name), nil
}

// Put gzip-compresses content and writes it to the store.
func (s *Store) Put(ctx context.Context, codebase, campaign, runID, name string, content []byte) error {
	k, err := key(codebase, campaign, runID, name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		return fmt.Errorf("logstore: compressing %s: %w", name, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("logstore: finishing compression of %s: %w", name, err)
	}
	if err := s.bucket.WriteAll(ctx, k, buf.Bytes(), nil); err != nil {
		return classify(err)
	}
	return nil
}

// Get returns the gunzipped content of a previously stored log file.
func (s *Store) Get(ctx context.Context, codebase, campaign, runID, name string) ([]byte, error) {
	k, err := key(codebase, campaign, runID, name)
	if err != nil {
		return nil, err
	}
	r, err := s.bucket.NewReader(ctx, k, nil)
	if err != nil {
		return nil, classify(err)
	}
	defer r.Close()
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("logstore: decompressing %s: %w", name, err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("logstore: reading %s: %w", name, err)
	}
	return data, nil
}

// List enumerates the log files stored for a run.
func (s *Store) List(ctx context.Context, codebase, campaign, runID string) ([]string, error) {
	prefix := fmt.Sprintf("%s/%s/%s/", codebase, campaign, runID)
	var names []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classify(err)
		}
		name := obj.Key[len(prefix):]
		name = name[:len(name)-len(".gz")]
		names = append(names, name)
	}
	return names, nil
}

func classify(err error) error {
	switch {
	case blob.IsNotExist(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case gcerrors.Code(err) == gcerrors.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
}
