package logstore

import (
	"context"
	"testing"

	_ "gocloud.dev/blob/memblob"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "example", "lintian-fixes", "run-1", "worker.log", []byte("hello world")))

	data, err := s.Get(ctx, "example", "lintian-fixes", "run-1", "worker.log")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "example", "lintian-fixes", "run-1", "worker.log")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutRejectsInvalidName(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer s.Close()

	err = s.Put(ctx, "example", "lintian-fixes", "run-1", "../../etc/passwd", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestListReturnsStoredNames(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "example", "lintian-fixes", "run-1", "worker.log", []byte("a")))
	require.NoError(t, s.Put(ctx, "example", "lintian-fixes", "run-1", "build.log", []byte("b")))

	names, err := s.List(ctx, "example", "lintian-fixes", "run-1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"worker.log", "build.log"}, names)
}
