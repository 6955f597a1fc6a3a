package artifactstore

import (
	"context"
	"io"
	"testing"

	_ "gocloud.dev/blob/memblob"

	"github.com/stretchr/testify/require"
)

func TestStoreArtifactsWithBackupNoBackupConfigured(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://primary", "")
	require.NoError(t, err)
	defer s.Close()

	result, err := s.StoreArtifactsWithBackup(ctx, "example", "lintian-fixes", "run-1", map[string][]byte{
		"pkg.deb": []byte("binary"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"pkg.deb"}, result.Stored)
	require.Equal(t, []string{"pkg.deb"}, result.ArtifactsMissing)
	require.Empty(t, result.BackupErrors)

	rc, err := s.Get(ctx, "example", "lintian-fixes", "run-1", "pkg.deb")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "binary", string(data))
}

func TestStoreArtifactsWithBackupBothConfigured(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://primary", "mem://backup")
	require.NoError(t, err)
	defer s.Close()

	result, err := s.StoreArtifactsWithBackup(ctx, "example", "lintian-fixes", "run-1", map[string][]byte{
		"pkg.deb": []byte("binary"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"pkg.deb"}, result.Stored)
	require.Empty(t, result.ArtifactsMissing)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://primary", "")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "example", "lintian-fixes", "run-1", "missing.deb")
	require.ErrorIs(t, err, ErrNotFound)
}
