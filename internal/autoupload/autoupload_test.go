package autoupload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/memblob"

	"github.com/janitor-project/janitord/internal/artifactstore"
	"github.com/janitor-project/janitord/internal/metrics"
)

func testUploader(t *testing.T) (*Uploader, *artifactstore.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := artifactstore.Open(ctx, "mem://primary", "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	u := New(store, m, Config{})
	return u, store
}

func TestConfigAllowsDistribution(t *testing.T) {
	cfg := Config{}
	assert.True(t, cfg.allowsDistribution("sid"))

	cfg.Distributions = []string{"bookworm", "sid"}
	assert.True(t, cfg.allowsDistribution("sid"))
	assert.False(t, cfg.allowsDistribution("trixie"))
}

func TestProcessResultSkipsNonDebianTarget(t *testing.T) {
	u, _ := testUploader(t)
	err := u.ProcessResult(context.Background(), ResultEvent{Target: "generic", Code: ""})
	assert.NoError(t, err)
}

func TestProcessResultSkipsFailedRuns(t *testing.T) {
	u, _ := testUploader(t)
	err := u.ProcessResult(context.Background(), ResultEvent{Target: "debian", Code: "command-failed"})
	assert.NoError(t, err)
}

func TestProcessResultSkipsDisallowedDistribution(t *testing.T) {
	u, _ := testUploader(t)
	u.Config.Distributions = []string{"bookworm"}
	err := u.ProcessResult(context.Background(), ResultEvent{Target: "debian", Code: "", Distribution: "sid"})
	assert.NoError(t, err)
}

func TestUploadRunSignsAndUploadsChangesFiles(t *testing.T) {
	u, store := testUploader(t)
	ctx := context.Background()

	_, err := store.StoreArtifactsWithBackup(ctx, "example", "lintian-fixes", "run1", map[string][]byte{
		"foo_1.0_source.changes": []byte("changes contents"),
		"foo_1.0.dsc":            []byte("dsc contents"),
	})
	require.NoError(t, err)

	var signed, uploaded []string
	u.debsign = func(path string) error {
		signed = append(signed, filepath.Base(path))
		return nil
	}
	u.dput = func(host, path string) error {
		uploaded = append(uploaded, filepath.Base(path))
		return nil
	}

	err = u.ProcessResult(ctx, ResultEvent{
		RunID: "run1", Codebase: "example", Campaign: "lintian-fixes", Target: "debian",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo_1.0_source.changes"}, signed)
	assert.Equal(t, []string{"foo_1.0_source.changes"}, uploaded)
}

func TestUploadRunReportsPartialFailureAsDputFailure(t *testing.T) {
	u, store := testUploader(t)
	ctx := context.Background()

	_, err := store.StoreArtifactsWithBackup(ctx, "example", "lintian-fixes", "run2", map[string][]byte{
		"a_1.0.changes": []byte("a"),
		"b_1.0.changes": []byte("b"),
	})
	require.NoError(t, err)

	u.debsign = func(path string) error { return nil }
	calls := 0
	u.dput = func(host, path string) error {
		calls++
		if calls == 1 {
			return assertError("upload refused")
		}
		return nil
	}

	err = u.uploadRun(ctx, ResultEvent{RunID: "run2", Codebase: "example", Campaign: "lintian-fixes"})
	require.Error(t, err)
	var failure *DputFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.OK)
	assert.Equal(t, 2, failure.Total)
}

func TestFindChangesFilesFiltersSourceOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a_1.0.changes", "a_1.0_source.changes", "a_1.0.dsc"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	all, err := findChangesFiles(dir, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sourceOnly, err := findChangesFiles(dir, true)
	require.NoError(t, err)
	require.Len(t, sourceOnly, 1)
	assert.Contains(t, sourceOnly[0], "_source.changes")
}

type assertError string

func (e assertError) Error() string { return string(e) }
