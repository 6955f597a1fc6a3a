package workerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janitor-project/janitord/internal/assignment"
)

func TestAssignReturnsErrQueueEmptyOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "worker1", "secret")
	_, err := c.Assign(context.Background())
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestAssignDecodesAssignment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "worker1", user)
		assert.Equal(t, "secret", pass)

		json.NewEncoder(w).Encode(assignment.Assignment{RunID: "run1", Codebase: "example", Campaign: "lintian-fixes"})
	}))
	defer srv.Close()

	c := New(srv.URL, "worker1", "secret")
	a, err := c.Assign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run1", a.RunID)
}

func TestReportFinishSendsMetadataAndFiles(t *testing.T) {
	var gotMeta assignment.Metadata
	var gotLogName, gotArtifactName string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		require.NoError(t, err)
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			name := part.FormName()
			switch {
			case name == "metadata":
				require.NoError(t, json.NewDecoder(part).Decode(&gotMeta))
			case strings.HasPrefix(name, "log:"):
				gotLogName = strings.TrimPrefix(name, "log:")
			case strings.HasPrefix(name, "artifact:"):
				gotArtifactName = strings.TrimPrefix(name, "artifact:")
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	workdir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "worker.log"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "foo.dsc"), []byte("dsc contents"), 0o644))

	c := New(srv.URL, "worker1", "secret")
	err := c.reportFinish(context.Background(), "run1", &assignment.Metadata{Code: "command-failed"}, workdir)
	require.NoError(t, err)

	assert.Equal(t, "command-failed", gotMeta.Code)
	assert.Equal(t, "worker.log", gotLogName)
	assert.Equal(t, "foo.dsc", gotArtifactName)
}

func TestIsTransientForContextDeadline(t *testing.T) {
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.True(t, isTransient(context.Canceled))
	assert.False(t, isTransient(errors.New("exit status 1")))
}
