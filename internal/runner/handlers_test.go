package runner

import (
	"bytes"
	"mime/multipart"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janitor-project/janitord/internal/assignment"
	"github.com/janitor-project/janitord/internal/model"
)

func TestLabelOrSuccess(t *testing.T) {
	assert.Equal(t, "success", labelOrSuccess(""))
	assert.Equal(t, "command-failed", labelOrSuccess("command-failed"))
}

func writeMultipartFinish(t *testing.T, metadata string, logs map[string]string, artifacts map[string]string) (*multipart.Reader, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormField("metadata")
	require.NoError(t, err)
	_, err = part.Write([]byte(metadata))
	require.NoError(t, err)

	for name, content := range logs {
		p, err := mw.CreateFormField("log:" + name)
		require.NoError(t, err)
		_, err = p.Write([]byte(content))
		require.NoError(t, err)
	}
	for name, content := range artifacts {
		p, err := mw.CreateFormField("artifact:" + name)
		require.NoError(t, err)
		_, err = p.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return multipart.NewReader(&buf, mw.Boundary()), buf.Bytes()
}

func TestReadFinishPartsSplitsLogsAndArtifacts(t *testing.T) {
	mr, _ := writeMultipartFinish(t, `{"code":""}`,
		map[string]string{"worker.log": "hello"},
		map[string]string{"foo.dsc": "dsc contents"})

	meta, logs, artifacts, err := readFinishParts(mr)
	require.NoError(t, err)
	assert.Equal(t, "", meta.Code)
	assert.Equal(t, []byte("hello"), logs["worker.log"])
	assert.Equal(t, []byte("dsc contents"), artifacts["foo.dsc"])
}

func TestReadFinishPartsRequiresMetadata(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	p, err := mw.CreateFormField("log:worker.log")
	require.NoError(t, err)
	_, err = p.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	mr := multipart.NewReader(&buf, mw.Boundary())
	_, _, _, err = readFinishParts(mr)
	assert.Error(t, err)
}

func TestBuildRunCopiesMetadataIntoRun(t *testing.T) {
	s := &Server{}
	active := &model.ActiveRun{
		ID: "run1", Codebase: "example", Campaign: "lintian-fixes", Command: "lintian-brush",
		WorkerName: "worker1", StartTime: time.Now().Add(-time.Minute),
	}
	transient := true
	meta := &assignment.Metadata{
		Code:        "command-failed",
		Description: "build failed",
		Transient:   &transient,
		Branches: []assignment.ResultBranch{
			{Function: "main", Name: "master", BaseRevision: "a", NewRevision: "b"},
		},
	}

	run := s.buildRun(active, meta)
	assert.Equal(t, "run1", run.ID)
	assert.Equal(t, "command-failed", run.ResultCode)
	assert.True(t, run.FailureTransient)
	require.Len(t, run.ResultBranches, 1)
	assert.Equal(t, "master", run.ResultBranches[0].Name)
	assert.NotNil(t, run.FinishTime)
}

func TestReclassifyFromLogsOverwritesResultCode(t *testing.T) {
	s := &Server{logger: discardLogger()}
	run := &model.Run{ResultCode: "dist-some-failure"}
	logs := map[string][]byte{
		"dist.log": []byte("E: Unable to find a source package for foo\n"),
	}

	s.reclassifyFromLogs(run, logs)
	assert.Equal(t, "branch-missing", run.ResultCode)
}

func TestReclassifyFromLogsLeavesSuccessAlone(t *testing.T) {
	s := &Server{logger: discardLogger()}
	run := &model.Run{ResultCode: ""}
	s.reclassifyFromLogs(run, map[string][]byte{"dist.log": []byte("anything")})
	assert.Equal(t, "", run.ResultCode)
}
