package backchannel

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollingKillIsVisibleToWorker(t *testing.T) {
	p := NewPolling()
	p.Register("run-1")
	defer p.Unregister("run-1")

	assert.False(t, p.IsKilled("run-1"))
	require.NoError(t, p.Kill(context.Background(), "run-1"))
	assert.True(t, p.IsKilled("run-1"))
}

func TestPollingLogFileRoundTrip(t *testing.T) {
	p := NewPolling()
	p.Register("run-2")
	defer p.Unregister("run-2")

	require.NoError(t, p.AppendLog("run-2", "build.log", []byte("hello ")))
	require.NoError(t, p.AppendLog("run-2", "build.log", []byte("world")))

	names, err := p.ListLogFiles(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"build.log"}, names)

	rc, err := p.GetLogFile(context.Background(), "run-2", "build.log")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestPollingUnknownRunErrors(t *testing.T) {
	p := NewPolling()
	_, err := p.ListLogFiles(context.Background(), "missing")
	assert.Error(t, err)
}
