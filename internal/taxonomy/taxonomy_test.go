package taxonomy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminalCode(t *testing.T) {
	assert.True(t, IsTerminalCode(CodeUnauthorized))
	assert.True(t, IsTerminalCode(CodeBranchMissing))
	assert.False(t, IsTerminalCode(CodeWorkerTimeout))
	assert.False(t, IsTerminalCode("some-unknown-code"))
}

func TestNewDefaultsTransientFromCode(t *testing.T) {
	f := New(CodeWorkerTimeout, "timed out", "build")
	assert.True(t, f.Transient)
	assert.Equal(t, []string{"build"}, f.Stage)

	f2 := New(CodeUnauthorized, "bad creds")
	assert.False(t, f2.Transient)
}

func TestWithTransientOverride(t *testing.T) {
	f := New(CodeWorkerTimeout, "timed out").WithTransient(false)
	assert.False(t, f.Transient)
}

func TestTerminalErrorRoundTrip(t *testing.T) {
	base := errors.New("boom")
	wrapped := TerminalError(base)
	require.True(t, IsTerminalError(wrapped))
	assert.False(t, IsTerminalError(base))

	reWrapped := fmtWrap(wrapped)
	assert.True(t, IsTerminalError(reWrapped))
}

func fmtWrap(err error) error {
	return errors.Join(err)
}
