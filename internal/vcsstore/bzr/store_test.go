package bzr

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	out []byte
	err error
}

func (f *fakeExecutor) Run(dir string, args ...string) ([]byte, error) {
	return f.out, f.err
}

func TestLastRevisionIDParsesOutput(t *testing.T) {
	fe := &fakeExecutor{out: []byte("42 revid-abc123\n")}
	s := &Store{BaseDir: t.TempDir(), executor: fe, logger: logrus.WithField("test", true)}

	id, err := s.LastRevisionID("example")
	require.NoError(t, err)
	assert.Equal(t, "revid-abc123", id)
}

func TestLastRevisionIDRejectsMalformedOutput(t *testing.T) {
	fe := &fakeExecutor{out: []byte("garbage")}
	s := &Store{BaseDir: t.TempDir(), executor: fe, logger: logrus.WithField("test", true)}

	_, err := s.LastRevisionID("example")
	assert.Error(t, err)
}
