package git

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	calls [][]string
	out   []byte
	err   error
}

func (f *fakeExecutor) Run(dir string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	return f.out, f.err
}

func newTestStore(t *testing.T) (*Store, *fakeExecutor) {
	t.Helper()
	fe := &fakeExecutor{}
	s := &Store{
		BaseDir:  t.TempDir(),
		executor: fe,
		logger:   logrus.WithField("test", true),
	}
	return s, fe
}

func TestRevParseTrimsNewline(t *testing.T) {
	s, fe := newTestStore(t)
	fe.out = []byte("abcdef0123456789abcdef0123456789abcdef01\n")

	sha, err := s.RevParse(context.Background(), "example", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", sha)
}

func TestDiffNamesRejectsNonSHA(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.DiffNames(context.Background(), "example", "HEAD", "HEAD~1")
	assert.ErrorIs(t, err, ErrInvalidRevision)
}

func TestDiffNamesSplitsLines(t *testing.T) {
	s, fe := newTestStore(t)
	sha1 := "0000000000000000000000000000000000000000"
	sha2 := "1111111111111111111111111111111111111111"
	fe.out = []byte("debian/control\nsrc/main.py\n")

	names, err := s.DiffNames(context.Background(), "example", sha1, sha2)
	require.NoError(t, err)
	assert.Equal(t, []string{"debian/control", "src/main.py"}, names)
}
