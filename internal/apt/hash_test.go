package apt

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashReaderComputesAllAlgorithms(t *testing.T) {
	hf, err := HashReader("Packages", AllHashAlgorithms, strings.NewReader("hello world"))
	require.NoError(t, err)

	assert.EqualValues(t, 11, hf.Size)
	want := fmt.Sprintf("%x", sha256.Sum256([]byte("hello world")))
	assert.Equal(t, want, hf.Hashes[SHA256])
	assert.Len(t, hf.Hashes, len(AllHashAlgorithms))
}

func TestReleaseFieldNames(t *testing.T) {
	assert.Equal(t, "MD5Sum", MD5.ReleaseFieldName())
	assert.Equal(t, "SHA1", SHA1.ReleaseFieldName())
	assert.Equal(t, "SHA256", SHA256.ReleaseFieldName())
	assert.Equal(t, "SHA512", SHA512.ReleaseFieldName())
}
