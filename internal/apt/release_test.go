package apt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReleaseRenderListsFilesUnderEachHashField(t *testing.T) {
	r := ReleaseFile{
		Origin:        "janitor",
		Label:         "janitor",
		Suite:         "unstable",
		Codename:      "sid",
		Architectures: []string{"amd64", "arm64"},
		Components:    []string{"main"},
		Date:          time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		Files: []HashedFile{
			{
				Path: "main/binary-amd64/Packages",
				Size: 1234,
				Hashes: map[HashAlgorithm]string{
					MD5:    "d41d8cd98f00b204e9800998ecf8427e",
					SHA256: "abc123",
				},
			},
		},
	}

	out := string(r.Render())
	assert.Contains(t, out, "Origin: janitor\n")
	assert.Contains(t, out, "Architectures: amd64 arm64\n")
	assert.Contains(t, out, "MD5Sum:\n d41d8cd98f00b204e9800998ecf8427e 1234 main/binary-amd64/Packages\n")
	assert.Contains(t, out, "SHA256:\n abc123 1234 main/binary-amd64/Packages\n")
	// SHA1/SHA512 fields are still emitted, just with no files listed under them.
	assert.True(t, strings.Contains(out, "SHA1:\n"))
}
