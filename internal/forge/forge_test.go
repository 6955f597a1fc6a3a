package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeIDFromURL(t *testing.T) {
	id, err := changeIDFromURL("https://gerrit.example.com/c/project~main~Ideadbeef")
	require.NoError(t, err)
	assert.Equal(t, "project~main~Ideadbeef", id)
}

func TestChangeIDFromURLRejectsUnrecognized(t *testing.T) {
	_, err := changeIDFromURL("https://github.com/example/example/pull/1")
	assert.Error(t, err)
}
