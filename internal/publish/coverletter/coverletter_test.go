package coverletter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBasicTemplate(t *testing.T) {
	out, err := Render("Fixes lintian tags for {{.Codebase}}", Context{Codebase: "example"})
	require.NoError(t, err)
	assert.Equal(t, "Fixes lintian tags for example", out)
}

func TestRenderMarkdownifyDebdiff(t *testing.T) {
	out, err := Render("{{ markdownify_debdiff .Debdiff }}", Context{Debdiff: "+added line\n-removed line"})
	require.NoError(t, err)
	assert.Contains(t, out, "```diff")
	assert.Contains(t, out, "+added line")
}

func TestParseAddrSplitsNameAndEmail(t *testing.T) {
	parts := parseAddr("Jane Doe <jane@example.com>")
	assert.Equal(t, "Jane Doe", parts.Name)
	assert.Equal(t, "jane@example.com", parts.Email)
}

func TestParseAddrFallsBackOnUnparseableAddress(t *testing.T) {
	parts := parseAddr("not an address")
	assert.Equal(t, "", parts.Name)
}
