package assignment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAssignmentRoundTrip(t *testing.T) {
	a := Assignment{
		RunID:    "abc123",
		Codebase: "example",
		Campaign: "lintian-fixes",
		Branch: BranchSpec{
			VCSType: "git",
			URL:     "https://salsa.debian.org/example/example.git",
		},
		Command:  []string{"lintian-brush"},
		Deadline: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var out Assignment
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, a.RunID, out.RunID)
	require.Equal(t, a.Branch.URL, out.Branch.URL)
	require.True(t, a.Deadline.Equal(out.Deadline))
}

func TestMetadataOmitsEmptyOptionalFields(t *testing.T) {
	m := Metadata{Code: "success"}
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	_, hasDescription := raw["description"]
	require.False(t, hasDescription)
	require.Equal(t, "success", raw["code"])
}
