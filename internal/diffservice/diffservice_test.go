package diffservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandWrapsWithPrlimitWhenLimitSet(t *testing.T) {
	svc, err := New(8, time.Minute, 512*1024)
	require.NoError(t, err)

	name, args := svc.command("debdiff", []string{"old.dsc", "new.dsc"})
	assert.Equal(t, "prlimit", name)
	assert.Equal(t, []string{"--as=536870912", "--", "debdiff", "old.dsc", "new.dsc"}, args)
}

func TestCommandPassesThroughWithoutLimit(t *testing.T) {
	svc, err := New(8, time.Minute, 0)
	require.NoError(t, err)

	name, args := svc.command("diffoscope", []string{"a", "b"})
	assert.Equal(t, "diffoscope", name)
	assert.Equal(t, []string{"a", "b"}, args)
}

func TestDebdiffArgsAddsHTMLFlag(t *testing.T) {
	assert.Equal(t, []string{"--html", "old.dsc", "new.dsc"}, debdiffArgs("old.dsc", "new.dsc", ContentTypeHTML))
	assert.Equal(t, []string{"old.dsc", "new.dsc"}, debdiffArgs("old.dsc", "new.dsc", ContentTypeText))
}

func TestDiffoscopeArgsSelectsFormat(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "--markdown", "-"}, diffoscopeArgs("a", "b", ContentTypeMarkdown))
	assert.Equal(t, []string{"a", "b", "--text", "-"}, diffoscopeArgs("a", "b", ContentTypeText))
}

func TestRunCachesResult(t *testing.T) {
	svc, err := New(8, time.Minute, 0)
	require.NoError(t, err)

	calls := 0
	argsFor := func(old, new string, ct ContentType) []string {
		calls++
		return []string{"-c", "echo hi"}
	}
	out1, cached1, err := svc.run(context.Background(), "sh", "old", "new", ContentTypeText, argsFor)
	require.NoError(t, err)
	assert.False(t, cached1)
	assert.Contains(t, string(out1), "hi")

	out2, cached2, err := svc.run(context.Background(), "sh", "old", "new", ContentTypeText, argsFor)
	require.NoError(t, err)
	assert.True(t, cached2)
	assert.Equal(t, out1, out2)
	assert.Equal(t, 1, calls)
}
