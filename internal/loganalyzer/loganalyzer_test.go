package loganalyzer

import (
	"strings"
	"testing"

	"github.com/janitor-project/janitord/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericBuildAnalyzerCommandNotFound(t *testing.T) {
	log := "Running lintian-brush\nbash: lintian-brush: command not found\n"
	f, err := GenericBuildAnalyzer{}.Analyze(strings.NewReader(log))
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, taxonomy.CodeCommandNotFound, f.Code)
}

func TestGenericBuildAnalyzerNoMatch(t *testing.T) {
	f, err := GenericBuildAnalyzer{}.Analyze(strings.NewReader("everything fine\n"))
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestDistBuildAnalyzerDpkgError(t *testing.T) {
	log := "dpkg-buildpackage: error: debian/rules build subprocess returned exit status 2\n"
	f, err := DistBuildAnalyzer{}.Analyze(strings.NewReader(log))
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, taxonomy.CodeCommandFailed, f.Code)
}

func TestSbuildAnalyzerSuccessfulStatusIsNotAFailure(t *testing.T) {
	f, err := SbuildAnalyzer{}.Analyze(strings.NewReader("Status: successful\n"))
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestForStrategyFallsBackToGeneric(t *testing.T) {
	assert.IsType(t, GenericBuildAnalyzer{}, ForStrategy("unknown"))
	assert.IsType(t, SbuildAnalyzer{}, ForStrategy("sbuild"))
}
