// Package loganalyzer turns a failed run's raw build log into a
// taxonomy.Failure, the same classification step prow/pkg/plank performs
// when it maps a pod's terminal container state onto a ProwJobState.
package loganalyzer

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/janitor-project/janitord/internal/taxonomy"
)

// Analyzer inspects a build strategy's log output and proposes a
// taxonomy.Failure for it. Each build strategy (generic codemod, sbuild,
// a plain distribution build) gets its own Analyzer, since the log shapes
// and the signatures worth matching differ.
type Analyzer interface {
	// Analyze scans r and returns the most specific Failure it can
	// identify, or nil if nothing matched.
	Analyze(r io.Reader) (*taxonomy.Failure, error)
}

// signature pairs a regexp against a line of log output with the Failure
// it should produce when matched.
type signature struct {
	pattern *regexp.Regexp
	build   func(line string, match []string) *taxonomy.Failure
}

func scanSignatures(r io.Reader, sigs []signature) (*taxonomy.Failure, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var lastMatch *taxonomy.Failure
	for scanner.Scan() {
		line := scanner.Text()
		for _, sig := range sigs {
			if m := sig.pattern.FindStringSubmatch(line); m != nil {
				lastMatch = sig.build(line, m)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return lastMatch, err
	}
	return lastMatch, nil
}

// GenericBuildAnalyzer classifies logs from an arbitrary codemod command,
// looking for shell-level signatures (command not found, killed by
// signal) that apply regardless of what the command actually builds.
type GenericBuildAnalyzer struct{}

var genericSignatures = []signature{
	{
		pattern: regexp.MustCompile(`^(?:/bin/sh|bash): (\S+): command not found$`),
		build: func(line string, m []string) *taxonomy.Failure {
			details, _ := json.Marshal(map[string]string{"command": m[1]})
			return taxonomy.New(taxonomy.CodeCommandNotFound, "command not found: "+m[1], "build").WithDetails(details)
		},
	},
	{
		pattern: regexp.MustCompile(`^Killed$`),
		build: func(line string, m []string) *taxonomy.Failure {
			return taxonomy.New(taxonomy.CodeKilled, "process was killed, likely out of memory or time", "build")
		},
	},
}

func (GenericBuildAnalyzer) Analyze(r io.Reader) (*taxonomy.Failure, error) {
	return scanSignatures(r, genericSignatures)
}

// DistBuildAnalyzer classifies logs from a plain "debian/rules build"-style
// distribution build, catching the common Debian packaging failure shapes.
type DistBuildAnalyzer struct{}

var distSignatures = []signature{
	{
		pattern: regexp.MustCompile(`^E: Unable to find a source package for (.+)$`),
		build: func(line string, m []string) *taxonomy.Failure {
			return taxonomy.New(taxonomy.CodeBranchMissing, "no source package found for "+m[1], "build")
		},
	},
	{
		pattern: regexp.MustCompile(`^dpkg-buildpackage: error: (.+)$`),
		build: func(line string, m []string) *taxonomy.Failure {
			return taxonomy.New(taxonomy.CodeCommandFailed, m[1], "build")
		},
	},
}

func (DistBuildAnalyzer) Analyze(r io.Reader) (*taxonomy.Failure, error) {
	return scanSignatures(r, distSignatures)
}

// SbuildAnalyzer classifies sbuild's own chroot/build-log conventions,
// which wrap the underlying dpkg-buildpackage output in its own
// "Build-Space:"/"Status:" banner lines.
type SbuildAnalyzer struct{}

var sbuildSignatures = []signature{
	{
		pattern: regexp.MustCompile(`^E: Failed to setup the build environment: (.+)$`),
		build: func(line string, m []string) *taxonomy.Failure {
			return taxonomy.New(taxonomy.CodeBranchUnavailable, m[1], "build")
		},
	},
	{
		pattern: regexp.MustCompile(`^Status: (.+)$`),
		build: func(line string, m []string) *taxonomy.Failure {
			status := strings.TrimSpace(m[1])
			if status == "successful" {
				return nil
			}
			return taxonomy.New(taxonomy.CodeCommandFailed, "sbuild reported status: "+status, "build")
		},
	},
}

func (SbuildAnalyzer) Analyze(r io.Reader) (*taxonomy.Failure, error) {
	return scanSignatures(r, sbuildSignatures)
}

// ForStrategy selects the Analyzer appropriate for a named build strategy,
// falling back to GenericBuildAnalyzer for anything unrecognized.
func ForStrategy(strategy string) Analyzer {
	switch strategy {
	case "sbuild":
		return SbuildAnalyzer{}
	case "dist":
		return DistBuildAnalyzer{}
	default:
		return GenericBuildAnalyzer{}
	}
}
