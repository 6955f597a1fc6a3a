// Package git manages janitord's bare Git repositories and fronts them
// with git-http-backend for the smart-HTTP protocol, the same way the
// worker-facing contract expects a plain "git clone <url>" to work against
// the VCS store. The executor/logger split mirrors prow/git/v2's
// Interactor: every git invocation goes through one seam so tests can
// substitute a fake.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
)

// shaRE bounds the revisions accepted in HTTP-facing endpoints (diff,
// revision info) to well-formed SHA-1 hex, since they are interpolated
// into git command arguments.
var shaRE = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ErrInvalidRevision is returned for a revision string that fails shaRE.
var ErrInvalidRevision = fmt.Errorf("git: invalid revision")

// executor is the seam over os/exec, substituted in tests.
type executor interface {
	Run(dir string, args ...string) ([]byte, error)
}

type realExecutor struct{}

func (realExecutor) Run(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("git %v: %w: %s", args, err, out.String())
	}
	return out.Bytes(), nil
}

// Store roots a tree of bare repositories, one per codebase, at BaseDir.
type Store struct {
	BaseDir  string
	executor executor
	logger   *logrus.Entry
}

// New constructs a Store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating git store root %s: %w", baseDir, err)
	}
	return &Store{
		BaseDir:  baseDir,
		executor: realExecutor{},
		logger:   logrus.WithField("component", "vcsstore-git"),
	}, nil
}

func (s *Store) repoDir(codebase string) string {
	return filepath.Join(s.BaseDir, codebase+".git")
}

// EnsureRepo creates an empty bare repository for codebase if one does not
// already exist.
func (s *Store) EnsureRepo(ctx context.Context, codebase string) (string, error) {
	dir := s.repoDir(codebase)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	s.logger.WithField("codebase", codebase).Info("initializing bare repository")
	if _, err := s.executor.Run(s.BaseDir, "init", "--bare", dir); err != nil {
		return "", fmt.Errorf("initializing repo for %s: %w", codebase, err)
	}
	return dir, nil
}

// RevParse resolves commitlike to a full SHA within codebase's repo.
func (s *Store) RevParse(ctx context.Context, codebase, commitlike string) (string, error) {
	dir := s.repoDir(codebase)
	out, err := s.executor.Run(dir, "rev-parse", commitlike)
	if err != nil {
		return "", fmt.Errorf("resolving %s in %s: %w", commitlike, codebase, err)
	}
	return trimNewline(out), nil
}

// DiffNames lists the paths changed between two revisions.
func (s *Store) DiffNames(ctx context.Context, codebase, base, head string) ([]string, error) {
	if !shaRE.MatchString(base) || !shaRE.MatchString(head) {
		return nil, ErrInvalidRevision
	}
	dir := s.repoDir(codebase)
	out, err := s.executor.Run(dir, "diff", "--name-only", base, head)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s in %s: %w", base, head, codebase, err)
	}
	return splitLines(out), nil
}

// Diff renders the unified-diff text between two revisions, optionally
// scoped to a single path. Callers must validate base/head against shaRE
// themselves (the HTTP layer does this so it can return 400 rather than a
// generic 500 on a malformed revision).
func (s *Store) Diff(ctx context.Context, codebase, base, head, path string) ([]byte, error) {
	dir := s.repoDir(codebase)
	args := []string{"diff", base, head}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := s.executor.Run(dir, args...)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s in %s: %w", base, head, codebase, err)
	}
	return out, nil
}

// Revision describes one commit's metadata, the JSON shape the
// GET /{codebase}/revision endpoint returns.
type Revision struct {
	SHA       string        `json:"sha"`
	Author    RevisionIdent `json:"author"`
	Committer RevisionIdent `json:"committer"`
	Message   string        `json:"message"`
}

// RevisionIdent is one commit identity (author or committer).
type RevisionIdent struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Timestamp string `json:"timestamp"`
}

// revisionFormat feeds `git show` a machine-parseable record: seven header
// fields each on their own line, followed by the raw commit message, which
// may itself contain newlines.
const revisionFormat = `%H%n%an%n%ae%n%aI%n%cn%n%ce%n%cI%n%B`

// GetRevision resolves rev within codebase and returns its metadata.
func (s *Store) GetRevision(ctx context.Context, codebase, rev string) (*Revision, error) {
	dir := s.repoDir(codebase)
	out, err := s.executor.Run(dir, "show", "--no-patch", "--format="+revisionFormat, rev)
	if err != nil {
		return nil, fmt.Errorf("resolving revision %s in %s: %w", rev, codebase, err)
	}
	parts := bytes.SplitN(out, []byte("\n"), 8)
	if len(parts) < 8 {
		return nil, fmt.Errorf("parsing revision output for %s in %s: unexpected format", rev, codebase)
	}
	return &Revision{
		SHA:       string(parts[0]),
		Author:    RevisionIdent{Name: string(parts[1]), Email: string(parts[2]), Timestamp: string(parts[3])},
		Committer: RevisionIdent{Name: string(parts[4]), Email: string(parts[5]), Timestamp: string(parts[6])},
		Message:   trimNewline(parts[7]),
	}, nil
}

func trimNewline(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}

func splitLines(b []byte) []string {
	var lines []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			if i > start {
				lines = append(lines, string(b[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, string(b[start:]))
	}
	return lines
}
