// Package bzr manages janitord's Bazaar-format repositories, the legacy
// sibling of package git for codebases that have not migrated off Bazaar.
// No usable Go Bazaar binding exists, so every operation shells out to the
// brz (Breezy) command-line client via the same executor seam package git
// uses, trying brz first and falling back to the older bzr binary name.
package bzr

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type executor interface {
	Run(dir string, args ...string) ([]byte, error)
}

type realExecutor struct {
	binary string
}

func (r realExecutor) Run(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command(r.binary, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s %v: %w: %s", r.binary, args, err, out.String())
	}
	return out.Bytes(), nil
}

func resolveBinary() string {
	if _, err := exec.LookPath("brz"); err == nil {
		return "brz"
	}
	return "bzr"
}

// Store roots a tree of Bazaar repositories at BaseDir, one per codebase.
type Store struct {
	BaseDir  string
	executor executor
	logger   *logrus.Entry
}

// New constructs a Store rooted at baseDir.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bzr store root %s: %w", baseDir, err)
	}
	return &Store{
		BaseDir:  baseDir,
		executor: realExecutor{binary: resolveBinary()},
		logger:   logrus.WithField("component", "vcsstore-bzr"),
	}, nil
}

func (s *Store) repoDir(codebase string) string {
	return filepath.Join(s.BaseDir, codebase)
}

// EnsureRepo creates an empty shared repository for codebase if needed.
func (s *Store) EnsureRepo(codebase string) (string, error) {
	dir := s.repoDir(codebase)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	s.logger.WithField("codebase", codebase).Info("initializing shared bzr repository")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating bzr repo dir for %s: %w", codebase, err)
	}
	if _, err := s.executor.Run(s.BaseDir, "init-repository", dir); err != nil {
		return "", fmt.Errorf("initializing bzr repo for %s: %w", codebase, err)
	}
	return dir, nil
}

// LastRevisionID returns the tip revision ID of codebase's branch.
func (s *Store) LastRevisionID(codebase string) (string, error) {
	dir := s.repoDir(codebase)
	out, err := s.executor.Run(dir, "revision-info")
	if err != nil {
		return "", fmt.Errorf("getting revision info for %s: %w", codebase, err)
	}
	fields := bytes.Fields(out)
	if len(fields) < 2 {
		return "", fmt.Errorf("unexpected revision-info output for %s: %q", codebase, out)
	}
	return string(fields[1]), nil
}

// Revision is the JSON shape the GET /{codebase}/revision endpoint
// returns, matching package git's Revision so the VcsStore HTTP contract
// looks the same from either backend.
type Revision struct {
	SHA       string        `json:"sha"`
	Author    RevisionIdent `json:"author"`
	Committer RevisionIdent `json:"committer"`
	Message   string        `json:"message"`
}

// RevisionIdent is one commit identity (author or committer). Bazaar's
// "log --long" format carries one combined committer identity and no
// separate author, so both fields are populated from it.
type RevisionIdent struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Timestamp string `json:"timestamp"`
}

// GetRevision resolves rev (a revision ID, passed as revid:<rev>) and returns its
// metadata, parsed out of `brz log --long`'s human-readable block format.
func (s *Store) GetRevision(codebase, rev string) (*Revision, error) {
	dir := s.repoDir(codebase)
	out, err := s.executor.Run(dir, "log", "--long", "-r", "revid:"+rev)
	if err != nil {
		return nil, fmt.Errorf("resolving revision %s in %s: %w", rev, codebase, err)
	}

	var committer, timestamp string
	var message []string
	inMessage := false
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.HasPrefix(line, "committer:"):
			committer = strings.TrimSpace(strings.TrimPrefix(line, "committer:"))
		case strings.HasPrefix(line, "timestamp:"):
			timestamp = strings.TrimSpace(strings.TrimPrefix(line, "timestamp:"))
		case strings.HasPrefix(line, "message:"):
			inMessage = true
		case inMessage:
			message = append(message, strings.TrimPrefix(line, "  "))
		}
	}

	name, email := committer, ""
	if i := strings.Index(committer, "<"); i >= 0 {
		name = strings.TrimSpace(committer[:i])
		email = strings.TrimSuffix(strings.TrimPrefix(committer[i:], "<"), ">")
	}
	ident := RevisionIdent{Name: name, Email: email, Timestamp: timestamp}

	return &Revision{
		SHA:       rev,
		Author:    ident,
		Committer: ident,
		Message:   strings.TrimSpace(strings.Join(message, "\n")),
	}, nil
}
