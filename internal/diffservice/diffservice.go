// Package diffservice runs debdiff/diffoscope between two artifact sets
// and caches the result, so the same (old, new) pair is never recomputed
// for every client that asks for it.
package diffservice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ContentType names the negotiated output format for a diff request.
type ContentType string

const (
	ContentTypeText     ContentType = "text/plain"
	ContentTypeHTML     ContentType = "text/html"
	ContentTypeMarkdown ContentType = "text/markdown"
)

// cacheKey identifies one (tool, content type, old path, new path) diff.
type cacheKey struct {
	tool        string
	contentType ContentType
	oldPath     string
	newPath     string
}

// Service runs debdiff and diffoscope under a timeout and memory limit,
// keeping an LRU index of recently computed diffs so repeat requests for
// the same pair of artifacts are served from cache.
type Service struct {
	cache       *lru.Cache[cacheKey, []byte]
	timeout     time.Duration
	memLimitKiB uint64
}

// New constructs a Service with the given cache size, per-diff timeout and
// memory ceiling (applied to the child process via RLIMIT_AS).
func New(cacheSize int, timeout time.Duration, memLimitKiB uint64) (*Service, error) {
	cache, err := lru.New[cacheKey, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("diffservice: creating cache: %w", err)
	}
	return &Service{cache: cache, timeout: timeout, memLimitKiB: memLimitKiB}, nil
}

// Debdiff runs debdiff between two .dsc files (or binary .deb files),
// returning cached output if this pair was already diffed.
func (s *Service) Debdiff(ctx context.Context, oldPath, newPath string, contentType ContentType) ([]byte, bool, error) {
	return s.run(ctx, "debdiff", oldPath, newPath, contentType, debdiffArgs)
}

// Diffoscope runs diffoscope between two build outputs.
func (s *Service) Diffoscope(ctx context.Context, oldPath, newPath string, contentType ContentType) ([]byte, bool, error) {
	return s.run(ctx, "diffoscope", oldPath, newPath, contentType, diffoscopeArgs)
}

func (s *Service) run(ctx context.Context, tool, oldPath, newPath string, contentType ContentType, argsFor func(old, new string, ct ContentType) []string) ([]byte, bool, error) {
	key := cacheKey{tool: tool, contentType: contentType, oldPath: oldPath, newPath: newPath}
	if cached, ok := s.cache.Get(key); ok {
		return cached, true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name, args := s.command(tool, argsFor(oldPath, newPath, contentType))
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	// debdiff and diffoscope both exit non-zero when a difference is
	// found; only a context deadline or a missing binary is a real error.
	if ctx.Err() != nil {
		return nil, false, fmt.Errorf("%s: timed out after %s", tool, s.timeout)
	}
	if _, ok := err.(*exec.ExitError); err != nil && !ok {
		return nil, false, fmt.Errorf("running %s: %w: %s", tool, err, stderr.String())
	}

	out := stdout.Bytes()
	s.cache.Add(key, out)
	return out, false, nil
}

func debdiffArgs(old, new string, ct ContentType) []string {
	args := []string{old, new}
	if ct == ContentTypeHTML {
		args = append([]string{"--html"}, args...)
	}
	return args
}

func diffoscopeArgs(old, new string, ct ContentType) []string {
	args := []string{old, new}
	switch ct {
	case ContentTypeHTML:
		args = append(args, "--html", "-")
	case ContentTypeMarkdown:
		args = append(args, "--markdown", "-")
	default:
		args = append(args, "--text", "-")
	}
	return args
}

// command wraps tool in a prlimit(1) invocation applying an RLIMIT_AS
// ceiling, so a pathological diffoscope run on a huge binary cannot take
// down the host. prlimit ships with util-linux and is present on every
// Debian system this service runs on.
func (s *Service) command(tool string, args []string) (string, []string) {
	if s.memLimitKiB == 0 {
		return tool, args
	}
	limitBytes := s.memLimitKiB * 1024
	prlimitArgs := append([]string{"--as=" + strconv.FormatUint(limitBytes, 10), "--", tool}, args...)
	return "prlimit", prlimitArgs
}
