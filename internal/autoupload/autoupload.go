// Package autoupload subscribes to the "result" Redis channel and signs
// and dputs the .changes artifacts of successful Debian builds, the Go
// rendering of original_source/auto-upload/src/{process,upload,
// message_handler}.rs.
package autoupload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gomodule/redigo/redis"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/janitor-project/janitord/internal/artifactstore"
	"github.com/janitor-project/janitord/internal/metrics"
)

// ResultEvent is the payload published to the "result" Redis channel when
// a run finishes.
type ResultEvent struct {
	RunID        string `json:"run_id"`
	Codebase     string `json:"codebase"`
	Campaign     string `json:"campaign"`
	Target       string `json:"target"`
	Distribution string `json:"distribution"`
	Code         string `json:"code"`
}

// Config controls which results autoupload acts on and how it signs/
// uploads them.
type Config struct {
	// Distributions is the allow-list of distributions to act on; empty
	// means all distributions are eligible.
	Distributions []string
	// SourceOnly restricts upload to *_source.changes files only.
	SourceOnly bool
	// SigningKeyID is passed to debsign -k when non-empty.
	SigningKeyID string
	// DputHost names the dput target host/config-stanza.
	DputHost string
}

func (c Config) allowsDistribution(dist string) bool {
	if len(c.Distributions) == 0 {
		return true
	}
	for _, d := range c.Distributions {
		if d == dist {
			return true
		}
	}
	return false
}

// DputFailure reports a partially-successful upload batch; it is not a
// hard error, since some .changes files may have uploaded fine.
type DputFailure struct {
	OK    int
	Total int
}

func (e *DputFailure) Error() string {
	return fmt.Sprintf("%d/%d successful", e.OK, e.Total)
}

// Uploader signs and uploads successful Debian build artifacts.
type Uploader struct {
	Artifacts *artifactstore.Store
	Metrics   *metrics.Metrics
	Config    Config
	logger    *logrus.Entry

	// debsign/dput are overridable for testing.
	debsign func(changesPath string) error
	dput    func(host, changesPath string) error
}

// New constructs an Uploader using real debsign/dput subprocess
// invocations.
func New(artifacts *artifactstore.Store, m *metrics.Metrics, cfg Config) *Uploader {
	u := &Uploader{
		Artifacts: artifacts,
		Metrics:   m,
		Config:    cfg,
		logger:    logrus.WithField("component", "autoupload"),
	}
	u.debsign = u.runDebsign
	u.dput = u.runDput
	return u
}

// Subscribe runs the Redis "result" channel subscription loop until ctx
// is cancelled or the connection fails, invoking ProcessResult for every
// event that names a successful Debian build.
func (u *Uploader) Subscribe(ctx context.Context, pool *redis.Pool) error {
	conn := pool.Get()
	defer conn.Close()

	psc := redis.PubSubConn{Conn: conn}
	if err := psc.Subscribe("result"); err != nil {
		return fmt.Errorf("autoupload: subscribing to result channel: %w", err)
	}
	defer psc.Unsubscribe("result")

	done := make(chan error, 1)
	go func() {
		for {
			switch v := psc.Receive().(type) {
			case redis.Message:
				var ev ResultEvent
				if err := json.Unmarshal(v.Data, &ev); err != nil {
					u.logger.WithError(err).Warn("discarding malformed result event")
					continue
				}
				if err := u.ProcessResult(ctx, ev); err != nil {
					u.logger.WithError(err).WithField("run_id", ev.RunID).Warn("auto-upload failed")
				}
			case error:
				done <- v
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// ProcessResult fetches and uploads the artifacts of one successful
// Debian build, if it matches target/distribution filters.
func (u *Uploader) ProcessResult(ctx context.Context, ev ResultEvent) error {
	if ev.Target != "debian" {
		return nil
	}
	if ev.Code != "" {
		// A non-empty result code means the run did not succeed;
		// auto-upload only acts on successful builds.
		return nil
	}
	if !u.Config.allowsDistribution(ev.Distribution) {
		return nil
	}
	return u.uploadRun(ctx, ev)
}

func (u *Uploader) uploadRun(ctx context.Context, ev ResultEvent) error {
	names, err := u.Artifacts.List(ctx, ev.Codebase, ev.Campaign, ev.RunID)
	if err != nil {
		return fmt.Errorf("listing artifacts for %s: %w", ev.RunID, err)
	}

	dir, err := os.MkdirTemp("", "janitor-autoupload-*")
	if err != nil {
		return fmt.Errorf("creating scoped temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := u.fetchArtifacts(ctx, ev, names, dir); err != nil {
		return err
	}

	changesFiles, err := findChangesFiles(dir, u.Config.SourceOnly)
	if err != nil {
		return err
	}
	if len(changesFiles) == 0 {
		return nil
	}

	return u.signAndUpload(ev.Distribution, changesFiles)
}

func (u *Uploader) fetchArtifacts(ctx context.Context, ev ResultEvent, names []string, dir string) error {
	for _, name := range names {
		r, err := u.Artifacts.Get(ctx, ev.Codebase, ev.Campaign, ev.RunID, name)
		if err != nil {
			return fmt.Errorf("fetching artifact %s: %w", name, err)
		}
		dst := filepath.Join(dir, name)
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644&^umask())
		if err != nil {
			r.Close()
			return fmt.Errorf("creating %s: %w", dst, err)
		}
		_, copyErr := io.Copy(f, r)
		r.Close()
		closeErr := f.Close()
		if copyErr != nil {
			return fmt.Errorf("writing %s: %w", dst, copyErr)
		}
		if closeErr != nil {
			return fmt.Errorf("closing %s: %w", dst, closeErr)
		}
	}
	return nil
}

// findChangesFiles lists .changes files in dir, fixing permissions to
// work around a GPG signing quirk where debsign refuses to sign files it
// considers group/world-writable in unexpected ways.
func findChangesFiles(dir string, sourceOnly bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scoped temp dir: %w", err)
	}
	var changes []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".changes") {
			continue
		}
		if sourceOnly && !strings.HasSuffix(e.Name(), "_source.changes") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Chmod(path, 0o644&^umask()); err != nil {
			return nil, fmt.Errorf("fixing permissions on %s: %w", path, err)
		}
		changes = append(changes, path)
	}
	return changes, nil
}

func (u *Uploader) signAndUpload(distribution string, changesFiles []string) error {
	ok := 0
	for _, path := range changesFiles {
		if err := u.debsign(path); err != nil {
			u.Metrics.DebsignFailedTotal.WithLabelValues(distribution).Inc()
			u.logger.WithError(err).WithField("changes", path).Warn("debsign failed")
			continue
		}
		if err := u.dput(u.Config.DputHost, path); err != nil {
			u.Metrics.UploadFailedTotal.WithLabelValues(distribution).Inc()
			u.logger.WithError(err).WithField("changes", path).Warn("dput failed")
			continue
		}
		ok++
	}
	if ok == len(changesFiles) {
		return nil
	}
	if ok == 0 {
		return fmt.Errorf("autoupload: all %d uploads failed", len(changesFiles))
	}
	return &DputFailure{OK: ok, Total: len(changesFiles)}
}

// umask reports the process umask without permanently changing it,
// achieved by the standard trick of setting then immediately restoring it.
func umask() os.FileMode {
	mask := unix.Umask(0o022)
	unix.Umask(mask)
	return os.FileMode(mask)
}

// debsignArgs builds the debsign -k argument list for a configured
// signing key, omitted entirely when no key is configured.
func debsignArgs(keyID, changesPath string) []string {
	if keyID == "" {
		return []string{changesPath}
	}
	return []string{"-k" + keyID, changesPath}
}

func dputArgs(host, changesPath string) []string {
	return []string{"--no-upload-log", "--unchecked", host, changesPath}
}

func (u *Uploader) runDebsign(changesPath string) error {
	cmd := exec.Command("debsign", debsignArgs(u.Config.SigningKeyID, changesPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("debsign %s: %w: %s", changesPath, err, out)
	}
	return nil
}

func (u *Uploader) runDput(host, changesPath string) error {
	cmd := exec.Command("dput", dputArgs(host, changesPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("dput %s: %w: %s", changesPath, err, out)
	}
	return nil
}
