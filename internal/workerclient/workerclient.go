// Package workerclient implements the reference worker side of the
// Assignment/Metadata contract in internal/assignment: ask the runner for
// work, run the codemod (and, if requested, a build), report the result.
// spec.md frames the worker as an external process; this package is the
// thin orchestrator cmd/janitor-worker wires up so the contract is
// exercised end-to-end, not the load-bearing half of the system.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/assignment"
)

// Client polls a runner for work and executes it.
type Client struct {
	RunnerBaseURL string
	WorkerName    string
	Password      string
	HTTPClient    *http.Client

	// Codebase/Campaign are sent with every assign request; the runner's
	// assign handler does not filter on them.
	Codebase string
	Campaign string

	logger *logrus.Entry
}

// New constructs a Client with a sane default HTTP client timeout.
func New(runnerBaseURL, workerName, password string) *Client {
	return &Client{
		RunnerBaseURL: runnerBaseURL,
		WorkerName:    workerName,
		Password:      password,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logrus.WithField("component", "worker"),
	}
}

// ErrQueueEmpty is returned by Assign when the runner has no assignable
// work right now.
var ErrQueueEmpty = fmt.Errorf("workerclient: queue empty")

// Assign asks the runner for one unit of work.
func (c *Client) Assign(ctx context.Context) (*assignment.Assignment, error) {
	body, err := json.Marshal(map[string]string{"codebase": c.Codebase, "campaign": c.Campaign})
	if err != nil {
		return nil, fmt.Errorf("encoding assign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RunnerBaseURL+"/active-runs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building assign request: %w", err)
	}
	req.SetBasicAuth(c.WorkerName, c.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting assignment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, ErrQueueEmpty
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("assign request failed: %s: %s", resp.Status, data)
	}

	var a assignment.Assignment
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding assignment: %w", err)
	}
	return &a, nil
}

// Run executes an Assignment end to end: open the branch, run the
// codemod, attempt a build if requested, and report back. It never
// returns an error for a failed codemod/build — those are reported as
// Metadata.Code to the runner, as is a failed checkout; Run only returns
// an error for infrastructure failures (no scratch directory, runner
// unreachable).
func (c *Client) Run(ctx context.Context, a *assignment.Assignment) error {
	workdir, err := os.MkdirTemp("", "janitor-worker-")
	if err != nil {
		return fmt.Errorf("creating scratch workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	meta := c.execute(ctx, a, workdir)
	return c.reportFinish(ctx, a.RunID, meta, workdir)
}

// execute runs the codemod (and, if Assignment.Build is set, a build
// afterward), translating subprocess failure into Metadata. It never
// returns an error; every failure mode becomes a non-empty Metadata.Code,
// per the empty-code-means-success convention used throughout this
// module (see internal/autoupload, internal/runner).
func (c *Client) execute(ctx context.Context, a *assignment.Assignment, workdir string) *assignment.Metadata {
	if err := c.checkout(ctx, a, workdir); err != nil {
		return &assignment.Metadata{Code: "checkout-failed", Description: err.Error()}
	}

	if len(a.Command) > 0 {
		if err := c.runCommand(ctx, a.Command, workdir, a.Env); err != nil {
			transient := isTransient(err)
			return &assignment.Metadata{Code: "command-failed", Description: err.Error(), Transient: &transient}
		}
	}

	if a.Build != nil {
		if err := c.runBuild(ctx, a.Build, workdir); err != nil {
			return &assignment.Metadata{Code: "build-failed", Description: err.Error()}
		}
	}

	return &assignment.Metadata{Code: ""}
}

func (c *Client) checkout(ctx context.Context, a *assignment.Assignment, workdir string) error {
	args := []string{"clone", a.Branch.URL, workdir}
	if a.Branch.Revision != "" {
		args = []string{"clone", "--branch", a.Branch.Revision, a.Branch.URL, workdir}
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("checking out %s: %w: %s", a.Branch.URL, err, out)
	}
	return nil
}

func (c *Client) runCommand(ctx context.Context, command []string, workdir string, env map[string]string) error {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workdir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	logPath := filepath.Join(workdir, "worker.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating worker log: %w", err)
	}
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	return cmd.Run()
}

func (c *Client) runBuild(ctx context.Context, b *assignment.BuildSpec, workdir string) error {
	var command []string
	switch b.Target {
	case "debian":
		command = []string{"sbuild", "--dist=" + b.Distribution}
	default:
		command = []string{"make", "build"}
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = workdir
	cmd.Env = os.Environ()
	for k, v := range b.ExtraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	logPath := filepath.Join(workdir, "build.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating build log: %w", err)
	}
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	return cmd.Run()
}

// isTransient guesses whether a failed exec.Cmd is worth retrying: a
// context deadline/cancellation is transient, a clean non-zero exit
// generally is not.
func isTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// reportFinish posts Metadata plus whatever logs/artifacts exist in
// workdir back to the runner, using the multipart convention
// internal/runner.readFinishParts expects: a "metadata" field carrying
// the JSON Metadata, "log:<name>" fields for *.log files, and
// "artifact:<name>" fields for everything else left over in workdir.
func (c *Client) reportFinish(ctx context.Context, runID string, meta *assignment.Metadata, workdir string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := writeField(mw, "metadata", metaJSON); err != nil {
		return err
	}

	entries, err := os.ReadDir(workdir)
	if err != nil {
		return fmt.Errorf("listing workdir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(workdir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		prefix := "artifact:"
		if filepath.Ext(e.Name()) == ".log" {
			prefix = "log:"
		}
		if err := writeField(mw, prefix+e.Name(), content); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RunnerBaseURL+"/active-runs/"+runID+"/finish", &buf)
	if err != nil {
		return fmt.Errorf("building finish request: %w", err)
	}
	req.SetBasicAuth(c.WorkerName, c.Password)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting finish: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("finish request failed: %s: %s", resp.Status, data)
	}
	return nil
}

func writeField(mw *multipart.Writer, name string, content []byte) error {
	part, err := mw.CreateFormField(name)
	if err != nil {
		return fmt.Errorf("creating multipart field %s: %w", name, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("writing multipart field %s: %w", name, err)
	}
	return nil
}
