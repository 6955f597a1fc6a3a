package backchannel

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Jenkins implements Backchannel for runs dispatched as a Jenkins build,
// the same secondary execution path prow's JenkinsSpec models alongside
// its default Kubernetes-pod agent. Jenkins owns the build's lifecycle
// once started, so Kill is intentionally unsupported here rather than
// reimplemented against Jenkins' own stop-build API.
type Jenkins struct {
	BaseURL string
	Client  *http.Client
	// JobFor maps a run ID to its Jenkins job name and build number, set
	// when the runner dispatches the build.
	JobFor func(runID string) (job string, build int, ok bool)
}

func (j *Jenkins) buildURL(runID, path string) (string, error) {
	job, build, ok := j.JobFor(runID)
	if !ok {
		return "", fmt.Errorf("backchannel: no jenkins build recorded for run %s", runID)
	}
	return fmt.Sprintf("%s/job/%s/%d/%s", j.BaseURL, job, build, path), nil
}

func (j *Jenkins) Ping(ctx context.Context, runID string) error {
	url, err := j.buildURL(runID, "api/json")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building jenkins status request: %w", err)
	}
	resp, err := j.Client.Do(req)
	if err != nil {
		return fmt.Errorf("querying jenkins build status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jenkins build status: unexpected status %s", resp.Status)
	}
	return nil
}

func (j *Jenkins) Kill(_ context.Context, _ string) error {
	return ErrNotSupported
}

func (j *Jenkins) ListLogFiles(_ context.Context, _ string) ([]string, error) {
	return []string{"console.log"}, nil
}

func (j *Jenkins) GetLogFile(ctx context.Context, runID, name string) (io.ReadCloser, error) {
	if name != "console.log" {
		return nil, fmt.Errorf("backchannel: jenkins only exposes console.log, got %q", name)
	}
	url, err := j.buildURL(runID, "consoleText")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building jenkins console request: %w", err)
	}
	resp, err := j.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching jenkins console log: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("jenkins console log: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

var _ Backchannel = (*Jenkins)(nil)
