// Package backchannel abstracts the runner's side-channel to a worker
// that is still executing a run: asking it to keep going (ping),
// cancelling it (kill), and pulling partial logs before it finishes.
// Polling workers (the default janitor-worker binary) hold no persistent
// connection: the runner records pings, kill requests and partial logs
// that the worker exchanges on its next poll; a Jenkins-backed
// worker answers a subset of them through the Jenkins API instead, mirroring
// the JenkinsSpec split in prow's ProwJobSpec.
package backchannel

import (
	"context"
	"errors"
	"io"
)

// ErrNotSupported is returned by backchannel operations a given
// implementation cannot perform.
var ErrNotSupported = errors.New("backchannel: operation not supported")

// Backchannel is implemented once per worker-execution strategy.
type Backchannel interface {
	// Ping checks that the worker executing runID is still alive.
	Ping(ctx context.Context, runID string) error
	// Kill requests cancellation of runID.
	Kill(ctx context.Context, runID string) error
	// ListLogFiles returns the names of log files currently available for
	// runID, before the run has finished.
	ListLogFiles(ctx context.Context, runID string) ([]string, error)
	// GetLogFile streams the named in-progress log file.
	GetLogFile(ctx context.Context, runID, name string) (io.ReadCloser, error)
}
