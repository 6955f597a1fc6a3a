package runner

import (
	"context"
	"time"

	cron "gopkg.in/robfig/cron.v2"

	"github.com/janitor-project/janitord/internal/taxonomy"
)

// StartSweeper schedules the timeout sweeper via a cron expression
// (default every minute, matching spec.md's "runs every minute"), closing
// out any active_run whose deadline has passed. It returns a stop
// function; call it to halt the sweeper during shutdown.
func (s *Server) StartSweeper(ctx context.Context) (stop func(), err error) {
	c := cron.New()
	_, err = c.AddFunc("@every 1m", func() {
		s.sweepTimedOutRuns(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return func() { c.Stop() }, nil
}

func (s *Server) sweepTimedOutRuns(ctx context.Context) {
	timedOut, err := s.Store.PruneTimedOutRuns(ctx, time.Now(), taxonomy.CodeWorkerTimeout, "worker did not report within run_timeout")
	if err != nil {
		s.logger.WithError(err).Error("sweeping timed-out runs")
		return
	}
	for _, id := range timedOut {
		s.logger.WithField("run_id", id).Warn("run timed out")
		s.Metrics.RunsFinished.WithLabelValues("", taxonomy.CodeWorkerTimeout).Inc()
	}
}
