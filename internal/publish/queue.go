package publish

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/runner"
)

// Queue is an in-process, channel-backed runner.PublishQueue for the
// single-binary deployment. A split deployment would swap this for a
// Redis list, matching the same "result" pub/sub mechanism autoupload
// already subscribes to.
type Queue struct {
	pipeline *Pipeline
	bucket   func(codebase, campaign string) string
	mode     func(campaign string) model.PublishMode

	ch     chan runner.PublishRequest
	logger *logrus.Entry
}

// NewQueue constructs a Queue. bucket derives the rate-limit bucket name
// for a run (spec.md §4.4 step 3); mode looks up the campaign's
// configured publish mode.
func NewQueue(p *Pipeline, bucket func(codebase, campaign string) string, mode func(campaign string) model.PublishMode) *Queue {
	return &Queue{
		pipeline: p,
		bucket:   bucket,
		mode:     mode,
		ch:       make(chan runner.PublishRequest, 256),
		logger:   logrus.WithField("component", "publish-queue"),
	}
}

// Enqueue satisfies runner.PublishQueue. It never blocks on the forge
// call itself; the request is handed off to Run's consumer goroutine.
func (q *Queue) Enqueue(ctx context.Context, req runner.PublishRequest) error {
	select {
	case q.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is canceled, calling Pipeline.PublishRun
// for each request. Intended to run in its own goroutine, one per
// publisher process.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-q.ch:
			q.process(ctx, req)
		}
	}
}

func (q *Queue) process(ctx context.Context, req runner.PublishRequest) {
	run, err := q.pipeline.Store.GetRun(ctx, req.RunID)
	if err != nil {
		q.logger.WithError(err).WithField("run", req.RunID).Warn("loading run for publish")
		return
	}

	mode := q.mode(req.Campaign)
	bucket := q.bucket(req.Codebase, req.Campaign)

	results, err := q.pipeline.PublishRun(ctx, run, mode, bucket, time.Now())
	if err != nil {
		q.logger.WithError(err).WithField("run", req.RunID).Warn("publishing run")
		return
	}
	for _, r := range results {
		q.logger.WithFields(logrus.Fields{
			"run": req.RunID, "role": r.Role, "outcome": r.Outcome.Kind,
		}).Info("publish attempt")
	}
}
