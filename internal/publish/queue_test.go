package publish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janitor-project/janitord/internal/model"
	"github.com/janitor-project/janitord/internal/runner"
)

func TestQueueEnqueueDeliversToChannel(t *testing.T) {
	q := NewQueue(&Pipeline{}, func(string, string) string { return "default" }, func(string) model.PublishMode { return model.PublishPropose })

	err := q.Enqueue(context.Background(), runner.PublishRequest{RunID: "r1", Codebase: "example", Campaign: "lintian-fixes"})
	require.NoError(t, err)

	select {
	case req := <-q.ch:
		assert.Equal(t, "r1", req.RunID)
	case <-time.After(time.Second):
		t.Fatal("enqueued request never reached the channel")
	}
}

func TestQueueEnqueueRespectsContextCancellation(t *testing.T) {
	q := NewQueue(&Pipeline{}, func(string, string) string { return "default" }, func(string) model.PublishMode { return model.PublishPropose })
	for i := 0; i < cap(q.ch); i++ {
		q.ch <- runner.PublishRequest{RunID: "filler"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Enqueue(ctx, runner.PublishRequest{RunID: "r2"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueRunStopsOnContextCancellation(t *testing.T) {
	q := NewQueue(&Pipeline{}, func(string, string) string { return "default" }, func(string) model.PublishMode { return model.PublishPropose })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
