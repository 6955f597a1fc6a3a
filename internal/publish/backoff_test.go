package publish

import (
	"testing"
	"time"

	"github.com/janitor-project/janitord/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestNextTryTimeNoAttemptsMeansRetryImmediately(t *testing.T) {
	assert.True(t, NextTryTime(nil).IsZero())
}

func TestNextTryTimeTransientFailureRetriesImmediately(t *testing.T) {
	attempts := []*model.PublishAttempt{
		{Code: "timeout", Transient: true, Timestamp: time.Now()},
	}
	assert.True(t, NextTryTime(attempts).IsZero())
}

func TestNextTryTimeBacksOffExponentially(t *testing.T) {
	now := time.Now()
	one := []*model.PublishAttempt{{Code: "command-failed", Timestamp: now}}
	two := []*model.PublishAttempt{
		{Code: "command-failed", Timestamp: now},
		{Code: "command-failed", Timestamp: now.Add(-time.Hour)},
	}

	firstDelay := NextTryTime(one).Sub(now)
	secondDelay := NextTryTime(two).Sub(now)
	assert.Greater(t, secondDelay, firstDelay)
}

func TestNextTryTimeCapsAtTwoWeeks(t *testing.T) {
	now := time.Now()
	var attempts []*model.PublishAttempt
	for i := 0; i < 20; i++ {
		attempts = append(attempts, &model.PublishAttempt{Code: "command-failed", Timestamp: now})
	}
	delay := NextTryTime(attempts).Sub(now)
	assert.LessOrEqual(t, delay, backoffCap)
}
