package store

import (
	"testing"
	"time"

	"github.com/janitor-project/janitord/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestHigherPriorityBucketWins(t *testing.T) {
	now := time.Now()
	a := model.QueueItem{Offset: 5, CreatedAt: now}
	b := model.QueueItem{Offset: 0, CreatedAt: now.Add(-time.Hour)}

	assert.True(t, higherPriority(10, a, 1, b), "higher bucket priority should win regardless of offset/age")
	assert.False(t, higherPriority(1, a, 10, b))
}

func TestHigherPriorityTieBreaksOnOffsetThenAge(t *testing.T) {
	now := time.Now()
	older := model.QueueItem{Offset: 0, CreatedAt: now.Add(-time.Hour)}
	newer := model.QueueItem{Offset: 0, CreatedAt: now}
	assert.True(t, higherPriority(0, older, 0, newer), "equal offset falls back to creation time")

	lowOffset := model.QueueItem{Offset: 1, CreatedAt: now}
	highOffset := model.QueueItem{Offset: 5, CreatedAt: now.Add(-time.Hour)}
	assert.True(t, higherPriority(0, lowOffset, 0, highOffset), "lower offset wins before age is consulted")
}

func TestHostExcluded(t *testing.T) {
	assert.True(t, hostExcluded("https://salsa.debian.org/foo/bar", []string{"salsa.debian.org"}))
	assert.False(t, hostExcluded("https://github.com/foo/bar", []string{"salsa.debian.org"}))
	assert.False(t, hostExcluded("https://github.com/foo/bar", nil))
}
