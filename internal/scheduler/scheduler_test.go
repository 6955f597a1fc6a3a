package scheduler

import (
	"testing"

	"github.com/janitor-project/janitord/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestDefaultBucketPrioritiesOrdering(t *testing.T) {
	assert.Greater(t, DefaultBucketPriorities["manual"], DefaultBucketPriorities[model.DefaultBucket])
	assert.Greater(t, DefaultBucketPriorities[model.DefaultBucket], DefaultBucketPriorities["backlog"])
}

func TestNewFallsBackToDefaultPriorities(t *testing.T) {
	s := New(nil, nil)
	assert.Equal(t, DefaultBucketPriorities, s.priorities)
}
