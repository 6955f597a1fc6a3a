package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoneRateLimiterAlwaysAllows(t *testing.T) {
	var l NoneRateLimiter
	assert.Nil(t, l.CheckAllowed("default"))
}

func TestFixedRateLimiterEnforcesCeiling(t *testing.T) {
	max := 2
	l := NewFixedRateLimiter(&max)
	l.SetCounts(BucketCounts{"open": {"default": 1}})

	assert.Nil(t, l.CheckAllowed("default"))
	l.Inc("default")
	rl := l.CheckAllowed("default")
	if assert.NotNil(t, rl) {
		assert.Equal(t, 2, rl.Current)
		assert.Equal(t, 2, rl.MaxOpen)
	}
}

func TestFixedRateLimiterUnboundedWithNilMax(t *testing.T) {
	l := NewFixedRateLimiter(nil)
	l.SetCounts(BucketCounts{"open": {"default": 1000}})
	assert.Nil(t, l.CheckAllowed("default"))
}

func TestFixedRateLimiterNotYetDeterminedBeforeSetCounts(t *testing.T) {
	max := 1
	l := NewFixedRateLimiter(&max)
	rl := l.CheckAllowed("default")
	if assert.NotNil(t, rl) {
		assert.True(t, rl.NotYetDetermined)
	}
}

func TestSlowStartRateLimiterGrowsWithAbsorbedProposals(t *testing.T) {
	l := NewSlowStartRateLimiter(nil)
	l.SetCounts(BucketCounts{
		"open":    {"default": 0},
		"merged":  {"default": 3},
		"applied": {"default": 1},
	})

	// absorbed = 3 + 1 = 4, so the limit is 5; 0 open proposals is allowed.
	assert.Nil(t, l.CheckAllowed("default"))

	l.SetCounts(BucketCounts{
		"open":    {"default": 5},
		"merged":  {"default": 3},
		"applied": {"default": 1},
	})
	rl := l.CheckAllowed("default")
	if assert.NotNil(t, rl) {
		assert.Equal(t, 5, rl.Current)
		assert.Equal(t, 5, rl.MaxOpen)
	}
}

func TestSlowStartRateLimiterRespectsHardMax(t *testing.T) {
	max := 2
	l := NewSlowStartRateLimiter(&max)
	l.SetCounts(BucketCounts{
		"open":    {"default": 2},
		"merged":  {"default": 100},
		"applied": {"default": 0},
	})
	rl := l.CheckAllowed("default")
	if assert.NotNil(t, rl) {
		assert.Equal(t, 2, rl.MaxOpen)
	}
}
