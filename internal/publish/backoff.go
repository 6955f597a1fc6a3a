package publish

import (
	"math"
	"time"

	"github.com/janitor-project/janitord/internal/model"
)

// backoffBase and backoffCap bound the exponential backoff applied after
// consecutive non-transient publish failures for the same (codebase,
// campaign, role): one hour doubling up to two weeks, matching the
// original publish crate's retry schedule for proposal attempts.
const (
	backoffBase = time.Hour
	backoffCap  = 14 * 24 * time.Hour
)

// NextTryTime computes when a (codebase, campaign, role) should next be
// attempted given its recent publish attempt history, newest first. A
// transient failure is retried at the next scheduler tick (zero delay); a
// run of consecutive non-transient failures backs off exponentially;
// encountering a success or a rate-limited outcome resets the count.
func NextTryTime(attempts []*model.PublishAttempt) time.Time {
	if len(attempts) == 0 {
		return time.Time{}
	}
	last := attempts[0]
	if last.Code == "" {
		// A prior success recorded no failure code.
		return time.Time{}
	}
	if last.Transient {
		return time.Time{}
	}

	consecutive := 0
	for _, a := range attempts {
		if a.Code == "" || a.Transient {
			break
		}
		consecutive++
	}

	delay := time.Duration(float64(backoffBase) * math.Pow(2, float64(consecutive-1)))
	if delay > backoffCap {
		delay = backoffCap
	}
	return last.Timestamp.Add(delay)
}
