// Package publish turns a finished, approved Run into merge proposals (or
// direct pushes), porting the rate limiter and backoff design of the
// jelmer/janitor publish crate's ratelimit.rs into Go, and sitting on top
// of internal/store and internal/forge the way internal/runner sits on
// internal/scheduler.
package publish

import "fmt"

// RateLimited describes why a bucket is currently not allowed to accept
// another merge proposal.
type RateLimited struct {
	Bucket          string
	NotYetDetermined bool
	Current         int
	MaxOpen         int
}

func (r RateLimited) Error() string {
	if r.NotYetDetermined {
		return fmt.Sprintf("rate limited on bucket %q: not yet determined", r.Bucket)
	}
	return fmt.Sprintf("rate limited on bucket %q: %d open, max %d", r.Bucket, r.Current, r.MaxOpen)
}

// BucketCounts is the {status: {bucket: count}} shape the publish pipeline
// feeds into a RateLimiter after scanning all tracked proposals.
type BucketCounts map[string]map[string]int

// RateLimiter decides whether a bucket may accept another proposal. The
// three implementations below mirror NonRateLimiter, FixedRateLimiter and
// SlowStartRateLimiter from the original Rust publish crate.
type RateLimiter interface {
	SetCounts(counts BucketCounts)
	CheckAllowed(bucket string) *RateLimited
	Inc(bucket string)
	Stats() map[string]Stat
}

// Stat reports one bucket's current load and (if bounded) its ceiling.
type Stat struct {
	Current int
	Limit   *int
}

// NoneRateLimiter never rejects a proposal.
type NoneRateLimiter struct{}

func (NoneRateLimiter) SetCounts(BucketCounts)             {}
func (NoneRateLimiter) CheckAllowed(string) *RateLimited   { return nil }
func (NoneRateLimiter) Inc(string)                         {}
func (NoneRateLimiter) Stats() map[string]Stat             { return map[string]Stat{} }

// FixedRateLimiter enforces the same static ceiling for every bucket.
type FixedRateLimiter struct {
	max  *int
	open map[string]int
}

// NewFixedRateLimiter constructs a FixedRateLimiter. A nil max means
// unbounded, matching the Rust type's Option<usize>.
func NewFixedRateLimiter(max *int) *FixedRateLimiter {
	return &FixedRateLimiter{max: max}
}

func (f *FixedRateLimiter) SetCounts(counts BucketCounts) {
	f.open = map[string]int{}
	for bucket, n := range counts["open"] {
		f.open[bucket] = n
	}
}

func (f *FixedRateLimiter) CheckAllowed(bucket string) *RateLimited {
	if f.max == nil {
		return nil
	}
	if f.open == nil {
		return &RateLimited{Bucket: bucket, NotYetDetermined: true}
	}
	current := f.open[bucket]
	if current >= *f.max {
		return &RateLimited{Bucket: bucket, Current: current, MaxOpen: *f.max}
	}
	return nil
}

func (f *FixedRateLimiter) Inc(bucket string) {
	if f.open == nil {
		return
	}
	f.open[bucket]++
}

func (f *FixedRateLimiter) Stats() map[string]Stat {
	out := make(map[string]Stat, len(f.open))
	for bucket, current := range f.open {
		s := Stat{Current: current}
		if f.max != nil {
			limit := *f.max
			s.Limit = &limit
		}
		out[bucket] = s
	}
	return out
}

// SlowStartRateLimiter lets a bucket's ceiling grow with every proposal
// that has actually merged or been applied, so a brand-new campaign opens
// one proposal at a time until it has built up a track record, while a
// max, if set, still bounds it.
type SlowStartRateLimiter struct {
	max      *int
	open     map[string]int
	absorbed map[string]int
}

// NewSlowStartRateLimiter constructs a SlowStartRateLimiter with an
// optional hard ceiling.
func NewSlowStartRateLimiter(max *int) *SlowStartRateLimiter {
	return &SlowStartRateLimiter{max: max}
}

func (s *SlowStartRateLimiter) SetCounts(counts BucketCounts) {
	s.open = map[string]int{}
	for bucket, n := range counts["open"] {
		s.open[bucket] = n
	}
	s.absorbed = map[string]int{}
	for _, status := range []string{"merged", "applied"} {
		for bucket, n := range counts[status] {
			s.absorbed[bucket] += n
		}
	}
}

func (s *SlowStartRateLimiter) limit(bucket string) *int {
	if s.absorbed == nil {
		return nil
	}
	l := s.absorbed[bucket] + 1
	return &l
}

func (s *SlowStartRateLimiter) CheckAllowed(bucket string) *RateLimited {
	if s.open == nil || s.absorbed == nil {
		return &RateLimited{Bucket: bucket, NotYetDetermined: true}
	}
	current := s.open[bucket]
	if s.max != nil && current >= *s.max {
		return &RateLimited{Bucket: bucket, Current: current, MaxOpen: *s.max}
	}
	if limit := s.limit(bucket); limit != nil && current >= *limit {
		return &RateLimited{Bucket: bucket, Current: current, MaxOpen: *limit}
	}
	return nil
}

func (s *SlowStartRateLimiter) Inc(bucket string) {
	if s.open == nil {
		return
	}
	s.open[bucket]++
}

func (s *SlowStartRateLimiter) Stats() map[string]Stat {
	out := make(map[string]Stat, len(s.open))
	for bucket, current := range s.open {
		stat := Stat{Current: current}
		limit := s.limit(bucket)
		if s.max != nil && (limit == nil || *s.max < *limit) {
			limit = s.max
		}
		stat.Limit = limit
		out[bucket] = stat
	}
	return out
}

var (
	_ RateLimiter = NoneRateLimiter{}
	_ RateLimiter = (*FixedRateLimiter)(nil)
	_ RateLimiter = (*SlowStartRateLimiter)(nil)
)
