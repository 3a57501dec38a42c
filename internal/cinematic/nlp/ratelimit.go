package nlp

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the maximum number of classification calls allowed
	// per sender per minute when no explicit limit is configured.
	DefaultRateLimit = 20

	// defaultRateLimitWindow is the sliding window duration.
	defaultRateLimitWindow = time.Minute
)

// RateLimitReply is sent to senders who exceed the per-minute classification
// limit. Defined here so callers do not hard-code it.
const RateLimitReply = "I'm getting a lot of requests from you right now — give me a moment and try again."

// RateLimiter enforces a per-sender sliding-window rate limit on classifier
// calls, bounding LLM token spend per chat user.
//
// Memory is bounded to O(limit) timestamps per active sender; stale entries
// are pruned on every Allow call. Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[string][]time.Time // sender → call timestamps in window
}

// NewRateLimiter returns a RateLimiter allowing at most limit calls per
// sender within window. Non-positive arguments fall back to the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string][]time.Time),
	}
}

// Allow reports whether the sender may make another classifier call, and
// records the call when permitted.
func (r *RateLimiter) Allow(sender string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	existing := r.counters[sender]
	valid := existing[:0] // reuse backing array
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.limit {
		r.counters[sender] = valid
		return false
	}

	r.counters[sender] = append(valid, now)
	return true
}
