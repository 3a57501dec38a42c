package executor

import (
	"errors"
	"sync"
	"time"

	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
)

func errorsIsUnavailable(err error) bool {
	return errors.Is(err, catalog.ErrUnavailable)
}

// dedupCache remembers the outcome of recent mutations by idempotency key.
// Entries expire lazily; a periodic sweeper is not needed because the
// key space is bounded by recent user activity.
type dedupCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]dedupEntry
	now     func() time.Time
}

type dedupEntry struct {
	result Result
	at     time.Time
}

func newDedupCache(window time.Duration) *dedupCache {
	return &dedupCache{
		window:  window,
		entries: make(map[string]dedupEntry),
		now:     time.Now,
	}
}

func (c *dedupCache) get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.at) > c.window {
		delete(c.entries, key)
		return nil, false
	}
	result := entry.result
	return &result, true
}

func (c *dedupCache) put(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.entries {
		if now.Sub(entry.at) > c.window {
			delete(c.entries, k)
		}
	}
	c.entries[key] = dedupEntry{result: *result, at: now}
}
