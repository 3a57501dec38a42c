package pipeline

import (
	"sync"
	"time"

	"github.com/bdobrica/Cinematic/internal/cinematic/nlp"
)

const (
	historyDepth  = 6
	historyMaxAge = 15 * time.Minute
)

// historyTracker keeps a short window of recent exchanges per (room, sender)
// so the classifier sees conversational context: "remove it too" only makes
// sense next to the message before it.
type historyTracker struct {
	mu      sync.Mutex
	entries map[string][]historyEntry
	now     func() time.Time
}

type historyEntry struct {
	role    string
	content string
	at      time.Time
}

func newHistoryTracker() *historyTracker {
	return &historyTracker{
		entries: make(map[string][]historyEntry),
		now:     time.Now,
	}
}

// Observe appends one exchange line. Old lines beyond the depth or age limit
// are dropped on write.
func (t *historyTracker) Observe(roomID, sender, role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := roomID + ":" + sender
	entries := append(t.entries[key], historyEntry{role: role, content: content, at: t.now()})
	entries = t.trim(entries)
	t.entries[key] = entries
}

// Recent returns the live window as classifier context, oldest first.
func (t *historyTracker) Recent(roomID, sender string) []nlp.HistoryMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := roomID + ":" + sender
	entries := t.trim(t.entries[key])
	if len(entries) == 0 {
		delete(t.entries, key)
		return nil
	}
	t.entries[key] = entries

	messages := make([]nlp.HistoryMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, nlp.HistoryMessage{Role: e.role, Content: e.content})
	}
	return messages
}

func (t *historyTracker) trim(entries []historyEntry) []historyEntry {
	cutoff := t.now().Add(-historyMaxAge)
	for len(entries) > 0 && entries[0].at.Before(cutoff) {
		entries = entries[1:]
	}
	if len(entries) > historyDepth {
		entries = entries[len(entries)-historyDepth:]
	}
	return entries
}
