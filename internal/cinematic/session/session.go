// Package session tracks pending clarification questions. At most one
// session exists per (room, sender); a new question replaces the old one,
// and stale sessions expire lazily on access.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// DefaultTimeout is how long a question stays answerable.
const DefaultTimeout = 5 * time.Minute

// Session is one pending question and the context needed to act on its
// answer.
type Session struct {
	ID         string
	RoomID     string
	Sender     string
	Action     media.ActionKind
	Candidates []media.CandidateRecord
	Question   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Store keeps sessions in memory, keyed by room and sender. All methods are
// safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	now      func() time.Time
}

func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

func key(roomID, sender string) string {
	return roomID + ":" + sender
}

// Begin opens a session for the pair, replacing any existing one. The
// replacement is silent: an unanswered question is simply superseded.
func (s *Store) Begin(roomID, sender string, action media.ActionKind, candidates []media.CandidateRecord, question string) *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		Sender:     sender,
		Action:     action,
		Candidates: append([]media.CandidateRecord(nil), candidates...),
		Question:   question,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.timeout),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key(roomID, sender)] = sess
	return snapshot(sess)
}

// Get returns the pending session for the pair, or nil. Expired sessions
// are dropped here rather than by a background sweeper.
func (s *Store) Get(roomID, sender string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(roomID, sender)
	sess, ok := s.sessions[k]
	if !ok {
		return nil
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, k)
		return nil
	}
	return snapshot(sess)
}

// End closes the pair's session if the ID still matches. The ID check keeps
// a late answer to a superseded question from closing its replacement.
func (s *Store) End(roomID, sender, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(roomID, sender)
	if sess, ok := s.sessions[k]; ok && sess.ID == id {
		delete(s.sessions, k)
	}
}

// Prune drops every expired session. The pipeline calls it opportunistically;
// correctness never depends on it running.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0
	for k, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, k)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of live sessions, counting expired ones that have
// not been touched yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// snapshot copies a session so callers never share slices with the store.
func snapshot(sess *Session) *Session {
	out := *sess
	out.Candidates = append([]media.CandidateRecord(nil), sess.Candidates...)
	return &out
}

// ShortID returns the ID prefix used in log lines.
func (s *Session) ShortID() string {
	if i := strings.IndexByte(s.ID, '-'); i > 0 {
		return s.ID[:i]
	}
	return s.ID
}
