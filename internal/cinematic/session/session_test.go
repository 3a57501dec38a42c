package session

import (
	"testing"
	"time"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

func candidates() []media.CandidateRecord {
	return []media.CandidateRecord{
		{ExternalID: 603, Title: "The Matrix", Year: 1999, Kind: media.KindMovie},
	}
}

func TestBeginAndGet(t *testing.T) {
	store := NewStore(time.Minute)
	sess := store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "Add The Matrix (1999)?")
	if sess.ID == "" {
		t.Fatal("session ID empty")
	}

	got := store.Get("!room", "@alice:example.org")
	if got == nil || got.ID != sess.ID {
		t.Fatalf("Get = %+v, want session %s", got, sess.ID)
	}
	if got.Action != media.ActionAdd || len(got.Candidates) != 1 {
		t.Errorf("session = %+v", got)
	}
}

func TestOneSessionPerPair(t *testing.T) {
	store := NewStore(time.Minute)
	first := store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "q1")
	second := store.Begin("!room", "@alice:example.org", media.ActionRemove, candidates(), "q2")

	got := store.Get("!room", "@alice:example.org")
	if got.ID != second.ID {
		t.Errorf("Get returned %s, want replacement %s", got.ID, second.ID)
	}
	if got.ID == first.ID {
		t.Error("superseded session still live")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestPairsAreIndependent(t *testing.T) {
	store := NewStore(time.Minute)
	store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "q")
	store.Begin("!room", "@bob:example.org", media.ActionRemove, candidates(), "q")
	store.Begin("!other", "@alice:example.org", media.ActionSearch, candidates(), "q")

	if store.Len() != 3 {
		t.Fatalf("Len = %d, want 3", store.Len())
	}
	if got := store.Get("!room", "@bob:example.org"); got.Action != media.ActionRemove {
		t.Errorf("bob's session = %+v", got)
	}
}

func TestLazyExpiry(t *testing.T) {
	store := NewStore(time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "q")

	current = current.Add(59 * time.Second)
	if store.Get("!room", "@alice:example.org") == nil {
		t.Fatal("session expired early")
	}

	current = current.Add(2 * time.Second)
	if store.Get("!room", "@alice:example.org") != nil {
		t.Fatal("session survived past its deadline")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d after lazy expiry, want 0", store.Len())
	}
}

func TestEndRequiresMatchingID(t *testing.T) {
	store := NewStore(time.Minute)
	first := store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "q1")
	second := store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "q2")

	store.End("!room", "@alice:example.org", first.ID)
	if store.Get("!room", "@alice:example.org") == nil {
		t.Fatal("stale End closed the replacement session")
	}

	store.End("!room", "@alice:example.org", second.ID)
	if store.Get("!room", "@alice:example.org") != nil {
		t.Fatal("session still live after End")
	}
}

func TestPruneDropsOnlyExpired(t *testing.T) {
	store := NewStore(time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "q")
	current = current.Add(2 * time.Minute)
	store.Begin("!room", "@bob:example.org", media.ActionAdd, candidates(), "q")

	if dropped := store.Prune(); dropped != 1 {
		t.Errorf("Prune = %d, want 1", dropped)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestSnapshotsDoNotAliasStore(t *testing.T) {
	store := NewStore(time.Minute)
	store.Begin("!room", "@alice:example.org", media.ActionAdd, candidates(), "q")

	got := store.Get("!room", "@alice:example.org")
	got.Candidates[0].Title = "mutated"

	again := store.Get("!room", "@alice:example.org")
	if again.Candidates[0].Title != "The Matrix" {
		t.Errorf("store state mutated through snapshot: %q", again.Candidates[0].Title)
	}
}
