package matrix

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

var _ mautrix.SyncStore = (*syncStore)(nil)

// syncStore adapts the bot_state table to mautrix.SyncStore so the /sync
// position survives restarts and old messages aren't re-processed. The
// next-batch token uses the store's dedicated accessors; the assistant runs
// a single account, so the token is not namespaced per user.
type syncStore struct {
	state SyncStateStore
}

func newSyncStore(state SyncStateStore) *syncStore {
	return &syncStore{state: state}
}

func (s *syncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.state.SetState(ctx, stateKey(userID, "filter_id"), filterID)
}

func (s *syncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.state.GetState(ctx, stateKey(userID, "filter_id"))
}

func (s *syncStore) SaveNextBatch(ctx context.Context, _ id.UserID, token string) error {
	return s.state.SaveSyncToken(ctx, token)
}

func (s *syncStore) LoadNextBatch(ctx context.Context, _ id.UserID) (string, error) {
	return s.state.SyncToken(ctx)
}

func stateKey(userID id.UserID, key string) string {
	return "matrix:" + userID.String() + ":" + key
}
