// Package matrix connects Cinematic to its chat rooms. The gateway joins the
// configured rooms, feeds member messages into the pipeline, and delivers
// replies back.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds the connection settings.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms lists the room IDs the assistant operates in. Messages from any
	// other room are ignored.
	Rooms []string
}

// MessageHandler receives each inbound text message from a watched room.
type MessageHandler func(roomID, sender, body string)

// Gateway wraps the mautrix client.
type Gateway struct {
	client  *mautrix.Client
	config  Config
	rooms   map[string]bool
	handler MessageHandler
	stopCh  chan struct{}
	logger  *slog.Logger
}

// SyncStateStore persists sync position between runs. Satisfied by
// *store.Store via the syncStore adapter. The next-batch token has
// dedicated accessors; everything else goes through the key/value pair.
type SyncStateStore interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	SyncToken(ctx context.Context) (string, error)
	SaveSyncToken(ctx context.Context, token string) error
}

// New creates a Gateway. When state is non-nil the sync position persists
// across restarts; otherwise every restart replays room history.
func New(config Config, state SyncStateStore, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}

	rooms := make(map[string]bool, len(config.Rooms))
	for _, roomID := range config.Rooms {
		rooms[roomID] = true
	}

	if state != nil {
		client.Store = newSyncStore(state)
	} else {
		logger.Warn("no persistent sync store, room history will replay on restart")
	}

	return &Gateway{
		client: client,
		config: config,
		rooms:  rooms,
		stopCh: make(chan struct{}),
		logger: logger,
	}, nil
}

// Start joins the configured rooms and begins syncing in the background.
// The sync loop reconnects with exponential backoff so a transient
// homeserver failure doesn't leave the assistant deaf.
func (g *Gateway) Start(ctx context.Context, handler MessageHandler) error {
	g.handler = handler

	syncer := g.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, g.handleEvent)

	for _, roomID := range g.config.Rooms {
		if err := g.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("matrix: join room %s: %w", roomID, err)
		}
	}

	go g.syncLoop()
	return nil
}

func (g *Gateway) syncLoop() {
	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		err := g.client.Sync()
		if err == nil {
			// Clean StopSync.
			return
		}
		select {
		case <-g.stopCh:
			return
		default:
		}
		g.logger.Error("sync stopped, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-g.stopCh:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// Stop shuts the sync loop down.
func (g *Gateway) Stop() {
	close(g.stopCh)
	g.client.StopSync()
}

// SendText delivers a plain text message to a room.
func (g *Gateway) SendText(ctx context.Context, roomID, text string) error {
	if _, err := g.client.SendText(ctx, id.RoomID(roomID), text); err != nil {
		return fmt.Errorf("matrix: send message: %w", err)
	}
	return nil
}

// SendNotice sends a low-priority notice, used for startup and shutdown
// announcements.
func (g *Gateway) SendNotice(ctx context.Context, roomID, text string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    text,
	}
	if _, err := g.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("matrix: send notice: %w", err)
	}
	return nil
}

// SetTyping toggles the typing indicator while a request is being worked on.
func (g *Gateway) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := g.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("matrix: set typing: %w", err)
	}
	return nil
}

// Rooms returns the watched room IDs.
func (g *Gateway) Rooms() []string {
	return g.config.Rooms
}

func (g *Gateway) handleEvent(_ context.Context, evt *event.Event) {
	// Never react to our own replies.
	if evt.Sender == id.UserID(g.config.UserID) {
		return
	}
	if !g.rooms[evt.RoomID.String()] {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}
	if g.handler != nil {
		g.handler(evt.RoomID.String(), evt.Sender.String(), content.Body)
	}
}

func (g *Gateway) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := g.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Forbidden usually means we are already a member.
		if errors.Is(err, mautrix.MForbidden) {
			g.logger.Warn("join refused, assuming existing membership", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
