package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"support-chat-service/internal/models"
	"support-chat-service/internal/observability"
	"support-chat-service/internal/repositories"
	"support-chat-service/internal/roomid"
)

// DefaultStorageTimeout bounds every persistence call so a stuck write
// cannot starve a room's serialization point.
const DefaultStorageTimeout = 5 * time.Second

// Fanout delivers an event to the live subscribers of a room. Implemented
// by ws.Hub; tests substitute a recorder.
type Fanout interface {
	Broadcast(roomID string, event string, data any)
	BroadcastExcept(roomID string, skipConnID string, event string, data any)
}

// Gateway bridges persistent room state to live subscriptions. All
// mutations of one room serialize on a per-room lock so that append order,
// broadcast order and clears never interleave; different rooms proceed in
// parallel.
type Gateway struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	fanout   Fanout

	storageTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Gateway. A zero storageTimeout selects the default.
func New(rooms repositories.RoomRepository, messages repositories.MessageRepository, fanout Fanout, storageTimeout time.Duration) *Gateway {
	if storageTimeout <= 0 {
		storageTimeout = DefaultStorageTimeout
	}
	return &Gateway{
		rooms:          rooms,
		messages:       messages,
		fanout:         fanout,
		storageTimeout: storageTimeout,
		locks:          map[string]*sync.Mutex{},
	}
}

func (g *Gateway) roomLock(roomID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[roomID] = lock
	}
	return lock
}

// storageErr maps repository failures onto the gateway taxonomy. Sentinel
// not-found errors pass through as ErrNotFound; everything else, timeouts
// included, surfaces as ErrStorageUnavailable.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrMessageNotFound) || errors.Is(err, repositories.ErrRoomNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	observability.IncStorageFailure()
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func (g *Gateway) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.storageTimeout)
}

// Join ensures the room exists, records the account as a participant and
// returns the full stored history for client-side replay. Safe to call
// repeatedly for the same account and room; a reconnect neither duplicates
// membership nor loses history.
func (g *Gateway) Join(ctx context.Context, roomID string, account models.Account) ([]models.Message, error) {
	if _, _, ok := roomid.Participants(roomID); !ok {
		return nil, roomid.ErrInvalidParticipants
	}
	if !roomid.Includes(roomID, account.ID) {
		return nil, fmt.Errorf("%w: account %s is not part of room %s", ErrNotAuthorized, account.ID, roomID)
	}

	lock := g.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := g.storageCtx(ctx)
	defer cancel()

	if _, err := g.rooms.GetOrCreateRoom(sctx, roomID); err != nil {
		return nil, storageErr(err)
	}
	if err := g.rooms.AddParticipant(sctx, roomID, account.ID); err != nil {
		return nil, storageErr(err)
	}
	history, err := g.messages.History(sctx, roomID)
	if err != nil {
		return nil, storageErr(err)
	}
	return history, nil
}

// Send appends the message to the room's log and broadcasts it to every
// subscriber, the sender's own connections included; clients reconcile
// their optimistic append by message id. A duplicate id is treated as
// already delivered: absorbed silently, no second broadcast.
func (g *Gateway) Send(ctx context.Context, roomID string, msg models.Message) error {
	if msg.ID == "" || msg.From == "" || !msg.HasContent() {
		return fmt.Errorf("%w: message needs an id, a sender and text or a file", ErrInvalidMessage)
	}
	// deletedFor is server-managed; whatever the client supplied is discarded
	// so the live broadcast and a later history read agree.
	msg.DeletedFor = nil

	lock := g.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := g.storageCtx(ctx)
	defer cancel()

	member, err := g.rooms.IsParticipant(sctx, roomID, msg.From)
	if err != nil {
		return storageErr(err)
	}
	if !member {
		return fmt.Errorf("%w: sender %s is not a participant of %s", ErrNotAuthorized, msg.From, roomID)
	}

	inserted, err := g.messages.Append(sctx, roomID, msg)
	if err != nil {
		return storageErr(err)
	}
	if !inserted {
		observability.IncWSEvent("room", "duplicate_send")
		return nil
	}

	g.fanout.Broadcast(roomID, models.EventMessage, models.MessageEvent{RoomID: roomID, Msg: msg})
	return nil
}

// DeleteMessage marks the message deleted. For-everyone is restricted to
// the author and snapshots the room's current participant set, hiding the
// message from later joiners too; for-self hides it for the requester
// alone. Returns the account ids the deletion applies to.
func (g *Gateway) DeleteMessage(ctx context.Context, roomID string, messageID string, requesterID string, forEveryone bool) ([]string, error) {
	lock := g.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := g.storageCtx(ctx)
	defer cancel()

	member, err := g.rooms.IsParticipant(sctx, roomID, requesterID)
	if err != nil {
		return nil, storageErr(err)
	}
	if !member {
		return nil, fmt.Errorf("%w: %s is not a participant of %s", ErrNotAuthorized, requesterID, roomID)
	}

	msg, err := g.messages.GetMessage(sctx, roomID, messageID)
	if err != nil {
		return nil, storageErr(err)
	}

	deleteFor := []string{requesterID}
	if forEveryone {
		if msg.From != requesterID {
			return nil, fmt.Errorf("%w: only the author may delete for everyone", ErrNotAuthorized)
		}
		deleteFor, err = g.rooms.Participants(sctx, roomID)
		if err != nil {
			return nil, storageErr(err)
		}
	}

	if err := g.messages.MarkDeletedFor(sctx, roomID, messageID, deleteFor); err != nil {
		return nil, storageErr(err)
	}

	g.fanout.Broadcast(roomID, models.EventMessageDeleted, models.DeletionEvent{
		RoomID:    roomID,
		MessageID: messageID,
		DeleteFor: deleteFor,
	})
	return deleteFor, nil
}

// ClearRoom hard-clears the room's log and announces it. Role gating
// happens upstream; the gateway still requires the initiator to be a
// participant.
func (g *Gateway) ClearRoom(ctx context.Context, roomID string, initiatorID string) error {
	lock := g.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := g.storageCtx(ctx)
	defer cancel()

	member, err := g.rooms.IsParticipant(sctx, roomID, initiatorID)
	if err != nil {
		return storageErr(err)
	}
	if !member {
		return fmt.Errorf("%w: %s is not a participant of %s", ErrNotAuthorized, initiatorID, roomID)
	}

	if err := g.messages.Clear(sctx, roomID); err != nil {
		return storageErr(err)
	}

	g.fanout.Broadcast(roomID, models.EventRoomCleared, models.ClearedEvent{RoomID: roomID})
	return nil
}

// PurgeRoom removes the room entirely, membership included. Used by the
// account-removal flow; ordinary clears keep membership.
func (g *Gateway) PurgeRoom(ctx context.Context, roomID string, initiatorID string) error {
	lock := g.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := g.storageCtx(ctx)
	defer cancel()

	member, err := g.rooms.IsParticipant(sctx, roomID, initiatorID)
	if err != nil {
		return storageErr(err)
	}
	if !member {
		return fmt.Errorf("%w: %s is not a participant of %s", ErrNotAuthorized, initiatorID, roomID)
	}

	if err := g.rooms.DeleteRoom(sctx, roomID); err != nil {
		return storageErr(err)
	}

	g.fanout.Broadcast(roomID, models.EventRoomCleared, models.ClearedEvent{RoomID: roomID})
	g.dropRoomLock(roomID)
	return nil
}

// dropRoomLock evicts a purged room's lock entry; room keys are
// client-influenced strings, so the map must not grow unboundedly. A
// goroutine still waiting on the old mutex proceeds against the now-empty
// room and recreates state through the normal lazy path.
func (g *Gateway) dropRoomLock(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, roomID)
}

// Typing fans out a typing signal to the room except the signalling
// connection. Ephemeral: nothing is persisted and an empty room is a no-op.
func (g *Gateway) Typing(roomID string, accountID string, value bool, senderConnID string) {
	g.fanout.BroadcastExcept(roomID, senderConnID, models.EventTyping, models.TypingEvent{AccountID: accountID, Value: value})
}

// Reaction fans out a reaction to the whole room, sender included.
func (g *Gateway) Reaction(roomID string, messageID string, byAccountID string, reaction string) {
	g.fanout.Broadcast(roomID, models.EventReaction, models.ReactionEvent{MessageID: messageID, By: byAccountID, Reaction: reaction})
}
