package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"support-chat-service/internal/models"
)

// MemoryStore satisfies both RoomRepository and MessageRepository with an
// in-process map. The gateway never assumes which implementation backs it;
// this one serves tests and single-node deployments without Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
}

type memoryRoom struct {
	createdAt    time.Time
	participants map[string]struct{}
	log          []models.Message
	index        map[string]int
	deletions    map[string]map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: map[string]*memoryRoom{}}
}

func (s *MemoryStore) room(roomID string) *memoryRoom {
	room, ok := s.rooms[roomID]
	if !ok {
		room = &memoryRoom{
			createdAt:    time.Now(),
			participants: map[string]struct{}{},
			index:        map[string]int{},
			deletions:    map[string]map[string]struct{}{},
		}
		s.rooms[roomID] = room
	}
	return room
}

// GetOrCreateRoom returns the room, creating an empty one on first touch.
func (s *MemoryStore) GetOrCreateRoom(ctx context.Context, roomID string) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.room(roomID)
	return models.Room{
		RoomID:       roomID,
		Participants: sortedKeys(room.participants),
		CreatedAt:    room.createdAt,
	}, nil
}

// AddParticipant records membership; re-adding is a no-op.
func (s *MemoryStore) AddParticipant(ctx context.Context, roomID string, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).participants[accountID] = struct{}{}
	return nil
}

// Participants lists the account ids recorded for the room.
func (s *MemoryStore) Participants(ctx context.Context, roomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return sortedKeys(room.participants), nil
}

// IsParticipant checks whether the account belongs to the room.
func (s *MemoryStore) IsParticipant(ctx context.Context, roomID string, accountID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return false, nil
	}
	_, member := room.participants[accountID]
	return member, nil
}

// DeleteRoom removes the room, its membership and its log.
func (s *MemoryStore) DeleteRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// Append stores the message unless its id is already in the log.
func (s *MemoryStore) Append(ctx context.Context, roomID string, msg models.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.room(roomID)
	if _, dup := room.index[msg.ID]; dup {
		return false, nil
	}
	room.index[msg.ID] = len(room.log)
	room.log = append(room.log, msg)
	return true, nil
}

// History returns the full log in append order, deletions attached.
func (s *MemoryStore) History(ctx context.Context, roomID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return []models.Message{}, nil
	}
	history := make([]models.Message, 0, len(room.log))
	for _, msg := range room.log {
		history = append(history, room.withDeletions(msg))
	}
	return history, nil
}

// GetMessage retrieves a single message with its deleted-for set.
func (s *MemoryStore) GetMessage(ctx context.Context, roomID string, messageID string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	pos, ok := room.index[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return room.withDeletions(room.log[pos]), nil
}

// MarkDeletedFor grows the message's deleted-for set.
func (s *MemoryStore) MarkDeletedFor(ctx context.Context, roomID string, messageID string, accountIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrMessageNotFound
	}
	if _, ok := room.index[messageID]; !ok {
		return ErrMessageNotFound
	}
	set, ok := room.deletions[messageID]
	if !ok {
		set = map[string]struct{}{}
		room.deletions[messageID] = set
	}
	for _, id := range accountIDs {
		set[id] = struct{}{}
	}
	return nil
}

// Clear empties the room's log and deletion marks; membership survives.
func (s *MemoryStore) Clear(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	room.log = nil
	room.index = map[string]int{}
	room.deletions = map[string]map[string]struct{}{}
	return nil
}

func (room *memoryRoom) withDeletions(msg models.Message) models.Message {
	set := room.deletions[msg.ID]
	if len(set) == 0 {
		msg.DeletedFor = nil
		return msg
	}
	msg.DeletedFor = sortedKeys(set)
	return msg
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
