package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"support-chat-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts room membership persistence. A room is created
// lazily on first touch and only removed by an explicit hard delete.
type RoomRepository interface {
	GetOrCreateRoom(ctx context.Context, roomID string) (models.Room, error)
	AddParticipant(ctx context.Context, roomID string, accountID string) error
	Participants(ctx context.Context, roomID string) ([]string, error)
	IsParticipant(ctx context.Context, roomID string, accountID string) (bool, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// GetOrCreateRoom returns the room, creating an empty one on first touch.
// A single upsert keeps concurrent first joins from racing two creates.
func (r *RoomRepo) GetOrCreateRoom(ctx context.Context, roomID string) (models.Room, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO rooms (room_id) VALUES ($1) ON CONFLICT (room_id) DO NOTHING`, roomID); err != nil {
		return models.Room{}, err
	}

	var room models.Room
	if err := r.db.GetContext(ctx, &room, `SELECT room_id, created_at FROM rooms WHERE room_id=$1`, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Room{}, ErrRoomNotFound
		}
		return models.Room{}, err
	}

	participants, err := r.Participants(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	room.Participants = participants
	return room, nil
}

// AddParticipant records room membership; re-adding is a no-op.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID string, accountID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO room_participants (room_id, account_id) VALUES ($1, $2)
        ON CONFLICT (room_id, account_id) DO NOTHING`, roomID, accountID)
	return err
}

// Participants lists the account ids recorded for the room.
func (r *RoomRepo) Participants(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT account_id FROM room_participants WHERE room_id=$1 ORDER BY account_id`, roomID)
	return ids, err
}

// IsParticipant checks whether the account belongs to the room.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID string, accountID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id=$1 AND account_id=$2)`, roomID, accountID)
	return exists, err
}

// DeleteRoom hard-clears membership and log; messages cascade.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id=$1`, roomID)
	return err
}
