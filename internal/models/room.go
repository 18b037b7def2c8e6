package models

import "time"

// Room is the persistent channel between exactly two accounts. The key is
// derived from the participant pair and is stable for the pair's lifetime.
type Room struct {
	RoomID       string    `db:"room_id" json:"room_id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Account mirrors the account service's view of a user. The core only
// requires ID; role and status gate decisions made upstream.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}
