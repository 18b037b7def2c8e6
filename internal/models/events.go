package models

// Wire event names shared by the gateway and the socket layer.
const (
	EventJoin           = "join"
	EventHistory        = "room:history"
	EventMessage        = "message"
	EventTyping         = "typing"
	EventReaction       = "reaction"
	EventMessageDelete  = "message:delete"
	EventMessageDeleted = "message:deleted"
	EventClear          = "clear"
	EventRoomCleared    = "room:cleared"
	EventError          = "error"
)

// Event payloads fanned out over websocket connections.

// HistoryEvent is sent only to the joining connection.
type HistoryEvent struct {
	RoomID  string    `json:"roomId"`
	History []Message `json:"history"`
}

// MessageEvent is broadcast to every subscriber of the room.
type MessageEvent struct {
	RoomID string  `json:"roomId"`
	Msg    Message `json:"msg"`
}

// TypingEvent goes to the room except the typing connection.
type TypingEvent struct {
	AccountID string `json:"accountId"`
	Value     bool   `json:"value"`
}

// ReactionEvent is broadcast to the whole room, sender included.
type ReactionEvent struct {
	MessageID string `json:"messageId"`
	By        string `json:"byAccountId"`
	Reaction  string `json:"reaction"`
}

// DeletionEvent names the accounts the message was just hidden for.
type DeletionEvent struct {
	RoomID    string   `json:"roomId"`
	MessageID string   `json:"messageId"`
	DeleteFor []string `json:"deleteFor"`
}

// ClearedEvent announces a hard clear of the room's history.
type ClearedEvent struct {
	RoomID string `json:"roomId"`
}

// ErrorEvent is reported back to the originating connection only.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
