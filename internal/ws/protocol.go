package ws

import (
	"encoding/json"

	"support-chat-service/internal/models"
)

// Envelope frames every event on the socket, both directions:
// {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client-to-gateway payloads.

type joinPayload struct {
	RoomID  string         `json:"roomId"`
	Account models.Account `json:"account"`
}

type sendPayload struct {
	RoomID string     `json:"roomId"`
	Msg    inboundMsg `json:"msg"`
}

// inboundMsg is a Message plus the optional upload token the gateway
// resolves into a file reference before persisting.
type inboundMsg struct {
	models.Message
	UploadToken string `json:"uploadToken,omitempty"`
}

type typingPayload struct {
	RoomID    string `json:"roomId"`
	AccountID string `json:"accountId"`
	Value     bool   `json:"value"`
}

type reactionPayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	By        string `json:"byAccountId"`
	Reaction  string `json:"reaction"`
}

type deletePayload struct {
	RoomID      string `json:"roomId"`
	MessageID   string `json:"messageId"`
	RequesterID string `json:"requesterId"`
	ForEveryone bool   `json:"forEveryone"`
}

type clearPayload struct {
	RoomID string `json:"roomId"`
}
