package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"support-chat-service/internal/observability"
)

// Client is one live websocket connection. A single connection may be
// subscribed to several rooms at once (one per counterpart account), so
// writes from overlapping broadcasts serialize on the client's own mutex.
type Client struct {
	conn *websocket.Conn
	info ConnInfo

	mu sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

// Info returns the connection metadata captured at handshake time.
func (c *Client) Info() ConnInfo {
	return c.info
}

// WriteEvent frames and writes a single event to the connection.
func (c *Client) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the live room subscriptions.
type Hub struct {
	rooms map[string]map[*Client]bool
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Subscribe registers a connection on a room's broadcast channel.
// Re-subscribing the same connection is a no-op, so duplicate joins and
// reconnect replays never double-deliver.
func (h *Hub) Subscribe(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

// Unsubscribe removes a connection from one room.
func (h *Hub) Unsubscribe(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// UnsubscribeAll removes a disconnecting connection from every room.
// Leaving is implicit; stored participant history is untouched.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, clients := range h.rooms {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast delivers an event to every subscriber of the room.
func (h *Hub) Broadcast(roomID string, event string, data any) {
	h.broadcast(roomID, "", event, data)
}

// BroadcastExcept delivers an event to the room, skipping one connection.
func (h *Hub) BroadcastExcept(roomID string, skipConnID string, event string, data any) {
	h.broadcast(roomID, skipConnID, event, data)
}

func (h *Hub) broadcast(roomID string, skipConnID string, event string, data any) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if skipConnID != "" && client.info.ConnID == skipConnID {
			continue
		}
		if err := client.WriteEvent(event, data); err != nil {
			log.Printf("websocket write error: %v", err)
			client.conn.Close()
			h.UnsubscribeAll(client)
			h.publishWSError(roomID, client, err)
		}
	}
}

func (h *Hub) publishWSError(roomID string, client *Client, err error) {
	info := client.info

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"room_id":     roomID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"account_id": info.AccountID,
			"device_id":  info.DeviceID,
			"ip":         info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("room", "ws_error")
}
