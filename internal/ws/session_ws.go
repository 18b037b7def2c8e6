package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"support-chat-service/internal/gateway"
	"support-chat-service/internal/models"
	"support-chat-service/internal/observability"
	"support-chat-service/internal/roomid"
)

// AccountDirectory is the slice of the account service the socket layer
// needs: token resolution, the approval gate and upload-token resolution.
type AccountDirectory interface {
	Authenticate(ctx context.Context, token string) (models.Account, error)
	IsParticipantAuthorized(ctx context.Context, accountID string) (bool, error)
	ResolveFileReference(ctx context.Context, uploadToken string) (models.FileRef, error)
}

// SessionHandler owns the websocket endpoint: handshake, the per-connection
// read loop and event dispatch into the gateway.
type SessionHandler struct {
	hub       *Hub
	gw        *gateway.Gateway
	directory AccountDirectory
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(hub *Hub, gw *gateway.Gateway, directory AccountDirectory) *SessionHandler {
	return &SessionHandler{hub: hub, gw: gw, directory: directory}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, authenticates the account against the
// directory and runs the read loop until the client disconnects.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("support-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	account, err := h.directory.Authenticate(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	authorized, err := h.directory.IsParticipantAuthorized(ctx, account.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "account service unavailable"})
		return
	}
	if !authorized {
		c.JSON(http.StatusForbidden, gin.H{"error": "account not approved"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		AccountID:   account.ID,
		Name:        account.Name,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)

	observability.IncWSActive("room")
	observability.IncWSEvent("room", "ws_connect")
	h.publishLifecycle(ctx, info, "ws_connect", "")

	var closeReason string
	defer func() {
		h.hub.UnsubscribeAll(client)
		observability.DecWSActive("room")
		observability.IncWSEvent("room", "ws_disconnect")
		h.publishLifecycle(ctx, info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("room", "ws_error")
				h.publishLifecycle(ctx, info, "ws_error", closeReason)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(client, fmt.Errorf("%w: malformed envelope", gateway.ErrInvalidMessage))
			continue
		}
		h.dispatch(ctx, client, account, env)
	}
}

// dispatch handles a single inbound event. Failures are reported only to
// the originating connection; nothing about an error is broadcast.
func (h *SessionHandler) dispatch(ctx context.Context, client *Client, account models.Account, env Envelope) {
	observability.IncWSEvent("room", env.Event)

	switch env.Event {
	case models.EventJoin:
		var payload joinPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(client, gateway.ErrInvalidMessage)
			return
		}
		h.handleJoin(ctx, client, account, payload.RoomID)

	case models.EventMessage:
		var payload sendPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(client, gateway.ErrInvalidMessage)
			return
		}
		h.handleSend(ctx, client, account, payload)

	case models.EventTyping:
		var payload typingPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		h.gw.Typing(payload.RoomID, account.ID, payload.Value, client.info.ConnID)

	case models.EventReaction:
		var payload reactionPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		h.gw.Reaction(payload.RoomID, payload.MessageID, account.ID, payload.Reaction)

	case models.EventMessageDelete:
		var payload deletePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(client, gateway.ErrInvalidMessage)
			return
		}
		if payload.RequesterID != "" && payload.RequesterID != account.ID {
			h.sendError(client, gateway.ErrNotAuthorized)
			return
		}
		if _, err := h.gw.DeleteMessage(ctx, payload.RoomID, payload.MessageID, account.ID, payload.ForEveryone); err != nil {
			h.sendError(client, err)
		}

	case models.EventClear:
		var payload clearPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(client, gateway.ErrInvalidMessage)
			return
		}
		if err := h.gw.ClearRoom(ctx, payload.RoomID, account.ID); err != nil {
			h.sendError(client, err)
		}

	default:
		h.sendError(client, fmt.Errorf("%w: unknown event %q", gateway.ErrInvalidMessage, env.Event))
	}
}

// handleJoin subscribes before pulling history so a message landing during
// the replay read is still delivered live; the client collapses the
// overlap by message id.
func (h *SessionHandler) handleJoin(ctx context.Context, client *Client, account models.Account, roomID string) {
	if !roomid.Includes(roomID, account.ID) {
		h.sendError(client, gateway.ErrNotAuthorized)
		return
	}

	h.hub.Subscribe(roomID, client)
	history, err := h.gw.Join(ctx, roomID, account)
	if err != nil {
		h.hub.Unsubscribe(roomID, client)
		h.sendError(client, err)
		return
	}

	if err := client.WriteEvent(models.EventHistory, models.HistoryEvent{RoomID: roomID, History: history}); err != nil {
		log.Printf("history replay failed conn=%s room=%s: %v", client.info.ConnID, roomID, err)
	}
}

func (h *SessionHandler) handleSend(ctx context.Context, client *Client, account models.Account, payload sendPayload) {
	msg := payload.Msg.Message
	if msg.From != "" && msg.From != account.ID {
		h.sendError(client, gateway.ErrNotAuthorized)
		return
	}
	msg.From = account.ID
	if msg.Name == "" {
		msg.Name = account.Name
	}

	if payload.Msg.UploadToken != "" && msg.File == nil {
		file, err := h.directory.ResolveFileReference(ctx, payload.Msg.UploadToken)
		if err != nil {
			h.sendError(client, fmt.Errorf("%w: unresolved upload token", gateway.ErrInvalidMessage))
			return
		}
		msg.File = &file
	}

	if err := h.gw.Send(ctx, payload.RoomID, msg); err != nil {
		h.sendError(client, err)
	}
}

// sendError reports a failure back to the originating connection only, so
// a failed send never looks delivered to anyone.
func (h *SessionHandler) sendError(client *Client, err error) {
	writeErr := client.WriteEvent(models.EventError, models.ErrorEvent{
		Code:    gateway.ErrorCode(err),
		Message: err.Error(),
	})
	if writeErr != nil {
		log.Printf("error report failed conn=%s: %v", client.info.ConnID, writeErr)
	}
}

func (h *SessionHandler) publishLifecycle(ctx context.Context, info ConnInfo, event string, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"account_id": info.AccountID,
				"device_id":  info.DeviceID,
				"ip":         info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
