package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"support-chat-service/internal/gateway"
	"support-chat-service/internal/middleware"
	"support-chat-service/internal/models"
	"support-chat-service/internal/repositories"
	"support-chat-service/internal/roomid"
)

// RoomHandler exposes the REST surface next to the socket: room key
// lookup, history reads and the deletion flows the web client drives over
// HTTP. Mutations route through the gateway so socket subscribers observe
// the same broadcasts.
type RoomHandler struct {
	gw       *gateway.Gateway
	messages repositories.MessageRepository
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(gw *gateway.Gateway, messages repositories.MessageRepository) *RoomHandler {
	return &RoomHandler{gw: gw, messages: messages}
}

// RoomWith derives the room key for the caller and another account.
func (h *RoomHandler) RoomWith(c *gin.Context) {
	account, ok := middleware.AccountFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing account"})
		return
	}

	key, err := roomid.Derive(account.ID, c.Param("account_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": key})
}

// GetMessages returns the room's history filtered for the caller. The
// stored log keeps soft-deleted entries; the view drops them here.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	account, ok := middleware.AccountFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing account"})
		return
	}
	roomID := c.Param("room_id")
	if !roomid.Includes(roomID, account.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return
	}

	history, err := h.messages.History(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": models.VisibleTo(history, account.ID)})
}

// DeleteMessageForMe soft-deletes a message for the caller only.
func (h *RoomHandler) DeleteMessageForMe(c *gin.Context) {
	h.deleteMessage(c, false)
}

// DeleteMessageForAll hides a message from every participant; only the
// author may do this.
func (h *RoomHandler) DeleteMessageForAll(c *gin.Context) {
	h.deleteMessage(c, true)
}

func (h *RoomHandler) deleteMessage(c *gin.Context, forEveryone bool) {
	account, ok := middleware.AccountFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing account"})
		return
	}

	roomID := c.Param("room_id")
	messageID := c.Param("message_id")

	if _, err := h.gw.DeleteMessage(c.Request.Context(), roomID, messageID, account.ID, forEveryone); err != nil {
		c.JSON(statusForGatewayError(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearRoom hard-clears the room's history. Role gating (the bulk "delete
// chats" flow is admin-initiated) happens upstream at the account service.
func (h *RoomHandler) ClearRoom(c *gin.Context) {
	account, ok := middleware.AccountFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing account"})
		return
	}

	if err := h.gw.ClearRoom(c.Request.Context(), c.Param("room_id"), account.ID); err != nil {
		c.JSON(statusForGatewayError(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// PurgeRoom removes a room entirely, membership included; used when an
// account is rejected or removed upstream.
func (h *RoomHandler) PurgeRoom(c *gin.Context) {
	account, ok := middleware.AccountFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing account"})
		return
	}

	if err := h.gw.PurgeRoom(c.Request.Context(), c.Param("room_id"), account.ID); err != nil {
		c.JSON(statusForGatewayError(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func statusForGatewayError(err error) int {
	switch {
	case errors.Is(err, roomid.ErrInvalidParticipants), errors.Is(err, gateway.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
