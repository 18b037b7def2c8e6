package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"support-chat-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func accountIDFromContext(c *gin.Context) *string {
	if account, ok := middleware.AccountFromContext(c); ok && account.ID != "" {
		id := account.ID
		return &id
	}

	if header := c.GetHeader("X-Account-ID"); header != "" {
		id := header
		return &id
	}

	return nil
}
