package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"support-chat-service/internal/models"
)

// Authenticator resolves a bearer token to an account; implemented by the
// directory client.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Account, error)
}

const accountContextKey = "account"

// AuthMiddleware validates the Authorization header against the account
// service and stores the resolved account on the request context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		account, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

// AccountFromContext returns the account the middleware resolved.
func AccountFromContext(c *gin.Context) (models.Account, bool) {
	val, ok := c.Get(accountContextKey)
	if !ok {
		return models.Account{}, false
	}
	account, ok := val.(models.Account)
	return account, ok
}
