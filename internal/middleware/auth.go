package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/whisprlabs/whisprgate/internal/config"
	"github.com/whisprlabs/whisprgate/internal/service"
)

const (
	HeaderGatewayKey = "X-Gateway-Key"
	ContextUserKey   = "user"
)

func AuthMiddleware(cfg *config.Config, um *service.UserManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			if cfg != nil && !cfg.Auth.RequireAPIKey {
				if user := um.DefaultUser(); user != nil {
					c.Set(ContextUserKey, user)
					c.Next()
					return
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		user, ok := um.GetByApiKey(apiKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}
