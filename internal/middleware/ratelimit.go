package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/service"
)

func RateLimitMiddleware(um *service.UserManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Requires AuthMiddleware earlier in the chain
		userVal, exists := c.Get(ContextUserKey)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		user := userVal.(*model.User)

		limiter := um.GetLimiterForUser(user.ID)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
