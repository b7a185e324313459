package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/models"
	"github.com/aman-churiwal/api-tracker/internal/ratelimit"
	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/gin-gonic/gin"
)

// RateLimit applies a per-client sliding window to the admin/query
// surface. Authenticated API keys are limited by key id, everything
// else by client IP.
func RateLimit(redis *storage.RedisClient, requestsPerMinute int) gin.HandlerFunc {
	limiter := ratelimit.NewSlidingWindowLimiter(redis, requestsPerMinute, time.Minute)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if apiKeyValue, exists := c.Get("api_key"); exists {
			if apiKey, ok := apiKeyValue.(*models.APIKey); ok {
				key = apiKey.ID.String()
			}
		}

		ctx := c.Request.Context()
		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Rate limit check failed",
			})
			c.Abort()
			return
		}

		remaining, _ := limiter.Remaining(ctx, key)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
				"limit": limiter.Limit(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
