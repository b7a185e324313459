package middleware

import (
	"net/http"
	"strings"

	"github.com/aman-churiwal/api-tracker/internal/service"
	"github.com/gin-gonic/gin"
)

// Resolves the X-API-Key header to a client application. Requests
// without a key pass through anonymously; requests with an invalid key
// are rejected.
func APIKeyValidator(apiKeyService *service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKeyHeader := c.GetHeader("X-API-Key")

		if apiKeyHeader == "" {
			c.Next()
			return
		}

		apiKeyHeader = strings.TrimSpace(apiKeyHeader)

		ctx := c.Request.Context()
		apiKey, err := apiKeyService.Validate(ctx, apiKeyHeader)

		if err != nil || apiKey == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set("api_key", apiKey)
		c.Set("api_key_id", apiKey.ID)

		c.Next()
	}
}
