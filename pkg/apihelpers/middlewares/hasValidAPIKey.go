package middlewares

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HasValidAPIKey accepts requests carrying one of validKeys in the Api-Key header.
func HasValidAPIKey(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		keysInHeader := c.Request.Header.Values(HeaderAPIKey)
		if len(keysInHeader) < 1 {
			slog.Error("A valid API key missing", slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "A valid API key missing"})
			return
		}

		for _, k := range keysInHeader {
			for _, vk := range validKeys {
				if vk != "" && subtle.ConstantTimeCompare([]byte(k), []byte(vk)) == 1 {
					c.Next()
					return
				}
			}
		}

		slog.Error("A valid API key missing", slog.String("path", c.Request.URL.Path), slog.Int("receivedKeys", len(keysInHeader)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "A valid API key missing"})
	}
}
