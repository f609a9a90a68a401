package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// apiKeyAuth guards the OpenAI-compatible surface. An empty key list leaves
// it open; keys reload with the config store.
func (h *Handler) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := h.store.APIKeys()
		if len(keys) == 0 {
			c.Next()
			return
		}
		supplied := bearerToken(c)
		for _, key := range keys {
			if secretsEqual(supplied, key) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("invalid API key", "invalid_request_error"))
	}
}

// pushSecretAuth guards the extension endpoints. The extension may send the
// secret as a bearer token or in X-Extension-Secret.
func (h *Handler) pushSecretAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := h.store.PushSecret()
		if secret == "" {
			c.Next()
			return
		}
		if secretsEqual(bearerToken(c), secret) || secretsEqual(c.GetHeader("X-Extension-Secret"), secret) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("invalid push secret", "invalid_request_error"))
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func secretsEqual(supplied, want string) bool {
	return supplied != "" && subtle.ConstantTimeCompare([]byte(supplied), []byte(want)) == 1
}
