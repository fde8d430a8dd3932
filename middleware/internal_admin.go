package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorHeader optionally names the operator behind an API call. It is
// recorded as the actor of blacklist and resolve operations.
const ActorHeader = "X-Actor-ID"

// InternalAdminToken protects the operator API with a shared secret.
// Header: X-Internal-Admin-Token: <token>
func InternalAdminToken(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "internal admin token not configured"})
			c.Abort()
			return
		}
		got := strings.TrimSpace(c.GetHeader("X-Internal-Admin-Token"))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			c.Abort()
			return
		}
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			actor = "api"
		}
		c.Set("actor_id", actor)
		c.Next()
	}
}

// SecurityHeaders adds security headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
