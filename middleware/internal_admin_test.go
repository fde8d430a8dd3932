package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestInternalAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		configured     string
		header         string
		actor          string
		expectedStatus int
		expectedActor  string
	}{
		{name: "not configured", configured: "", header: "secret", expectedStatus: http.StatusServiceUnavailable},
		{name: "missing header", configured: "secret", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "wrong token", configured: "secret", header: "nope", expectedStatus: http.StatusUnauthorized},
		{name: "valid token", configured: "secret", header: " secret ", expectedStatus: http.StatusOK, expectedActor: "api"},
		{name: "valid token with actor", configured: "secret", header: "secret", actor: "42", expectedStatus: http.StatusOK, expectedActor: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(SecurityHeaders(), InternalAdminToken(tt.configured))
			router.GET("/x", func(c *gin.Context) {
				c.String(http.StatusOK, c.GetString("actor_id"))
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("X-Internal-Admin-Token", tt.header)
			}
			if tt.actor != "" {
				req.Header.Set(ActorHeader, tt.actor)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedActor, w.Body.String())
			}
		})
	}
}
