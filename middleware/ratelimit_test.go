package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimitKeyUsesAuthenticatedActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/chat/ask", nil)
	c.Set("actor_id", "p1")

	if got := rateLimitKey(c); got != "ratelimit:p1:" {
		// FullPath is empty outside a routed request; the actor segment is
		// what matters here
		t.Errorf("key = %q, want actor-scoped key", got)
	}
}

func TestRateLimitKeyFallsBackToIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/chat/ask", nil)
	c.Request.RemoteAddr = "203.0.113.7:1234"

	key := rateLimitKey(c)
	if key != "ratelimit:203.0.113.7:" {
		t.Errorf("key = %q, want IP-scoped key", key)
	}
}
