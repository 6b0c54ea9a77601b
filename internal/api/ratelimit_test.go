package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestClientLimiter_perClientBurst(t *testing.T) {
	l := NewClientLimiter(0.001, 2)

	for i := 0; i < 2; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d: expected allow within burst", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("expected third request to be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other clients must have their own bucket")
	}
}

func TestClientLimiter_cleanupDropsIdle(t *testing.T) {
	l := NewClientLimiter(1, 1)
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	l.buckets["10.0.0.1"].lastSeen = time.Now().Add(-2 * staleAfter)

	l.cleanup()

	if _, ok := l.buckets["10.0.0.1"]; ok {
		t.Error("idle bucket should have been dropped")
	}
	if _, ok := l.buckets["10.0.0.2"]; !ok {
		t.Error("active bucket should have been kept")
	}
}

func TestClientLimiter_middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewClientLimiter(0.001, 1).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
		if i == 1 && w.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header on limited response")
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Errorf("got %v, want [204 429]", codes)
	}
}
