package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterRefill(t *testing.T) {
	clock := time.Date(2024, 9, 17, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute, nil)
	rl.now = func() time.Time { return clock }

	steps := []struct {
		advance time.Duration
		key     string
		want    bool
	}{
		{0, "a", true},
		{0, "a", true},
		{0, "a", false},
		{0, "b", true},
		{30 * time.Second, "a", false},
		{31 * time.Second, "a", true},
		{0, "a", true},
		{0, "a", false},
	}
	for i, s := range steps {
		clock = clock.Add(s.advance)
		if got := rl.allow(s.key); got != s.want {
			t.Errorf("step %d: allow(%q) = %v, want %v", i, s.key, got, s.want)
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	clock := time.Date(2024, 9, 17, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute, nil)
	rl.now = func() time.Time { return clock }

	rl.allow("stale")
	clock = clock.Add(5 * time.Minute)
	rl.allow("fresh")
	rl.cleanup()

	if _, ok := rl.buckets["stale"]; ok {
		t.Error("stale bucket survived cleanup")
	}
	if _, ok := rl.buckets["fresh"]; !ok {
		t.Error("fresh bucket was evicted")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, time.Hour, func(*gin.Context) string { return "same" })

	r := gin.New()
	r.POST("/join", rl.Middleware(), NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/join", nil))
		codes[i] = rec.Code
		if i == 0 && rec.Header().Get("Cache-Control") != "no-store" {
			t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}
