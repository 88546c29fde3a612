package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newClockedLimiter(limits Limits) (*Limiter, *time.Time) {
	l := NewLimiter(limits)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }
	return l, &now
}

func TestLimiterAllowsWithinBudget(t *testing.T) {
	l, _ := newClockedLimiter(Limits{PerSecond: 15, PerMinute: 120})

	for i := 0; i < 15; i++ {
		ok, _, _, _ := l.Allow("1.2.3.4")
		require.True(t, ok, "request %d should pass", i+1)
	}
}

func TestLimiterBlocksSecondBurst(t *testing.T) {
	l, _ := newClockedLimiter(Limits{PerSecond: 15, PerMinute: 120})

	for i := 0; i < 15; i++ {
		ok, _, _, _ := l.Allow("1.2.3.4")
		require.True(t, ok)
	}

	ok, window, reason, retry := l.Allow("1.2.3.4")
	require.False(t, ok)
	require.Equal(t, "second", window)
	require.Contains(t, reason, "15 requests in 1 second")
	require.Greater(t, retry, time.Duration(0))
}

func TestLimiterSlidingSecondWindow(t *testing.T) {
	l, now := newClockedLimiter(Limits{PerSecond: 15, PerMinute: 120})

	for i := 0; i < 15; i++ {
		ok, _, _, _ := l.Allow("1.2.3.4")
		require.True(t, ok)
	}
	ok, _, _, _ := l.Allow("1.2.3.4")
	require.False(t, ok)

	// Once the burst slides out of the one-second window, requests pass
	// again; the minute budget still has room.
	*now = now.Add(1100 * time.Millisecond)
	ok, _, _, _ = l.Allow("1.2.3.4")
	require.True(t, ok)
}

func TestLimiterBlocksMinuteBudget(t *testing.T) {
	l, now := newClockedLimiter(Limits{PerSecond: 15, PerMinute: 120})

	// 120 requests spread thin enough to never trip the second window.
	for i := 0; i < 120; i++ {
		ok, _, _, _ := l.Allow("1.2.3.4")
		require.True(t, ok, "request %d should pass", i+1)
		*now = now.Add(200 * time.Millisecond)
	}

	ok, window, reason, _ := l.Allow("1.2.3.4")
	require.False(t, ok)
	require.Equal(t, "minute", window)
	require.Contains(t, reason, "120 requests in 1 minute")
}

func TestLimiterDeniedAttemptNotRecorded(t *testing.T) {
	l, now := newClockedLimiter(Limits{PerSecond: 2, PerMinute: 120})

	for i := 0; i < 2; i++ {
		ok, _, _, _ := l.Allow("1.2.3.4")
		require.True(t, ok)
	}

	// Hammering while blocked must not push the recovery point out.
	for i := 0; i < 10; i++ {
		ok, _, _, _ := l.Allow("1.2.3.4")
		require.False(t, ok)
	}

	*now = now.Add(1100 * time.Millisecond)
	ok, _, _, _ := l.Allow("1.2.3.4")
	require.True(t, ok)
}

func TestLimiterIsolatesClients(t *testing.T) {
	l, _ := newClockedLimiter(Limits{PerSecond: 2, PerMinute: 120})

	for i := 0; i < 2; i++ {
		ok, _, _, _ := l.Allow("1.1.1.1")
		require.True(t, ok)
	}
	ok, _, _, _ := l.Allow("1.1.1.1")
	require.False(t, ok)

	ok, _, _, _ = l.Allow("2.2.2.2")
	require.True(t, ok)
}

func TestLimiterSweepDropsIdleClients(t *testing.T) {
	l, now := newClockedLimiter(Limits{PerSecond: 15, PerMinute: 120})

	l.Allow("1.2.3.4")
	l.Allow("5.6.7.8")
	require.Len(t, l.clients, 2)

	*now = now.Add(5 * time.Minute)
	l.Allow("1.2.3.4")
	require.Len(t, l.clients, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, _ := newClockedLimiter(Limits{PerSecond: 2, PerMinute: 120})

	r := gin.New()
	r.Use(RateLimit(limiter, "/health"))
	r.GET("/blogs", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "9.9.9.9:1234"
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, do("/blogs").Code)
	require.Equal(t, http.StatusOK, do("/blogs").Code)

	blocked := do("/blogs")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))
	require.Contains(t, blocked.Body.String(), "RATE_LIMIT_EXCEEDED")

	// Exempt paths never hit the limiter.
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, do("/health").Code)
	}
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(nil))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
