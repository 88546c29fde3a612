package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/mcuredefined/backend/pkg/errors"
	"github.com/mcuredefined/backend/pkg/metrics"
	"github.com/mcuredefined/backend/pkg/response"
)

// Default request budgets. The per-second limit catches bursts, the
// per-minute limit catches sustained scraping; both must hold for a request
// to pass.
const (
	DefaultPerSecond = 15
	DefaultPerMinute = 120
)

// staleAfter is how long a silent client keeps its window slices before the
// sweep drops them.
const staleAfter = 2 * time.Minute

// Limits configures the two sliding windows.
type Limits struct {
	PerSecond int
	PerMinute int
}

type clientWindow struct {
	second   []time.Time
	minute   []time.Time
	lastSeen time.Time
}

// Limiter is an in-memory sliding-window rate limiter keyed by client. It
// counts actual request timestamps inside each window rather than bucketed
// approximations, so a burst straddling a bucket boundary cannot slip
// through. Single-instance only: each process enforces its own budget.
type Limiter struct {
	mu        sync.Mutex
	limits    Limits
	clients   map[string]*clientWindow
	clock     func() time.Time
	lastSweep time.Time
}

// NewLimiter builds a limiter. Non-positive limits fall back to the
// defaults.
func NewLimiter(limits Limits) *Limiter {
	if limits.PerSecond <= 0 {
		limits.PerSecond = DefaultPerSecond
	}
	if limits.PerMinute <= 0 {
		limits.PerMinute = DefaultPerMinute
	}
	return &Limiter{
		limits:  limits,
		clients: make(map[string]*clientWindow),
		clock:   time.Now,
	}
}

// Allow records a request attempt for client and reports whether it fits
// both windows. A denied attempt is not recorded, so being rate limited does
// not extend the penalty. On denial it returns the violated window, a
// human-readable reason and how long until a slot opens.
func (l *Limiter) Allow(client string) (bool, string, string, time.Duration) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	w, ok := l.clients[client]
	if !ok {
		w = &clientWindow{}
		l.clients[client] = w
	}
	w.lastSeen = now

	w.second = prune(w.second, now.Add(-time.Second))
	w.minute = prune(w.minute, now.Add(-time.Minute))

	if len(w.second) >= l.limits.PerSecond {
		retry := w.second[0].Add(time.Second).Sub(now)
		reason := fmt.Sprintf("more than %d requests in 1 second", l.limits.PerSecond)
		return false, "second", reason, retry
	}
	if len(w.minute) >= l.limits.PerMinute {
		retry := w.minute[0].Add(time.Minute).Sub(now)
		reason := fmt.Sprintf("more than %d requests in 1 minute", l.limits.PerMinute)
		return false, "minute", reason, retry
	}

	w.second = append(w.second, now)
	w.minute = append(w.minute, now)
	return true, "", "", 0
}

// sweepLocked drops clients that have been silent long enough for both of
// their windows to be empty. Runs at most once per staleAfter interval.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < staleAfter {
		return
	}
	l.lastSweep = now

	for client, w := range l.clients {
		if now.Sub(w.lastSeen) > staleAfter {
			delete(l.clients, client)
		}
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	return stamps[idx:]
}

// RateLimit enforces limiter per client IP. Paths listed in exempt bypass
// the limiter entirely, which keeps health probes and the metrics scraper
// from eating into a client's budget.
func RateLimit(limiter *Limiter, exempt ...string) gin.HandlerFunc {
	exemptSet := make(map[string]bool, len(exempt))
	for _, path := range exempt {
		exemptSet[path] = true
	}

	return func(c *gin.Context) {
		if limiter == nil || exemptSet[c.Request.URL.Path] {
			c.Next()
			return
		}

		ok, window, reason, retry := limiter.Allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		metrics.RateLimited.WithLabelValues(window).Inc()

		seconds := int(retry.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))

		response.Error(c, appErrors.New(
			appErrors.ErrRateLimit.Code,
			"Rate limit exceeded: "+reason,
			http.StatusTooManyRequests,
		))
		c.Abort()
	}
}
