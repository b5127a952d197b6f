package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiterIdleTTL is how long an idle client's bucket is kept
const clientLimiterIdleTTL = 10 * time.Minute

// ClientRateLimiter throttles inbound requests per client IP with a token bucket.
type ClientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientRateLimiter allows perSecond requests per client with the given burst.
// A non-positive perSecond disables throttling.
func NewClientRateLimiter(perSecond float64, burst int) *ClientRateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &ClientRateLimiter{
		clients: make(map[string]*clientBucket),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether client may make a request now.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now
	l.evictLocked(now)
	return b.limiter.AllowN(now, 1)
}

func (l *ClientRateLimiter) evictLocked(now time.Time) {
	for client, b := range l.clients {
		if now.Sub(b.lastSeen) > clientLimiterIdleTTL {
			delete(l.clients, client)
		}
	}
}

// Middleware answers 429 once a client exhausted its bucket.
func (l *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
