package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// UserRateLimiter keeps one token bucket per key (the caller's uid).
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows rps events per second per key with the given
// burst. Buckets idle for longer than ttl are dropped on the next sweep.
func NewUserRateLimiter(rps float64, burst int, ttl time.Duration) *UserRateLimiter {
	return &UserRateLimiter{
		limiters: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *UserRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Sweep drops idle buckets.
func (l *UserRateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.ttl)
	for k, v := range l.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(l.limiters, k)
		}
	}
}

// Middleware limits requests per value of the context key (set by the auth
// middleware). Requests without a key pass through.
func (l *UserRateLimiter) Middleware(ctxKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ctxKey)
		if key != "" && !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "요청이 너무 많습니다. 잠시 후 다시 시도하세요.",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
