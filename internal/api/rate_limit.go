package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/alanmaizon/slidebuddy/internal/middleware"
)

const limiterIdleTTL = 10 * time.Minute

// clientLimiter keeps one token bucket per client. A client is the
// X-Session-Id it sends, or its address when it sends none. Each bucket
// holds a minute's worth of requests and refills continuously.
type clientLimiter struct {
	mu        sync.Mutex
	perMinute int
	buckets   map[string]*clientBucket
	now       func() time.Time
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter returns nil, meaning unlimited, for a limit of zero.
func newClientLimiter(perMinute int, now func() time.Time) *clientLimiter {
	if perMinute <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &clientLimiter{
		perMinute: perMinute,
		buckets:   make(map[string]*clientBucket),
		now:       now,
	}
}

// Allow spends one token for key. When the bucket is empty it reports how
// long until the next token.
func (l *clientLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &clientBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now

	reservation := bucket.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *clientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	l.lastSweep = now
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > limiterIdleTTL {
			delete(l.buckets, key)
		}
	}
}

func clientKey(c *gin.Context) string {
	if sessionID := strings.TrimSpace(c.GetHeader(middleware.SessionIDHeader)); sessionID != "" {
		return "session:" + sessionID
	}
	return "ip:" + c.ClientIP()
}

func enforceRateLimit(c *gin.Context, limiter *clientLimiter) bool {
	if limiter == nil {
		return true
	}

	allowed, retryAfter := limiter.Allow(clientKey(c))
	if allowed {
		return true
	}

	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	writeError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry in "+strconv.Itoa(seconds)+"s")
	return false
}
