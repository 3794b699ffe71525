package httptransport

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Throttle keeps a token bucket per client address.
type Throttle struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	onLimited func(c *gin.Context)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ThrottleOption func(*Throttle)

// WithThrottleClock replaces time.Now, for tests.
func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) { t.now = now }
}

// OnLimited is called for every rejected request before the 429 is written.
func OnLimited(fn func(c *gin.Context)) ThrottleOption {
	return func(t *Throttle) { t.onLimited = fn }
}

// NewThrottle allows perMinute requests per client with the given burst.
func NewThrottle(perMinute, burst int, opts ...ThrottleOption) *Throttle {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 10
	}
	t := &Throttle{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Throttle) reserve(key string) (bool, time.Duration) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) > t.idleTTL {
		for k, b := range t.buckets {
			if now.Sub(b.lastSeen) > t.idleTTL {
				delete(t.buckets, k)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return true, 0
	}
	r := b.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

// Middleware rejects over-budget clients with 429 and Retry-After.
func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := t.reserve(c.ClientIP())
		if ok {
			c.Next()
			return
		}
		if t.onLimited != nil {
			t.onLimited(c)
		}
		TooManyRequests(c, wait)
	}
}

// TooManyRequests writes the shared 429 answer.
func TooManyRequests(c *gin.Context, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{Error: TooManyAttempts})
}
