package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig sets the sustained rate and burst allowance applied to
// each caller of the claims API.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig is sized for a clearinghouse batch submitter:
// generous burst for batch flushes, steady rate well above interactive use.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 100, BurstSize: 200}
}

// tokenBucket refills lazily on each allow call rather than on a timer.
type tokenBucket struct {
	mu     sync.Mutex
	level  float64
	cap    float64
	rate   float64
	filled time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		level:  float64(burst),
		cap:    float64(burst),
		rate:   rate,
		filled: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.level += now.Sub(b.filled).Seconds() * b.rate
	if b.level > b.cap {
		b.level = b.cap
	}
	b.filled = now

	if b.level < 1 {
		return false
	}
	b.level--
	return true
}

// retryAfter estimates whole seconds until one token is available. Always at
// least 1 so the Retry-After header is meaningful even for a full bucket.
func (b *tokenBucket) retryAfter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rate <= 0 {
		return 1
	}
	return int((1-b.level)/b.rate) + 1
}

type rateLimiterStore struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	config  RateLimitConfig
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{buckets: make(map[string]*tokenBucket), config: cfg}
}

func (s *rateLimiterStore) getBucket(key string) *tokenBucket {
	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		return b
	}
	b = newTokenBucket(s.config.RequestsPerSecond, s.config.BurstSize)
	s.buckets[key] = b
	return b
}

// RateLimit throttles callers with a token bucket per client. The bucket key
// is the authenticated subject plus source IP so submitters behind a shared
// NAT do not starve each other, falling back to IP alone before auth runs.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if sub, ok := c.Get("auth_subject").(string); ok && sub != "" {
				key = sub + ":" + key
			}

			bucket := store.getBucket(key)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if !bucket.allow() {
				h.Set("Retry-After", strconv.Itoa(bucket.retryAfter()))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
