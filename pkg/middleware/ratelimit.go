package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/httputil"
	"github.com/platinummonkey/jobportal/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int `yaml:"requests_per_window"`
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration `yaml:"window_duration"`
	// BurstSize allows temporary bursts above the rate
	BurstSize int `yaml:"burst_size"`
}

// DefaultRateLimitConfig returns limits for general public endpoints
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// OTPRateLimitConfig returns the stricter limits applied to code issuance
func OTPRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	}
}

func (c *RateLimitConfig) capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// Result is the outcome of a limiter check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RateLimiter is an in-process token bucket limiter keyed by client
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) bucketFor(key string, now time.Time) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		every := rl.config.WindowDuration / time.Duration(max(rl.config.RequestsPerWindow, 1))
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), rl.config.capacity())}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// Allow consumes one token for key
func (rl *RateLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := rl.now()
	b := rl.bucketFor(key, now)

	res := Result{Limit: rl.config.capacity()}
	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res, nil
	}
	res.Allowed = true
	res.Remaining = int(b.limiter.TokensAt(now))
	return res, nil
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.config.WindowDuration)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// KeyFunc derives the limiter key for a request
type KeyFunc func(r *http.Request) string

// ClientIPKey keys requests by originating address
func ClientIPKey(r *http.Request) string {
	return "ip:" + auth.ClientIP(r)
}

// RateLimit returns middleware that rejects requests over the limit with
// RATE_LIMITED. Limiter errors fail open.
func RateLimit(limiter Limiter, route string, key KeyFunc, audit *auth.AuditLogger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIPKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), route+":"+key(r))
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).WithField("route", route).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				metrics.RecordRateLimited(route)
				if audit != nil {
					audit.LogFromRequest(r, auth.ActionRateLimitExceeded, "", 0, fmt.Errorf("route %s", route))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(res.RetryAfter)))
				httputil.WriteFailure(w, r, apperr.New(apperr.KindRateLimited, "too many requests, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
