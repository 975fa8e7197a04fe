// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
}

// RateLimiter enforces a sliding-window limit in redis. When redis is down
// it degrades to an in-process token bucket per key so a cache outage
// doesn't turn into an open floodgate.
type RateLimiter struct {
	redis *redis_rate.Limiter
	local *processBuckets
	cfg   RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		redis: redis_rate.NewLimiter(rdb),
		local: newProcessBuckets(cfg.Limit),
		cfg:   cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.BypassFunc != nil && rl.cfg.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.cfg.KeyFunc(r)

		res, err := rl.redis.Allow(r.Context(), key, rl.cfg.Limit)
		if err != nil {
			res = rl.degraded(r.Context(), key, err)
			if res == nil {
				if rl.cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w,
					"Service Unavailable",
					http.StatusServiceUnavailable,
				)
				return
			}
		}

		rl.writeHeaders(w, res)

		if res.Allowed == 0 {
			rejectTooMany(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// degraded answers from the process-local bucket after a redis failure.
func (rl *RateLimiter) degraded(
	ctx context.Context,
	key string,
	cause error,
) *redis_rate.Result {
	slog.WarnContext(ctx, "rate limiter degraded to local buckets",
		"error", cause,
		"key", key,
	)
	return rl.local.allow(key)
}

func (rl *RateLimiter) writeHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
) {
	limit := rl.cfg.Limit
	resetAt := time.Now().Add(res.ResetAfter).Unix()

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d",
		limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d",
		res.Remaining, int(res.ResetAfter.Seconds())))
}

func rejectTooMany(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "fail",
		"message": fmt.Sprintf(
			"too many requests, retry after %d seconds",
			retryAfter,
		),
	})
}

// KeyByIP resolves the client address, trusting the last X-Forwarded-For
// hop (the one appended by our own proxy) over earlier spoofable entries.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return "ratelimit:ip:" + strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ratelimit:ip:" + xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ratelimit:ip:" + host
}

// KeyByUser keys authenticated traffic by account, anonymous by address.
func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "ratelimit:user:" + userID
	}
	return KeyByIP(r)
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   requests,
		Burst:  burst,
		Period: time.Minute,
	}
}

// processBuckets is the redis-less fallback: one x/time token bucket per
// key, reaped after a period of inactivity.
type processBuckets struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   redis_rate.Limit
	perSec  rate.Limit
}

type bucket struct {
	tb       *rate.Limiter
	lastSeen time.Time
}

const bucketIdleTTL = 10 * time.Minute

func newProcessBuckets(limit redis_rate.Limit) *processBuckets {
	p := &processBuckets{
		buckets: make(map[string]*bucket),
		limit:   limit,
		perSec:  rate.Limit(float64(limit.Rate) / limit.Period.Seconds()),
	}
	go p.reap()
	return p
}

func (p *processBuckets) allow(key string) *redis_rate.Result {
	p.mu.Lock()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{tb: rate.NewLimiter(p.perSec, p.limit.Burst)}
		p.buckets[key] = b
	}
	b.lastSeen = time.Now()
	allowed := b.tb.Allow()
	remaining := max(int(b.tb.Tokens()), 0)
	p.mu.Unlock()

	refill := time.Duration(float64(time.Second) / float64(p.perSec))

	res := &redis_rate.Result{
		Limit:      p.limit,
		Remaining:  remaining,
		RetryAfter: -1,
		ResetAfter: refill,
	}
	if allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = refill
	}
	return res
}

func (p *processBuckets) reap() {
	ticker := time.NewTicker(bucketIdleTTL / 2)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-bucketIdleTTL)
		p.mu.Lock()
		for key, b := range p.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(p.buckets, key)
			}
		}
		p.mu.Unlock()
	}
}
