package server

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/aiprep-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained per-client rate (requests/second) on
	// /predict, /ask and /agent.
	defaultRateLimit = 10
	// defaultRateBurst is the per-client bucket size.
	defaultRateBurst = 20
	// limiterIdleTTL is how long a client bucket survives without traffic.
	limiterIdleTTL = 5 * time.Minute
	// limiterSweepInterval is how often idle buckets are dropped.
	limiterSweepInterval = time.Minute
)

// bucket is one client's token bucket.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps a token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	return &clientLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// reserve takes one token for key at now. It returns zero when the request
// may proceed, or how long the client must wait before its next token.
func (c *clientLimiter) reserve(key string, now time.Time) time.Duration {
	c.mu.Lock()
	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[key] = b
	}
	b.lastSeen = now
	c.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return rate.InfDuration
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		// Rejected requests must not consume the token.
		r.CancelAt(now)
	}
	return delay
}

// sweep drops buckets idle for longer than ttl and returns how many remain.
func (c *clientLimiter) sweep(now time.Time, ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, b := range c.buckets {
		if now.Sub(b.lastSeen) > ttl {
			delete(c.buckets, key)
		}
	}
	return len(c.buckets)
}

// sweepLoop runs sweep until ctx is cancelled.
func (c *clientLimiter) sweepLoop(ctx context.Context, every, ttl time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.sweep(now, ttl)
		}
	}
}

// rateLimit rejects requests over the client's budget with 429, a
// Retry-After in whole seconds and a JSON error body.
func (s *Server) rateLimit(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		wait := s.limiter.reserve(ip, time.Now())
		if wait == 0 {
			next.ServeHTTP(w, r)
			return
		}

		s.metrics.rateLimitedTotal.WithLabelValues(name).Inc()
		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("ip", ip),
			slog.String("handler", name),
			slog.Duration("retry_after", wait),
		)
		w.Header().Set("Retry-After", retryAfterSeconds(wait))
		writeError(r.Context(), w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
	})
}

// retryAfterSeconds rounds d up to whole seconds, clamped to [1, 3600].
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	return strconv.FormatInt(min(max(secs, 1), 3600), 10)
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is ignored;
// the API binds to loopback by default.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
