package middleware

import (
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/errors"
	"github.com/teilomillet/mdconvert/server/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether a client identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// retryAfterer is implemented by limiters that can suggest a Retry-After.
type retryAfterer interface {
	RetryAfter() time.Duration
}

// AllowAll is the pass-through Limiter used when rate limiting is disabled.
type AllowAll struct{}

// Allow always returns true.
func (AllowAll) Allow(string) bool { return true }

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// VisitorLimiter keeps one token bucket per client key. Buckets idle for
// longer than the configured TTL are evicted.
type VisitorLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewVisitorLimiter builds a VisitorLimiter refilling cfg.Requests tokens
// per cfg.Window with a bucket of cfg.Burst.
func NewVisitorLimiter(cfg config.RateLimitConfig) *VisitorLimiter {
	return &VisitorLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:    cfg.Burst,
		idleTTL:  cfg.IdleTTL,
		now:      time.Now,
	}
}

// NewLimiter returns the Limiter described by cfg.
func NewLimiter(cfg config.RateLimitConfig) Limiter {
	if !cfg.Enabled {
		return AllowAll{}
	}
	return NewVisitorLimiter(cfg)
}

// Allow consumes one token from key's bucket.
func (l *VisitorLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// RetryAfter is the time needed to refill a single token.
func (l *VisitorLimiter) RetryAfter() time.Duration {
	if l.limit <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / float64(l.limit))
}

// Len returns the number of tracked clients.
func (l *VisitorLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// sweep must be called with l.mu held.
func (l *VisitorLimiter) sweep(now time.Time) {
	if l.idleTTL <= 0 || now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, key)
		}
	}
}

// clientKey returns the remote IP with any port stripped.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit middleware rejects clients the limiter denies with 429.
// Preflight requests are never counted. It belongs on matched routes only,
// since the hit counter is labelled with the request path.
func RateLimit(limiter Limiter, m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	if limiter == nil {
		limiter = AllowAll{}
	}

	retryAfter := time.Second
	if ra, ok := limiter.(retryAfterer); ok {
		retryAfter = ra.RetryAfter()
	}
	retrySeconds := int(math.Ceil(retryAfter.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)
			if !limiter.Allow(key) {
				requestID := GetRequestID(r.Context())
				if m != nil {
					m.RateLimitHits.WithLabelValues(r.URL.Path).Inc()
				}
				if logger != nil {
					logger.Warn("rate limit exceeded",
						zap.String("client", key),
						zap.String("request_id", requestID),
					)
				}

				errors.WriteError(w, errors.NewRateLimitError(requestID, retrySeconds))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
