package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agencia-vs/acreditaciones/internal/api/response"
)

// visitorTTL is how long an idle client keeps its limiter.
const visitorTTL = 10 * time.Minute

// visitor pairs a client's limiter with a logging limiter so a flood is
// logged at its start and then periodically.
type visitor struct {
	limiter   *rate.Limiter
	sometimes *rate.Sometimes
	lastSeen  time.Time
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter allows rps requests per second per client with the given
// burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (l *RateLimiter) get(key string) *visitor {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > visitorTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{
			limiter:   rate.NewLimiter(l.limit, l.burst),
			sometimes: &rate.Sometimes{First: 5, Interval: time.Minute},
		}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v
}

// Allow reports whether the client identified by key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	v := l.get(key)
	if v.limiter.AllowN(l.now(), 1) {
		return true
	}
	v.sometimes.Do(func() {
		slog.Warn("client rate limited", "client", key)
	})
	return false
}

// PublicRateLimit is middleware that rejects clients over their request rate
// with 429.
func PublicRateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again shortly", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the request's remote address. chi's
// RealIP middleware rewrites it from proxy headers upstream.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
