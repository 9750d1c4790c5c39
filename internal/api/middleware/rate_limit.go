package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP max requests per window, refilled evenly.
type RateLimiter struct {
	mu             sync.Mutex
	visitors       map[string]*visitor
	limit          rate.Limit
	burst          int
	window         time.Duration
	trustedProxies int
	lastSweep      time.Time
	now            func() time.Time
}

// NewRateLimiter keys clients by peer address. trustedProxies is the number
// of reverse proxies in front of the server; with n > 0 the client is the
// n-th X-Forwarded-For entry from the right.
func NewRateLimiter(max int, window time.Duration, trustedProxies int) *RateLimiter {
	return &RateLimiter{
		visitors:       make(map[string]*visitor),
		limit:          rate.Every(window / time.Duration(max)),
		burst:          max,
		window:         window,
		trustedProxies: trustedProxies,
		lastSweep:      time.Now(),
		now:            time.Now,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.window {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.window {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware limits requests under /api/.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !l.Allow(clientIP(r, l.trustedProxies)) {
			w.Header().Set("Retry-After", "60")
			respondError(w, "Too many requests from this IP, please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the address added by the outermost trusted proxy, or the
// peer address when no proxy is trusted. Entries left of it are client supplied.
func clientIP(r *http.Request, trustedProxies int) string {
	if trustedProxies > 0 {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			hops := strings.Split(fwd, ",")
			if len(hops) >= trustedProxies {
				if ip := strings.TrimSpace(hops[len(hops)-trustedProxies]); ip != "" {
					return ip
				}
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
