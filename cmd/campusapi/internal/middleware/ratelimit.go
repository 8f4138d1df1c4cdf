package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// RateLimiterConfig bounds requests per client IP.
type RateLimiterConfig struct {
	PerMinute int
	Burst     int
	// MaxClients bounds the number of tracked IPs; the least recently seen
	// client is evicted first.
	MaxClients int
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	every   time.Duration
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter builds a limiter. Non-positive values fall back to 10/min,
// a burst of 5 and 10000 clients.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 10000
	}
	clients, _ := lru.New[string, *rate.Limiter](cfg.MaxClients)
	every := time.Minute / time.Duration(cfg.PerMinute)
	return &RateLimiter{
		every:   every,
		limit:   rate.Every(every),
		burst:   cfg.Burst,
		clients: clients,
	}
}

// Allow reports whether a request from key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.clients.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.clients.Add(key, limiter)
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Clients returns the number of tracked client IPs.
func (rl *RateLimiter) Clients() int {
	return rl.clients.Len()
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
// onLimited, when set, is called for every rejected request.
func (rl *RateLimiter) Middleware(onLimited func(*http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientIP(r)) {
				if onLimited != nil {
					onLimited(r)
				}
				retryAfter := int(math.Ceil(rl.every.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				WriteError(w, http.StatusTooManyRequests, "too many login attempts, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr. It only reflects forwarding headers when
// TrustedRealIP accepted them from a configured proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
