// Package ratelimit throttles state-changing requests per client with a
// token bucket.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"kindlecrm/internal/cache"
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// Burst defaults to RequestsPerMinute/6, at least 1.
	Burst int
	// MaxClients bounds the number of tracked clients; the least recently
	// seen ones are forgotten first.
	MaxClients int
	// IdleTimeout forgets a client after this much inactivity.
	IdleTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 30,
		MaxClients:        10000,
		IdleTimeout:       10 * time.Minute,
	}
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	clients *cache.LRUCache[*rate.Limiter]
	limit   rate.Limit
	burst   int
	rpm     int
	hits    atomic.Int64
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}
	if config.Burst <= 0 {
		config.Burst = max(1, config.RequestsPerMinute/6)
	}
	return &Limiter{
		clients: cache.NewLRUCache[*rate.Limiter](config.MaxClients, config.IdleTimeout, cache.WithSlidingExpiry()),
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60),
		burst:   config.Burst,
		rpm:     config.RequestsPerMinute,
	}
}

// Allow reports whether the client may make a request now.
func (rl *Limiter) Allow(client string) bool {
	if rl.limiter(client).Allow() {
		return true
	}
	rl.hits.Add(1)
	return false
}

func (rl *Limiter) limiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.clients.Get(client); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.Set(client, l)
	return l
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	return rl.clients.Size()
}

// Hits returns how many requests were rejected so far.
func (rl *Limiter) Hits() int64 {
	return rl.hits.Load()
}

// Cleaner exposes the client table to a cache.Manager.
func (rl *Limiter) Cleaner() cache.Cleaner {
	return rl.clients
}

// Middleware limits POST, PUT, PATCH and DELETE requests. Safe methods pass
// through untouched. onLimit, when set, renders the rejection.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, 60/rl.rpm))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || rl.Allow(extractIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter)
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
