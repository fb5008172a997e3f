package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window and client.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
	// ExemptPaths are never limited. Payment provider callbacks go here so
	// retries are not throttled.
	ExemptPaths []string
}

// window counts requests of one client in the current and previous fixed
// windows; the sliding estimate weights the previous one by its overlap.
type window struct {
	start     time.Time
	current   float64
	previous  float64
	prevStart time.Time
}

type limiter struct {
	max     int
	size    time.Duration
	key     func(*http.Request) string
	exempt  map[string]struct{}
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	l := &limiter{
		max:     cfg.Max,
		size:    cfg.Window,
		key:     cfg.KeyFunc,
		exempt:  make(map[string]struct{}, len(cfg.ExemptPaths)),
		now:     time.Now,
		clients: make(map[string]*window),
	}
	if l.key == nil {
		l.key = clientIP
	}
	for _, p := range cfg.ExemptPaths {
		l.exempt[p] = struct{}{}
	}
	return l
}

// take consumes one request for key if the sliding count allows it.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.clients[key]
	if !found {
		w = &window{start: now}
		l.clients[key] = w
	}

	if now.Sub(w.start) >= l.size {
		w.previous, w.prevStart = w.current, w.start
		w.current = 0
		w.start = now.Truncate(l.size)
		if now.Sub(w.prevStart) >= 2*l.size {
			w.previous = 0
		}
	}

	overlap := max(0, 1-now.Sub(w.start).Seconds()/l.size.Seconds())
	used := w.previous*overlap + w.current
	reset = w.start.Add(l.size)
	if used >= float64(l.max) {
		return 0, reset, false
	}

	w.current++
	return max(0, int(float64(l.max)-used-1)), reset, true
}

// evict drops clients idle for two full windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.clients, key)
		}
	}
}

func (l *limiter) runEviction(ctx context.Context) {
	ticker := time.NewTicker(2 * l.size)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit enforces a per-client sliding window limit. Rejected requests get
// 429 with a JSON error and Retry-After. Every limited response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a goroutine evicting idle clients
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.runEviction(ctx)
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := l.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		now := l.now()
		remaining, reset, ok := l.take(l.key(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			retry := max(0, reset.Sub(now).Seconds())
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry))))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
