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

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max requests per Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window holds the counts of the current and the previous fixed window.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	max    int
	period time.Duration
	key    func(*http.Request) string
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	key := cfg.KeyFunc
	if key == nil {
		key = ClientIP
	}
	return &limiter{
		max:     cfg.Max,
		period:  cfg.Window,
		key:     key,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

// take counts one request for key. The previous window is weighted by the
// share of it that still overlaps the sliding window.
func (l *limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.clients[key]
	if !found {
		w = &window{start: now.Truncate(l.period)}
		l.clients[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.period {
		if elapsed >= 2*l.period {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.start = now.Truncate(l.period)
	}

	weight := max(0, 1-now.Sub(w.start).Seconds()/l.period.Seconds())
	used := w.prev*weight + w.curr
	reset = w.start.Add(l.period)
	if used >= float64(l.max) {
		return 0, reset, false
	}
	w.curr++
	return max(0, int(float64(l.max)-used-1)), reset, true
}

func (l *limiter) evict() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.period {
			delete(l.clients, key)
		}
	}
}

// RateLimit limits requests per client. Rejected requests get 429 with a
// Retry-After header; every response carries X-RateLimit-* headers.
// Stale clients are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.evict()
			}
		}
	}()
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, reset, ok := l.take(l.key(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := max(0, reset.Sub(l.now()))
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address host.
func ClientIP(r *http.Request) string {
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
