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

// RateLimitConfig configures the per-client rate limit.
type RateLimitConfig struct {
	// Max requests per Window. Zero or negative disables limiting.
	Max int
	// Window length.
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window counts requests in the current fixed window and remembers the
// count of the previous one. The effective count slides linearly between
// them.
type window struct {
	start time.Time
	curr  int
	prev  int
}

type limiter struct {
	max    int
	length time.Duration
	key    func(*http.Request) string
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	l := &limiter{
		max:     cfg.Max,
		length:  cfg.Window,
		key:     cfg.KeyFunc,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	if l.key == nil {
		l.key = ClientIP
	}
	return l
}

// take records a request for key. It reports the remaining budget, when the
// current window ends and whether the request is allowed.
func (l *limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	start := now.Truncate(l.length)
	switch {
	case w == nil:
		w = &window{start: start}
		l.windows[key] = w
	case start.Sub(w.start) >= 2*l.length:
		*w = window{start: start}
	case !start.Equal(w.start):
		*w = window{start: start, prev: w.curr}
	}

	reset = w.start.Add(l.length)
	weight := 1 - float64(now.Sub(w.start))/float64(l.length)
	used := float64(w.prev)*weight + float64(w.curr)
	if used >= float64(l.max) {
		return 0, reset, false
	}

	w.curr++
	return max(0, l.max-int(math.Ceil(used+1))), reset, true
}

// evict drops windows that can no longer affect a decision.
func (l *limiter) evict() {
	cutoff := l.now().Add(-2 * l.length)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
		}
	}
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.length)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

// RateLimit limits requests per client with a sliding window. Responses
// carry X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset;
// rejected requests get 429 with Retry-After. Stale clients are evicted in
// the background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(cfg)
	go l.evictLoop(ctx)
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, reset, ok := l.take(l.key(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			retry := int(math.Ceil(reset.Sub(l.now()).Seconds()))
			h.Set("Retry-After", strconv.Itoa(max(retry, 0)))
			writeError(w, http.StatusTooManyRequests, "rate", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the host part of RemoteAddr.
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
