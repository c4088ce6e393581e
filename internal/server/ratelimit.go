package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// sweepInterval is how often stale per-IP windows are dropped.
const sweepInterval = time.Minute

// rateLimiter applies a fixed request window per client IP across the
// whole API surface. The per-voucher daily vouch limit is separate and
// enforced by the trust service.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*ipWindow
	rate    int
	window  time.Duration
	done    chan struct{}
}

// ipWindow is one IP's request count within its current window.
type ipWindow struct {
	count   int
	started time.Time
}

// newRateLimiter creates a limiter allowing rate requests per window per
// IP and starts its sweeper. Call stop when the limiter is retired.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		windows: make(map[string]*ipWindow),
		rate:    rate,
		window:  window,
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// allow reports whether the IP may make another request in its window.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.started) > rl.window {
		rl.windows[ip] = &ipWindow{count: 1, started: now}
		return true
	}
	w.count++
	return w.count <= rl.rate
}

// stop ends the sweeper goroutine.
func (rl *rateLimiter) stop() {
	close(rl.done)
}

// sweep periodically drops expired windows so the map does not grow
// with every IP ever seen.
func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, w := range rl.windows {
				if now.Sub(w.started) > rl.window {
					delete(rl.windows, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// getIP extracts the client IP from a request. The first entry of
// X-Forwarded-For wins so proxied deployments limit the real client.
func getIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
