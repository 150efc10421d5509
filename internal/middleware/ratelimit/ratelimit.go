// Package ratelimit applies a fixed one-minute request window per key. The
// key is the authenticated user when there is one, else the client IP.
package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	requestsPerMinute int
	cleanupInterval   time.Duration

	hits atomic.Int64
}

type clientInfo struct {
	windowStart time.Time
	lastRequest time.Time
	requests    int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64 `json:"total_hits"`
	ClientCount int64 `json:"client_count"`
}

// NewLimiter starts a limiter and its cleanup goroutine. Call Stop to end it.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	rl := &Limiter{
		clients:           make(map[string]*clientInfo),
		stopCleanup:       make(chan struct{}),
		now:               time.Now,
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// WithClock replaces the clock used for windows.
func (rl *Limiter) WithClock(now func() time.Time) *Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
	return rl
}

// Allow records a request for key and reports whether it fits the window.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[key]
	if !exists || now.Sub(client.windowStart) >= window {
		rl.clients[key] = &clientInfo{windowStart: now, lastRequest: now, requests: 1}
		return true
	}

	client.requests++
	client.lastRequest = now
	if client.requests > rl.requestsPerMinute {
		rl.hits.Add(1)
		return false
	}
	return true
}

// RetryAfter returns the seconds left in key's current window.
func (rl *Limiter) RetryAfter(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.clients[key]
	if !ok {
		return 0
	}
	left := window - rl.now().Sub(client.windowStart)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops keys idle for ten windows.
func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * window)
	removed := 0
	for key, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.hits.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware limits requests by the key returned from keyOf. onLimit writes
// the rejection; when nil a plain 429 is sent.
func (rl *Limiter) Middleware(keyOf func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request, int)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if !rl.Allow(key) {
				retry := rl.RetryAfter(key)
				if onLimit != nil {
					onLimit(w, r, retry)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
