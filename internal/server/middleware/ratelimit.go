package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const cleanupInterval = 3 * time.Minute

// ClientRateLimiter throttles requests per client IP so one noisy collector
// cannot starve the ingest endpoints.
type ClientRateLimiter struct {
	mu             sync.Mutex
	clients        map[string]*clientLimiter
	requestsPerSec float64
	burst          int
	done           chan struct{}
	logger         *zap.Logger
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewClientRateLimiter(requestsPerSec float64, burst int, logger *zap.Logger) *ClientRateLimiter {
	rl := &ClientRateLimiter{
		clients:        make(map[string]*clientLimiter),
		requestsPerSec: requestsPerSec,
		burst:          burst,
		done:           make(chan struct{}),
		logger:         logger,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientAddress(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded","kind":"rate_limited"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *ClientRateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	entry, ok := rl.clients[client]
	if !ok {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.requestsPerSec), rl.burst),
		}
		rl.clients[client] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	allowed := entry.limiter.Allow()
	if !allowed {
		rl.logger.Warn("Rate limit exceeded", zap.String("client", client))
	}
	return allowed
}

func (rl *ClientRateLimiter) Stop() {
	close(rl.done)
}

func (rl *ClientRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			threshold := time.Now().Add(-2 * cleanupInterval)
			rl.mu.Lock()
			for client, entry := range rl.clients {
				if entry.lastSeen.Before(threshold) {
					delete(rl.clients, client)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func clientAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
