// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 10000
	limiterIdleTTL   = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterCache hands out one token bucket per key. When it is full, idle
// buckets are dropped first and, failing that, the whole cache is reset.
type limiterCache[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*limiterEntry
	limit   rate.Limit
	burst   int
	maxSize int
	now     func() time.Time
}

func newLimiterCache[K comparable](rps float64, burst, maxSize int) *limiterCache[K] {
	return &limiterCache[K]{
		entries: make(map[K]*limiterEntry),
		limit:   rate.Limit(rps),
		burst:   burst,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := lc.now()
	if e, ok := lc.entries[key]; ok {
		e.lastSeen = now
		return e.limiter
	}

	if lc.maxSize > 0 && len(lc.entries) >= lc.maxSize {
		for k, e := range lc.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(lc.entries, k)
			}
		}
		if len(lc.entries) >= lc.maxSize {
			clear(lc.entries)
		}
	}

	e := &limiterEntry{limiter: rate.NewLimiter(lc.limit, lc.burst), lastSeen: now}
	lc.entries[key] = e
	return e.limiter
}

func (lc *limiterCache[K]) allow(key K) bool {
	return lc.get(key).Allow()
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Please slow down.", nil)
}

// APIRateLimit limits requests per authenticated API key to rps with the
// given burst. Requests without a key pass through.
func APIRateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	buckets := newLimiterCache[int64](rps, burst, limiterCacheSize)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := GetAPIKey(r); key != nil && !buckets.allow(key.ID) {
				writeRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GlobalRateLimiter limits requests per client IP.
type GlobalRateLimiter struct {
	buckets *limiterCache[string]
}

// NewGlobalRateLimiter creates a per-IP limiter.
func NewGlobalRateLimiter(rps float64, burst int) *GlobalRateLimiter {
	return &GlobalRateLimiter{buckets: newLimiterCache[string](rps, burst, limiterCacheSize)}
}

// Middleware returns the limiting middleware.
func (rl *GlobalRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.buckets.allow(clientIP(r)) {
				writeRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the host part of RemoteAddr, already rewritten by chi's
// RealIP when that middleware is installed.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
