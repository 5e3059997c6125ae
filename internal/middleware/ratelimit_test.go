// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olegiv/pagescore/internal/model"
)

func TestAPIRateLimit(t *testing.T) {
	handler := APIRateLimit(1, 2)(simpleOKHandler)
	key := model.APIKey{ID: 7}

	for i := range 2 {
		if w := executeWithAPIKey(handler, key); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	w := executeWithAPIKey(handler, key)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if apiErr := decodeAPIError(t, w); apiErr.Error.Code != "rate_limit_exceeded" {
		t.Errorf("code = %q", apiErr.Error.Code)
	}

	// Other keys have their own budget.
	if w := executeWithAPIKey(handler, model.APIKey{ID: 8}); w.Code != http.StatusOK {
		t.Errorf("other key status = %d, want 200", w.Code)
	}
	// Requests without a key are not limited here.
	for range 5 {
		if w := executeAuthRequest(handler, ""); w.Code != http.StatusOK {
			t.Fatalf("anonymous status = %d, want 200", w.Code)
		}
	}
}

func TestGlobalRateLimiter(t *testing.T) {
	handler := NewGlobalRateLimiter(1, 1).Middleware()(simpleOKHandler)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first status = %d", code)
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("same IP, other port: status = %d, want 429", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", code)
	}
}

func TestLimiterCacheResetsWhenFull(t *testing.T) {
	lc := newLimiterCache[int](1, 1, 2)
	a := lc.get(1)
	lc.get(2)
	lc.get(3) // nothing idle, resets
	if got := lc.get(1); got == a {
		t.Error("limiter survived reset")
	}
}

func TestLimiterCacheDropsIdleEntriesFirst(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lc := newLimiterCache[int](1, 1, 2)
	lc.now = func() time.Time { return now }

	idle := lc.get(1)
	now = now.Add(limiterIdleTTL + time.Second)
	busy := lc.get(2)
	lc.get(3) // evicts 1 only

	if got := lc.get(2); got != busy {
		t.Error("active limiter was evicted")
	}
	if got := lc.get(1); got == idle {
		t.Error("idle limiter survived eviction")
	}
}
