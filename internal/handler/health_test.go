// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/pagescore/internal/cache"
	"github.com/olegiv/pagescore/internal/testutil"
)

type downCache struct {
	cache.Cache
}

func (downCache) Ping(context.Context) error { return errors.New("connection refused") }

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return status
}

func TestHealthHandler_Health(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	mem := cache.NewMemoryCache(cache.MemoryOptions{})
	defer func() { _ = mem.Close() }()
	h := NewHealthHandler(db, mem, "1.2.3")

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assertStatus(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}
	status := decodeHealth(t, w)
	if status.Status != "healthy" {
		t.Errorf("status = %q; want healthy", status.Status)
	}
	if status.Version != "1.2.3" {
		t.Errorf("version = %q", status.Version)
	}
	for _, name := range []string{"database", "cache"} {
		if status.Checks[name].Status != "healthy" {
			t.Errorf("check %s = %+v", name, status.Checks[name])
		}
	}
	if status.System != nil {
		t.Error("system info should only be present with verbose=true")
	}
}

func TestHealthHandler_Verbose(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	h := NewHealthHandler(db, nil, "dev")

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil))

	status := decodeHealth(t, w)
	if status.System == nil || status.System.GoVersion == "" {
		t.Errorf("verbose health missing system info: %+v", status.System)
	}
	if _, ok := status.Checks["cache"]; ok {
		t.Error("cache check reported without a cache")
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	h := NewHealthHandler(db, downCache{}, "dev")

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assertStatus(t, w.Code, http.StatusServiceUnavailable)
	status := decodeHealth(t, w)
	if status.Status != "degraded" {
		t.Errorf("status = %q; want degraded", status.Status)
	}
	if status.Checks["cache"].Message != "connection refused" {
		t.Errorf("cache check = %+v", status.Checks["cache"])
	}
}

func TestHealthHandler_Probes(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	h := NewHealthHandler(db, nil, "dev")

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assertStatus(t, w.Code, http.StatusOK)

	w = httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assertStatus(t, w.Code, http.StatusOK)

	_ = db.Close()
	w = httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assertStatus(t, w.Code, http.StatusServiceUnavailable)
}
