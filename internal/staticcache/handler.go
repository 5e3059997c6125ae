// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package staticcache stores rendered public pages and sweeps them when
// page content changes.
package staticcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/pagescore/internal/cache"
	"github.com/olegiv/pagescore/internal/metrics"
)

// Key prefixes. Sweeps remove sweepable entries only.
const (
	sweepablePrefix = "static:"
	permanentPrefix = "permanent:"
)

// DefaultTTL bounds how long a sweepable entry may be served if no sweep
// arrives.
const DefaultTTL = 24 * time.Hour

// Entry is a cached response.
type Entry struct {
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	CachedAt    time.Time `json:"cached_at"`
}

// Handler reads and writes cached pages.
type Handler struct {
	cache   cache.Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler creates a handler on top of c. A zero ttl uses DefaultTTL.
func NewHandler(c cache.Cache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Handler{cache: c, ttl: ttl, logger: logger, metrics: m}
}

// Key returns the cache key of a request: its path and raw query.
func Key(r *http.Request) string {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	return key
}

// Lookup returns the cached response for key. Permanent entries take
// precedence over sweepable ones.
func (h *Handler) Lookup(ctx context.Context, key string) (Entry, bool) {
	for _, prefix := range []string{permanentPrefix, sweepablePrefix} {
		raw, err := h.cache.Get(ctx, prefix+key)
		if err != nil {
			if !errors.Is(err, cache.ErrCacheMiss) {
				h.logger.Warn("static cache lookup failed", "key", key, "error", err)
			}
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			h.logger.Warn("dropping unreadable static cache entry", "key", key, "error", err)
			_ = h.cache.Delete(ctx, prefix+key)
			continue
		}
		h.metrics.CacheLookup(true)
		return e, true
	}
	h.metrics.CacheLookup(false)
	return Entry{}, false
}

func (h *Handler) store(ctx context.Context, fullKey string, e Entry, ttl time.Duration) error {
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding static cache entry: %w", err)
	}
	if err := h.cache.Set(ctx, fullKey, raw, ttl); err != nil {
		return fmt.Errorf("storing static cache entry: %w", err)
	}
	return nil
}

// CachePage stores a response that the next sweep removes.
func (h *Handler) CachePage(ctx context.Context, key string, e Entry) error {
	return h.store(ctx, sweepablePrefix+key, e, h.ttl)
}

// CachePagePermanently stores a response that survives sweeps.
func (h *Handler) CachePagePermanently(ctx context.Context, key string, e Entry) error {
	return h.store(ctx, permanentPrefix+key, e, -1)
}

// SweepNow removes every sweepable entry and returns how many were removed.
func (h *Handler) SweepNow(ctx context.Context) (int, error) {
	n, err := h.cache.DeleteByPrefix(ctx, sweepablePrefix)
	if err != nil {
		return n, fmt.Errorf("sweeping static cache: %w", err)
	}
	return n, nil
}

// Purge removes all entries, permanent ones included.
func (h *Handler) Purge(ctx context.Context) error {
	return h.cache.Clear(ctx)
}
