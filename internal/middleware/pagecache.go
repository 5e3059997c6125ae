// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/olegiv/pagescore/internal/staticcache"
)

// ContextKeyPageCache is the context key of the per-request cache policy.
const ContextKeyPageCache ContextKey = "page_cache"

type cachePolicy struct {
	mu        sync.Mutex
	disabled  bool
	permanent bool
}

// DisableStaticCache keeps the current response out of the static cache.
func DisableStaticCache(r *http.Request) {
	if p, ok := r.Context().Value(ContextKeyPageCache).(*cachePolicy); ok {
		p.mu.Lock()
		p.disabled = true
		p.mu.Unlock()
	}
}

// CachePermanently stores the current response so that sweeps keep it.
func CachePermanently(r *http.Request) {
	if p, ok := r.Context().Value(ContextKeyPageCache).(*cachePolicy); ok {
		p.mu.Lock()
		p.permanent = true
		p.mu.Unlock()
	}
}

// capturedResponse is a buffered response shared between coalesced requests.
type capturedResponse struct {
	status    int
	header    http.Header
	body      []byte
	cacheable bool
	permanent bool
}

// responseRecorder buffers a response in memory.
type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: make(http.Header)}
}

func (rr *responseRecorder) Header() http.Header { return rr.header }

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	return rr.body.Write(b)
}

// PageCache serves GET and HEAD requests from the static cache and stores
// successful responses in it. Concurrent misses for one key render once.
func PageCache(h *staticcache.Handler, logger *slog.Logger) func(http.Handler) http.Handler {
	var group singleflight.Group

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := staticcache.Key(r)
			if e, ok := h.Lookup(r.Context(), key); ok {
				w.Header().Set("Content-Type", e.ContentType)
				w.Header().Set("Content-Length", strconv.Itoa(len(e.Body)))
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(e.Status)
				if r.Method == http.MethodGet {
					_, _ = w.Write(e.Body)
				}
				return
			}

			v, _, _ := group.Do(key, func() (any, error) {
				return render(next, r, h, key, logger), nil
			})
			resp := v.(*capturedResponse)

			for k, vals := range resp.header {
				w.Header()[k] = append([]string(nil), vals...)
			}
			w.Header().Set("X-Cache", "MISS")
			w.WriteHeader(resp.status)
			if r.Method == http.MethodGet {
				_, _ = w.Write(resp.body)
			}
		})
	}
}

// render runs next into a buffer and caches the result when allowed: the
// status is 200 and the handler did not disable caching for the request.
func render(next http.Handler, r *http.Request, h *staticcache.Handler, key string, logger *slog.Logger) *capturedResponse {
	// The rendering is shared by every coalesced request, so it must not
	// end when the first caller goes away.
	base := context.WithoutCancel(r.Context())
	policy := &cachePolicy{}
	ctx := context.WithValue(base, ContextKeyPageCache, policy)
	// HEAD shares the rendering with GET, so always render a full body.
	req := r.WithContext(ctx)
	if r.Method == http.MethodHead {
		req.Method = http.MethodGet
	}

	rec := newResponseRecorder()
	next.ServeHTTP(rec, req)
	if rec.status == 0 {
		rec.status = http.StatusOK
	}

	policy.mu.Lock()
	resp := &capturedResponse{
		status:    rec.status,
		header:    rec.header,
		body:      rec.body.Bytes(),
		cacheable: rec.status == http.StatusOK && !policy.disabled,
		permanent: policy.permanent,
	}
	policy.mu.Unlock()

	if !resp.cacheable {
		return resp
	}

	entry := staticcache.Entry{Status: resp.status, ContentType: rec.header.Get("Content-Type"), Body: resp.body}
	var err error
	if resp.permanent {
		err = h.CachePagePermanently(base, key, entry)
	} else {
		err = h.CachePage(base, key, entry)
	}
	if err != nil {
		logger.Warn("failed to store page in static cache", "key", key, "error", err)
	}
	return resp
}
