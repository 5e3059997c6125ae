// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package staticcache

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/pagescore/internal/cache"
	"github.com/olegiv/pagescore/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *cache.MemoryCache) {
	t.Helper()
	c := cache.NewMemoryCache(cache.MemoryOptions{})
	t.Cleanup(func() { _ = c.Close() })
	return NewHandler(c, 0, testutil.DiscardLogger(), nil), c
}

func TestKey(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"/", "/"},
		{"/p/3-about", "/p/3-about"},
		{"/p/3-about?page=2", "/p/3-about?page=2"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.url, nil)
		assert.Equal(t, tt.want, Key(r), tt.url)
	}
}

func TestHandler_CacheAndLookup(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()

	_, ok := h.Lookup(ctx, "/about")
	assert.False(t, ok)

	require.NoError(t, h.CachePage(ctx, "/about", Entry{Status: 200, ContentType: "text/html", Body: []byte("<p>about</p>")}))

	e, ok := h.Lookup(ctx, "/about")
	require.True(t, ok)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, "text/html", e.ContentType)
	assert.Equal(t, "<p>about</p>", string(e.Body))
	assert.False(t, e.CachedAt.IsZero())
}

func TestHandler_SweepKeepsPermanentEntries(t *testing.T) {
	h, c := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CachePage(ctx, "/a", Entry{Status: 200, Body: []byte("a")}))
	require.NoError(t, h.CachePage(ctx, "/b", Entry{Status: 200, Body: []byte("b")}))
	require.NoError(t, h.CachePagePermanently(ctx, "/robots.txt", Entry{Status: 200, Body: []byte("robots")}))

	n, err := h.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	_, ok := h.Lookup(ctx, "/a")
	assert.False(t, ok)
	e, ok := h.Lookup(ctx, "/robots.txt")
	require.True(t, ok)
	assert.Equal(t, "robots", string(e.Body))

	n, err = h.SweepNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandler_PermanentWinsOverSweepable(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CachePage(ctx, "/x", Entry{Status: 200, Body: []byte("sweepable")}))
	require.NoError(t, h.CachePagePermanently(ctx, "/x", Entry{Status: 200, Body: []byte("permanent")}))

	e, ok := h.Lookup(ctx, "/x")
	require.True(t, ok)
	assert.Equal(t, "permanent", string(e.Body))
}

func TestHandler_LookupDropsUnreadableEntries(t *testing.T) {
	h, c := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sweepablePrefix+"/broken", []byte("not json"), 0))

	_, ok := h.Lookup(ctx, "/broken")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestHandler_Purge(t *testing.T) {
	h, c := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CachePage(ctx, "/a", Entry{Status: 200}))
	require.NoError(t, h.CachePagePermanently(ctx, "/b", Entry{Status: 200}))
	require.NoError(t, h.Purge(ctx))
	assert.Zero(t, c.Len())
}
