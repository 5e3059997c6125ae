// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/pagescore/internal/handler"
	"github.com/olegiv/pagescore/internal/model"
)

// SweepCache handles POST /api/v1/cache/sweep. The sweep runs synchronously
// rather than through the debouncer so the caller sees its result.
func (h *Handler) SweepCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		WriteUnavailable(w, "unavailable", "Static cache is disabled")
		return
	}
	n, err := h.cache.SweepNow(r.Context())
	if err != nil {
		h.logger.Error("manual cache sweep failed", "error", err)
		WriteInternalError(w, "Failed to sweep cache")
		return
	}
	h.metrics.CacheSweep("manual")

	meta := map[string]any{"removed": n}
	if key := apiKeyFrom(r); key != nil {
		meta["api_key"] = key.KeyPrefix
	}
	if h.events != nil {
		_ = h.events.LogCacheEvent(r.Context(), model.EventLevelInfo, "Static cache swept manually", meta)
	}
	WriteSuccess(w, map[string]int{"removed": n}, nil)
}

// ListEvents handles GET /api/v1/events. Query: category, page, per_page.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		WriteUnavailable(w, "unavailable", "Event log is disabled")
		return
	}
	pg := handler.ParsePagination(r)
	category := r.URL.Query().Get("category")
	if category != "" && !model.IsValidEventCategory(category) {
		WriteBadRequest(w, "Invalid category", map[string]string{"category": "unknown category"})
		return
	}

	events, err := h.events.List(r.Context(), category, int64(pg.PerPage), int64(pg.Offset()))
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		WriteInternalError(w, "Failed to list events")
		return
	}
	WriteSuccess(w, events, &Meta{Total: int64(len(events)), Page: pg.Page, PerPage: pg.PerPage})
}
