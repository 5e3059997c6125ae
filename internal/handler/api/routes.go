// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/pagescore/internal/middleware"
	"github.com/olegiv/pagescore/internal/model"
)

// Route paths
const (
	RoutePages       = "/pages"
	RoutePagesID     = "/pages/{id}"
	RoutePageComment = "/pages/{id}/comments/{commentID}"
	RouteJob         = "/jobs/{source}/{name}"
)

// Routes returns the router mounted at /api/v1. protect guards every route
// except /status; it is typically APIKeyAuth followed by APIRateLimit.
func (h *Handler) Routes(protect ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.Status)

	r.Group(func(r chi.Router) {
		r.Use(protect...)

		r.Get("/auth", h.AuthInfo)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionPagesRead, model.PermissionPagesWrite))
			r.Get(RoutePages, h.ListPages)
			r.Get(RoutePages+"/roots", h.ListRootPages)
			r.Get(RoutePages+"/news", h.ListNewsPages)
			r.Get(RoutePages+"/by-name/{name}", h.GetPageByName)
			r.Get(RoutePagesID, h.GetPage)
			r.Get(RoutePagesID+"/subpages", h.ListSubpages)
			r.Get(RoutePagesID+"/ancestors", h.ListAncestors)
			r.Get(RoutePagesID+"/siblings", h.ListSiblings)
			r.Get(RoutePagesID+"/comments", h.ListComments)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionPagesWrite))
			r.Post(RoutePages, h.CreatePage)
			r.Post(RoutePages+"/reorder", h.ReorderPages)
			r.Patch(RoutePagesID, h.UpdatePage)
			r.Delete(RoutePagesID, h.DeletePage)
			r.Put(RoutePagesID+"/status", h.SetPageStatus)
			r.Post(RoutePagesID+"/move", h.MovePage)
			r.Post(RoutePagesID+"/comments", h.CreateComment)
			r.Delete(RoutePageComment, h.DeleteComment)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionJobsManage))
			r.Get("/jobs", h.ListJobs)
			r.Post(RouteJob+"/trigger", h.TriggerJob)
			r.Put(RouteJob+"/schedule", h.UpdateJobSchedule)
			r.Delete(RouteJob+"/schedule", h.ResetJobSchedule)
			r.Get("/events", h.ListEvents)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionCacheSweep))
			r.Post("/cache/sweep", h.SweepCache)
		})
	})

	return r
}

func apiKeyFrom(r *http.Request) *model.APIKey {
	return middleware.GetAPIKey(r)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
