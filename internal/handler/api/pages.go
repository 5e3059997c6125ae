// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/pagescore/internal/handler"
	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/util"
)

// PageResponse represents a page in API responses.
type PageResponse struct {
	ID            int64     `json:"id"`
	ParentID      *int64    `json:"parent_id"`
	Position      *int64    `json:"position"`
	Title         string    `json:"title"`
	Param         string    `json:"param"`
	UniqueName    string    `json:"unique_name,omitempty"`
	Body          string    `json:"body"`
	Excerpt       string    `json:"excerpt,omitempty"`
	Template      string    `json:"template"`
	Status        string    `json:"status"`
	StatusCode    int       `json:"status_code"`
	Published     bool      `json:"published"`
	PublishedAt   time.Time `json:"published_at"`
	Autopublish   bool      `json:"autopublish"`
	Pinned        bool      `json:"pinned"`
	NewsPage      bool      `json:"news_page"`
	RedirectTo    string    `json:"redirect_to,omitempty"`
	AuthorID      *int64    `json:"author_id,omitempty"`
	CommentsCount int64     `json:"comments_count"`
	LockVersion   int64     `json:"lock_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreatePageRequest represents the request body for creating a page.
type CreatePageRequest struct {
	ParentID    *int64     `json:"parent_id" validate:"omitempty,gt=0"`
	Position    *int64     `json:"position" validate:"omitempty,gte=0"`
	Title       string     `json:"title" validate:"required,max=255"`
	UniqueName  string     `json:"unique_name" validate:"omitempty,max=100"`
	Body        string     `json:"body"`
	Excerpt     string     `json:"excerpt"`
	Template    string     `json:"template" validate:"omitempty,max=64"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at"`
	Pinned      bool       `json:"pinned"`
	NewsPage    bool       `json:"news_page"`
	RedirectTo  string     `json:"redirect_to" validate:"omitempty,max=2048"`
	AuthorID    *int64     `json:"author_id" validate:"omitempty,gt=0"`
}

// UpdatePageRequest represents the request body for updating a page.
type UpdatePageRequest struct {
	Title       *string    `json:"title" validate:"omitnil,min=1,max=255"`
	UniqueName  *string    `json:"unique_name" validate:"omitempty,max=100"`
	Body        *string    `json:"body"`
	Excerpt     *string    `json:"excerpt"`
	Template    *string    `json:"template" validate:"omitempty,max=64"`
	Status      *string    `json:"status"`
	PublishedAt *time.Time `json:"published_at"`
	Pinned      *bool      `json:"pinned"`
	NewsPage    *bool      `json:"news_page"`
	RedirectTo  *string    `json:"redirect_to" validate:"omitempty,max=2048"`
	AuthorID    *int64     `json:"author_id" validate:"omitempty,gt=0"`
}

// SetStatusRequest is the body of PUT /pages/{id}/status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// MovePageRequest is the body of POST /pages/{id}/move. A null parent_id
// moves the page to the root set; a null position appends it.
type MovePageRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Position *int64 `json:"position" validate:"omitempty,gte=0"`
}

// ReorderRequest is the body of POST /pages/reorder.
type ReorderRequest struct {
	ParentID *int64  `json:"parent_id" validate:"omitempty,gt=0"`
	IDs      []int64 `json:"ids" validate:"required,min=1,unique,dive,gt=0"`
}

// pageToResponse converts a model.Page to PageResponse.
func pageToResponse(p model.Page) PageResponse {
	return PageResponse{
		ID:            p.ID,
		ParentID:      util.PtrFromNullInt64(p.ParentID),
		Position:      util.PtrFromNullInt64(p.Position),
		Title:         p.Title,
		Param:         p.Param(),
		UniqueName:    p.UniqueName.String,
		Body:          p.Body,
		Excerpt:       p.Excerpt,
		Template:      p.Template,
		Status:        p.Status.String(),
		StatusCode:    int(p.Status),
		Published:     p.IsPublishedVisible(),
		PublishedAt:   p.PublishedAt,
		Autopublish:   p.Autopublish,
		Pinned:        p.Pinned,
		NewsPage:      p.NewsPage,
		RedirectTo:    p.RedirectTo.String,
		AuthorID:      util.PtrFromNullInt64(p.AuthorID),
		CommentsCount: p.CommentsCount,
		LockVersion:   p.LockVersion,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func pagesToResponse(pages []model.Page) []PageResponse {
	out := make([]PageResponse, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageToResponse(p))
	}
	return out
}

// requirePage loads the page named by the id URL parameter. It writes the
// error response and returns false when the page cannot be loaded.
func (h *Handler) requirePage(w http.ResponseWriter, r *http.Request) (model.Page, bool) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return model.Page{}, false
	}
	p, err := h.pages.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "retrieve page", err)
		return model.Page{}, false
	}
	return p, true
}

// ListPages handles GET /api/v1/pages.
// Query: parent (page ID or "root"), status (comma-separated labels or
// ordinals), page, per_page.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg := handler.ParsePagination(r)
	opts := page.ListOptions{Limit: pg.PerPage, Offset: pg.Offset()}

	if parent := q.Get("parent"); parent != "" {
		opts.HasParent = true
		if parent != "root" {
			id, err := strconv.ParseInt(parent, 10, 64)
			if err != nil || id <= 0 {
				WriteBadRequest(w, "Invalid parent", map[string]string{"parent": "must be a page ID or \"root\""})
				return
			}
			opts.ParentID = &id
		}
	}
	if statuses := q.Get("status"); statuses != "" {
		for _, v := range strings.Split(statuses, ",") {
			st, ok := model.ParseStatus(v)
			if !ok {
				WriteBadRequest(w, "Invalid status", map[string]string{"status": "unknown status " + strconv.Quote(v)})
				return
			}
			opts.Statuses = append(opts.Statuses, st)
		}
	}

	pages, total, err := h.pages.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, "list pages", err)
		return
	}
	WriteSuccess(w, pagesToResponse(pages), &Meta{
		Total:   total,
		Page:    pg.Page,
		PerPage: pg.PerPage,
		Pages:   pg.TotalPages(total),
	})
}

// GetPage handles GET /api/v1/pages/{id}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, pageToResponse(p), nil)
}

// GetPageByName handles GET /api/v1/pages/by-name/{name}.
func (h *Handler) GetPageByName(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.FindByUniqueName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeServiceError(w, "retrieve page", err)
		return
	}
	WriteSuccess(w, pageToResponse(p), nil)
}

// ListNewsPages handles GET /api/v1/pages/news.
func (h *Handler) ListNewsPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pages.NewsPages(r.Context())
	if err != nil {
		h.writeServiceError(w, "list news pages", err)
		return
	}
	WriteSuccess(w, pagesToResponse(pages), &Meta{Total: int64(len(pages))})
}

// CreatePage handles POST /api/v1/pages.
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, effects, err := h.pages.Create(r.Context(), page.CreateInput{
		ParentID:    req.ParentID,
		Position:    req.Position,
		Title:       req.Title,
		UniqueName:  req.UniqueName,
		Body:        req.Body,
		Excerpt:     req.Excerpt,
		Template:    req.Template,
		Status:      req.Status,
		PublishedAt: req.PublishedAt,
		Pinned:      req.Pinned,
		NewsPage:    req.NewsPage,
		RedirectTo:  req.RedirectTo,
		AuthorID:    req.AuthorID,
	})
	if err != nil {
		h.writeServiceError(w, "create page", err)
		return
	}
	h.effects.Run(effects)
	WriteCreated(w, pageToResponse(p))
}

// UpdatePage handles PATCH /api/v1/pages/{id}.
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return
	}
	var req UpdatePageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, effects, err := h.pages.Update(r.Context(), id, page.UpdateInput{
		Title:       req.Title,
		UniqueName:  req.UniqueName,
		Body:        req.Body,
		Excerpt:     req.Excerpt,
		Template:    req.Template,
		Status:      req.Status,
		PublishedAt: req.PublishedAt,
		Pinned:      req.Pinned,
		NewsPage:    req.NewsPage,
		RedirectTo:  req.RedirectTo,
		AuthorID:    req.AuthorID,
	})
	if err != nil {
		h.writeServiceError(w, "update page", err)
		return
	}
	h.effects.Run(effects)
	WriteSuccess(w, pageToResponse(p), nil)
}

// SetPageStatus handles PUT /api/v1/pages/{id}/status.
func (h *Handler) SetPageStatus(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return
	}
	var req SetStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, effects, err := h.pages.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, "set page status", err)
		return
	}
	h.effects.Run(effects)
	WriteSuccess(w, pageToResponse(p), nil)
}

// MovePage handles POST /api/v1/pages/{id}/move.
func (h *Handler) MovePage(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return
	}
	var req MovePageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, effects, err := h.pages.Move(r.Context(), id, page.MoveInput{
		ParentID: req.ParentID,
		Position: req.Position,
	})
	if err != nil {
		h.writeServiceError(w, "move page", err)
		return
	}
	h.effects.Run(effects)
	WriteSuccess(w, pageToResponse(p), nil)
}

// ReorderPages handles POST /api/v1/pages/reorder. The ids must name the
// whole sibling list of parent_id in the new order.
func (h *Handler) ReorderPages(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	effects, err := h.pages.Reorder(r.Context(), req.ParentID, req.IDs)
	if err != nil {
		h.writeServiceError(w, "reorder pages", err)
		return
	}
	h.effects.Run(effects)
	w.WriteHeader(http.StatusNoContent)
}

// DeletePage handles DELETE /api/v1/pages/{id}. By default the page moves
// to the Deleted status; ?hard=true destroys it with all descendants.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid page ID", nil)
		return
	}

	if handler.QueryBool(r, "hard") {
		ids, effects, err := h.pages.Destroy(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, "destroy page", err)
			return
		}
		h.effects.Run(effects)
		WriteSuccess(w, map[string][]int64{"destroyed": ids}, nil)
		return
	}

	p, effects, err := h.pages.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "delete page", err)
		return
	}
	h.effects.Run(effects)
	WriteSuccess(w, pageToResponse(p), nil)
}

// subpageOptions reads listing options from the query string:
// all, drafts, hidden, deleted, autopublish, published_after,
// published_before (RFC 3339), limit and offset.
func subpageOptions(r *http.Request) (page.SubpageOptions, map[string]string) {
	q := r.URL.Query()
	opts := page.SubpageOptions{
		All:         handler.QueryBool(r, "all"),
		Drafts:      handler.QueryBool(r, "drafts"),
		Hidden:      handler.QueryBool(r, "hidden"),
		Deleted:     handler.QueryBool(r, "deleted"),
		Autopublish: handler.QueryBool(r, "autopublish"),
	}
	problems := make(map[string]string)
	for name, dst := range map[string]*time.Time{
		"published_after":  &opts.PublishedAfter,
		"published_before": &opts.PublishedBefore,
	} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				problems[name] = "must be an RFC 3339 timestamp"
				continue
			}
			*dst = t
		}
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				problems[name] = "must be a non-negative integer"
				continue
			}
			*dst = n
		}
	}
	if opts.Limit > handler.MaxPerPage {
		opts.Limit = handler.MaxPerPage
	}
	return opts, problems
}

// ListSubpages handles GET /api/v1/pages/{id}/subpages.
func (h *Handler) ListSubpages(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	opts, problems := subpageOptions(r)
	if len(problems) > 0 {
		WriteBadRequest(w, "Invalid query", problems)
		return
	}

	pages, err := h.pages.Subpages(r.Context(), p, opts)
	if err != nil {
		h.writeServiceError(w, "list subpages", err)
		return
	}
	total, err := h.pages.CountSubpages(r.Context(), p, opts)
	if err != nil {
		h.writeServiceError(w, "count subpages", err)
		return
	}
	WriteSuccess(w, pagesToResponse(pages), &Meta{Total: total})
}

// ListRootPages handles GET /api/v1/pages/roots with the same options as
// ListSubpages.
func (h *Handler) ListRootPages(w http.ResponseWriter, r *http.Request) {
	opts, problems := subpageOptions(r)
	if len(problems) > 0 {
		WriteBadRequest(w, "Invalid query", problems)
		return
	}
	pages, err := h.pages.RootPages(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, "list root pages", err)
		return
	}
	WriteSuccess(w, pagesToResponse(pages), &Meta{Total: int64(len(pages))})
}

// ListAncestors handles GET /api/v1/pages/{id}/ancestors. Ancestors are
// listed nearest first.
func (h *Handler) ListAncestors(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	ancestors, err := h.pages.Ancestors(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, "list ancestors", err)
		return
	}
	WriteSuccess(w, pagesToResponse(ancestors), &Meta{Total: int64(len(ancestors))})
}

// ListSiblings handles GET /api/v1/pages/{id}/siblings.
func (h *Handler) ListSiblings(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	opts, problems := subpageOptions(r)
	if len(problems) > 0 {
		WriteBadRequest(w, "Invalid query", problems)
		return
	}
	siblings, err := h.pages.Siblings(r.Context(), p, opts)
	if err != nil {
		h.writeServiceError(w, "list siblings", err)
		return
	}
	WriteSuccess(w, pagesToResponse(siblings), &Meta{Total: int64(len(siblings))})
}
