// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the public HTTP handlers of the site.
package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
)

// excerptLength is the length of listing excerpts in characters.
const excerptLength = 200

// PageView represents a page with computed fields for template rendering.
type PageView struct {
	ID                   int64
	Title                string
	URL                  string
	Excerpt              string
	Body                 template.HTML
	Pinned               bool
	PublishedAt          time.Time
	PublishedAtFormatted string
}

// BaseTemplateData holds the fields every template uses.
type BaseTemplateData struct {
	SiteName    string
	Title       string
	Description string
	Canonical   string
	BodyClass   string
}

// HomeData is the data of the front page.
type HomeData struct {
	BaseTemplateData
	Pages []PageView
}

// PageData is the data of a single page.
type PageData struct {
	BaseTemplateData
	Page        PageView
	Breadcrumbs []PageView
	Subpages    []PageView
	Previous    *PageView
	Next        *PageView
}

// FrontendHandler handles public frontend routes.
type FrontendHandler struct {
	pages    *page.Service
	renderer *Renderer
	siteName string
	logger   *slog.Logger
}

// NewFrontendHandler creates a new FrontendHandler.
func NewFrontendHandler(pages *page.Service, renderer *Renderer, siteName string, logger *slog.Logger) *FrontendHandler {
	return &FrontendHandler{
		pages:    pages,
		renderer: renderer,
		siteName: siteName,
		logger:   logger,
	}
}

// PageURL returns the public URL of p.
func PageURL(p model.Page) string {
	return "/p/" + p.Param()
}

// Home lists the visible root pages.
func (h *FrontendHandler) Home(w http.ResponseWriter, r *http.Request) {
	roots, err := h.pages.RootPages(r.Context(), page.SubpageOptions{})
	if err != nil {
		h.logger.Error("failed to list root pages", "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}

	data := HomeData{
		BaseTemplateData: h.base("", ""),
		Pages:            h.listViews(roots),
	}
	data.BodyClass = "home"
	h.render(w, http.StatusOK, "home", data)
}

// Page shows a published page with its visible subpages.
func (h *FrontendHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	param := chi.URLParam(r, "param")

	id, err := model.ParsePageParam(param)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	p, err := h.pages.Get(ctx, id)
	if err != nil {
		if errors.Is(err, page.ErrNotFound) {
			h.NotFound(w, r)
			return
		}
		h.logger.Error("failed to get page", "page_id", id, "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}
	if !p.IsPublishedVisible() {
		h.NotFound(w, r)
		return
	}
	if p.Redirects() {
		http.Redirect(w, r, p.RedirectTo.String, http.StatusFound)
		return
	}
	if param != p.Param() {
		http.Redirect(w, r, PageURL(p), http.StatusMovedPermanently)
		return
	}

	data, err := h.pageData(ctx, p)
	if err != nil {
		h.logger.Error("failed to build page", "page_id", p.ID, "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}
	h.render(w, http.StatusOK, "page", data)
}

func (h *FrontendHandler) pageData(ctx context.Context, p model.Page) (PageData, error) {
	body, err := h.renderer.Markdown(p.Body)
	if err != nil {
		return PageData{}, err
	}
	view := h.pageView(p)
	view.Body = body

	subpages, err := h.pages.Subpages(ctx, p, page.SubpageOptions{})
	if err != nil {
		return PageData{}, err
	}
	path, err := h.pages.Breadcrumbs(ctx, p)
	if err != nil {
		return PageData{}, err
	}
	// The last crumb is p itself, already shown as the heading.
	crumbs := h.listViews(path[:len(path)-1])

	data := PageData{
		BaseTemplateData: h.base(p.Title, view.Excerpt),
		Page:             view,
		Breadcrumbs:      crumbs,
		Subpages:         h.listViews(subpages),
	}
	data.Canonical = PageURL(p)
	data.BodyClass = "page template-" + p.Template

	if prev, ok, err := h.pages.PreviousSibling(ctx, p, page.SubpageOptions{}); err != nil {
		return PageData{}, err
	} else if ok {
		v := h.pageView(prev)
		data.Previous = &v
	}
	if next, ok, err := h.pages.NextSibling(ctx, p, page.SubpageOptions{}); err != nil {
		return PageData{}, err
	} else if ok {
		v := h.pageView(next)
		data.Next = &v
	}
	return data, nil
}

// NotFound renders the 404 page.
func (h *FrontendHandler) NotFound(w http.ResponseWriter, _ *http.Request) {
	data := h.base("Page not found", "")
	data.BodyClass = "error-404"
	h.render(w, http.StatusNotFound, "404", struct{ BaseTemplateData }{data})
}

func (h *FrontendHandler) base(title, description string) BaseTemplateData {
	return BaseTemplateData{SiteName: h.siteName, Title: title, Description: description}
}

func (h *FrontendHandler) pageView(p model.Page) PageView {
	return PageView{
		ID:                   p.ID,
		Title:                p.Title,
		URL:                  PageURL(p),
		Excerpt:              h.excerpt(p),
		Pinned:               p.Pinned,
		PublishedAt:          p.PublishedAt,
		PublishedAtFormatted: p.PublishedAt.Format("Jan 2, 2006"),
	}
}

func (h *FrontendHandler) excerpt(p model.Page) string {
	if p.Excerpt != "" {
		return h.renderer.Excerpt(p.Excerpt, excerptLength)
	}
	return h.renderer.Excerpt(p.Body, excerptLength)
}

func (h *FrontendHandler) listViews(pages []model.Page) []PageView {
	views := make([]PageView, 0, len(pages))
	for _, p := range pages {
		views = append(views, h.pageView(p))
	}
	return views
}

// render renders to a buffer first so template errors never produce a
// half-written page.
func (h *FrontendHandler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, name, data); err != nil {
		h.logger.Error("failed to render template", "template", name, "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *FrontendHandler) renderError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
