// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/testutil"
)

type frontendFixture struct {
	pages  *page.Service
	router http.Handler
}

func newFrontendFixture(t *testing.T) *frontendFixture {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	svc := page.NewService(db, testutil.DiscardLogger(), page.Options{})
	h := NewFrontendHandler(svc, newTestRenderer(t), "Test Site", testutil.DiscardLogger())

	r := chi.NewRouter()
	r.Get("/", h.Home)
	r.Get("/p/{param}", h.Page)
	r.NotFound(h.NotFound)
	return &frontendFixture{pages: svc, router: r}
}

func (f *frontendFixture) create(t *testing.T, in page.CreateInput) model.Page {
	t.Helper()
	p, _, err := f.pages.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create(%q): %v", in.Title, err)
	}
	return p
}

func (f *frontendFixture) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status = %d; want %d", got, want)
	}
}

func TestFrontend_Home(t *testing.T) {
	f := newFrontendFixture(t)
	f.create(t, page.CreateInput{Title: "About Us", Status: "Published"})
	f.create(t, page.CreateInput{Title: "Secret Draft"})

	w := f.get("/")
	assertStatus(t, w.Code, http.StatusOK)
	body := w.Body.String()
	if !strings.Contains(body, "About Us") {
		t.Error("home should list published root page")
	}
	if strings.Contains(body, "Secret Draft") {
		t.Error("home must not list drafts")
	}
}

func TestFrontend_Page(t *testing.T) {
	f := newFrontendFixture(t)
	root := f.create(t, page.CreateInput{Title: "Docs", Status: "Published"})
	p := f.create(t, page.CreateInput{Title: "Getting Started", ParentID: &root.ID, Status: "Published", Body: "Read *this* first"})
	f.create(t, page.CreateInput{Title: "Install", ParentID: &p.ID, Status: "Published"})
	f.create(t, page.CreateInput{Title: "Hidden Child", ParentID: &p.ID, Status: "Hidden"})
	next := f.create(t, page.CreateInput{Title: "Configuration", ParentID: &root.ID, Status: "Published"})

	w := f.get("/p/" + p.Param())
	assertStatus(t, w.Code, http.StatusOK)
	body := w.Body.String()

	for _, want := range []string{
		"<em>this</em>",
		"Install",
		`href="/p/` + root.Param() + `"`,
		`rel="next" href="/p/` + next.Param() + `"`,
		`rel="canonical" href="/p/` + p.Param() + `"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page body missing %q", want)
		}
	}
	if strings.Contains(body, "Hidden Child") {
		t.Error("hidden subpage must not be rendered")
	}
	if strings.Contains(body, `rel="prev"`) {
		t.Error("first sibling should have no previous link")
	}
}

func TestFrontend_PageNotVisible(t *testing.T) {
	f := newFrontendFixture(t)
	draft := f.create(t, page.CreateInput{Title: "Draft"})
	deleted := f.create(t, page.CreateInput{Title: "Gone", Status: "Deleted"})
	future := time.Now().Add(24 * time.Hour)
	scheduled := f.create(t, page.CreateInput{Title: "Soon", Status: "Published", PublishedAt: &future})

	for _, p := range []model.Page{draft, deleted, scheduled} {
		t.Run(p.Title, func(t *testing.T) {
			w := f.get("/p/" + p.Param())
			assertStatus(t, w.Code, http.StatusNotFound)
		})
	}
}

func TestFrontend_PageRedirects(t *testing.T) {
	f := newFrontendFixture(t)
	p := f.create(t, page.CreateInput{Title: "Old Name", Status: "Published"})

	t.Run("canonical", func(t *testing.T) {
		w := f.get("/p/" + strconv.FormatInt(p.ID, 10) + "-wrong-slug")
		assertStatus(t, w.Code, http.StatusMovedPermanently)
		if loc := w.Header().Get("Location"); loc != "/p/"+p.Param() {
			t.Errorf("Location = %q; want /p/%s", loc, p.Param())
		}
	})

	t.Run("redirect target", func(t *testing.T) {
		r := f.create(t, page.CreateInput{Title: "Elsewhere", Status: "Published", RedirectTo: "https://example.com/"})
		w := f.get("/p/" + r.Param())
		assertStatus(t, w.Code, http.StatusFound)
		if loc := w.Header().Get("Location"); loc != "https://example.com/" {
			t.Errorf("Location = %q", loc)
		}
	})

	t.Run("bad param", func(t *testing.T) {
		assertStatus(t, f.get("/p/not-a-page").Code, http.StatusNotFound)
		assertStatus(t, f.get("/p/99999-missing").Code, http.StatusNotFound)
	})
}
