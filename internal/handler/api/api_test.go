// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/pagescore/internal/middleware"
	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/scheduler"
	"github.com/olegiv/pagescore/internal/service"
	"github.com/olegiv/pagescore/internal/testutil"
)

// recordingRunner collects every effect handed to it.
type recordingRunner struct {
	mu      sync.Mutex
	effects page.Effects
}

func (r *recordingRunner) Run(effects page.Effects) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effects...)
}

func (r *recordingRunner) sweeps() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, e := range r.effects {
		if s, ok := e.(page.SweepCache); ok {
			ids = append(ids, s.PageID)
		}
	}
	return ids
}

type fakeStaticCache struct {
	removed int
	err     error
	calls   int
}

func (c *fakeStaticCache) SweepNow(context.Context) (int, error) {
	c.calls++
	return c.removed, c.err
}

type apiFixture struct {
	db      *sql.DB
	pages   *page.Service
	runner  *recordingRunner
	cache   *fakeStaticCache
	sched   *scheduler.Scheduler
	events  *service.EventService
	handler *Handler
	perms   []string
	router  http.Handler
}

// newAPIFixture builds the API with an authentication stub that grants the
// fixture's perms to every request.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.DiscardLogger()
	f := &apiFixture{
		db:     db,
		pages:  page.NewService(db, logger, page.Options{}),
		runner: &recordingRunner{},
		cache:  &fakeStaticCache{removed: 7},
		sched:  scheduler.New(db, logger),
		events: service.NewEventService(db, logger),
		perms:  model.AllPermissions(),
	}
	f.handler = NewHandler(Deps{
		Pages:   f.pages,
		Effects: f.runner,
		Events:  f.events,
		Jobs:    f.sched.Registry(),
		Cache:   f.cache,
		Version: "test",
		Logger:  logger,
	})

	stubAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := model.APIKey{ID: 1, Name: "stub", KeyPrefix: "stub", IsActive: true,
				Permissions: model.PermissionsToJSON(f.perms)}
			ctx := context.WithValue(r.Context(), middleware.ContextKeyAPIKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	r := chi.NewRouter()
	r.Mount("/api/v1", f.handler.Routes(stubAuth))
	f.router = r
	return f
}

type apiResult struct {
	Code    int
	Data    json.RawMessage
	Meta    *Meta
	Error   ErrorDetail
	Headers http.Header
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) apiResult {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	res := apiResult{Code: w.Code, Headers: w.Header()}
	if w.Body.Len() > 0 {
		var env struct {
			Data  json.RawMessage `json:"data"`
			Meta  *Meta           `json:"meta"`
			Error ErrorDetail     `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
		res.Data, res.Meta, res.Error = env.Data, env.Meta, env.Error
	}
	return res
}

func decodeData[T any](t *testing.T, res apiResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(res.Data, &v))
	return v
}

func (f *apiFixture) createPage(t *testing.T, req CreatePageRequest) PageResponse {
	t.Helper()
	res := f.do(t, http.MethodPost, "/pages", req)
	require.Equal(t, http.StatusCreated, res.Code, "create %q: %+v", req.Title, res.Error)
	return decodeData[PageResponse](t, res)
}

func TestStatus(t *testing.T) {
	f := newAPIFixture(t)
	res := f.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, res.Code)

	status := decodeData[StatusResponse](t, res)
	assert.Equal(t, "ok", status.Status)
	assert.Len(t, status.Statuses, len(model.StatusLabels))
}

func TestRoutesRequireAPIKey(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	h := NewHandler(Deps{Pages: page.NewService(db, testutil.DiscardLogger(), page.Options{}), Effects: &recordingRunner{}})
	router := h.Routes(middleware.APIKeyAuth(db, testutil.DiscardLogger()))

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPermissions(t *testing.T) {
	f := newAPIFixture(t)
	f.perms = []string{model.PermissionPagesRead}

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/pages", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/pages", CreatePageRequest{Title: "x"}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/jobs", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/cache/sweep", nil).Code)
}

func TestCreatePage(t *testing.T) {
	f := newAPIFixture(t)

	root := f.createPage(t, CreatePageRequest{Title: "Home", Status: "published"})
	assert.Equal(t, "Published", root.Status)
	assert.True(t, root.Published)
	require.NotNil(t, root.Position)
	assert.Equal(t, int64(0), *root.Position)
	assert.Nil(t, root.ParentID)

	child := f.createPage(t, CreatePageRequest{Title: "About Us", ParentID: &root.ID})
	assert.Equal(t, "Draft", child.Status)
	assert.Equal(t, root.ID, *child.ParentID)
	assert.Equal(t, child.Param, formatID(child.ID)+"-about-us")

	assert.Equal(t, []int64{root.ID, child.ID}, f.runner.sweeps())
}

func TestCreatePageValidation(t *testing.T) {
	f := newAPIFixture(t)
	missing := int64(999)

	tests := []struct {
		name      string
		req       CreatePageRequest
		wantCode  int
		wantField string
	}{
		{"missing title", CreatePageRequest{}, http.StatusUnprocessableEntity, "title"},
		{"unknown status", CreatePageRequest{Title: "x", Status: "Archived"}, http.StatusUnprocessableEntity, "status"},
		{"bad unique name", CreatePageRequest{Title: "x", UniqueName: "has space"}, http.StatusUnprocessableEntity, "unique_name"},
		{"negative position", CreatePageRequest{Title: "x", Position: ptr(int64(-1))}, http.StatusUnprocessableEntity, "position"},
		{"missing parent", CreatePageRequest{Title: "x", ParentID: &missing}, http.StatusUnprocessableEntity, "parent_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, http.MethodPost, "/pages", tt.req)
			assert.Equal(t, tt.wantCode, res.Code)
			if tt.wantField != "" {
				assert.Equal(t, "validation_error", res.Error.Code)
				assert.Contains(t, res.Error.Details, tt.wantField)
			}
		})
	}
	assert.Empty(t, f.runner.sweeps(), "failed creates must not request sweeps")
}

func TestCreatePageRejectsUnknownFields(t *testing.T) {
	f := newAPIFixture(t)
	res := f.do(t, http.MethodPost, "/pages", map[string]any{"title": "x", "slug": "x"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestGetPage(t *testing.T) {
	f := newAPIFixture(t)
	p := f.createPage(t, CreatePageRequest{Title: "Contact", UniqueName: "contact"})

	res := f.do(t, http.MethodGet, "/pages/"+formatID(p.ID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Contact", decodeData[PageResponse](t, res).Title)

	res = f.do(t, http.MethodGet, "/pages/by-name/contact", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, p.ID, decodeData[PageResponse](t, res).ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/pages/4242", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/pages/abc", nil).Code)
}

func TestUpdateAndSetStatus(t *testing.T) {
	f := newAPIFixture(t)
	p := f.createPage(t, CreatePageRequest{Title: "Draft"})

	title := "Renamed"
	res := f.do(t, http.MethodPatch, "/pages/"+formatID(p.ID), UpdatePageRequest{Title: &title})
	require.Equal(t, http.StatusOK, res.Code)
	updated := decodeData[PageResponse](t, res)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Draft", updated.Status)

	empty := ""
	res = f.do(t, http.MethodPatch, "/pages/"+formatID(p.ID), UpdatePageRequest{Title: &empty})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = f.do(t, http.MethodPut, "/pages/"+formatID(p.ID)+"/status", SetStatusRequest{Status: "2"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, decodeData[PageResponse](t, res).Published)

	res = f.do(t, http.MethodPut, "/pages/"+formatID(p.ID)+"/status", SetStatusRequest{Status: "Bogus"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestMovePage(t *testing.T) {
	f := newAPIFixture(t)
	a := f.createPage(t, CreatePageRequest{Title: "A", Status: "Published"})
	b := f.createPage(t, CreatePageRequest{Title: "B", Status: "Published"})
	c := f.createPage(t, CreatePageRequest{Title: "C", ParentID: &a.ID, Status: "Published"})

	res := f.do(t, http.MethodPost, "/pages/"+formatID(b.ID)+"/move", MovePageRequest{ParentID: &a.ID, Position: ptr(int64(0))})
	require.Equal(t, http.StatusOK, res.Code)
	moved := decodeData[PageResponse](t, res)
	assert.Equal(t, a.ID, *moved.ParentID)
	assert.Equal(t, int64(0), *moved.Position)

	res = f.do(t, http.MethodGet, "/pages/"+formatID(a.ID)+"/subpages", nil)
	require.Equal(t, http.StatusOK, res.Code)
	subs := decodeData[[]PageResponse](t, res)
	require.Len(t, subs, 2)
	assert.Equal(t, b.ID, subs[0].ID)
	assert.Equal(t, c.ID, subs[1].ID)

	// A page cannot become its own descendant.
	res = f.do(t, http.MethodPost, "/pages/"+formatID(a.ID)+"/move", MovePageRequest{ParentID: &c.ID})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "structural_error", res.Error.Code)
}

func TestReorderPages(t *testing.T) {
	f := newAPIFixture(t)
	a := f.createPage(t, CreatePageRequest{Title: "A", Status: "Published"})
	b := f.createPage(t, CreatePageRequest{Title: "B", Status: "Published"})
	c := f.createPage(t, CreatePageRequest{Title: "C", Status: "Published"})

	res := f.do(t, http.MethodPost, "/pages/reorder", ReorderRequest{IDs: []int64{c.ID, a.ID, b.ID}})
	require.Equal(t, http.StatusNoContent, res.Code)

	res = f.do(t, http.MethodGet, "/pages/roots", nil)
	roots := decodeData[[]PageResponse](t, res)
	require.Len(t, roots, 3)
	assert.Equal(t, []int64{c.ID, a.ID, b.ID}, []int64{roots[0].ID, roots[1].ID, roots[2].ID})

	res = f.do(t, http.MethodPost, "/pages/reorder", ReorderRequest{IDs: []int64{a.ID, a.ID}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestDeletePage(t *testing.T) {
	f := newAPIFixture(t)
	root := f.createPage(t, CreatePageRequest{Title: "Root", Status: "Published"})
	a := f.createPage(t, CreatePageRequest{Title: "A", ParentID: &root.ID, Status: "Published"})
	b := f.createPage(t, CreatePageRequest{Title: "B", ParentID: &root.ID, Status: "Published"})
	f.createPage(t, CreatePageRequest{Title: "A1", ParentID: &a.ID, Status: "Published"})

	res := f.do(t, http.MethodDelete, "/pages/"+formatID(a.ID), nil)
	require.Equal(t, http.StatusOK, res.Code)
	deleted := decodeData[PageResponse](t, res)
	assert.Equal(t, "Deleted", deleted.Status)
	assert.Nil(t, deleted.Position)

	res = f.do(t, http.MethodGet, "/pages/"+formatID(b.ID), nil)
	assert.Equal(t, int64(0), *decodeData[PageResponse](t, res).Position, "list closes the gap")

	res = f.do(t, http.MethodDelete, "/pages/"+formatID(a.ID)+"?hard=true", nil)
	require.Equal(t, http.StatusOK, res.Code)
	destroyed := decodeData[map[string][]int64](t, res)["destroyed"]
	assert.Len(t, destroyed, 2)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/pages/"+formatID(a.ID), nil).Code)
}

func TestListSubpagesOptions(t *testing.T) {
	f := newAPIFixture(t)
	root := f.createPage(t, CreatePageRequest{Title: "Root", Status: "Published"})
	f.createPage(t, CreatePageRequest{Title: "Visible", ParentID: &root.ID, Status: "Published"})
	f.createPage(t, CreatePageRequest{Title: "Draft", ParentID: &root.ID})
	f.createPage(t, CreatePageRequest{Title: "Hidden", ParentID: &root.ID, Status: "Hidden"})

	path := "/pages/" + formatID(root.ID) + "/subpages"
	tests := []struct {
		query string
		want  int64
	}{
		{"", 1},
		{"?drafts=true", 2},
		{"?hidden=true", 2},
		{"?all=true", 3},
	}
	for _, tt := range tests {
		res := f.do(t, http.MethodGet, path+tt.query, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, tt.want, res.Meta.Total, "query %q", tt.query)
	}

	res := f.do(t, http.MethodGet, path+"?published_after=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Error.Details, "published_after")
}

func TestAncestorsAndSiblings(t *testing.T) {
	f := newAPIFixture(t)
	root := f.createPage(t, CreatePageRequest{Title: "Root", Status: "Published"})
	mid := f.createPage(t, CreatePageRequest{Title: "Mid", ParentID: &root.ID, Status: "Published"})
	leaf := f.createPage(t, CreatePageRequest{Title: "Leaf", ParentID: &mid.ID, Status: "Published"})
	f.createPage(t, CreatePageRequest{Title: "Leaf 2", ParentID: &mid.ID, Status: "Published"})

	res := f.do(t, http.MethodGet, "/pages/"+formatID(leaf.ID)+"/ancestors", nil)
	require.Equal(t, http.StatusOK, res.Code)
	ancestors := decodeData[[]PageResponse](t, res)
	require.Len(t, ancestors, 2)
	assert.Equal(t, mid.ID, ancestors[0].ID)
	assert.Equal(t, root.ID, ancestors[1].ID)

	res = f.do(t, http.MethodGet, "/pages/"+formatID(leaf.ID)+"/siblings", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, decodeData[[]PageResponse](t, res))
}

func TestListPagesFilters(t *testing.T) {
	f := newAPIFixture(t)
	root := f.createPage(t, CreatePageRequest{Title: "Root", Status: "Published"})
	f.createPage(t, CreatePageRequest{Title: "Child", ParentID: &root.ID})
	f.createPage(t, CreatePageRequest{Title: "Other root"})

	res := f.do(t, http.MethodGet, "/pages?parent=root", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(2), res.Meta.Total)

	res = f.do(t, http.MethodGet, "/pages?status=draft", nil)
	assert.Equal(t, int64(2), res.Meta.Total)

	res = f.do(t, http.MethodGet, "/pages?status=draft,published&per_page=1", nil)
	assert.Equal(t, int64(3), res.Meta.Total)
	assert.Equal(t, 3, res.Meta.Pages)
	assert.Len(t, decodeData[[]PageResponse](t, res), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/pages?status=nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/pages?parent=-4", nil).Code)
}

func TestComments(t *testing.T) {
	f := newAPIFixture(t)
	p := f.createPage(t, CreatePageRequest{Title: "Post", Status: "Published"})
	base := "/pages/" + formatID(p.ID) + "/comments"

	res := f.do(t, http.MethodPost, base, CreateCommentRequest{Name: "Ann", Email: "ann@example.com", Body: "Nice"})
	require.Equal(t, http.StatusCreated, res.Code)
	comment := decodeData[model.PageComment](t, res)

	res = f.do(t, http.MethodPost, base, CreateCommentRequest{Name: "Bob", Email: "not-an-email", Body: "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Error.Details, "email")

	res = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(1), res.Meta.Total)

	res = f.do(t, http.MethodGet, "/pages/"+formatID(p.ID), nil)
	assert.Equal(t, int64(1), decodeData[PageResponse](t, res).CommentsCount)

	res = f.do(t, http.MethodDelete, base+"/"+formatID(comment.ID), nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = f.do(t, http.MethodDelete, base+"/"+formatID(comment.ID), nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestJobs(t *testing.T) {
	f := newAPIFixture(t)
	var runs int
	require.NoError(t, f.sched.Add(scheduler.Job{
		Source:   scheduler.SourceCore,
		Name:     scheduler.JobAutopublish,
		Schedule: "* * * * *",
		Manual:   true,
		Run: func(context.Context) error {
			runs++
			return nil
		},
	}))
	require.NoError(t, f.sched.Add(scheduler.Job{
		Source:   scheduler.SourceCore,
		Name:     "broken",
		Schedule: "@every 1h",
		Run:      func(context.Context) error { return errors.New("boom") },
	}))

	res := f.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(2), res.Meta.Total)

	job := "/jobs/" + scheduler.SourceCore + "/" + scheduler.JobAutopublish
	res = f.do(t, http.MethodPost, job+"/trigger", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, runs)

	res = f.do(t, http.MethodPost, "/jobs/"+scheduler.SourceCore+"/broken/trigger", nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/jobs/x/y/trigger", nil).Code)

	res = f.do(t, http.MethodPut, job+"/schedule", ScheduleRequest{Schedule: "not a cron"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = f.do(t, http.MethodPut, job+"/schedule", ScheduleRequest{Schedule: "*/5 * * * *"})
	require.Equal(t, http.StatusOK, res.Code)
	info := decodeData[scheduler.JobInfo](t, res)
	assert.True(t, info.IsOverridden)
	assert.Equal(t, "*/5 * * * *", info.Schedule)

	res = f.do(t, http.MethodDelete, job+"/schedule", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.False(t, decodeData[scheduler.JobInfo](t, res).IsOverridden)
}

func TestSweepCache(t *testing.T) {
	f := newAPIFixture(t)

	res := f.do(t, http.MethodPost, "/cache/sweep", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 7, decodeData[map[string]int](t, res)["removed"])
	assert.Equal(t, 1, f.cache.calls)

	events, err := f.events.List(context.Background(), model.EventCategoryCache, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Metadata, `"removed":7`)

	f.cache.err = errors.New("redis down")
	assert.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodPost, "/cache/sweep", nil).Code)
}

func TestListEvents(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	require.NoError(t, f.events.LogPageEvent(ctx, model.EventLevelInfo, "page published", nil))
	require.NoError(t, f.events.LogCacheEvent(ctx, model.EventLevelWarning, "sweep retried", nil))

	res := f.do(t, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, decodeData[[]model.Event](t, res), 2)

	res = f.do(t, http.MethodGet, "/events?category=page", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, decodeData[[]model.Event](t, res), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/events?category=bogus", nil).Code)
}

func TestUnavailableDependencies(t *testing.T) {
	h := NewHandler(Deps{})
	for _, fn := range []http.HandlerFunc{h.ListJobs, h.SweepCache, h.ListEvents} {
		w := httptest.NewRecorder()
		fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	}
}

func TestWriteServiceErrorConflict(t *testing.T) {
	h := NewHandler(Deps{Logger: testutil.DiscardLogger()})
	w := httptest.NewRecorder()
	h.writeServiceError(w, "update page", page.ErrConcurrencyConflict)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, conflictRetryAfter, w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	h.writeServiceError(w, "update page", errors.New("disk I/O error"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func ptr[T any](v T) *T { return &v }
