// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func requestWithParam(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIDParam(requestWithParam("id", tt.value))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIDParam(%q) error = %v; wantErr %v", tt.value, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseIDParam(%q) = %d; want %d", tt.value, got, tt.want)
		}
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
		wantOffset  int
	}{
		{"", 1, DefaultPerPage, 0},
		{"page=3&per_page=10", 3, 10, 20},
		{"page=0&per_page=-1", 1, DefaultPerPage, 0},
		{"per_page=5000", 1, MaxPerPage, 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		p := ParsePagination(r)
		if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage || p.Offset() != tt.wantOffset {
			t.Errorf("ParsePagination(%q) = %+v offset %d", tt.query, p, p.Offset())
		}
	}

	p := Pagination{Page: 1, PerPage: 10}
	if got := p.TotalPages(21); got != 3 {
		t.Errorf("TotalPages(21) = %d; want 3", got)
	}
	if got := p.TotalPages(0); got != 0 {
		t.Errorf("TotalPages(0) = %d; want 0", got)
	}
}

func TestQueryBool(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?hard=true&drafts=0&x=maybe", nil)
	if !QueryBool(r, "hard") {
		t.Error("hard should be true")
	}
	for _, name := range []string{"drafts", "x", "missing"} {
		if QueryBool(r, name) {
			t.Errorf("%s should be false", name)
		}
	}
}
