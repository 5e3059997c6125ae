// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"testing"
	"time"
)

func TestStatusLabels(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusDraft, "Draft"},
		{StatusReviewed, "Reviewed"},
		{StatusPublished, "Published"},
		{StatusHidden, "Hidden"},
		{StatusDeleted, "Deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
			if int(tt.status) != indexOf(tt.want) {
				t.Errorf("ordinal of %q = %d, want %d", tt.want, tt.status, indexOf(tt.want))
			}
		})
	}
}

func indexOf(label string) int {
	for i, l := range StatusLabels {
		if l == label {
			return i
		}
	}
	return -1
}

func TestStatusLabelOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("StatusLabel() with out-of-range status did not panic")
		}
	}()
	p := &Page{Status: Status(7)}
	_ = p.StatusLabel()
}

func TestStatusString(t *testing.T) {
	if got := StatusHidden.String(); got != "Hidden" {
		t.Errorf("String() = %q, want %q", got, "Hidden")
	}
	if got := Status(-1).String(); got != "Status(-1)" {
		t.Errorf("String() = %q, want %q", got, "Status(-1)")
	}
}

func TestSetStatus(t *testing.T) {
	tests := []struct {
		name    string
		initial Status
		value   string
		want    Status
		applied bool
	}{
		{"ordinal", StatusDraft, "2", StatusPublished, true},
		{"label", StatusDraft, "Hidden", StatusHidden, true},
		{"lowercase label", StatusDraft, "reviewed", StatusReviewed, true},
		{"mixed case label", StatusPublished, "dElEtEd", StatusDeleted, true},
		{"padded label", StatusDraft, " published ", StatusPublished, true},
		{"unknown label", StatusPublished, "publsihed", StatusPublished, false},
		{"ordinal out of range", StatusHidden, "9", StatusHidden, false},
		{"negative ordinal", StatusHidden, "-1", StatusHidden, false},
		{"empty", StatusReviewed, "", StatusReviewed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Page{Status: tt.initial}
			if got := p.SetStatus(tt.value); got != tt.applied {
				t.Errorf("SetStatus(%q) = %v, want %v", tt.value, got, tt.applied)
			}
			if p.Status != tt.want {
				t.Errorf("Status = %v, want %v", p.Status, tt.want)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	for i := range StatusLabels {
		p := &Page{Status: Status(i)}
		got := []bool{p.IsDraft(), p.IsReviewed(), p.IsPublished(), p.IsHidden(), p.IsDeleted()}
		for j, v := range got {
			if v != (i == j) {
				t.Errorf("status %s predicate %d = %v, want %v", p.Status, j, v, i == j)
			}
		}
	}
}

func TestIsPublishedVisible(t *testing.T) {
	for i := range StatusLabels {
		for _, autopublish := range []bool{false, true} {
			p := &Page{Status: Status(i), Autopublish: autopublish}
			want := Status(i) == StatusPublished && !autopublish
			if got := p.IsPublishedVisible(); got != want {
				t.Errorf("IsPublishedVisible(status=%s, autopublish=%v) = %v, want %v",
					p.Status, autopublish, got, want)
			}
		}
	}
}

func TestPrepareForSave(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("defaults to creation time", func(t *testing.T) {
		created := now.Add(-time.Hour)
		p := &Page{CreatedAt: created}
		p.PrepareForSave(now)
		if !p.PublishedAt.Equal(created) {
			t.Errorf("PublishedAt = %v, want %v", p.PublishedAt, created)
		}
		if p.Autopublish {
			t.Error("Autopublish = true, want false")
		}
	})

	t.Run("defaults to now for new pages", func(t *testing.T) {
		p := &Page{}
		p.PrepareForSave(now)
		if !p.PublishedAt.Equal(now) {
			t.Errorf("PublishedAt = %v, want %v", p.PublishedAt, now)
		}
		if p.Autopublish {
			t.Error("Autopublish = true for published_at == now, want false")
		}
	})

	t.Run("future sets flag", func(t *testing.T) {
		p := &Page{PublishedAt: now.Add(time.Hour)}
		p.PrepareForSave(now)
		if !p.Autopublish {
			t.Error("Autopublish = false, want true")
		}
	})

	t.Run("past clears flag", func(t *testing.T) {
		p := &Page{PublishedAt: now.Add(-time.Minute), Autopublish: true}
		p.PrepareForSave(now)
		if p.Autopublish {
			t.Error("Autopublish = true, want false")
		}
	})
}

func TestContentOrder(t *testing.T) {
	news := &Page{NewsPage: true}
	plain := &Page{}

	if got := news.ContentOrder(); got != ContentOrderNews {
		t.Errorf("news ContentOrder() = %q, want %q", got, ContentOrderNews)
	}
	if got := plain.ContentOrder(); got != ContentOrderPosition {
		t.Errorf("ContentOrder() = %q, want %q", got, ContentOrderPosition)
	}
	if news.ReorderableChildren() {
		t.Error("news page ReorderableChildren() = true, want false")
	}
	if !plain.ReorderableChildren() {
		t.Error("ReorderableChildren() = false, want true")
	}

	child := &Page{ParentID: sql.NullInt64{Int64: 1, Valid: true}}
	if child.Reorderable(news) {
		t.Error("child of news page Reorderable() = true, want false")
	}
	if !child.Reorderable(plain) {
		t.Error("Reorderable() = false, want true")
	}
	if !(&Page{}).Reorderable(nil) {
		t.Error("root Reorderable(nil) = false, want true")
	}
}

func TestRedirects(t *testing.T) {
	tests := []struct {
		name   string
		target sql.NullString
		want   bool
	}{
		{"null", sql.NullString{}, false},
		{"empty", sql.NullString{String: "", Valid: true}, false},
		{"zero", sql.NullString{String: "0", Valid: true}, false},
		{"path", sql.NullString{String: "/about", Valid: true}, true},
		{"url", sql.NullString{String: "https://example.com", Valid: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Page{RedirectTo: tt.target}
			if got := p.Redirects(); got != tt.want {
				t.Errorf("Redirects() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParam(t *testing.T) {
	p := &Page{ID: 42, Title: "Hello, World!"}
	if got := p.Param(); got != "42-hello-world" {
		t.Errorf("Param() = %q, want %q", got, "42-hello-world")
	}

	untitled := &Page{ID: 7}
	if got := untitled.Param(); got != "7" {
		t.Errorf("Param() = %q, want %q", got, "7")
	}

	id, err := ParsePageParam(p.Param())
	if err != nil {
		t.Fatalf("ParsePageParam() error = %v", err)
	}
	if id != 42 {
		t.Errorf("ParsePageParam() = %d, want 42", id)
	}

	for _, bad := range []string{"", "abc", "-3-x", "0-zero"} {
		if _, err := ParsePageParam(bad); err == nil {
			t.Errorf("ParsePageParam(%q) expected error", bad)
		}
	}
}

func TestIsValidUniqueName(t *testing.T) {
	valid := []string{"home", "about_us", "news-2026", "A1"}
	invalid := []string{"", "with space", "slash/name", "dot.name"}

	for _, name := range valid {
		if !IsValidUniqueName(name) {
			t.Errorf("IsValidUniqueName(%q) = false, want true", name)
		}
	}
	for _, name := range invalid {
		if IsValidUniqueName(name) {
			t.Errorf("IsValidUniqueName(%q) = true, want false", name)
		}
	}
}
