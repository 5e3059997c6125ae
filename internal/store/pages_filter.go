// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/olegiv/pagescore/internal/model"
)

// PageFilter describes a page listing. The zero value lists every page in
// id order.
type PageFilter struct {
	// FilterParent restricts the listing to children of ParentID
	// (root pages when ParentID is invalid).
	FilterParent bool
	ParentID     sql.NullInt64

	// Statuses restricts the status column. Empty means any status.
	Statuses []model.Status

	ExcludeAutopublish bool
	NewsPagesOnly      bool

	// Inclusive publication bounds, compared as stored UTC text.
	PublishedAfter  time.Time
	PublishedBefore time.Time

	Order  model.ContentOrder
	Limit  int
	Offset int
}

func (f PageFilter) where() (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.FilterParent {
		conds = append(conds, "parent_id IS ?")
		args = append(args, f.ParentID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, s)
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.ExcludeAutopublish {
		conds = append(conds, "autopublish = 0")
	}
	if f.NewsPagesOnly {
		conds = append(conds, "news_page = 1")
	}
	if !f.PublishedAfter.IsZero() {
		conds = append(conds, "published_at >= ?")
		args = append(args, f.PublishedAfter.UTC())
	}
	if !f.PublishedBefore.IsZero() {
		conds = append(conds, "published_at <= ?")
		args = append(args, f.PublishedBefore.UTC())
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(o model.ContentOrder) string {
	switch o {
	case model.ContentOrderPosition:
		return " ORDER BY position IS NULL, position ASC, id ASC"
	case model.ContentOrderNews:
		return " ORDER BY pinned DESC, published_at DESC, id DESC"
	default:
		return " ORDER BY id ASC"
	}
}

// ListPages returns the pages matching f.
func (q *Queries) ListPages(ctx context.Context, f PageFilter) ([]model.Page, error) {
	where, args := f.where()
	query := "SELECT " + pageColumns + " FROM pages" + where + orderClause(f.Order)
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanPages(rows)
}

// CountPages counts the pages matching f, ignoring order and paging.
func (q *Queries) CountPages(ctx context.Context, f PageFilter) (int64, error) {
	where, args := f.where()
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages"+where, args...).Scan(&n)
	return n, err
}
