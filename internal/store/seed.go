// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/pagescore/internal/model"
)

type seedPage struct {
	title      string
	uniqueName string
	body       string
	newsPage   bool
	pinned     bool
	age        time.Duration
	children   []seedPage
}

var seedTree = []seedPage{
	{title: "Home", uniqueName: "home", body: "Welcome to the site."},
	{title: "About", uniqueName: "about", body: "Who we are and what we do."},
	{
		title:      "News",
		uniqueName: "news",
		newsPage:   true,
		children: []seedPage{
			{title: "Site launched", body: "The new site is live.", pinned: true, age: 48 * time.Hour},
			{title: "First update", body: "A short update.", age: 2 * time.Hour},
		},
	},
}

// Seed creates a small published page tree when the pages table is empty.
func Seed(ctx context.Context, db *sql.DB) error {
	q := New(db)

	n, err := q.CountPages(ctx, PageFilter{})
	if err != nil {
		return fmt.Errorf("counting pages: %w", err)
	}
	if n > 0 {
		slog.Info("pages already exist, skipping seed", "count", n)
		return nil
	}

	now := time.Now().UTC().Truncate(time.Second)
	created := 0
	err = InTx(ctx, db, func(q *Queries) error {
		var insert func(parent sql.NullInt64, items []seedPage) error
		insert = func(parent sql.NullInt64, items []seedPage) error {
			for i, sp := range items {
				published := now.Add(-sp.age)
				p, err := q.CreatePage(ctx, CreatePageParams{
					ParentID:    parent,
					Position:    sql.NullInt64{Int64: int64(i), Valid: true},
					Title:       sp.title,
					UniqueName:  sql.NullString{String: sp.uniqueName, Valid: sp.uniqueName != ""},
					Body:        sp.body,
					Template:    "page",
					Status:      model.StatusPublished,
					PublishedAt: published,
					Pinned:      sp.pinned,
					NewsPage:    sp.newsPage,
					CreatedAt:   published,
					UpdatedAt:   now,
				})
				if err != nil {
					return fmt.Errorf("creating page %q: %w", sp.title, err)
				}
				created++
				if err := insert(sql.NullInt64{Int64: p.ID, Valid: true}, sp.children); err != nil {
					return err
				}
			}
			return nil
		}
		return insert(sql.NullInt64{}, seedTree)
	})
	if err != nil {
		return err
	}

	slog.Info("seeded page tree", "count", created)
	return nil
}
