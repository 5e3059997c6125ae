// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package legacy

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/store"
)

// PageSource yields the legacy pages to import.
type PageSource interface {
	ReadPages(ctx context.Context, language string) ([]Page, error)
}

// Options control an import run.
type Options struct {
	Language string
	// DryRun reads and plans the import inside a transaction that is rolled
	// back at the end.
	DryRun bool
}

// Result summarizes an import run.
type Result struct {
	Read     int
	Imported int
	// IDMap maps legacy page IDs to the IDs of the imported pages.
	IDMap    map[int64]int64
	Warnings []string
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

var errDryRun = errors.New("dry run")

// Importer copies a legacy page tree into the pages store.
type Importer struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewImporter creates an importer writing to db.
func NewImporter(db *sql.DB, logger *slog.Logger) *Importer {
	return &Importer{db: db, logger: logger, now: time.Now}
}

type node struct {
	page     Page
	children []*node
}

// buildForest arranges legacy pages into trees with children in legacy
// list order. Pages whose parent is missing, or that sit on a parent cycle,
// become roots.
func buildForest(pages []Page, res *Result) []*node {
	nodes := make(map[int64]*node, len(pages))
	for _, p := range pages {
		nodes[p.ID] = &node{page: p}
	}

	var roots []*node
	for _, p := range pages {
		n := nodes[p.ID]
		if !p.ParentID.Valid {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[p.ParentID.Int64]
		if !ok || parent == n {
			res.warn("page %d: parent %d not found, imported as a root page", p.ID, p.ParentID.Int64)
			roots = append(roots, n)
			continue
		}
		parent.children = append(parent.children, n)
	}

	// Anything not reachable from a root is on a cycle.
	reached := make(map[int64]bool, len(nodes))
	var walk func(n *node)
	walk = func(n *node) {
		reached[n.page.ID] = true
		for _, c := range n.children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	for _, p := range pages {
		if reached[p.ID] {
			continue
		}
		n := nodes[p.ID]
		if parent, ok := nodes[p.ParentID.Int64]; ok {
			parent.children = slices.DeleteFunc(parent.children, func(c *node) bool { return c == n })
		}
		res.warn("page %d: parent chain forms a cycle, imported as a root page", p.ID)
		roots = append(roots, n)
		walk(n)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(list []*node) {
	slices.SortStableFunc(list, func(a, b *node) int {
		ap, bp := a.page.Position, b.page.Position
		if ap.Valid != bp.Valid {
			if ap.Valid {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(ap.Int64, bp.Int64); c != 0 {
			return c
		}
		return cmp.Compare(a.page.ID, b.page.ID)
	})
	for _, n := range list {
		sortNodes(n.children)
	}
}

func normalizeTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC().Truncate(time.Second)
}

// Import reads every page from src and recreates the tree. Imported root
// pages are appended after the existing root pages; every sibling list is
// renumbered from zero.
func (im *Importer) Import(ctx context.Context, src PageSource, opts Options) (Result, page.Effects, error) {
	res := Result{IDMap: make(map[int64]int64)}

	legacyPages, err := src.ReadPages(ctx, opts.Language)
	if err != nil {
		return res, nil, err
	}
	res.Read = len(legacyPages)
	roots := buildForest(legacyPages, &res)

	now := im.now().UTC().Truncate(time.Second)
	var effects page.Effects
	err = store.InTx(ctx, im.db, func(q *store.Queries) error {
		if _, err := q.BumpSiblingLock(ctx, 0); err != nil {
			return fmt.Errorf("locking root pages: %w", err)
		}
		rootPos, err := q.NextSiblingPosition(ctx, sql.NullInt64{})
		if err != nil {
			return fmt.Errorf("finding bottom position: %w", err)
		}
		if err := im.insertLevel(ctx, q, sql.NullInt64{}, rootPos, roots, now, &res, &effects); err != nil {
			return err
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return res, nil, fmt.Errorf("importing legacy pages: %w", err)
	}

	im.logger.Info("legacy import finished",
		"read", res.Read, "imported", res.Imported, "warnings", len(res.Warnings), "dry_run", opts.DryRun)
	for _, w := range res.Warnings {
		im.logger.Warn("legacy import", "warning", w)
	}
	if opts.DryRun || res.Imported == 0 {
		return res, nil, nil
	}
	return res, append(effects, page.SweepAll{}), nil
}

func (im *Importer) insertLevel(ctx context.Context, q *store.Queries, parent sql.NullInt64, start int64, nodes []*node, now time.Time, res *Result, effects *page.Effects) error {
	pos := start
	for _, n := range nodes {
		params, err := im.pageParams(ctx, q, n.page, now, res)
		if err != nil {
			return err
		}
		params.ParentID = parent
		if params.Status != model.StatusDeleted {
			params.Position = sql.NullInt64{Int64: pos, Valid: true}
			pos++
		}

		created, err := q.CreatePage(ctx, params)
		if err != nil {
			return fmt.Errorf("creating page for legacy page %d: %w", n.page.ID, err)
		}
		res.IDMap[n.page.ID] = created.ID
		res.Imported++
		if created.Autopublish {
			*effects = append(*effects, page.ScheduleAutopublish{PageID: created.ID, At: created.PublishedAt})
		}

		ref := sql.NullInt64{Int64: created.ID, Valid: true}
		if len(n.children) > 0 {
			if _, err := q.BumpSiblingLock(ctx, created.ID); err != nil {
				return fmt.Errorf("locking children of page %d: %w", created.ID, err)
			}
		}
		if err := im.insertLevel(ctx, q, ref, 0, n.children, now, res, effects); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) pageParams(ctx context.Context, q *store.Queries, lp Page, now time.Time, res *Result) (store.CreatePageParams, error) {
	status := model.Status(lp.Status)
	if !status.Valid() {
		res.warn("page %d: unknown status %d, imported as Draft", lp.ID, lp.Status)
		status = model.StatusDraft
	}

	title := strings.TrimSpace(lp.Name.String)
	if title == "" {
		title = fmt.Sprintf("Untitled page %d", lp.ID)
		res.warn("page %d: no name in the selected language", lp.ID)
	}

	uniqueName := strings.TrimSpace(lp.UniqueName.String)
	if uniqueName != "" {
		switch {
		case !model.IsValidUniqueName(uniqueName):
			res.warn("page %d: invalid unique name %q dropped", lp.ID, uniqueName)
			uniqueName = ""
		default:
			_, err := q.GetPageByUniqueName(ctx, uniqueName)
			if err == nil {
				res.warn("page %d: unique name %q already taken, dropped", lp.ID, uniqueName)
				uniqueName = ""
			} else if !errors.Is(err, sql.ErrNoRows) {
				return store.CreatePageParams{}, fmt.Errorf("checking unique name %q: %w", uniqueName, err)
			}
		}
	}

	template := strings.TrimSpace(lp.Template.String)
	if template == "" {
		template = page.DefaultTemplate
	}

	p := model.Page{
		PublishedAt: normalizeTime(lp.PublishedAt),
		CreatedAt:   normalizeTime(lp.CreatedAt),
	}
	p.PrepareForSave(now)
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := normalizeTime(lp.UpdatedAt)
	if updated.IsZero() {
		updated = created
	}

	redirect := lp.Redirect()
	return store.CreatePageParams{
		Title:       title,
		UniqueName:  sql.NullString{String: uniqueName, Valid: uniqueName != ""},
		Body:        lp.Body.String,
		Excerpt:     lp.Excerpt.String,
		Template:    template,
		Status:      status,
		PublishedAt: p.PublishedAt,
		Autopublish: p.Autopublish,
		NewsPage:    lp.NewsPage,
		RedirectTo:  sql.NullString{String: redirect, Valid: redirect != ""},
		AuthorID:    lp.UserID,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}
