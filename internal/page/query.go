// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package page

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/store"
)

// SubpageOptions widens a listing beyond publicly visible pages. The zero
// value lists pages matching the published predicate only.
type SubpageOptions struct {
	All         bool
	Drafts      bool
	Hidden      bool
	Deleted     bool
	Autopublish bool

	// PublishedAfter and PublishedBefore are inclusive bounds.
	PublishedAfter  time.Time
	PublishedBefore time.Time

	Limit  int
	Offset int
}

// statuses returns the statuses a listing admits. Without any widening
// option only Published pages qualify; otherwise Deleted, Hidden and
// pre-publication statuses are each excluded unless asked for.
func (o SubpageOptions) statuses() []model.Status {
	if !o.All && !o.Deleted && !o.Hidden && !o.Drafts {
		return []model.Status{model.StatusPublished}
	}
	var out []model.Status
	for i := range model.StatusLabels {
		st := model.Status(i)
		switch {
		case st == model.StatusDeleted && !(o.Deleted || o.All):
		case st == model.StatusHidden && !(o.Hidden || o.All):
		case st < model.StatusPublished && !(o.Drafts || o.All):
		default:
			out = append(out, st)
		}
	}
	return out
}

// normalizeBound brings a date bound into the stored form so that the text
// comparison in SQLite orders by instant. The zero time stays unset.
func normalizeBound(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return normalizeTime(t)
}

func (o SubpageOptions) filter(parent sql.NullInt64, order model.ContentOrder) store.PageFilter {
	return store.PageFilter{
		FilterParent:       true,
		ParentID:           parent,
		Statuses:           o.statuses(),
		ExcludeAutopublish: !(o.Autopublish || o.All),
		PublishedAfter:     normalizeBound(o.PublishedAfter),
		PublishedBefore:    normalizeBound(o.PublishedBefore),
		Order:              order,
		Limit:              o.Limit,
		Offset:             o.Offset,
	}
}

func parentRef(p model.Page) sql.NullInt64 {
	return sql.NullInt64{Int64: p.ID, Valid: true}
}

// Subpages returns the children of parent in its content order.
func (s *Service) Subpages(ctx context.Context, parent model.Page, opts SubpageOptions) ([]model.Page, error) {
	pages, err := s.queries.ListPages(ctx, opts.filter(parentRef(parent), parent.ContentOrder()))
	if err != nil {
		return nil, fmt.Errorf("listing subpages of %d: %w", parent.ID, err)
	}
	return pages, nil
}

// CountSubpages counts the children of parent admitted by opts.
func (s *Service) CountSubpages(ctx context.Context, parent model.Page, opts SubpageOptions) (int64, error) {
	n, err := s.queries.CountPages(ctx, opts.filter(parentRef(parent), parent.ContentOrder()))
	if err != nil {
		return 0, fmt.Errorf("counting subpages of %d: %w", parent.ID, err)
	}
	return n, nil
}

// RootPages returns the root set in position order.
func (s *Service) RootPages(ctx context.Context, opts SubpageOptions) ([]model.Page, error) {
	pages, err := s.queries.ListPages(ctx, opts.filter(sql.NullInt64{}, model.ContentOrderPosition))
	if err != nil {
		return nil, fmt.Errorf("listing root pages: %w", err)
	}
	return pages, nil
}

// siblingList returns p's sibling set, p included, in display order.
func (s *Service) siblingList(ctx context.Context, p model.Page, opts SubpageOptions) ([]model.Page, error) {
	opts.Limit, opts.Offset = 0, 0
	if p.IsRoot() {
		return s.RootPages(ctx, opts)
	}
	parent, err := s.Get(ctx, p.ParentID.Int64)
	if err != nil {
		return nil, err
	}
	return s.Subpages(ctx, parent, opts)
}

// Siblings returns the other pages sharing p's parent, in display order.
func (s *Service) Siblings(ctx context.Context, p model.Page, opts SubpageOptions) ([]model.Page, error) {
	list, err := s.siblingList(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, sib := range list {
		if sib.ID != p.ID {
			out = append(out, sib)
		}
	}
	return out, nil
}

// SiblingByOffset returns the sibling offset places away from p in display
// order. ok is false when there is no such sibling or p itself is not part
// of the listing selected by opts.
func (s *Service) SiblingByOffset(ctx context.Context, p model.Page, offset int, opts SubpageOptions) (model.Page, bool, error) {
	list, err := s.siblingList(ctx, p, opts)
	if err != nil {
		return model.Page{}, false, err
	}
	for i, sib := range list {
		if sib.ID != p.ID {
			continue
		}
		target := i + offset
		if target < 0 || target >= len(list) {
			return model.Page{}, false, nil
		}
		return list[target], true, nil
	}
	return model.Page{}, false, nil
}

// NextSibling returns the sibling after p.
func (s *Service) NextSibling(ctx context.Context, p model.Page, opts SubpageOptions) (model.Page, bool, error) {
	return s.SiblingByOffset(ctx, p, 1, opts)
}

// PreviousSibling returns the sibling before p.
func (s *Service) PreviousSibling(ctx context.Context, p model.Page, opts SubpageOptions) (model.Page, bool, error) {
	return s.SiblingByOffset(ctx, p, -1, opts)
}

// NewsPages returns every news page that is not deleted.
func (s *Service) NewsPages(ctx context.Context) ([]model.Page, error) {
	pages, err := s.queries.ListPages(ctx, store.PageFilter{
		NewsPagesOnly: true,
		Statuses:      []model.Status{model.StatusDraft, model.StatusReviewed, model.StatusPublished, model.StatusHidden},
		Order:         model.ContentOrderPosition,
	})
	if err != nil {
		return nil, fmt.Errorf("listing news pages: %w", err)
	}
	return pages, nil
}

// ListOptions selects pages for administrative listings.
type ListOptions struct {
	// ParentID restricts the listing to one sibling set when HasParent is
	// set; a nil ParentID then means the root set.
	HasParent bool
	ParentID  *int64
	Statuses  []model.Status
	Limit     int
	Offset    int
}

// List returns pages for administration along with the total match count.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]model.Page, int64, error) {
	f := store.PageFilter{
		FilterParent: opts.HasParent,
		Statuses:     opts.Statuses,
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	}
	if opts.HasParent {
		f.Order = model.ContentOrderPosition
		if opts.ParentID != nil {
			f.ParentID = sql.NullInt64{Int64: *opts.ParentID, Valid: true}
		}
	}
	pages, err := s.queries.ListPages(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("listing pages: %w", err)
	}
	total, err := s.queries.CountPages(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("counting pages: %w", err)
	}
	return pages, total, nil
}
