// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package page

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/store"
)

// ancestors walks up from p, nearest first. A parent chain that revisits a
// page is reported as a StructuralError instead of looping.
func ancestors(ctx context.Context, q *store.Queries, p model.Page) ([]model.Page, error) {
	var chain []model.Page
	visited := map[int64]bool{p.ID: true}
	current := p
	for current.ParentID.Valid {
		parentID := current.ParentID.Int64
		if visited[parentID] {
			return nil, &StructuralError{Op: "ancestors", PageID: p.ID,
				Reason: fmt.Sprintf("parent chain loops through page %d", parentID)}
		}
		visited[parentID] = true

		parent, err := q.GetPage(ctx, parentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &StructuralError{Op: "ancestors", PageID: p.ID,
					Reason: fmt.Sprintf("parent page %d does not exist", parentID)}
			}
			return nil, fmt.Errorf("loading ancestor %d: %w", parentID, err)
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// subtreeIDs returns id followed by all of its descendants, breadth first.
func subtreeIDs(ctx context.Context, q *store.Queries, id int64) ([]int64, error) {
	ids := []int64{id}
	seen := map[int64]bool{id: true}
	for i := 0; i < len(ids); i++ {
		children, err := q.ListChildIDs(ctx, ids[i])
		if err != nil {
			return nil, fmt.Errorf("listing children of %d: %w", ids[i], err)
		}
		for _, c := range children {
			if seen[c] {
				return nil, &StructuralError{Op: "destroy", PageID: id,
					Reason: fmt.Sprintf("page %d is reachable twice", c)}
			}
			seen[c] = true
			ids = append(ids, c)
		}
	}
	return ids, nil
}

// Ancestors returns the ancestors of p, nearest first.
func (s *Service) Ancestors(ctx context.Context, p model.Page) ([]model.Page, error) {
	return ancestors(ctx, s.queries, p)
}

// RootPage returns the topmost ancestor of p, or p itself for a root page.
func (s *Service) RootPage(ctx context.Context, p model.Page) (model.Page, error) {
	chain, err := s.Ancestors(ctx, p)
	if err != nil {
		return model.Page{}, err
	}
	if len(chain) == 0 {
		return p, nil
	}
	return chain[len(chain)-1], nil
}

// IsAncestor reports whether a is an ancestor of b.
func (s *Service) IsAncestor(ctx context.Context, a, b model.Page) (bool, error) {
	chain, err := s.Ancestors(ctx, b)
	if err != nil {
		return false, err
	}
	for _, p := range chain {
		if p.ID == a.ID {
			return true, nil
		}
	}
	return false, nil
}

// IsChildOf reports whether a sits anywhere below b.
func (s *Service) IsChildOf(ctx context.Context, a, b model.Page) (bool, error) {
	return s.IsAncestor(ctx, b, a)
}

// Breadcrumbs returns the path from the root page down to p, inclusive.
func (s *Service) Breadcrumbs(ctx context.Context, p model.Page) ([]model.Page, error) {
	chain, err := s.Ancestors(ctx, p)
	if err != nil {
		return nil, err
	}
	path := make([]model.Page, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		path = append(path, chain[i])
	}
	return append(path, p), nil
}
