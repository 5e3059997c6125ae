// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package page

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/store"
	"github.com/olegiv/pagescore/internal/util"
)

// DefaultTemplate is used when a page is created without a template.
const DefaultTemplate = "page"

// CreateInput describes a new page. A nil Position appends the page at the
// bottom of its sibling list; an empty Status means Draft.
type CreateInput struct {
	ParentID    *int64
	Position    *int64
	Title       string
	UniqueName  string
	Body        string
	Excerpt     string
	Template    string
	Status      string
	PublishedAt *time.Time
	Pinned      bool
	NewsPage    bool
	RedirectTo  string
	AuthorID    *int64
}

// UpdateInput changes the content and status of a page. Nil fields are
// left untouched. Parent and position change only through Move.
type UpdateInput struct {
	Title       *string
	UniqueName  *string
	Body        *string
	Excerpt     *string
	Template    *string
	Status      *string
	PublishedAt *time.Time
	Pinned      *bool
	NewsPage    *bool
	RedirectTo  *string
	AuthorID    *int64
}

// MoveInput names the destination of a move. A nil ParentID moves the page
// to the root set; a nil Position appends it at the bottom.
type MoveInput struct {
	ParentID *int64
	Position *int64
}

// parseStatusInput resolves a status value coming from a caller. Unlike
// Page.SetStatus it rejects unknown values.
func parseStatusInput(value string) (model.Status, error) {
	s, ok := model.ParseStatus(value)
	if !ok {
		return 0, invalid("status", fmt.Sprintf("unknown status %q", value))
	}
	return s, nil
}

func validateUniqueName(name string) error {
	if name != "" && !model.IsValidUniqueName(name) {
		return invalid("unique_name", "may only contain letters, digits, underscores and hyphens")
	}
	return nil
}

func wrapWriteError(err error) error {
	if store.IsUniqueViolation(err) && strings.Contains(err.Error(), "unique_name") {
		return invalid("unique_name", "is already taken")
	}
	return err
}

// Create inserts a page and places it in its sibling list.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Page, Effects, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Page{}, nil, invalid("title", "is required")
	}
	if err := validateUniqueName(in.UniqueName); err != nil {
		return model.Page{}, nil, err
	}
	status := model.StatusDraft
	if in.Status != "" {
		var err error
		if status, err = parseStatusInput(in.Status); err != nil {
			return model.Page{}, nil, err
		}
	}
	if in.Position != nil && *in.Position < 0 {
		return model.Page{}, nil, invalid("position", "must not be negative")
	}
	template := in.Template
	if template == "" {
		template = DefaultTemplate
	}
	parentID := util.NullInt64FromPtr(in.ParentID)

	var created model.Page
	err := s.mutate(ctx, "create", func(q *store.Queries) error {
		if err := lockSiblingSets(ctx, q, parentID); err != nil {
			return err
		}
		parent, err := loadParent(ctx, q, parentID)
		if err != nil {
			return err
		}
		if in.Position != nil && parent != nil && !parent.ReorderableChildren() {
			return invalid("position", "children of a news page are ordered by publication date")
		}

		now := s.now()
		p := model.Page{
			ParentID:   parentID,
			Title:      title,
			UniqueName: util.NullStringFromValue(in.UniqueName),
			Body:       in.Body,
			Excerpt:    in.Excerpt,
			Template:   template,
			Status:     status,
			Pinned:     in.Pinned,
			NewsPage:   in.NewsPage,
			RedirectTo: util.NullStringFromValue(in.RedirectTo),
			AuthorID:   util.NullInt64FromPtr(in.AuthorID),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if in.PublishedAt != nil {
			p.PublishedAt = normalizeTime(*in.PublishedAt)
		}
		p.PrepareForSave(now)

		if !p.IsDeleted() {
			count, err := q.CountListedSiblings(ctx, parentID)
			if err != nil {
				return fmt.Errorf("counting siblings: %w", err)
			}
			pos := count
			if in.Position != nil && *in.Position < count {
				pos = *in.Position
				if err := q.OpenSiblingGap(ctx, parentID, pos); err != nil {
					return fmt.Errorf("opening sibling gap: %w", err)
				}
			}
			p.Position = sql.NullInt64{Int64: pos, Valid: true}
		}

		row, err := q.CreatePage(ctx, store.CreatePageParams{
			ParentID:    p.ParentID,
			Position:    p.Position,
			Title:       p.Title,
			UniqueName:  p.UniqueName,
			Body:        p.Body,
			Excerpt:     p.Excerpt,
			Template:    p.Template,
			Status:      p.Status,
			PublishedAt: p.PublishedAt,
			Autopublish: p.Autopublish,
			Pinned:      p.Pinned,
			NewsPage:    p.NewsPage,
			RedirectTo:  p.RedirectTo,
			AuthorID:    p.AuthorID,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
		if err != nil {
			return wrapWriteError(err)
		}
		created = row
		return nil
	})
	if err != nil {
		return model.Page{}, nil, err
	}

	s.logger.Info("page created", "page_id", created.ID, "parent_id", created.ParentID.Int64,
		"position", created.Position.Int64, "status", created.Status.String())
	return created, saveEffects(created.ID, created.Autopublish, created.PublishedAt), nil
}

// Update applies in to a page and saves it. Moving into or out of the
// Deleted status removes the page from, or re-appends it to, its sibling list.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (model.Page, Effects, error) {
	var status *model.Status
	if in.Status != nil {
		st, err := parseStatusInput(*in.Status)
		if err != nil {
			return model.Page{}, nil, err
		}
		status = &st
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return model.Page{}, nil, invalid("title", "is required")
	}
	if in.UniqueName != nil {
		if err := validateUniqueName(*in.UniqueName); err != nil {
			return model.Page{}, nil, err
		}
	}

	var saved model.Page
	err := s.mutate(ctx, "update", func(q *store.Queries) error {
		p, err := loadPage(ctx, q, id)
		if err != nil {
			return err
		}
		if err := lockSiblingSets(ctx, q, p.ParentID); err != nil {
			return err
		}
		// Reload under the lock so position and version are current.
		if p, err = loadPage(ctx, q, id); err != nil {
			return err
		}

		applyUpdate(&p, in, status)
		now := s.now()
		p.UpdatedAt = now
		p.PrepareForSave(now)
		if p.PublishedAt.IsZero() {
			return invalid("published_at", "is required")
		}

		n, err := q.UpdatePage(ctx, store.UpdatePageParams{
			ID:          p.ID,
			LockVersion: p.LockVersion,
			Title:       p.Title,
			UniqueName:  p.UniqueName,
			Body:        p.Body,
			Excerpt:     p.Excerpt,
			Template:    p.Template,
			Status:      p.Status,
			PublishedAt: p.PublishedAt,
			Autopublish: p.Autopublish,
			Pinned:      p.Pinned,
			NewsPage:    p.NewsPage,
			RedirectTo:  p.RedirectTo,
			AuthorID:    p.AuthorID,
			UpdatedAt:   p.UpdatedAt,
		})
		if err != nil {
			return wrapWriteError(err)
		}
		if n == 0 {
			return ErrConcurrencyConflict
		}

		if err := syncListMembership(ctx, q, &p); err != nil {
			return err
		}
		saved, err = loadPage(ctx, q, id)
		return err
	})
	if err != nil {
		return model.Page{}, nil, err
	}

	s.logger.Info("page updated", "page_id", saved.ID, "status", saved.Status.String(), "autopublish", saved.Autopublish)
	return saved, saveEffects(saved.ID, saved.Autopublish, saved.PublishedAt), nil
}

func applyUpdate(p *model.Page, in UpdateInput, status *model.Status) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.UniqueName != nil {
		p.UniqueName = util.NullStringFromValue(*in.UniqueName)
	}
	if in.Body != nil {
		p.Body = *in.Body
	}
	if in.Excerpt != nil {
		p.Excerpt = *in.Excerpt
	}
	if in.Template != nil {
		p.Template = *in.Template
	}
	if status != nil {
		p.Status = *status
	}
	if in.PublishedAt != nil {
		p.PublishedAt = normalizeTime(*in.PublishedAt)
	}
	if in.Pinned != nil {
		p.Pinned = *in.Pinned
	}
	if in.NewsPage != nil {
		p.NewsPage = *in.NewsPage
	}
	if in.RedirectTo != nil {
		p.RedirectTo = util.NullStringFromValue(*in.RedirectTo)
	}
	if in.AuthorID != nil {
		p.AuthorID = util.NullInt64FromPtr(in.AuthorID)
	}
}

// syncListMembership keeps list membership in line with the status: a
// Deleted page is taken out of its list, any other page holds a position.
func syncListMembership(ctx context.Context, q *store.Queries, p *model.Page) error {
	switch {
	case p.IsDeleted() && p.InList():
		if err := removeFromList(ctx, q, p); err != nil {
			return err
		}
	case !p.IsDeleted() && !p.InList():
		pos, err := q.NextSiblingPosition(ctx, p.ParentID)
		if err != nil {
			return fmt.Errorf("finding bottom position: %w", err)
		}
		if err := q.SetSiblingPosition(ctx, p.ID, sql.NullInt64{Int64: pos, Valid: true}); err != nil {
			return fmt.Errorf("appending page %d: %w", p.ID, err)
		}
		p.Position = sql.NullInt64{Int64: pos, Valid: true}
	}
	return nil
}

// removeFromList detaches p and closes the gap it leaves behind.
func removeFromList(ctx context.Context, q *store.Queries, p *model.Page) error {
	if !p.InList() {
		return nil
	}
	if err := q.DetachPage(ctx, p.ID); err != nil {
		return fmt.Errorf("detaching page %d: %w", p.ID, err)
	}
	if err := q.CloseSiblingGap(ctx, p.ParentID, p.Position.Int64); err != nil {
		return fmt.Errorf("compacting siblings of page %d: %w", p.ID, err)
	}
	p.Position = sql.NullInt64{}
	return nil
}

// SetStatus changes the status from an ordinal or a label.
func (s *Service) SetStatus(ctx context.Context, id int64, value string) (model.Page, Effects, error) {
	return s.Update(ctx, id, UpdateInput{Status: &value})
}

// Delete soft-deletes a page: its status becomes Deleted and it leaves its
// sibling list. Children are kept.
func (s *Service) Delete(ctx context.Context, id int64) (model.Page, Effects, error) {
	return s.SetStatus(ctx, id, model.StatusDeleted.Label())
}

// Move re-parents a page and inserts it at a position in the target list.
// Moving a page to its current place is a no-op and yields no effects.
func (s *Service) Move(ctx context.Context, id int64, in MoveInput) (model.Page, Effects, error) {
	if in.Position != nil && *in.Position < 0 {
		return model.Page{}, nil, invalid("position", "must not be negative")
	}
	newParentID := util.NullInt64FromPtr(in.ParentID)

	var (
		moved   model.Page
		changed bool
	)
	err := s.mutate(ctx, "move", func(q *store.Queries) error {
		changed = false
		p, err := loadPage(ctx, q, id)
		if err != nil {
			return err
		}
		if err := lockSiblingSets(ctx, q, p.ParentID, newParentID); err != nil {
			return err
		}
		if p, err = loadPage(ctx, q, id); err != nil {
			return err
		}
		if p.IsDeleted() {
			return invalid("status", "deleted pages cannot be moved")
		}

		newParent, err := loadParent(ctx, q, newParentID)
		if err != nil {
			return err
		}
		if newParent != nil {
			if newParent.ID == p.ID {
				return &StructuralError{Op: "move", PageID: p.ID, Reason: "a page cannot be its own parent"}
			}
			chain, err := ancestors(ctx, q, *newParent)
			if err != nil {
				return err
			}
			for _, a := range chain {
				if a.ID == p.ID {
					return &StructuralError{Op: "move", PageID: p.ID,
						Reason: fmt.Sprintf("page %d is a descendant of the page being moved", newParent.ID)}
				}
			}
			if in.Position != nil && !newParent.ReorderableChildren() {
				return invalid("position", "children of a news page are ordered by publication date")
			}
		}

		sameParent := p.ParentID == newParentID
		count, err := q.CountListedSiblings(ctx, newParentID)
		if err != nil {
			return fmt.Errorf("counting siblings: %w", err)
		}
		if sameParent && p.InList() {
			count--
		}
		pos := count
		if in.Position != nil && *in.Position < count {
			pos = *in.Position
		}

		if sameParent && p.InList() && p.Position.Int64 == pos {
			moved = p
			return nil
		}

		if err := removeFromList(ctx, q, &p); err != nil {
			return err
		}
		if err := q.OpenSiblingGap(ctx, newParentID, pos); err != nil {
			return fmt.Errorf("opening sibling gap: %w", err)
		}
		n, err := q.SetPagePlacement(ctx, store.SetPagePlacementParams{
			ID:          p.ID,
			LockVersion: p.LockVersion,
			ParentID:    newParentID,
			Position:    sql.NullInt64{Int64: pos, Valid: true},
			UpdatedAt:   s.now(),
		})
		if err != nil {
			return fmt.Errorf("placing page %d: %w", p.ID, err)
		}
		if n == 0 {
			return ErrConcurrencyConflict
		}
		changed = true
		moved, err = loadPage(ctx, q, id)
		return err
	})
	if err != nil {
		return model.Page{}, nil, err
	}
	if !changed {
		return moved, nil, nil
	}

	s.logger.Info("page moved", "page_id", moved.ID, "parent_id", moved.ParentID.Int64, "position", moved.Position.Int64)
	return moved, Effects{SweepCache{PageID: moved.ID}}, nil
}

// Reorder renumbers a sibling list in the given order. ids must name every
// listed child of the parent exactly once.
func (s *Service) Reorder(ctx context.Context, parentID *int64, ids []int64) (Effects, error) {
	parent := util.NullInt64FromPtr(parentID)

	var effects Effects
	err := s.mutate(ctx, "reorder", func(q *store.Queries) error {
		effects = nil
		if err := lockSiblingSets(ctx, q, parent); err != nil {
			return err
		}
		parentPage, err := loadParent(ctx, q, parent)
		if err != nil {
			return err
		}
		if parentPage != nil && !parentPage.ReorderableChildren() {
			return invalid("ids", "children of a news page are ordered by publication date")
		}

		current, err := q.ListSiblingPositions(ctx, parent)
		if err != nil {
			return fmt.Errorf("listing siblings: %w", err)
		}
		if !samePageSet(current, ids) {
			return invalid("ids", "must list every sibling exactly once")
		}

		// Park every row on a negative slot first so the unique index holds.
		for i, sp := range current {
			if err := q.SetSiblingPosition(ctx, sp.ID, sql.NullInt64{Int64: -int64(i) - 1, Valid: true}); err != nil {
				return fmt.Errorf("parking page %d: %w", sp.ID, err)
			}
		}
		was := make(map[int64]int64, len(current))
		for _, sp := range current {
			was[sp.ID] = sp.Position
		}
		for i, id := range ids {
			if err := q.SetSiblingPosition(ctx, id, sql.NullInt64{Int64: int64(i), Valid: true}); err != nil {
				return fmt.Errorf("positioning page %d: %w", id, err)
			}
			if was[id] != int64(i) {
				effects = append(effects, SweepCache{PageID: id})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pages reordered", "parent_id", parent.Int64, "count", len(ids), "changed", len(effects))
	return effects, nil
}

func samePageSet(current []store.SiblingPosition, ids []int64) bool {
	if len(current) != len(ids) {
		return false
	}
	seen := make(map[int64]bool, len(current))
	for _, sp := range current {
		seen[sp.ID] = false
	}
	for _, id := range ids {
		used, ok := seen[id]
		if !ok || used {
			return false
		}
		seen[id] = true
	}
	return true
}

// Destroy hard-deletes a page together with its descendants and owned rows
// (comments, files, images). It returns the IDs of every removed page.
func (s *Service) Destroy(ctx context.Context, id int64) ([]int64, Effects, error) {
	var removed []int64
	err := s.mutate(ctx, "destroy", func(q *store.Queries) error {
		p, err := loadPage(ctx, q, id)
		if err != nil {
			return err
		}
		if err := lockSiblingSets(ctx, q, p.ParentID); err != nil {
			return err
		}
		if p, err = loadPage(ctx, q, id); err != nil {
			return err
		}
		if removed, err = subtreeIDs(ctx, q, p.ID); err != nil {
			return err
		}
		if err := removeFromList(ctx, q, &p); err != nil {
			return err
		}
		if err := q.DeletePage(ctx, p.ID); err != nil {
			return fmt.Errorf("deleting page %d: %w", p.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	effects := make(Effects, 0, len(removed))
	for _, rid := range removed {
		effects = append(effects, SweepCache{PageID: rid})
	}
	s.logger.Info("page destroyed", "page_id", id, "count", len(removed))
	return removed, effects, nil
}
