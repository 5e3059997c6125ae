// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package page

import (
	"context"
	"fmt"
	"strings"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/store"
)

// CommentInput is a new reader comment.
type CommentInput struct {
	Name  string
	Email string
	Body  string
}

// AddComment attaches a comment to a page and refreshes its counter.
// Comments render on the page, so the page is swept.
func (s *Service) AddComment(ctx context.Context, pageID int64, in CommentInput) (model.PageComment, Effects, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return model.PageComment{}, nil, invalid("body", "is required")
	}

	var comment model.PageComment
	err := s.mutate(ctx, "add_comment", func(q *store.Queries) error {
		p, err := loadPage(ctx, q, pageID)
		if err != nil {
			return err
		}
		if p.IsDeleted() {
			return invalid("page_id", "deleted pages do not accept comments")
		}
		comment, err = q.CreatePageComment(ctx, store.CreatePageCommentParams{
			PageID:    pageID,
			Name:      strings.TrimSpace(in.Name),
			Email:     strings.TrimSpace(in.Email),
			Body:      body,
			CreatedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("creating comment: %w", err)
		}
		return q.RefreshCommentsCount(ctx, pageID)
	})
	if err != nil {
		return model.PageComment{}, nil, err
	}
	return comment, Effects{SweepCache{PageID: pageID}}, nil
}

// Comments returns the comments of a page, oldest first.
func (s *Service) Comments(ctx context.Context, pageID int64) ([]model.PageComment, error) {
	if _, err := s.Get(ctx, pageID); err != nil {
		return nil, err
	}
	comments, err := s.queries.ListPageComments(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("listing comments of %d: %w", pageID, err)
	}
	return comments, nil
}

// DeleteComment removes a comment from a page.
func (s *Service) DeleteComment(ctx context.Context, pageID, commentID int64) (Effects, error) {
	err := s.mutate(ctx, "delete_comment", func(q *store.Queries) error {
		n, err := q.DeletePageComment(ctx, pageID, commentID)
		if err != nil {
			return fmt.Errorf("deleting comment %d: %w", commentID, err)
		}
		if n == 0 {
			return fmt.Errorf("comment %d: %w", commentID, ErrNotFound)
		}
		return q.RefreshCommentsCount(ctx, pageID)
	})
	if err != nil {
		return nil, err
	}
	return Effects{SweepCache{PageID: pageID}}, nil
}

// Assets returns the files and images owned by a page.
func (s *Service) Assets(ctx context.Context, pageID int64) ([]model.PageFile, []model.PageImage, error) {
	files, err := s.queries.ListPageFiles(ctx, pageID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing files of %d: %w", pageID, err)
	}
	images, err := s.queries.ListPageImages(ctx, pageID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing images of %d: %w", pageID, err)
	}
	return files, images, nil
}
