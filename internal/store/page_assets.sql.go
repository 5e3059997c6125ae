// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/pagescore/internal/model"
)

const createPageComment = `INSERT INTO page_comments (page_id, name, email, body, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, page_id, name, email, body, created_at`

// CreatePageCommentParams holds a new comment.
type CreatePageCommentParams struct {
	PageID    int64
	Name      string
	Email     string
	Body      string
	CreatedAt time.Time
}

// CreatePageComment inserts a comment.
func (q *Queries) CreatePageComment(ctx context.Context, arg CreatePageCommentParams) (model.PageComment, error) {
	var c model.PageComment
	err := q.db.QueryRowContext(ctx, createPageComment,
		arg.PageID, arg.Name, arg.Email, arg.Body, arg.CreatedAt,
	).Scan(&c.ID, &c.PageID, &c.Name, &c.Email, &c.Body, &c.CreatedAt)
	return c, err
}

const getPageComment = `SELECT id, page_id, name, email, body, created_at
FROM page_comments WHERE id = ? AND page_id = ?`

// GetPageComment returns a comment of a page.
func (q *Queries) GetPageComment(ctx context.Context, pageID, id int64) (model.PageComment, error) {
	var c model.PageComment
	err := q.db.QueryRowContext(ctx, getPageComment, id, pageID).
		Scan(&c.ID, &c.PageID, &c.Name, &c.Email, &c.Body, &c.CreatedAt)
	return c, err
}

const listPageComments = `SELECT id, page_id, name, email, body, created_at
FROM page_comments WHERE page_id = ?
ORDER BY created_at, id`

// ListPageComments returns the comments of a page, oldest first.
func (q *Queries) ListPageComments(ctx context.Context, pageID int64) ([]model.PageComment, error) {
	rows, err := q.db.QueryContext(ctx, listPageComments, pageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.PageComment
	for rows.Next() {
		var c model.PageComment
		if err := rows.Scan(&c.ID, &c.PageID, &c.Name, &c.Email, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deletePageComment = `DELETE FROM page_comments WHERE id = ? AND page_id = ?`

// DeletePageComment removes a comment and reports whether it existed.
func (q *Queries) DeletePageComment(ctx context.Context, pageID, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePageComment, id, pageID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const refreshCommentsCount = `UPDATE pages SET comments_count =
	(SELECT COUNT(*) FROM page_comments WHERE page_id = pages.id)
WHERE id = ?`

// RefreshCommentsCount recomputes the comments counter of a page.
func (q *Queries) RefreshCommentsCount(ctx context.Context, pageID int64) error {
	_, err := q.db.ExecContext(ctx, refreshCommentsCount, pageID)
	return err
}

const createPageFile = `INSERT INTO page_files (page_id, name, filename, position, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, page_id, name, filename, position, created_at`

// CreatePageFileParams holds a new file attachment.
type CreatePageFileParams struct {
	PageID    int64
	Name      string
	Filename  string
	Position  int64
	CreatedAt time.Time
}

// CreatePageFile inserts a file attachment.
func (q *Queries) CreatePageFile(ctx context.Context, arg CreatePageFileParams) (model.PageFile, error) {
	var f model.PageFile
	err := q.db.QueryRowContext(ctx, createPageFile,
		arg.PageID, arg.Name, arg.Filename, arg.Position, arg.CreatedAt,
	).Scan(&f.ID, &f.PageID, &f.Name, &f.Filename, &f.Position, &f.CreatedAt)
	return f, err
}

const listPageFiles = `SELECT id, page_id, name, filename, position, created_at
FROM page_files WHERE page_id = ? ORDER BY position, id`

// ListPageFiles returns the attachments of a page.
func (q *Queries) ListPageFiles(ctx context.Context, pageID int64) ([]model.PageFile, error) {
	rows, err := q.db.QueryContext(ctx, listPageFiles, pageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.PageFile
	for rows.Next() {
		var f model.PageFile
		if err := rows.Scan(&f.ID, &f.PageID, &f.Name, &f.Filename, &f.Position, &f.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPageImage = `INSERT INTO page_images (page_id, image_url, is_primary, position, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, page_id, image_url, is_primary, position, created_at`

// CreatePageImageParams holds a new image link.
type CreatePageImageParams struct {
	PageID    int64
	ImageURL  string
	Primary   bool
	Position  int64
	CreatedAt time.Time
}

// CreatePageImage links an image to a page.
func (q *Queries) CreatePageImage(ctx context.Context, arg CreatePageImageParams) (model.PageImage, error) {
	var i model.PageImage
	err := q.db.QueryRowContext(ctx, createPageImage,
		arg.PageID, arg.ImageURL, arg.Primary, arg.Position, arg.CreatedAt,
	).Scan(&i.ID, &i.PageID, &i.ImageURL, &i.Primary, &i.Position, &i.CreatedAt)
	return i, err
}

const listPageImages = `SELECT id, page_id, image_url, is_primary, position, created_at
FROM page_images WHERE page_id = ? ORDER BY position, id`

// ListPageImages returns the images of a page.
func (q *Queries) ListPageImages(ctx context.Context, pageID int64) ([]model.PageImage, error) {
	rows, err := q.db.QueryContext(ctx, listPageImages, pageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.PageImage
	for rows.Next() {
		var i model.PageImage
		if err := rows.Scan(&i.ID, &i.PageID, &i.ImageURL, &i.Primary, &i.Position, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countOwnedRows = `SELECT
	(SELECT COUNT(*) FROM page_comments WHERE page_id = ?) +
	(SELECT COUNT(*) FROM page_files WHERE page_id = ?) +
	(SELECT COUNT(*) FROM page_images WHERE page_id = ?)`

// CountOwnedRows counts comments, files and images that belong to a page.
func (q *Queries) CountOwnedRows(ctx context.Context, pageID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countOwnedRows, pageID, pageID, pageID).Scan(&n)
	return n, err
}
