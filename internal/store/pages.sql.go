// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/pagescore/internal/model"
)

const pageColumns = `id, parent_id, position, title, unique_name, body, excerpt, template, status,
	published_at, autopublish, pinned, news_page, redirect_to, author_id, comments_count,
	lock_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (model.Page, error) {
	var p model.Page
	err := row.Scan(
		&p.ID,
		&p.ParentID,
		&p.Position,
		&p.Title,
		&p.UniqueName,
		&p.Body,
		&p.Excerpt,
		&p.Template,
		&p.Status,
		&p.PublishedAt,
		&p.Autopublish,
		&p.Pinned,
		&p.NewsPage,
		&p.RedirectTo,
		&p.AuthorID,
		&p.CommentsCount,
		&p.LockVersion,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func scanPages(rows *sql.Rows) ([]model.Page, error) {
	defer func() { _ = rows.Close() }()
	var items []model.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPage = `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`

// GetPage returns a page by ID.
func (q *Queries) GetPage(ctx context.Context, id int64) (model.Page, error) {
	return scanPage(q.db.QueryRowContext(ctx, getPage, id))
}

const getPageByUniqueName = `SELECT ` + pageColumns + ` FROM pages WHERE unique_name = ?`

// GetPageByUniqueName returns the page registered under a unique name.
func (q *Queries) GetPageByUniqueName(ctx context.Context, name string) (model.Page, error) {
	return scanPage(q.db.QueryRowContext(ctx, getPageByUniqueName, name))
}

const createPage = `INSERT INTO pages (
	parent_id, position, title, unique_name, body, excerpt, template, status,
	published_at, autopublish, pinned, news_page, redirect_to, author_id,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + pageColumns

// CreatePageParams holds the columns written on insert.
type CreatePageParams struct {
	ParentID    sql.NullInt64
	Position    sql.NullInt64
	Title       string
	UniqueName  sql.NullString
	Body        string
	Excerpt     string
	Template    string
	Status      model.Status
	PublishedAt time.Time
	Autopublish bool
	Pinned      bool
	NewsPage    bool
	RedirectTo  sql.NullString
	AuthorID    sql.NullInt64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePage inserts a page and returns the stored row.
func (q *Queries) CreatePage(ctx context.Context, arg CreatePageParams) (model.Page, error) {
	row := q.db.QueryRowContext(ctx, createPage,
		arg.ParentID,
		arg.Position,
		arg.Title,
		arg.UniqueName,
		arg.Body,
		arg.Excerpt,
		arg.Template,
		arg.Status,
		arg.PublishedAt,
		arg.Autopublish,
		arg.Pinned,
		arg.NewsPage,
		arg.RedirectTo,
		arg.AuthorID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanPage(row)
}

const updatePage = `UPDATE pages SET
	title = ?, unique_name = ?, body = ?, excerpt = ?, template = ?, status = ?,
	published_at = ?, autopublish = ?, pinned = ?, news_page = ?, redirect_to = ?,
	author_id = ?, updated_at = ?, lock_version = lock_version + 1
WHERE id = ? AND lock_version = ?`

// UpdatePageParams holds the content and status columns of a page.
type UpdatePageParams struct {
	ID          int64
	LockVersion int64
	Title       string
	UniqueName  sql.NullString
	Body        string
	Excerpt     string
	Template    string
	Status      model.Status
	PublishedAt time.Time
	Autopublish bool
	Pinned      bool
	NewsPage    bool
	RedirectTo  sql.NullString
	AuthorID    sql.NullInt64
	UpdatedAt   time.Time
}

// UpdatePage writes content and status columns. It returns the number of
// rows affected, which is zero when LockVersion is stale.
func (q *Queries) UpdatePage(ctx context.Context, arg UpdatePageParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePage,
		arg.Title,
		arg.UniqueName,
		arg.Body,
		arg.Excerpt,
		arg.Template,
		arg.Status,
		arg.PublishedAt,
		arg.Autopublish,
		arg.Pinned,
		arg.NewsPage,
		arg.RedirectTo,
		arg.AuthorID,
		arg.UpdatedAt,
		arg.ID,
		arg.LockVersion,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setPagePlacement = `UPDATE pages SET
	parent_id = ?, position = ?, updated_at = ?, lock_version = lock_version + 1
WHERE id = ? AND lock_version = ?`

// SetPagePlacementParams places a page in a sibling set.
type SetPagePlacementParams struct {
	ID          int64
	LockVersion int64
	ParentID    sql.NullInt64
	Position    sql.NullInt64
	UpdatedAt   time.Time
}

// SetPagePlacement sets parent and position. Zero rows affected means the
// lock version was stale.
func (q *Queries) SetPagePlacement(ctx context.Context, arg SetPagePlacementParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setPagePlacement,
		arg.ParentID,
		arg.Position,
		arg.UpdatedAt,
		arg.ID,
		arg.LockVersion,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const detachPage = `UPDATE pages SET position = NULL WHERE id = ?`

// DetachPage takes a page out of its sibling list without touching its
// lock version. Callers compact the list afterwards.
func (q *Queries) DetachPage(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, detachPage, id)
	return err
}

// Shifting uses a negative round trip because SQLite checks the unique
// sibling position index row by row.
const (
	openGapStep1 = `UPDATE pages SET position = -position - 2
WHERE parent_id IS ? AND position IS NOT NULL AND position >= ?`
	openGapStep2 = `UPDATE pages SET position = -position - 1
WHERE parent_id IS ? AND position < 0`
	closeGapStep1 = `UPDATE pages SET position = -position
WHERE parent_id IS ? AND position IS NOT NULL AND position > ?`
	closeGapStep2 = `UPDATE pages SET position = -position - 1
WHERE parent_id IS ? AND position < 0`
)

// OpenSiblingGap shifts every sibling at or after from by +1.
func (q *Queries) OpenSiblingGap(ctx context.Context, parentID sql.NullInt64, from int64) error {
	if _, err := q.db.ExecContext(ctx, openGapStep1, parentID, from); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, openGapStep2, parentID)
	return err
}

// CloseSiblingGap shifts every sibling after the given position by -1.
func (q *Queries) CloseSiblingGap(ctx context.Context, parentID sql.NullInt64, after int64) error {
	if _, err := q.db.ExecContext(ctx, closeGapStep1, parentID, after); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, closeGapStep2, parentID)
	return err
}

const countListedSiblings = `SELECT COUNT(*) FROM pages WHERE parent_id IS ? AND position IS NOT NULL`

// CountListedSiblings counts the pages holding a position under parentID.
func (q *Queries) CountListedSiblings(ctx context.Context, parentID sql.NullInt64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countListedSiblings, parentID).Scan(&n)
	return n, err
}

const nextSiblingPosition = `SELECT COALESCE(MAX(position) + 1, 0) FROM pages
WHERE parent_id IS ? AND position IS NOT NULL`

// NextSiblingPosition returns the bottom position of a sibling list.
func (q *Queries) NextSiblingPosition(ctx context.Context, parentID sql.NullInt64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, nextSiblingPosition, parentID).Scan(&n)
	return n, err
}

// SiblingPosition is one entry of a sibling list.
type SiblingPosition struct {
	ID       int64
	Position int64
}

const listSiblingPositions = `SELECT id, position FROM pages
WHERE parent_id IS ? AND position IS NOT NULL
ORDER BY position, id`

// ListSiblingPositions returns the listed siblings under parentID in order.
func (q *Queries) ListSiblingPositions(ctx context.Context, parentID sql.NullInt64) ([]SiblingPosition, error) {
	rows, err := q.db.QueryContext(ctx, listSiblingPositions, parentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []SiblingPosition
	for rows.Next() {
		var i SiblingPosition
		if err := rows.Scan(&i.ID, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setSiblingPosition = `UPDATE pages SET position = ? WHERE id = ?`

// SetSiblingPosition writes a raw position without a lock check. It is used
// when renumbering a whole list.
func (q *Queries) SetSiblingPosition(ctx context.Context, id int64, position sql.NullInt64) error {
	_, err := q.db.ExecContext(ctx, setSiblingPosition, position, id)
	return err
}

const listChildIDs = `SELECT id FROM pages WHERE parent_id = ? ORDER BY id`

// ListChildIDs returns the IDs of all children of a page, in any status.
func (q *Queries) ListChildIDs(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listChildIDs, parentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAutopublishPages = `SELECT ` + pageColumns + ` FROM pages
WHERE autopublish = 1
ORDER BY published_at, id`

// ListAutopublishPages returns every page still waiting for publication.
func (q *Queries) ListAutopublishPages(ctx context.Context) ([]model.Page, error) {
	rows, err := q.db.QueryContext(ctx, listAutopublishPages)
	if err != nil {
		return nil, err
	}
	return scanPages(rows)
}

const clearAutopublish = `UPDATE pages SET
	autopublish = 0, updated_at = ?, lock_version = lock_version + 1
WHERE id = ? AND autopublish = 1 AND lock_version = ?`

// ClearAutopublishParams identifies the row version being cleared.
type ClearAutopublishParams struct {
	ID          int64
	LockVersion int64
	UpdatedAt   time.Time
}

// ClearAutopublish clears the autopublish flag if it is still set on the
// expected row version.
func (q *Queries) ClearAutopublish(ctx context.Context, arg ClearAutopublishParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, clearAutopublish, arg.UpdatedAt, arg.ID, arg.LockVersion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deletePage = `DELETE FROM pages WHERE id = ?`

// DeletePage removes a page row. Descendants and owned rows cascade.
func (q *Queries) DeletePage(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deletePage, id)
	return err
}

const bumpSiblingLock = `INSERT INTO sibling_locks (parent_key, version) VALUES (?, 1)
ON CONFLICT (parent_key) DO UPDATE SET version = version + 1
RETURNING version`

// BumpSiblingLock increments the version row of a sibling set and returns
// the new version. parentKey 0 stands for the root set.
func (q *Queries) BumpSiblingLock(ctx context.Context, parentKey int64) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, bumpSiblingLock, parentKey).Scan(&version)
	return version, err
}
