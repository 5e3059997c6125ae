// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"
)

var languageRegex = regexp.MustCompile(`^[a-z]{2,3}([_-][A-Za-z]{2,4})?$`)

// Reader reads pages from a pages_core MySQL database.
type Reader struct {
	db *sql.DB
}

// NormalizeDSN parses a MySQL DSN and forces the options the reader
// depends on: time parsing in UTC and utf8mb4.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid legacy DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

// NewReader opens and pings the legacy database.
func NewReader(ctx context.Context, dsn string) (*Reader, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Reader{db: db}, nil
}

// NewReaderFromDB wraps an open connection.
func NewReaderFromDB(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Close closes the database connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

const readPages = `SELECT p.id, p.parent_page_id, p.position, p.unique_name, p.template,
	p.status, p.published_at, p.news_page, p.redirect_to, p.user_id,
	p.created_at, p.updated_at,
	MAX(CASE WHEN t.name = 'name' THEN t.body END),
	MAX(CASE WHEN t.name = 'body' THEN t.body END),
	MAX(CASE WHEN t.name = 'excerpt' THEN t.body END)
FROM pages p
LEFT JOIN textbits t ON t.textable_type = 'Page' AND t.textable_id = p.id AND t.language = ?
GROUP BY p.id
ORDER BY p.id`

// ReadPages returns every legacy page with its name, body and excerpt in
// language.
func (r *Reader) ReadPages(ctx context.Context, language string) ([]Page, error) {
	if !languageRegex.MatchString(language) {
		return nil, fmt.Errorf("invalid language code %q", language)
	}

	rows, err := r.db.QueryContext(ctx, readPages, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(
			&p.ID, &p.ParentID, &p.Position, &p.UniqueName, &p.Template,
			&p.Status, &p.PublishedAt, &p.NewsPage, &p.RedirectTo, &p.UserID,
			&p.CreatedAt, &p.UpdatedAt,
			&p.Name, &p.Body, &p.Excerpt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pages: %w", err)
	}
	return pages, nil
}
