// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package legacy imports page trees from pages_core MySQL databases.
package legacy

import (
	"database/sql"
	"strings"
)

// Page is a row of the legacy pages table joined with its textbits in one
// language.
type Page struct {
	ID          int64
	ParentID    sql.NullInt64
	Position    sql.NullInt64
	UniqueName  sql.NullString
	Template    sql.NullString
	Status      int
	PublishedAt sql.NullTime
	NewsPage    bool
	RedirectTo  sql.NullString // YAML serialized
	UserID      sql.NullInt64
	CreatedAt   sql.NullTime
	UpdatedAt   sql.NullTime

	Name    sql.NullString
	Body    sql.NullString
	Excerpt sql.NullString
}

// Redirect returns the redirect target stored in the YAML-serialized
// redirect_to column, or "" when there is none.
func (p Page) Redirect() string {
	if !p.RedirectTo.Valid {
		return ""
	}
	v := strings.TrimSpace(p.RedirectTo.String)
	v = strings.TrimPrefix(v, "---")
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	switch v {
	case "", "0", "~", "null", "false":
		return ""
	}
	return v
}
