// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/pagescore/internal/util"
)

// Status is the lifecycle stage of a page. The ordinal values are persisted.
type Status int

// Page statuses
const (
	StatusDraft Status = iota
	StatusReviewed
	StatusPublished
	StatusHidden
	StatusDeleted
)

// StatusLabels maps each status ordinal to its label.
var StatusLabels = [...]string{"Draft", "Reviewed", "Published", "Hidden", "Deleted"}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s >= StatusDraft && int(s) < len(StatusLabels)
}

// Label returns the status label. It panics if s is out of range, since a
// stored status outside the table means the row is corrupt.
func (s Status) Label() string {
	return StatusLabels[s]
}

func (s Status) String() string {
	if !s.Valid() {
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
	return s.Label()
}

// ParseStatus resolves either a status ordinal ("2") or a case-insensitive
// label ("published"). The second return value is false when nothing matched.
func ParseStatus(value string) (Status, bool) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		s := Status(n)
		return s, s.Valid()
	}
	for i, label := range StatusLabels {
		if strings.EqualFold(label, value) {
			return Status(i), true
		}
	}
	return StatusDraft, false
}

// StatusOption is a label/value pair for select inputs.
type StatusOption struct {
	Label string `json:"label"`
	Value Status `json:"value"`
}

// StatusOptions returns all statuses in ordinal order.
func StatusOptions() []StatusOption {
	opts := make([]StatusOption, 0, len(StatusLabels))
	for i, label := range StatusLabels {
		opts = append(opts, StatusOption{Label: label, Value: Status(i)})
	}
	return opts
}

// ContentOrder is the ordering policy a page applies to its children.
type ContentOrder string

// Content orders
const (
	ContentOrderPosition ContentOrder = "position ASC"
	ContentOrderNews     ContentOrder = "pinned DESC, published_at DESC"
)

var uniqueNameRegex = regexp.MustCompile(`^[\w\-]+$`)

// IsValidUniqueName checks the unique_name format (word characters and hyphens).
func IsValidUniqueName(name string) bool {
	return uniqueNameRegex.MatchString(name)
}

// Page is a node in the content tree.
type Page struct {
	ID            int64          `json:"id"`
	ParentID      sql.NullInt64  `json:"parent_id"`
	Position      sql.NullInt64  `json:"position"` // NULL when the page is not in its sibling list
	Title         string         `json:"title"`
	UniqueName    sql.NullString `json:"unique_name"`
	Body          string         `json:"body"`
	Excerpt       string         `json:"excerpt"`
	Template      string         `json:"template"`
	Status        Status         `json:"status"`
	PublishedAt   time.Time      `json:"published_at"`
	Autopublish   bool           `json:"autopublish"`
	Pinned        bool           `json:"pinned"`
	NewsPage      bool           `json:"news_page"`
	RedirectTo    sql.NullString `json:"redirect_to"`
	AuthorID      sql.NullInt64  `json:"author_id"`
	CommentsCount int64          `json:"comments_count"`
	LockVersion   int64          `json:"lock_version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsDraft returns true if the page is a draft.
func (p *Page) IsDraft() bool { return p.Status == StatusDraft }

// IsReviewed returns true if the page has been reviewed.
func (p *Page) IsReviewed() bool { return p.Status == StatusReviewed }

// IsPublished returns true if the status is Published, regardless of autopublish.
func (p *Page) IsPublished() bool { return p.Status == StatusPublished }

// IsHidden returns true if the page is hidden.
func (p *Page) IsHidden() bool { return p.Status == StatusHidden }

// IsDeleted returns true if the page is soft-deleted.
func (p *Page) IsDeleted() bool { return p.Status == StatusDeleted }

// IsPublishedVisible reports whether the page is publicly visible: published
// and not waiting for its publication time.
func (p *Page) IsPublishedVisible() bool {
	return p.Status == StatusPublished && !p.Autopublish
}

// StatusLabel returns the label of the current status.
func (p *Page) StatusLabel() string {
	return p.Status.Label()
}

// SetStatus sets the status from an ordinal or a label. Unrecognised values
// leave the status untouched; the return value reports whether it was applied.
func (p *Page) SetStatus(value string) bool {
	s, ok := ParseStatus(value)
	if !ok {
		return false
	}
	p.Status = s
	return true
}

// PrepareForSave defaults PublishedAt and recomputes the autopublish flag.
// It must run before every persist of the page.
func (p *Page) PrepareForSave(now time.Time) {
	if p.PublishedAt.IsZero() {
		if !p.CreatedAt.IsZero() {
			p.PublishedAt = p.CreatedAt
		} else {
			p.PublishedAt = now
		}
	}
	p.Autopublish = p.PublishedAt.After(now)
}

// IsRoot returns true if the page has no parent.
func (p *Page) IsRoot() bool {
	return !p.ParentID.Valid
}

// InList returns true if the page holds a position in its sibling list.
func (p *Page) InList() bool {
	return p.Position.Valid
}

// ContentOrder returns the ordering policy for this page's children.
func (p *Page) ContentOrder() ContentOrder {
	if p.NewsPage {
		return ContentOrderNews
	}
	return ContentOrderPosition
}

// ReorderableChildren returns true if this page's children can be sorted manually.
func (p *Page) ReorderableChildren() bool {
	return p.ContentOrder() == ContentOrderPosition
}

// Reorderable returns true if the page can be sorted manually within its
// parent. parent is nil for root pages.
func (p *Page) Reorderable(parent *Page) bool {
	return parent == nil || parent.ReorderableChildren()
}

// Redirects returns true if the page has a usable redirect target.
func (p *Page) Redirects() bool {
	if !p.RedirectTo.Valid {
		return false
	}
	target := strings.TrimSpace(p.RedirectTo.String)
	return target != "" && target != "0"
}

// Slug returns a URL-friendly version of the title.
func (p *Page) Slug() string {
	return util.Slugify(p.Title)
}

// Param returns the public URL parameter ("{id}-{slug}").
func (p *Page) Param() string {
	slug := p.Slug()
	if slug == "" {
		return strconv.FormatInt(p.ID, 10)
	}
	return fmt.Sprintf("%d-%s", p.ID, slug)
}

// ParsePageParam extracts the page ID from a "{id}-{slug}" parameter.
func ParsePageParam(param string) (int64, error) {
	idPart, _, _ := strings.Cut(param, "-")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid page parameter %q", param)
	}
	return id, nil
}

// PageComment is a reader comment owned by a page.
type PageComment struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// PageFile is a file attachment owned by a page.
type PageFile struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	Name      string    `json:"name"`
	Filename  string    `json:"filename"`
	Position  int64     `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// PageImage links an image to a page.
type PageImage struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	ImageURL  string    `json:"image_url"`
	Primary   bool      `json:"primary"`
	Position  int64     `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
