// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"slices"
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryPage      = "page"
	EventCategoryCache     = "cache"
	EventCategoryScheduler = "scheduler"
	EventCategoryAPI       = "api"
	EventCategoryImport    = "import"
	EventCategorySystem    = "system"
)

var eventCategories = []string{
	EventCategoryPage,
	EventCategoryCache,
	EventCategoryScheduler,
	EventCategoryAPI,
	EventCategoryImport,
	EventCategorySystem,
}

// IsValidEventCategory reports whether c is a known event category.
func IsValidEventCategory(c string) bool {
	return slices.Contains(eventCategories, c)
}

// Event is a persisted log entry.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"` // JSON object
	CreatedAt time.Time `json:"created_at"`
}
