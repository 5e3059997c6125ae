// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package page

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrNotFound is returned when a page (or an owned row) does not exist.
	ErrNotFound = errors.New("page not found")

	// ErrConcurrencyConflict is returned when a row changed underneath an
	// update. Mutations retry on it; it reaches callers only once the retry
	// budget is spent.
	ErrConcurrencyConflict = errors.New("concurrent modification")
)

// StructuralError reports an operation that would break the tree, or a tree
// that is already broken. The transaction is aborted and nothing is written.
type StructuralError struct {
	Op     string
	PageID int64
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s page %d: %s", e.Op, e.PageID, e.Reason)
}

// ValidationError reports user-correctable input problems, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MetricLabel names the error in mutation metrics.
func (e *StructuralError) MetricLabel() string { return "structural" }

// MetricLabel names the error in mutation metrics.
func (e *ValidationError) MetricLabel() string { return "validation" }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// IsStructural reports whether err is (or wraps) a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
