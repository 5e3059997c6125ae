// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package page implements the page tree: status transitions, sibling
// ordering, tree traversal and the autopublish sweep. Every mutation runs
// in one transaction and returns the effects the caller must execute after
// commit.
package page

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/olegiv/pagescore/internal/metrics"
	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/store"
)

// DefaultFuzziness is how far ahead of its publication time a page may be
// released by the sweep.
const DefaultFuzziness = 2 * time.Minute

// DefaultMaxRetries is the number of attempts made on a conflicting mutation.
const DefaultMaxRetries = 3

// Options configures a Service.
type Options struct {
	MaxRetries int
	Fuzziness  time.Duration
	Now        func() time.Time
	Metrics    *metrics.Metrics
}

// Service owns all page reads and mutations.
type Service struct {
	db         *sql.DB
	queries    *store.Queries
	logger     *slog.Logger
	maxRetries int
	fuzziness  time.Duration
	clock      func() time.Time
	metrics    *metrics.Metrics
}

// NewService creates a page service.
func NewService(db *sql.DB, logger *slog.Logger, opts Options) *Service {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Fuzziness <= 0 {
		opts.Fuzziness = DefaultFuzziness
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:         db,
		queries:    store.New(db),
		logger:     logger,
		maxRetries: opts.MaxRetries,
		fuzziness:  opts.Fuzziness,
		clock:      opts.Now,
		metrics:    opts.Metrics,
	}
}

// Fuzziness returns the configured autopublish tolerance.
func (s *Service) Fuzziness() time.Duration {
	return s.fuzziness
}

// now returns the current time in the form stored in the database.
func (s *Service) now() time.Time {
	return normalizeTime(s.clock())
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || store.IsBusy(err)
}

// mutate runs fn in a transaction, retrying on conflicts. fn must rebuild
// all of its state on every attempt.
func (s *Service) mutate(ctx context.Context, op string, fn func(q *store.Queries) error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = store.InTx(ctx, s.db, fn)
		if err == nil || !retryable(err) {
			s.metrics.Mutation(op, err)
			return err
		}

		s.metrics.ConflictRetry(op)
		s.logger.Debug("page mutation conflicted", "op", op, "attempt", attempt, "error", err)

		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}
	}

	s.logger.Warn("page mutation retries exhausted", "op", op, "attempts", s.maxRetries, "error", err)
	err = fmt.Errorf("%s after %d attempts: %w", op, s.maxRetries, ErrConcurrencyConflict)
	s.metrics.Mutation(op, err)
	return err
}

func parentKey(parent sql.NullInt64) int64 {
	if !parent.Valid {
		return 0
	}
	return parent.Int64
}

// lockSiblingSets bumps the lock rows of the given sibling sets in key order.
func lockSiblingSets(ctx context.Context, q *store.Queries, parents ...sql.NullInt64) error {
	keys := make([]int64, 0, len(parents))
	for _, p := range parents {
		keys = append(keys, parentKey(p))
	}
	slices.Sort(keys)
	for _, k := range slices.Compact(keys) {
		if _, err := q.BumpSiblingLock(ctx, k); err != nil {
			return fmt.Errorf("locking sibling set %d: %w", k, err)
		}
	}
	return nil
}

func loadPage(ctx context.Context, q *store.Queries, id int64) (model.Page, error) {
	p, err := q.GetPage(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, fmt.Errorf("page %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Page{}, fmt.Errorf("loading page %d: %w", id, err)
	}
	return p, nil
}

// loadParent resolves a parent reference for a write. A missing parent is a
// user error, not a lookup failure.
func loadParent(ctx context.Context, q *store.Queries, parent sql.NullInt64) (*model.Page, error) {
	if !parent.Valid {
		return nil, nil
	}
	p, err := loadPage(ctx, q, parent.Int64)
	if errors.Is(err, ErrNotFound) {
		return nil, invalid("parent_id", fmt.Sprintf("parent page %d does not exist", parent.Int64))
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns a page by ID.
func (s *Service) Get(ctx context.Context, id int64) (model.Page, error) {
	return loadPage(ctx, s.queries, id)
}

// FindByUniqueName returns the page registered under a unique name.
func (s *Service) FindByUniqueName(ctx context.Context, name string) (model.Page, error) {
	p, err := s.queries.GetPageByUniqueName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, fmt.Errorf("page %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.Page{}, fmt.Errorf("loading page %q: %w", name, err)
	}
	return p, nil
}
