// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/pagescore/internal/store"
)

// SweepResult summarises one autopublish sweep.
type SweepResult struct {
	Scanned int
	Cleared []int64
}

// SweepAutopublish clears the autopublish flag on every page whose
// publication time falls before now plus the fuzziness window. Status is
// never touched. Each row is cleared in its own transaction, so a sweep may
// be stopped at any point and run again.
func (s *Service) SweepAutopublish(ctx context.Context) (SweepResult, Effects, error) {
	var result SweepResult

	candidates, err := s.queries.ListAutopublishPages(ctx)
	if err != nil {
		return result, nil, fmt.Errorf("listing autopublish pages: %w", err)
	}
	result.Scanned = len(candidates)

	threshold := s.now().Add(s.fuzziness)
	var effects Effects
	for _, p := range candidates {
		if !p.PublishedAt.Before(threshold) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, effects, err
		}
		cleared, err := s.clearAutopublish(ctx, p.ID, threshold)
		if err != nil {
			return result, effects, err
		}
		if cleared {
			result.Cleared = append(result.Cleared, p.ID)
			effects = append(effects, SweepCache{PageID: p.ID})
		}
	}

	s.metrics.AutopublishSweep(len(result.Cleared))
	if len(result.Cleared) > 0 {
		s.logger.Info("autopublish sweep released pages", "count", len(result.Cleared), "scanned", result.Scanned)
	}
	return result, effects, nil
}

// ClearAutopublish releases a single page if it is due. It is the task run
// for a ScheduleAutopublish effect. A page that is no longer flagged, no
// longer due or no longer exists is left alone.
func (s *Service) ClearAutopublish(ctx context.Context, id int64) (bool, Effects, error) {
	cleared, err := s.clearAutopublish(ctx, id, s.now().Add(s.fuzziness))
	if err != nil || !cleared {
		return false, nil, err
	}
	s.logger.Info("page autopublished", "page_id", id)
	return true, Effects{SweepCache{PageID: id}}, nil
}

func (s *Service) clearAutopublish(ctx context.Context, id int64, threshold time.Time) (bool, error) {
	var cleared bool
	err := s.mutate(ctx, "autopublish", func(q *store.Queries) error {
		cleared = false
		p, err := loadPage(ctx, q, id)
		if err != nil {
			return err
		}
		if !p.Autopublish || !p.PublishedAt.Before(threshold) {
			return nil
		}
		n, err := q.ClearAutopublish(ctx, store.ClearAutopublishParams{
			ID:          p.ID,
			LockVersion: p.LockVersion,
			UpdatedAt:   s.now(),
		})
		if err != nil {
			return fmt.Errorf("clearing autopublish on page %d: %w", p.ID, err)
		}
		if n == 0 {
			return ErrConcurrencyConflict
		}
		cleared = true
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return cleared, err
}
