// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/pagescore/internal/metrics"
	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/scheduler"
)

// Default job schedules
const (
	DefaultAutopublishSchedule = "* * * * *"
	DefaultCacheSweepSchedule  = "@every 1h"
	DefaultEventPruneSchedule  = "0 3 * * *"
)

// Autopublisher runs the bulk autopublish sweep.
type Autopublisher interface {
	SweepAutopublish(ctx context.Context) (page.SweepResult, page.Effects, error)
}

// StaticCache is the sweep side of the static page cache.
type StaticCache interface {
	SweepNow(ctx context.Context) (int, error)
}

// AutopublishJob releases every due page and executes the resulting cache
// sweeps. It also recovers autopublish tasks lost from the task queue.
func AutopublishJob(pages Autopublisher, runner *EffectRunner, schedule string, logger *slog.Logger) scheduler.Job {
	if schedule == "" {
		schedule = DefaultAutopublishSchedule
	}
	return scheduler.Job{
		Source:      scheduler.SourceCore,
		Name:        scheduler.JobAutopublish,
		Description: "Publish pages whose publication time has arrived",
		Schedule:    schedule,
		Manual:      true,
		Run: func(ctx context.Context) error {
			result, effects, err := pages.SweepAutopublish(ctx)
			// Pages released before a failure still need their sweep.
			runner.Run(effects)
			if err != nil {
				return fmt.Errorf("autopublish sweep: %w", err)
			}
			logger.Debug("autopublish sweep finished", "scanned", result.Scanned, "count", len(result.Cleared))
			return nil
		},
	}
}

// CacheSweepJob sweeps the static cache right away, bypassing the debouncer.
func CacheSweepJob(cache StaticCache, events *EventService, m *metrics.Metrics, schedule string) scheduler.Job {
	if schedule == "" {
		schedule = DefaultCacheSweepSchedule
	}
	return scheduler.Job{
		Source:      scheduler.SourceCore,
		Name:        scheduler.JobCacheSweep,
		Description: "Remove all sweepable pages from the static cache",
		Schedule:    schedule,
		Manual:      true,
		Run: func(ctx context.Context) error {
			n, err := cache.SweepNow(ctx)
			if err != nil {
				return err
			}
			m.CacheSweep("job")
			if events != nil && n > 0 {
				_ = events.LogCacheEvent(ctx, model.EventLevelInfo, "Static cache swept", map[string]any{"count": n})
			}
			return nil
		},
	}
}

// EventPruneJob removes events older than retention.
func EventPruneJob(events *EventService, retention time.Duration, schedule string, logger *slog.Logger) scheduler.Job {
	if schedule == "" {
		schedule = DefaultEventPruneSchedule
	}
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	return scheduler.Job{
		Source:      scheduler.SourceCore,
		Name:        scheduler.JobEventPrune,
		Description: "Delete old event log entries",
		Schedule:    schedule,
		Run: func(ctx context.Context) error {
			n, err := events.DeleteOldEvents(ctx, retention)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned event log", "count", n)
			}
			return nil
		},
	}
}
