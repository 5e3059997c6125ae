// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/scheduler"
)

// TaskQueue runs deferred tasks.
type TaskQueue interface {
	RunAt(key string, at time.Time, task scheduler.Task) bool
}

// CacheSweeper accepts static cache sweep requests.
type CacheSweeper interface {
	Sweep(pageID int64) string
	SweepAll() string
}

// Releaser clears the autopublish flag of a due page.
type Releaser interface {
	ClearAutopublish(ctx context.Context, id int64) (bool, page.Effects, error)
}

// EffectRunner executes the effects returned by page mutations once their
// transaction has committed.
type EffectRunner struct {
	pages   Releaser
	queue   TaskQueue
	sweeper CacheSweeper
	events  *EventService
	logger  *slog.Logger
}

// NewEffectRunner creates an effect runner. events may be nil.
func NewEffectRunner(pages Releaser, queue TaskQueue, sweeper CacheSweeper, events *EventService, logger *slog.Logger) *EffectRunner {
	return &EffectRunner{
		pages:   pages,
		queue:   queue,
		sweeper: sweeper,
		events:  events,
		logger:  logger,
	}
}

// AutopublishKey is the task queue key of a page's autopublish task.
func AutopublishKey(pageID int64) string {
	return "autopublish:" + strconv.FormatInt(pageID, 10)
}

// Run executes effects in order.
func (r *EffectRunner) Run(effects page.Effects) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case page.SweepCache:
			id := r.sweeper.Sweep(e.PageID)
			r.logger.Debug("cache sweep requested", "page_id", e.PageID, "sweep_id", id)
		case page.SweepAll:
			id := r.sweeper.SweepAll()
			r.logger.Debug("full cache sweep requested", "sweep_id", id)
		case page.ScheduleAutopublish:
			r.scheduleAutopublish(e)
		default:
			r.logger.Warn("ignoring unknown effect", "effect", eff)
		}
	}
}

func (r *EffectRunner) scheduleAutopublish(e page.ScheduleAutopublish) {
	key := AutopublishKey(e.PageID)
	ok := r.queue.RunAt(key, e.At, func(ctx context.Context) error {
		return r.release(ctx, e.PageID)
	})
	if !ok {
		r.logger.Warn("autopublish task not queued; the periodic sweep will release the page",
			"page_id", e.PageID, "at", e.At)
		return
	}
	r.logger.Debug("autopublish scheduled", "page_id", e.PageID, "at", e.At)
}

func (r *EffectRunner) release(ctx context.Context, pageID int64) error {
	cleared, effects, err := r.pages.ClearAutopublish(ctx, pageID)
	if err != nil {
		return err
	}
	if !cleared {
		return nil
	}
	r.Run(effects)
	if r.events != nil {
		_ = r.events.LogPageEvent(ctx, model.EventLevelInfo, "Page autopublished", map[string]any{"page_id": pageID})
	}
	return nil
}
