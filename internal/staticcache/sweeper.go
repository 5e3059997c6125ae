// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package staticcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/pagescore/internal/metrics"
)

// SweepConfig holds the coalescing window of sweep requests.
type SweepConfig struct {
	// Interval is the quiet period after the last request before sweeping.
	Interval time.Duration
	// MaxWait is the longest a request waits, even if requests keep coming.
	MaxWait time.Duration
	// Timeout bounds one sweep.
	Timeout time.Duration
}

// DefaultSweepConfig returns the default coalescing window.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval: time.Second,
		MaxWait:  5 * time.Second,
		Timeout:  30 * time.Second,
	}
}

type pendingSweep struct {
	id        string
	timer     *time.Timer
	firstSeen time.Time
	pages     map[int64]struct{}
	all       bool
}

// Sweeper coalesces sweep requests from page mutations into one sweep of
// the handler. A request is never dropped: a failed sweep is retried after
// another interval.
type Sweeper struct {
	handler *Handler
	config  SweepConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending *pendingSweep
	stopped bool
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper for h.
func NewSweeper(h *Handler, config SweepConfig, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	def := DefaultSweepConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.MaxWait < config.Interval {
		config.MaxWait = config.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Sweeper{handler: h, config: config, logger: logger, metrics: m}
}

// Sweep requests a sweep on behalf of a changed page and returns the ID of
// the sweep that will serve the request.
func (s *Sweeper) Sweep(pageID int64) string {
	return s.request(func(p *pendingSweep) { p.pages[pageID] = struct{}{} })
}

// SweepAll requests a sweep not tied to a page.
func (s *Sweeper) SweepAll() string {
	return s.request(func(p *pendingSweep) { p.all = true })
}

func (s *Sweeper) request(mark func(*pendingSweep)) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Warn("static cache sweep requested after shutdown, ignoring")
		return ""
	}

	now := time.Now()
	if s.pending == nil {
		p := &pendingSweep{
			id:        uuid.NewString(),
			firstSeen: now,
			pages:     make(map[int64]struct{}),
		}
		p.timer = time.AfterFunc(s.config.Interval, func() { s.fire(p) })
		s.pending = p
		mark(p)
		s.logger.Debug("static cache sweep queued", "sweep_id", p.id)
		return p.id
	}

	p := s.pending
	mark(p)
	wait := s.config.Interval
	if remaining := s.config.MaxWait - now.Sub(p.firstSeen); remaining < wait {
		wait = max(remaining, 0)
	}
	p.timer.Reset(wait)
	return p.id
}

// fire runs p if it is still the pending sweep.
func (s *Sweeper) fire(p *pendingSweep) {
	s.mu.Lock()
	if s.pending != p {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.run(p)
}

func (s *Sweeper) run(p *pendingSweep) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	removed, err := s.handler.SweepNow(ctx)
	if err != nil {
		s.logger.Error("static cache sweep failed", "sweep_id", p.id, "error", err)
		s.requeue(p)
		return
	}

	trigger := "page"
	if p.all {
		trigger = "all"
	}
	s.metrics.CacheSweep(trigger)
	s.logger.Info("static cache swept", "sweep_id", p.id, "pages", len(p.pages), "count", removed)
}

// requeue merges a failed sweep back into the pending one.
func (s *Sweeper) requeue(p *pendingSweep) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Warn("dropping failed static cache sweep after shutdown", "sweep_id", p.id)
		return
	}
	if s.pending != nil {
		for id := range p.pages {
			s.pending.pages[id] = struct{}{}
		}
		s.pending.all = s.pending.all || p.all
		return
	}
	p.firstSeen = time.Now()
	p.timer = time.AfterFunc(s.config.Interval, func() { s.fire(p) })
	s.pending = p
}

// Pending reports whether a sweep is waiting to run.
func (s *Sweeper) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// takePending detaches the pending sweep, if any, and registers it as
// running. stop also marks the sweeper stopped in the same critical section.
func (s *Sweeper) takePending(stop bool) *pendingSweep {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop {
		s.stopped = true
	}
	p := s.pending
	if p == nil {
		return nil
	}
	p.timer.Stop()
	s.pending = nil
	s.wg.Add(1)
	return p
}

// Flush runs the pending sweep now and waits for it.
func (s *Sweeper) Flush() {
	if p := s.takePending(false); p != nil {
		defer s.wg.Done()
		s.run(p)
	}
}

// Stop refuses further requests, runs the pending sweep and waits for
// running ones. A sweep that fails during Stop is not retried.
func (s *Sweeper) Stop() {
	if p := s.takePending(true); p != nil {
		s.run(p)
		s.wg.Done()
	}
	s.wg.Wait()
}
