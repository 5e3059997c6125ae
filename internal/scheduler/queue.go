// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/pagescore/internal/metrics"
)

// Task is a unit of deferred work.
type Task func(ctx context.Context) error

type pendingTask struct {
	timer *time.Timer
	at    time.Time
	seq   uint64
}

// Queue runs tasks at a point in time. Tasks are keyed: scheduling a key
// that is already pending replaces the earlier task. The queue is held in
// memory only; work lost on restart must be recoverable by a periodic job.
type Queue struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*pendingTask
	seq     uint64
	closed  bool
	wg      sync.WaitGroup
}

// NewQueue creates an empty queue. m may be nil.
func NewQueue(logger *slog.Logger, m *metrics.Metrics) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		logger:  logger,
		metrics: m,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*pendingTask),
	}
}

// RunAt schedules task to run at at under key. A time in the past runs the
// task right away. It returns false once the queue is stopped.
func (q *Queue) RunAt(key string, at time.Time, task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if prev, ok := q.pending[key]; ok {
		prev.timer.Stop()
	}

	q.seq++
	seq := q.seq
	delay := at.Sub(q.now())
	if delay < 0 {
		delay = 0
	}
	q.pending[key] = &pendingTask{
		at:    at,
		seq:   seq,
		timer: time.AfterFunc(delay, func() { q.fire(key, seq, task) }),
	}
	q.metrics.SetPendingTasks(len(q.pending))
	return true
}

func (q *Queue) fire(key string, seq uint64, task Task) {
	q.mu.Lock()
	p, ok := q.pending[key]
	if q.closed || !ok || p.seq != seq {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	q.metrics.SetPendingTasks(len(q.pending))
	q.wg.Add(1)
	q.mu.Unlock()

	defer q.wg.Done()
	if err := task(q.ctx); err != nil {
		q.logger.Error("deferred task failed", "key", key, "error", err)
	}
}

// Cancel drops a pending task. It reports whether one was pending.
func (q *Queue) Cancel(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(q.pending, key)
	q.metrics.SetPendingTasks(len(q.pending))
	return true
}

// Pending returns the number of tasks waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// NextRun returns when the task under key is due.
func (q *Queue) NextRun(key string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[key]
	if !ok {
		return time.Time{}, false
	}
	return p.at, true
}

// Stop drops all pending tasks, cancels running ones and waits for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	for key, p := range q.pending {
		p.timer.Stop()
		delete(q.pending, key)
	}
	q.metrics.SetPendingTasks(0)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	q.logger.Info("task queue stopped")
}
