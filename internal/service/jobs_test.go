// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/pagescore/internal/page"
	"github.com/olegiv/pagescore/internal/scheduler"
	"github.com/olegiv/pagescore/internal/testutil"
)

type fakeAutopublisher struct {
	result  page.SweepResult
	effects page.Effects
	err     error
}

func (f fakeAutopublisher) SweepAutopublish(context.Context) (page.SweepResult, page.Effects, error) {
	return f.result, f.effects, f.err
}

type fakeStaticCache struct {
	calls int
	err   error
}

func (f *fakeStaticCache) SweepNow(context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

func TestAutopublishJob(t *testing.T) {
	sweeper := &fakeSweeper{}
	r := NewEffectRunner(nil, newFakeQueue(), sweeper, nil, testutil.DiscardLogger())
	pages := fakeAutopublisher{
		result:  page.SweepResult{Scanned: 2, Cleared: []int64{5}},
		effects: page.Effects{page.SweepCache{PageID: 5}},
	}

	job := AutopublishJob(pages, r, "", testutil.DiscardLogger())
	assert.Equal(t, scheduler.SourceCore, job.Source)
	assert.Equal(t, scheduler.JobAutopublish, job.Name)
	assert.Equal(t, DefaultAutopublishSchedule, job.Schedule)
	assert.True(t, job.Manual)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []int64{5}, sweeper.pages)
}

func TestAutopublishJob_PartialFailureStillSweeps(t *testing.T) {
	sweeper := &fakeSweeper{}
	r := NewEffectRunner(nil, newFakeQueue(), sweeper, nil, testutil.DiscardLogger())
	pages := fakeAutopublisher{
		effects: page.Effects{page.SweepCache{PageID: 9}},
		err:     errors.New("disk I/O error"),
	}

	err := AutopublishJob(pages, r, "*/5 * * * *", testutil.DiscardLogger()).Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []int64{9}, sweeper.pages)
}

func TestCacheSweepJob(t *testing.T) {
	db := setupEventTestDB(t)
	events := NewEventService(db, testutil.DiscardLogger())
	sc := &fakeStaticCache{}

	job := CacheSweepJob(sc, events, nil, "")
	assert.Equal(t, DefaultCacheSweepSchedule, job.Schedule)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sc.calls)

	logged, err := events.List(context.Background(), "cache", 10, 0)
	require.NoError(t, err)
	assert.Len(t, logged, 1)

	sc.err = errors.New("redis down")
	assert.Error(t, job.Run(context.Background()))
}

func TestEventPruneJob(t *testing.T) {
	db := setupEventTestDB(t)
	events := NewEventService(db, testutil.DiscardLogger())
	ctx := context.Background()

	old := time.Now().UTC().Add(-60 * 24 * time.Hour).Truncate(time.Second)
	_, err := db.Exec(`INSERT INTO events (level, category, message, metadata, created_at) VALUES ('info', 'system', 'old', '{}', ?)`, old)
	require.NoError(t, err)

	job := EventPruneJob(events, 0, "", testutil.DiscardLogger())
	assert.False(t, job.Manual)
	require.NoError(t, job.Run(ctx))

	remaining, err := events.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestJobSchedulesParse(t *testing.T) {
	for _, expr := range []string{DefaultAutopublishSchedule, DefaultCacheSweepSchedule, DefaultEventPruneSchedule} {
		_, err := scheduler.ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}
}
