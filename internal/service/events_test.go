// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/olegiv/pagescore/internal/model"
	"github.com/olegiv/pagescore/internal/testutil"
)

func setupEventTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	return db
}

func TestLogEvent(t *testing.T) {
	db := setupEventTestDB(t)
	svc := NewEventService(db, testutil.TestLogger())
	ctx := context.Background()

	err := svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryPage, "Page created", map[string]any{"page_id": 7})
	if err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	events, err := svc.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Level != model.EventLevelInfo || e.Category != model.EventCategoryPage || e.Message != "Page created" {
		t.Errorf("unexpected event %+v", e)
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["page_id"] != float64(7) {
		t.Errorf("metadata page_id = %v, want 7", meta["page_id"])
	}
}

func TestLogEvent_NilMetadata(t *testing.T) {
	db := setupEventTestDB(t)
	svc := NewEventService(db, testutil.TestLogger())
	ctx := context.Background()

	if err := svc.LogInfo(ctx, model.EventCategorySystem, "Started", nil); err != nil {
		t.Fatalf("LogInfo: %v", err)
	}
	events, err := svc.List(ctx, model.EventCategorySystem, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || events[0].Metadata != "{}" {
		t.Errorf("got %+v, want one event with empty metadata", events)
	}
}

func TestLogLevels(t *testing.T) {
	db := setupEventTestDB(t)
	svc := NewEventService(db, testutil.TestLogger())
	ctx := context.Background()

	_ = svc.LogInfo(ctx, model.EventCategorySystem, "info", nil)
	_ = svc.LogWarning(ctx, model.EventCategorySystem, "warning", nil)
	_ = svc.LogError(ctx, model.EventCategorySystem, "error", nil)

	events, err := svc.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	levels := map[string]bool{}
	for _, e := range events {
		levels[e.Level] = true
	}
	for _, want := range []string{model.EventLevelInfo, model.EventLevelWarning, model.EventLevelError} {
		if !levels[want] {
			t.Errorf("missing %s event", want)
		}
	}
}

func TestLogCategoryEvents(t *testing.T) {
	db := setupEventTestDB(t)
	svc := NewEventService(db, testutil.TestLogger())
	ctx := context.Background()

	_ = svc.LogPageEvent(ctx, model.EventLevelInfo, "page", nil)
	_ = svc.LogCacheEvent(ctx, model.EventLevelInfo, "cache", nil)
	_ = svc.LogSchedulerEvent(ctx, model.EventLevelInfo, "scheduler", nil)

	tests := []struct {
		category string
		message  string
	}{
		{model.EventCategoryPage, "page"},
		{model.EventCategoryCache, "cache"},
		{model.EventCategoryScheduler, "scheduler"},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			events, err := svc.List(ctx, tt.category, 10, 0)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(events) != 1 || events[0].Message != tt.message {
				t.Errorf("got %+v", events)
			}
		})
	}
}

func TestDeleteOldEvents(t *testing.T) {
	db := setupEventTestDB(t)
	svc := NewEventService(db, testutil.TestLogger())
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	if _, err := db.Exec(`INSERT INTO events (level, category, message, metadata, created_at) VALUES ('info', 'system', 'old', '{}', ?)`, old); err != nil {
		t.Fatalf("inserting old event: %v", err)
	}
	_ = svc.LogInfo(ctx, model.EventCategorySystem, "new", nil)

	n, err := svc.DeleteOldEvents(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldEvents: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d events, want 1", n)
	}
	events, _ := svc.List(ctx, "", 10, 0)
	if len(events) != 1 || events[0].Message != "new" {
		t.Errorf("remaining events = %+v", events)
	}
}
