// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	logger := testLogger()
	s := New(testDB(t), logger)
	if s.cron == nil {
		t.Error("New() scheduler has nil cron")
	}
	if s.Registry() == nil {
		t.Error("New() scheduler has nil registry")
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(testDB(t), testLogger())

	ran := make(chan struct{}, 1)
	err := s.Add(Job{
		Source:   SourceCore,
		Name:     JobCacheSweep,
		Schedule: "@every 1s",
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return errors.New("logged, not fatal")
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestSchedulerStopCancelsRunningJob(t *testing.T) {
	s := New(testDB(t), testLogger())

	started := make(chan struct{})
	cancelled := make(chan struct{})
	err := s.Add(Job{
		Source:   SourceCore,
		Name:     "slow",
		Schedule: "@every 1s",
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}
	s.Stop()

	select {
	case <-cancelled:
	default:
		t.Error("Stop returned before the running job observed cancellation")
	}
}
