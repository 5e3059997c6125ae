// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/olegiv/pagescore/internal/store"
)

// Registry errors
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrTriggerUnavailable = errors.New("manual trigger not available")
	ErrTriggerLimited     = errors.New("job was triggered too recently")
)

// triggerInterval is the minimum spacing between manual triggers of one job.
const triggerInterval = 10 * time.Second

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron expression (five fields or a descriptor
// such as "@every 5m").
func ParseSchedule(expr string) (cron.Schedule, error) {
	s, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// Job describes a periodic job. Schedule is the default; an override stored
// in scheduler_overrides takes precedence.
type Job struct {
	Source      string
	Name        string
	Description string
	Schedule    string
	Run         func(ctx context.Context) error
	// Manual allows the job to be run on demand through TriggerNow.
	Manual bool
}

type registeredJob struct {
	job          Job
	schedule     string // effective schedule (override or default)
	cronInstance *cron.Cron
	entryID      cron.EntryID
	cronFunc     func()
	limiter      *rate.Limiter
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Source          string    `json:"source"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"default_schedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"is_overridden"`
	LastRun         time.Time `json:"last_run"`
	NextRun         time.Time `json:"next_run"`
	CanTrigger      bool      `json:"can_trigger"`
}

// Registry tracks periodic jobs and their persisted schedule overrides.
type Registry struct {
	db      *sql.DB
	queries *store.Queries
	logger  *slog.Logger
	mu      sync.RWMutex
	jobs    map[string]*registeredJob // key: "source:name"
}

// NewRegistry creates a registry and makes sure the overrides table exists.
func NewRegistry(db *sql.DB, logger *slog.Logger) *Registry {
	r := &Registry{
		db:      db,
		queries: store.New(db),
		logger:  logger,
		jobs:    make(map[string]*registeredJob),
	}
	r.ensureTable()
	return r
}

// ensureTable creates scheduler_overrides when the registry is used before
// (or without) migrations.
func (r *Registry) ensureTable() {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduler_overrides (
			source TEXT NOT NULL,
			name TEXT NOT NULL,
			override_schedule TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (source, name)
		)
	`)
	if err != nil {
		r.logger.Error("failed to create scheduler_overrides table", "error", err)
	}
}

func jobKey(source, name string) string {
	return source + ":" + name
}

func (r *Registry) lookup(source, name string) (*registeredJob, error) {
	job, ok := r.jobs[jobKey(source, name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrJobNotFound, source, name)
	}
	return job, nil
}

// EffectiveSchedule returns the stored override for a job, or def when there
// is none or it no longer parses.
func (r *Registry) EffectiveSchedule(ctx context.Context, source, name, def string) string {
	override, err := r.queries.GetSchedulerOverride(ctx, store.GetSchedulerOverrideParams{
		Source: source,
		Name:   name,
	})
	if err != nil || override == "" {
		return def
	}
	if _, err := ParseSchedule(override); err != nil {
		r.logger.Warn("ignoring invalid schedule override", "source", source, "name", name, "schedule", override, "error", err)
		return def
	}
	return override
}

// Register adds job to c under its effective schedule. cronFunc is what
// cron invokes; it is kept so the entry can be re-added on reschedule.
func (r *Registry) Register(ctx context.Context, c *cron.Cron, job Job, cronFunc func()) error {
	if _, err := ParseSchedule(job.Schedule); err != nil {
		return fmt.Errorf("job %s:%s: %w", job.Source, job.Name, err)
	}
	schedule := r.EffectiveSchedule(ctx, job.Source, job.Name, job.Schedule)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := jobKey(job.Source, job.Name)
	if _, exists := r.jobs[key]; exists {
		return fmt.Errorf("job %s already registered", key)
	}
	entryID, err := c.AddFunc(schedule, cronFunc)
	if err != nil {
		return fmt.Errorf("scheduling job %s: %w", key, err)
	}

	r.jobs[key] = &registeredJob{
		job:          job,
		schedule:     schedule,
		cronInstance: c,
		entryID:      entryID,
		cronFunc:     cronFunc,
		limiter:      rate.NewLimiter(rate.Every(triggerInterval), 1),
	}
	r.logger.Debug("registered scheduled job", "source", job.Source, "name", job.Name, "schedule", schedule)
	return nil
}

// List returns all registered jobs sorted by source then name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, rj := range r.jobs {
		info := JobInfo{
			Source:          rj.job.Source,
			Name:            rj.job.Name,
			Description:     rj.job.Description,
			DefaultSchedule: rj.job.Schedule,
			Schedule:        rj.schedule,
			IsOverridden:    rj.schedule != rj.job.Schedule,
			CanTrigger:      rj.job.Manual,
		}
		if rj.cronInstance != nil {
			entry := rj.cronInstance.Entry(rj.entryID)
			info.NextRun = entry.Next
			info.LastRun = entry.Prev
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// TriggerNow runs a job immediately in the caller's goroutine.
func (r *Registry) TriggerNow(ctx context.Context, source, name string) error {
	r.mu.RLock()
	rj, err := r.lookup(source, name)
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	if !rj.job.Manual {
		return fmt.Errorf("%w: %s:%s", ErrTriggerUnavailable, source, name)
	}
	if !rj.limiter.Allow() {
		return fmt.Errorf("%w: %s:%s", ErrTriggerLimited, source, name)
	}

	r.logger.Info("manually triggering job", "source", source, "name", name)
	return rj.job.Run(ctx)
}

// reschedule swaps the cron entry of rj to schedule. The caller holds r.mu.
func (r *Registry) reschedule(rj *registeredJob, schedule string) error {
	rj.cronInstance.Remove(rj.entryID)
	entryID, err := rj.cronInstance.AddFunc(schedule, rj.cronFunc)
	if err != nil {
		fallbackID, fallbackErr := rj.cronInstance.AddFunc(rj.schedule, rj.cronFunc)
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		rj.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}
	rj.entryID = entryID
	rj.schedule = schedule
	return nil
}

// UpdateSchedule replaces the cron entry of a job and persists the override.
func (r *Registry) UpdateSchedule(ctx context.Context, source, name, schedule string) error {
	if _, err := ParseSchedule(schedule); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rj, err := r.lookup(source, name)
	if err != nil {
		return err
	}
	if err := r.reschedule(rj, schedule); err != nil {
		return err
	}

	if err := r.queries.UpsertSchedulerOverride(ctx, store.UpsertSchedulerOverrideParams{
		Source:           source,
		Name:             name,
		OverrideSchedule: schedule,
	}); err != nil {
		r.logger.Error("failed to persist schedule override", "error", err, "source", source, "name", name)
	}

	r.logger.Info("updated job schedule", "source", source, "name", name, "schedule", schedule)
	return nil
}

// ResetSchedule removes the override and restores the default schedule.
func (r *Registry) ResetSchedule(ctx context.Context, source, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rj, err := r.lookup(source, name)
	if err != nil {
		return err
	}
	if rj.schedule != rj.job.Schedule {
		if err := r.reschedule(rj, rj.job.Schedule); err != nil {
			return err
		}
	}

	// Drop the row even when the in-memory schedule already matched, so an
	// override that failed to parse at startup does not linger.
	if err := r.queries.DeleteSchedulerOverride(ctx, store.DeleteSchedulerOverrideParams{
		Source: source,
		Name:   name,
	}); err != nil {
		r.logger.Error("failed to remove schedule override", "error", err, "source", source, "name", name)
	}

	r.logger.Info("reset job schedule to default", "source", source, "name", name, "schedule", rj.job.Schedule)
	return nil
}

// Unregister removes a job and its cron entry. Stored overrides are kept.
func (r *Registry) Unregister(source, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rj, err := r.lookup(source, name)
	if err != nil {
		return
	}
	if rj.cronInstance != nil {
		rj.cronInstance.Remove(rj.entryID)
	}
	delete(r.jobs, jobKey(source, name))
	r.logger.Debug("unregistered scheduled job", "source", source, "name", name)
}
