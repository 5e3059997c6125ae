// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
)

const getSchedulerOverride = `SELECT override_schedule FROM scheduler_overrides
WHERE source = ? AND name = ?`

// GetSchedulerOverrideParams identifies a job.
type GetSchedulerOverrideParams struct {
	Source string
	Name   string
}

// GetSchedulerOverride returns the stored cron expression for a job.
func (q *Queries) GetSchedulerOverride(ctx context.Context, arg GetSchedulerOverrideParams) (string, error) {
	var schedule string
	err := q.db.QueryRowContext(ctx, getSchedulerOverride, arg.Source, arg.Name).Scan(&schedule)
	return schedule, err
}

const upsertSchedulerOverride = `INSERT INTO scheduler_overrides (source, name, override_schedule, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (source, name) DO UPDATE SET
	override_schedule = excluded.override_schedule,
	updated_at = CURRENT_TIMESTAMP`

// UpsertSchedulerOverrideParams holds a schedule override.
type UpsertSchedulerOverrideParams struct {
	Source           string
	Name             string
	OverrideSchedule string
}

// UpsertSchedulerOverride stores a schedule override for a job.
func (q *Queries) UpsertSchedulerOverride(ctx context.Context, arg UpsertSchedulerOverrideParams) error {
	_, err := q.db.ExecContext(ctx, upsertSchedulerOverride, arg.Source, arg.Name, arg.OverrideSchedule)
	return err
}

const deleteSchedulerOverride = `DELETE FROM scheduler_overrides WHERE source = ? AND name = ?`

// DeleteSchedulerOverrideParams identifies a job.
type DeleteSchedulerOverrideParams struct {
	Source string
	Name   string
}

// DeleteSchedulerOverride removes a schedule override.
func (q *Queries) DeleteSchedulerOverride(ctx context.Context, arg DeleteSchedulerOverrideParams) error {
	_, err := q.db.ExecContext(ctx, deleteSchedulerOverride, arg.Source, arg.Name)
	return err
}
