// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/pagescore/internal/scheduler"
)

// ScheduleRequest is the body of PUT /jobs/{source}/{name}/schedule.
type ScheduleRequest struct {
	Schedule string `json:"schedule" validate:"required,max=100"`
}

func (h *Handler) requireJobs(w http.ResponseWriter) bool {
	if h.jobs == nil {
		WriteUnavailable(w, "unavailable", "Scheduler is not running")
		return false
	}
	return true
}

func (h *Handler) writeJobError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		WriteNotFound(w, "Job not found")
	case errors.Is(err, scheduler.ErrTriggerUnavailable):
		WriteError(w, http.StatusConflict, "trigger_unavailable", "Job cannot be triggered manually", nil)
	case errors.Is(err, scheduler.ErrTriggerLimited):
		w.Header().Set("Retry-After", "60")
		WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Job was triggered too recently", nil)
	default:
		h.logger.Error("job operation failed", "op", op, "error", err)
		WriteInternalError(w, "Failed to "+op)
	}
}

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	jobs := h.jobs.List()
	WriteSuccess(w, jobs, &Meta{Total: int64(len(jobs))})
}

// TriggerJob handles POST /api/v1/jobs/{source}/{name}/trigger. The job
// runs in the request goroutine and its error is reported.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")
	if err := h.jobs.TriggerNow(r.Context(), source, name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) ||
			errors.Is(err, scheduler.ErrTriggerUnavailable) ||
			errors.Is(err, scheduler.ErrTriggerLimited) {
			h.writeJobError(w, "trigger job", err)
			return
		}
		h.logger.Warn("manually triggered job failed", "source", source, "name", name, "error", err)
		WriteError(w, http.StatusBadGateway, "job_failed", err.Error(), nil)
		return
	}
	WriteSuccess(w, map[string]string{"source": source, "name": name, "status": "completed"}, nil)
}

// UpdateJobSchedule handles PUT /api/v1/jobs/{source}/{name}/schedule.
func (h *Handler) UpdateJobSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	var req ScheduleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")
	if _, err := scheduler.ParseSchedule(req.Schedule); err != nil {
		WriteValidationError(w, map[string]string{"schedule": err.Error()})
		return
	}
	if err := h.jobs.UpdateSchedule(r.Context(), source, name, req.Schedule); err != nil {
		h.writeJobError(w, "update job schedule", err)
		return
	}
	h.writeJob(w, source, name)
}

// ResetJobSchedule handles DELETE /api/v1/jobs/{source}/{name}/schedule.
func (h *Handler) ResetJobSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobs(w) {
		return
	}
	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")
	if err := h.jobs.ResetSchedule(r.Context(), source, name); err != nil {
		h.writeJobError(w, "reset job schedule", err)
		return
	}
	h.writeJob(w, source, name)
}

func (h *Handler) writeJob(w http.ResponseWriter, source, name string) {
	for _, j := range h.jobs.List() {
		if j.Source == source && j.Name == name {
			WriteSuccess(w, j, nil)
			return
		}
	}
	WriteNotFound(w, "Job not found")
}
