// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics holds the Prometheus instruments of the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pagescore"

// Metrics groups the collectors registered by New.
type Metrics struct {
	mutations          *prometheus.CounterVec
	conflictRetries    *prometheus.CounterVec
	autopublishSweeps  prometheus.Counter
	autopublishCleared prometheus.Counter
	cacheSweeps        *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	pendingTasks       prometheus.Gauge
	httpDuration       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_mutations_total",
			Help:      "Page mutations by operation and result.",
		}, []string{"op", "result"}),
		conflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_conflict_retries_total",
			Help:      "Transactions retried after a concurrency conflict.",
		}, []string{"op"}),
		autopublishSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autopublish_sweeps_total",
			Help:      "Completed autopublish sweeps.",
		}),
		autopublishCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autopublish_cleared_total",
			Help:      "Pages released by autopublish sweeps.",
		}),
		cacheSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "static_cache_sweeps_total",
			Help:      "Static cache sweeps executed, by trigger.",
		}, []string{"trigger"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "static_cache_lookups_total",
			Help:      "Static cache lookups by result.",
		}, []string{"result"}),
		pendingTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deferred_tasks_pending",
			Help:      "Deferred tasks waiting to run.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.mutations,
		m.conflictRetries,
		m.autopublishSweeps,
		m.autopublishCleared,
		m.cacheSweeps,
		m.cacheLookups,
		m.pendingTasks,
		m.httpDuration,
	)
	return m
}

// Mutation records the outcome of a page mutation.
func (m *Metrics) Mutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		var coded interface{ MetricLabel() string }
		if errors.As(err, &coded) {
			result = coded.MetricLabel()
		}
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

// ConflictRetry records a retried transaction.
func (m *Metrics) ConflictRetry(op string) {
	if m == nil {
		return
	}
	m.conflictRetries.WithLabelValues(op).Inc()
}

// AutopublishSweep records a finished sweep and the pages it released.
func (m *Metrics) AutopublishSweep(cleared int) {
	if m == nil {
		return
	}
	m.autopublishSweeps.Inc()
	m.autopublishCleared.Add(float64(cleared))
}

// CacheSweep records a static cache sweep.
func (m *Metrics) CacheSweep(trigger string) {
	if m == nil {
		return
	}
	m.cacheSweeps.WithLabelValues(trigger).Inc()
}

// CacheLookup records a static cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetPendingTasks reports the deferred task queue length.
func (m *Metrics) SetPendingTasks(n int) {
	if m == nil {
		return
	}
	m.pendingTasks.Set(float64(n))
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}
