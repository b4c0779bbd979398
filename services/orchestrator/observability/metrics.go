// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the conversation
// pipeline.
//
// # Description
//
// Metrics cover completed turns by intent, per-node latency, per-node
// fallbacks (a node that degraded to its safe value), the research strategy
// chosen, embedding cache hits, and HTTP-level errors.
//
// # Integration
//
// Metrics are exposed via /metrics. All recording methods are safe on a nil
// *Metrics, so components can be constructed without instrumentation in
// tests and the CLI.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "juris"

// Node names used as metric labels and span names.
const (
	NodeRouter    = "router"
	NodeResearch  = "research"
	NodeGenerator = "generator"
	NodeGraph     = "graph"
)

// ErrorCode represents a categorized HTTP error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeState indicates a state store load or save failure.
	ErrorCodeState ErrorCode = "state"

	// ErrorCodeTimeout indicates the turn lock could not be acquired in time.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeInternal indicates any other server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// Metrics holds all Prometheus collectors for the service.
//
// # Fields
//
//   - TurnsTotal: Completed turns. Labels: intent.
//   - NodeDurationSeconds: Node latency. Labels: node.
//   - FallbacksTotal: Nodes that returned their fallback value. Labels: node.
//   - ResearchStrategyTotal: Research dispatch decisions. Labels: strategy.
//   - SearchCacheHitsTotal: Embedding cache hits.
//   - ActiveTurns: Turns currently executing.
//   - ErrorsTotal: HTTP errors. Labels: endpoint, error_code.
//
// ObserveLockedThreads adds a juris_locked_threads gauge on the same registry.
type Metrics struct {
	TurnsTotal            *prometheus.CounterVec
	NodeDurationSeconds   *prometheus.HistogramVec
	FallbacksTotal        *prometheus.CounterVec
	ResearchStrategyTotal *prometheus.CounterVec
	SearchCacheHitsTotal  prometheus.Counter
	ActiveTurns           prometheus.Gauge
	ErrorsTotal           *prometheus.CounterVec

	reg prometheus.Registerer
}

// NewMetrics creates and registers all collectors on reg.
//
// # Description
//
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "turns_total",
				Help:      "Total completed conversation turns by resolved intent",
			},
			[]string{"intent"},
		),
		NodeDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "node_duration_seconds",
				Help:      "Pipeline node latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"node"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fallbacks_total",
				Help:      "Total node invocations that degraded to their fallback output",
			},
			[]string{"node"},
		),
		ResearchStrategyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "research_strategy_total",
				Help:      "Total research dispatch decisions by strategy",
			},
			[]string{"strategy"},
		),
		SearchCacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "search_cache_hits_total",
				Help:      "Total query embedding cache hits",
			},
		),
		ActiveTurns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_turns",
				Help:      "Number of turns currently executing",
			},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "errors_total",
				Help:      "Total HTTP errors by endpoint and error code",
			},
			[]string{"endpoint", "error_code"},
		),
	}
}

// RecordTurn counts a completed turn.
func (m *Metrics) RecordTurn(intent string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(intent).Inc()
}

// ObserveNode records how long node took.
func (m *Metrics) ObserveNode(node string, d time.Duration) {
	if m == nil {
		return
	}
	m.NodeDurationSeconds.WithLabelValues(node).Observe(d.Seconds())
}

// RecordFallback counts a node degrading to its fallback output.
func (m *Metrics) RecordFallback(node string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(node).Inc()
}

// RecordStrategy counts a research dispatch decision.
func (m *Metrics) RecordStrategy(strategy string) {
	if m == nil {
		return
	}
	m.ResearchStrategyTotal.WithLabelValues(strategy).Inc()
}

// RecordCacheHit counts an embedding cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.SearchCacheHitsTotal.Inc()
}

// TurnStarted increments the active turns gauge.
func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.ActiveTurns.Inc()
}

// TurnEnded decrements the active turns gauge.
func (m *Metrics) TurnEnded() {
	if m == nil {
		return
	}
	m.ActiveTurns.Dec()
}

// RecordError counts an HTTP error.
func (m *Metrics) RecordError(endpoint string, code ErrorCode) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(endpoint, string(code)).Inc()
}

// ObserveLockedThreads exports count() as a gauge sampled at scrape time.
// Call it once per registry.
func (m *Metrics) ObserveLockedThreads(count func() int) {
	if m == nil {
		return
	}
	promauto.With(m.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "locked_threads",
			Help:      "Threads with a turn holding or waiting on the per-thread lock",
		},
		func() float64 { return float64(count()) },
	)
}
