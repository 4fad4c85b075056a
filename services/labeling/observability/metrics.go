// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the labeling service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the labeling
// workflow. Metrics include:
//   - Engine call counters and latency histograms (by target and status)
//   - Session state-machine transitions (by operation and outcome)
//   - Setup configuration changes (by operation)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint of the labeling service.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// A nil *Metrics is valid and records nothing.
package observability

import (
	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "ifeed"

// Subsystem for labeling metrics
const labelingSubsystem = "labeling"

// Metrics holds all Prometheus metrics for the labeling workflow.
//
// # Description
//
// Provides counters and histograms for engine traffic and session progress.
// Create once per registry via NewMetrics().
//
// # Fields
//
//   - EngineRequestsTotal: Counter of engine calls by target and status
//   - EngineDurationSeconds: Histogram of engine round-trip time
//   - SessionTransitionsTotal: Counter of session operations by outcome
//   - SetupChangesTotal: Counter of setup create/update/finalize/delete
//   - FinalLabelsReplacedTotal: Counter of engine predictions written back
type Metrics struct {
	// EngineRequestsTotal counts engine calls.
	// Labels: target (session, setup), status (success, error)
	EngineRequestsTotal *prometheus.CounterVec

	// EngineDurationSeconds measures engine round-trip time.
	// Labels: target (session, setup)
	EngineDurationSeconds *prometheus.HistogramVec

	// SessionTransitionsTotal counts session state-machine operations.
	// Labels: operation (create, label, advance, rewind, pause, resume, close),
	// outcome (ok or an error code such as no_history)
	SessionTransitionsTotal *prometheus.CounterVec

	// SetupChangesTotal counts setup configuration changes.
	// Labels: operation (create, update, finalize, delete)
	SetupChangesTotal *prometheus.CounterVec

	// FinalLabelsReplacedTotal counts sessions whose final labels were
	// replaced by an engine prediction.
	FinalLabelsReplacedTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics on reg.
//
// # Description
//
// Uses promauto.With so each registry gets its own collectors. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics
// handler; tests pass a fresh prometheus.NewRegistry().
//
// # Inputs
//
//   - reg: Registry to register on. Must not be nil.
//
// # Outputs
//
//   - *Metrics: The initialized metrics.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EngineRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: labelingSubsystem,
				Name:      "engine_requests_total",
				Help:      "Total number of inference engine calls by target and status",
			},
			[]string{"target", "status"},
		),

		EngineDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: labelingSubsystem,
				Name:      "engine_duration_seconds",
				Help:      "Inference engine round-trip time in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"target"},
		),

		SessionTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: labelingSubsystem,
				Name:      "session_transitions_total",
				Help:      "Total session operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		SetupChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: labelingSubsystem,
				Name:      "setup_changes_total",
				Help:      "Total setup configuration changes by operation",
			},
			[]string{"operation"},
		),

		FinalLabelsReplacedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: labelingSubsystem,
				Name:      "final_labels_replaced_total",
				Help:      "Total sessions whose final labels were replaced by an engine prediction",
			},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// Target identifies what an engine call evaluates.
type Target string

const (
	TargetSession Target = "session"
	TargetSetup   Target = "setup"
)

// Operation names a session or setup operation.
type Operation string

const (
	OpCreate   Operation = "create"
	OpLabel    Operation = "label"
	OpAdvance  Operation = "advance"
	OpRewind   Operation = "rewind"
	OpPause    Operation = "pause"
	OpResume   Operation = "resume"
	OpClose    Operation = "close"
	OpUpdate   Operation = "update"
	OpFinalize Operation = "finalize"
	OpDelete   Operation = "delete"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordEngineCall records one engine round trip.
//
// # Inputs
//
//   - target: What was evaluated.
//   - seconds: Round-trip time.
//   - success: Whether a usable response came back.
func (m *Metrics) RecordEngineCall(target Target, seconds float64, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.EngineRequestsTotal.WithLabelValues(string(target), status).Inc()
	m.EngineDurationSeconds.WithLabelValues(string(target)).Observe(seconds)
}

// RecordTransition records a session operation. The outcome is "ok" for a
// nil err and the taxonomy code otherwise.
func (m *Metrics) RecordTransition(op Operation, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(datatypes.CodeOf(err))
	}
	m.SessionTransitionsTotal.WithLabelValues(string(op), outcome).Inc()
}

// RecordSetupChange records a successful setup change.
func (m *Metrics) RecordSetupChange(op Operation) {
	if m == nil {
		return
	}
	m.SetupChangesTotal.WithLabelValues(string(op)).Inc()
}

// RecordFinalLabelsReplaced counts one write-back of engine predictions.
func (m *Metrics) RecordFinalLabelsReplaced() {
	if m == nil {
		return
	}
	m.FinalLabelsReplacedTotal.Inc()
}
