// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordEngineCall(TargetSession, 0.2, true)
	m.RecordTransition(OpAdvance, nil)
	m.RecordSetupChange(OpCreate)
	m.RecordFinalLabelsReplaced()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"ifeed_labeling_engine_requests_total",
		"ifeed_labeling_engine_duration_seconds",
		"ifeed_labeling_session_transitions_total",
		"ifeed_labeling_setup_changes_total",
		"ifeed_labeling_final_labels_replaced_total",
	}, names)
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestRecordEngineCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEngineCall(TargetSession, 0.1, true)
	m.RecordEngineCall(TargetSession, 3, false)
	m.RecordEngineCall(TargetSetup, 0.4, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineRequestsTotal.WithLabelValues("session", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineRequestsTotal.WithLabelValues("session", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineRequestsTotal.WithLabelValues("setup", "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.EngineDurationSeconds))
}

func TestRecordTransition_OutcomeIsErrorCode(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransition(OpRewind, nil)
	m.RecordTransition(OpRewind, datatypes.NewError(datatypes.CodeNoHistory, "nothing to rewind"))
	m.RecordTransition(OpRewind, errors.New("disk on fire"))

	expected := `
# HELP ifeed_labeling_session_transitions_total Total session operations by operation and outcome
# TYPE ifeed_labeling_session_transitions_total counter
ifeed_labeling_session_transitions_total{operation="rewind",outcome="internal"} 1
ifeed_labeling_session_transitions_total{operation="rewind",outcome="no_history"} 1
ifeed_labeling_session_transitions_total{operation="rewind",outcome="ok"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.SessionTransitionsTotal, strings.NewReader(expected)))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordEngineCall(TargetSetup, 1, false)
		m.RecordTransition(OpPause, nil)
		m.RecordSetupChange(OpDelete)
		m.RecordFinalLabelsReplaced()
	})
}
