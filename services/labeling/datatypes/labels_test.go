// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Label Projection Tests
// =============================================================================

func TestLabel_Projections(t *testing.T) {
	tests := []struct {
		label Label
		user  string
		final string
	}{
		{LabelUndefined, "U", "NOT DEFINED"},
		{LabelInlier, "Lin", "inlier"},
		{LabelOutlier, "Lout", "outlier"},
	}

	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			assert.Equal(t, tt.user, tt.label.User())
			assert.Equal(t, tt.final, tt.label.Final())

			fromUser, err := ParseUserLabel(tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.label, fromUser)

			fromFinal, err := ParseFinalLabel(tt.final)
			require.NoError(t, err)
			assert.Equal(t, tt.label, fromFinal)
		})
	}
}

func TestParseLabel_RejectsCrossedProjections(t *testing.T) {
	_, err := ParseUserLabel("inlier")
	assert.Error(t, err)

	_, err = ParseFinalLabel("Lout")
	assert.Error(t, err)

	_, err = ParseUserLabel("")
	assert.Error(t, err)
}

func TestUserLabels_JSONRoundTrip(t *testing.T) {
	labels := UserLabels{LabelUndefined, LabelInlier, LabelOutlier}

	data, err := json.Marshal(labels)
	require.NoError(t, err)
	assert.JSONEq(t, `["U","Lin","Lout"]`, string(data))

	var decoded UserLabels
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, labels, decoded)
}

func TestFinalLabels_JSON(t *testing.T) {
	var decoded FinalLabels
	err := json.Unmarshal([]byte(`["inlier","outlier","NOT DEFINED"]`), &decoded)
	require.NoError(t, err)
	assert.Equal(t, FinalLabels{LabelInlier, LabelOutlier, LabelUndefined}, decoded)

	err = json.Unmarshal([]byte(`["inlier","Lin"]`), &decoded)
	assert.Error(t, err)
}

func TestNewUnlabeled(t *testing.T) {
	labels := NewUnlabeled(5)
	assert.Equal(t, []string{"U", "U", "U", "U", "U"}, labels.Tokens())
}

// =============================================================================
// Error Taxonomy Tests
// =============================================================================

func TestError_IsMatchesOnCode(t *testing.T) {
	err := NewError(CodeNoHistory, "session %d has no history", 7)

	assert.True(t, errors.Is(err, ErrNoHistory))
	assert.False(t, errors.Is(err, ErrNotRewindable))
	assert.Equal(t, CodeNoHistory, CodeOf(err))
	assert.Equal(t, "session 7 has no history", MessageOf(err))
}

func TestError_WrappedThroughFmt(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapError(CodeEngineUnavailable, cause, "engine unreachable")

	wrapped := errors.Join(errors.New("evaluate"), err)

	assert.True(t, errors.Is(wrapped, ErrEngineUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeEngineUnavailable, CodeOf(wrapped))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
}
