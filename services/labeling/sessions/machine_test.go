// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fresh(rows int) datatypes.Session {
	return NewSession(1, 2, rows, epoch)
}

func TestNewSession_InitialState(t *testing.T) {
	s := fresh(5)

	assert.Equal(t, []string{"U", "U", "U", "U", "U"}, s.Labels.Tokens())
	assert.Zero(t, s.Iteration)
	assert.Empty(t, s.History)
	assert.Empty(t, s.Heatmaps)
	assert.Empty(t, s.FinalLabels)
	assert.Empty(t, s.UserLabelMatchesAPI)
	assert.Zero(t, s.Pauses)
	assert.Zero(t, s.Rewinds)
	assert.False(t, s.Finished)
	require.NotNil(t, s.ActiveSince)
	assert.Equal(t, epoch, *s.ActiveSince)
}

// =============================================================================
// RecordLabel
// =============================================================================

func TestRecordLabel_ChangesOnlyThatRow(t *testing.T) {
	s := fresh(5)

	require.NoError(t, RecordLabel(&s, 2, "Lout"))

	assert.Equal(t, []string{"U", "U", "Lout", "U", "U"}, s.Labels.Tokens())
}

func TestRecordLabel_Errors(t *testing.T) {
	tests := []struct {
		name     string
		finished bool
		row      int
		token    string
		want     error
	}{
		{"unknown token", false, 0, "maybe", datatypes.ErrInvalidLabel},
		{"unlabeled token", false, 0, "U", datatypes.ErrInvalidLabel},
		{"final token", false, 0, "inlier", datatypes.ErrInvalidLabel},
		{"negative row", false, -1, "Lin", datatypes.ErrOutOfRange},
		{"row past end", false, 5, "Lin", datatypes.ErrOutOfRange},
		{"finished", true, 0, "Lin", datatypes.ErrState},
		{"finished wins over bad token", true, 0, "maybe", datatypes.ErrState},
		{"label checked before range", false, 9, "maybe", datatypes.ErrInvalidLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fresh(5)
			s.Finished = tt.finished
			before := s.Clone()

			err := RecordLabel(&s, tt.row, tt.token)

			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, before, s)
		})
	}
}

// =============================================================================
// Advance
// =============================================================================

func TestAdvance_AppendsAndFinishes(t *testing.T) {
	s := fresh(5)
	rules := Rules{Iterations: 2}

	require.NoError(t, Advance(&s, rules, []int{0, 3}, json.RawMessage(`{"z":[1]}`), epoch.Add(10*time.Second)))
	assert.Equal(t, 1, s.Iteration)
	assert.False(t, s.Finished)
	assert.Equal(t, [][]int{{0, 3}}, s.History)
	assert.Equal(t, `{"z":[1]}`, string(s.Heatmaps[0]))

	require.NoError(t, Advance(&s, rules, []int{1}, nil, epoch.Add(70*time.Second)))
	assert.Equal(t, 2, s.Iteration)
	assert.True(t, s.Finished)
	assert.Nil(t, s.ActiveSince)
	assert.EqualValues(t, 70, s.InProgress)
	assert.Equal(t, "null", string(s.Heatmaps[1]))
	assert.Len(t, s.History, s.Iteration)
	assert.Len(t, s.UserLabelMatchesAPI, s.Iteration)
}

func TestAdvance_AfterFinishFailsWithoutMutation(t *testing.T) {
	s := fresh(3)
	rules := Rules{Iterations: 1}
	require.NoError(t, Advance(&s, rules, []int{0}, nil, epoch))
	before := s.Clone()

	err := Advance(&s, rules, []int{1}, nil, epoch)

	assert.True(t, errors.Is(err, datatypes.ErrState))
	assert.Equal(t, before, s)
}

func TestAdvance_BadSelection(t *testing.T) {
	tests := []struct {
		name     string
		selected []int
		want     error
	}{
		{"empty", nil, datatypes.ErrValidation},
		{"out of range", []int{0, 7}, datatypes.ErrOutOfRange},
		{"duplicate", []int{1, 1}, datatypes.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fresh(5)
			before := s.Clone()

			err := Advance(&s, Rules{Iterations: 3}, tt.selected, nil, epoch)

			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, before, s)
		})
	}
}

func TestAdvance_MatchesAgainstFinalLabels(t *testing.T) {
	s := fresh(4)
	s.Labels = datatypes.UserLabels{datatypes.LabelInlier, datatypes.LabelOutlier, datatypes.LabelOutlier, datatypes.LabelUndefined}
	rules := Rules{Iterations: 5}

	require.NoError(t, Advance(&s, rules, []int{0, 1}, nil, epoch))
	assert.Equal(t, []bool{false, false}, s.UserLabelMatchesAPI[0], "no prediction yet")

	s.FinalLabels = datatypes.FinalLabels{datatypes.LabelInlier, datatypes.LabelInlier, datatypes.LabelOutlier, datatypes.LabelUndefined}
	require.NoError(t, Advance(&s, rules, []int{0, 1, 2, 3}, nil, epoch))
	assert.Equal(t, []bool{true, false, true, false}, s.UserLabelMatchesAPI[1])
}

// =============================================================================
// Rewind
// =============================================================================

func TestRewind_ThenReadvanceRestores(t *testing.T) {
	s := fresh(5)
	rules := Rules{Iterations: 5, Rewindable: true}
	require.NoError(t, Advance(&s, rules, []int{0}, json.RawMessage(`[1]`), epoch))
	require.NoError(t, Advance(&s, rules, []int{2, 4}, json.RawMessage(`[2]`), epoch))
	want := s.Clone()

	require.NoError(t, Rewind(&s, rules))
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, [][]int{{0}}, s.History)
	assert.Len(t, s.Heatmaps, 1)
	assert.Len(t, s.UserLabelMatchesAPI, 1)
	assert.Equal(t, 1, s.Rewinds)

	require.NoError(t, Advance(&s, rules, []int{2, 4}, json.RawMessage(`[2]`), epoch))
	assert.Equal(t, want.Iteration, s.Iteration)
	assert.Equal(t, want.History, s.History)
	assert.Equal(t, want.Heatmaps, s.Heatmaps)
}

func TestRewind_KeepsUserLabels(t *testing.T) {
	s := fresh(4)
	rules := Rules{Iterations: 4, Rewindable: true}
	require.NoError(t, RecordLabel(&s, 1, "Lout"))
	require.NoError(t, Advance(&s, rules, []int{1}, nil, epoch))
	require.NoError(t, RecordLabel(&s, 3, "Lin"))

	require.NoError(t, Rewind(&s, rules))

	assert.Equal(t, 0, s.Iteration)
	assert.Equal(t, []string{"U", "Lout", "U", "Lin"}, s.Labels.Tokens())
}

func TestRewind_Errors(t *testing.T) {
	t.Run("not rewindable always fails", func(t *testing.T) {
		s := fresh(3)
		rules := Rules{Iterations: 3}
		assert.True(t, errors.Is(Rewind(&s, rules), datatypes.ErrNotRewindable))

		require.NoError(t, Advance(&s, rules, []int{0}, nil, epoch))
		assert.True(t, errors.Is(Rewind(&s, rules), datatypes.ErrNotRewindable))
		assert.Equal(t, 1, s.Iteration)
	})

	t.Run("no history", func(t *testing.T) {
		s := fresh(3)
		err := Rewind(&s, Rules{Iterations: 3, Rewindable: true})
		assert.True(t, errors.Is(err, datatypes.ErrNoHistory))
		assert.Zero(t, s.Rewinds)
	})

	t.Run("finished", func(t *testing.T) {
		s := fresh(3)
		rules := Rules{Iterations: 1, Rewindable: true}
		require.NoError(t, Advance(&s, rules, []int{0}, nil, epoch))
		assert.True(t, errors.Is(Rewind(&s, rules), datatypes.ErrState))
		assert.Equal(t, 1, s.Iteration)
	})
}

// =============================================================================
// Pause, resume, close
// =============================================================================

func TestPauseResume_BanksTime(t *testing.T) {
	s := fresh(2)

	require.NoError(t, Pause(&s, epoch.Add(30*time.Second)))
	assert.Equal(t, 1, s.Pauses)
	assert.EqualValues(t, 30, s.InProgress)
	assert.Nil(t, s.ActiveSince)

	assert.True(t, errors.Is(Pause(&s, epoch.Add(40*time.Second)), datatypes.ErrState))

	require.NoError(t, Resume(&s, epoch.Add(100*time.Second)))
	require.NotNil(t, s.ActiveSince)
	assert.True(t, errors.Is(Resume(&s, epoch), datatypes.ErrState))

	require.NoError(t, Close(&s, epoch.Add(115*time.Second)))
	assert.True(t, s.Finished)
	assert.EqualValues(t, 45, s.InProgress)
	assert.Equal(t, 1, s.Pauses)
}

func TestClose_Twice(t *testing.T) {
	s := fresh(2)
	require.NoError(t, Close(&s, epoch))

	assert.True(t, errors.Is(Close(&s, epoch), datatypes.ErrState))
	assert.True(t, errors.Is(Pause(&s, epoch), datatypes.ErrState))
	assert.True(t, errors.Is(Resume(&s, epoch), datatypes.ErrState))
}

func TestPause_BackwardClockDoesNotSubtract(t *testing.T) {
	s := fresh(2)

	require.NoError(t, Pause(&s, epoch.Add(-time.Hour)))

	assert.Zero(t, s.InProgress)
}
