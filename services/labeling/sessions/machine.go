// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions implements the labeling session state machine.
//
// # Description
//
// A session is Active from creation until it finishes, either because the
// iteration budget of its setup is spent or because it was closed. While
// Active it may be paused and resumed; pausing only affects time
// accounting.
//
// The transition functions in this file are pure: they validate every
// precondition first and mutate the session only when all of them hold,
// so a failed transition leaves the session untouched. Service wraps them
// in storage transactions.
package sessions

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
)

// Rules are the setup fields a session transition consults.
type Rules struct {
	Iterations int
	Rewindable bool
}

// RulesFor extracts the Rules of a setup.
func RulesFor(setup datatypes.Setup) Rules {
	return Rules{Iterations: setup.Iterations, Rewindable: setup.Rewindable}
}

var nullSnapshot = json.RawMessage("null")

// =============================================================================
// Transitions
// =============================================================================

// NewSession builds the initial state of a session over rows dataset rows.
//
// # Description
//
// Every label starts unlabeled; history, heatmaps, matches and final labels
// are empty; iteration and counters are zero. The session starts running,
// so ActiveSince is now.
func NewSession(setupID, userID int64, rows int, now time.Time) datatypes.Session {
	started := now.UTC()
	return datatypes.Session{
		SetupID:             setupID,
		UserID:              userID,
		Labels:              datatypes.NewUnlabeled(rows),
		FinalLabels:         datatypes.FinalLabels{},
		History:             [][]int{},
		Heatmaps:            []json.RawMessage{},
		UserLabelMatchesAPI: [][]bool{},
		ActiveSince:         &started,
	}
}

// RecordLabel sets the user label of one row.
//
// # Description
//
// Checks run in order: the session must be Active, token must be "Lin" or
// "Lout", and row must index an existing label slot. Only that slot changes.
//
// # Outputs
//
//   - error: ErrState, ErrInvalidLabel or ErrOutOfRange.
func RecordLabel(s *datatypes.Session, row int, token string) error {
	if s.Finished {
		return datatypes.NewError(datatypes.CodeState, "session %d is finished", s.ID)
	}
	label, err := datatypes.ParseUserLabel(token)
	if err != nil || !label.IsDefined() {
		return datatypes.NewError(datatypes.CodeInvalidLabel,
			"label %q is not one of %q, %q", token, datatypes.UserTokenInlier, datatypes.UserTokenOutlier)
	}
	if row < 0 || row >= len(s.Labels) {
		return datatypes.NewError(datatypes.CodeOutOfRange,
			"row %d is outside 0..%d", row, len(s.Labels)-1)
	}
	s.Labels[row] = label
	return nil
}

// Advance closes the current iteration.
//
// # Description
//
// Appends selected to the history, the snapshot to the heatmaps and, per
// selected row, whether the user label agrees with the current final label.
// The iteration counter then increments; when it reaches the budget the
// session finishes and its running time is banked.
//
// A missing snapshot is stored as JSON null so heatmaps stay aligned with
// history.
//
// # Inputs
//
//   - s: Session to mutate.
//   - rules: Setup rules.
//   - selected: Row indices chosen this iteration. Must be non-empty, in
//     range and free of duplicates.
//   - snapshot: Opaque heatmap document, persisted verbatim.
//   - now: Current time.
//
// # Outputs
//
//   - error: ErrState when finished, ErrValidation or ErrOutOfRange for a
//     bad selection.
func Advance(s *datatypes.Session, rules Rules, selected []int, snapshot json.RawMessage, now time.Time) error {
	if s.Finished {
		return datatypes.NewError(datatypes.CodeState, "session %d is finished", s.ID)
	}
	if len(selected) == 0 {
		return datatypes.NewError(datatypes.CodeValidation, "at least one row must be selected")
	}
	seen := make(map[int]struct{}, len(selected))
	for _, row := range selected {
		if row < 0 || row >= len(s.Labels) {
			return datatypes.NewError(datatypes.CodeOutOfRange,
				"selected row %d is outside 0..%d", row, len(s.Labels)-1)
		}
		if _, dup := seen[row]; dup {
			return datatypes.NewError(datatypes.CodeValidation, "row %d is selected twice", row)
		}
		seen[row] = struct{}{}
	}

	snap := nullSnapshot
	if len(bytes.TrimSpace(snapshot)) > 0 {
		snap = append(json.RawMessage(nil), snapshot...)
	}

	s.History = append(s.History, append([]int(nil), selected...))
	s.Heatmaps = append(s.Heatmaps, snap)
	s.UserLabelMatchesAPI = append(s.UserLabelMatchesAPI, matches(s, selected))
	s.Iteration++
	if s.Iteration >= rules.Iterations {
		finish(s, now)
	}
	return nil
}

// Rewind undoes the last iteration.
//
// # Description
//
// Checks run in order: the setup must be rewindable, the session must be
// Active, and there must be an iteration to undo. The last history, heatmap
// and matches entries are dropped, the iteration decrements and the rewind
// counter increments. User labels are deliberately left as they are, so
// answers given during the undone iteration survive it; re-advancing with
// the same selection reproduces the earlier history.
//
// # Outputs
//
//   - error: ErrNotRewindable, ErrState or ErrNoHistory.
func Rewind(s *datatypes.Session, rules Rules) error {
	if !rules.Rewindable {
		return datatypes.NewError(datatypes.CodeNotRewindable, "setup of session %d does not allow rewinding", s.ID)
	}
	if s.Finished {
		return datatypes.NewError(datatypes.CodeState, "session %d is finished", s.ID)
	}
	if s.Iteration == 0 {
		return datatypes.NewError(datatypes.CodeNoHistory, "session %d has no iteration to rewind", s.ID)
	}
	s.Iteration--
	s.History = truncate(s.History, s.Iteration)
	s.Heatmaps = truncate(s.Heatmaps, s.Iteration)
	s.UserLabelMatchesAPI = truncate(s.UserLabelMatchesAPI, s.Iteration)
	s.Rewinds++
	return nil
}

// Pause stops the running timer and counts a pause.
func Pause(s *datatypes.Session, now time.Time) error {
	if s.Finished {
		return datatypes.NewError(datatypes.CodeState, "session %d is finished", s.ID)
	}
	if s.ActiveSince == nil {
		return datatypes.NewError(datatypes.CodeState, "session %d is already paused", s.ID)
	}
	bank(s, now)
	s.Pauses++
	return nil
}

// Resume restarts the timer of a paused session.
func Resume(s *datatypes.Session, now time.Time) error {
	if s.Finished {
		return datatypes.NewError(datatypes.CodeState, "session %d is finished", s.ID)
	}
	if s.ActiveSince != nil {
		return datatypes.NewError(datatypes.CodeState, "session %d is not paused", s.ID)
	}
	started := now.UTC()
	s.ActiveSince = &started
	return nil
}

// Close finishes a session before its iteration budget is spent.
func Close(s *datatypes.Session, now time.Time) error {
	if s.Finished {
		return datatypes.NewError(datatypes.CodeState, "session %d is already finished", s.ID)
	}
	finish(s, now)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func finish(s *datatypes.Session, now time.Time) {
	bank(s, now)
	s.Finished = true
}

// bank adds the running time to InProgress and stops the timer.
func bank(s *datatypes.Session, now time.Time) {
	if s.ActiveSince != nil {
		s.InProgress += elapsedSeconds(*s.ActiveSince, now)
	}
	s.ActiveSince = nil
}

// matches reports, per selected row, whether the user label agrees with the
// final label the engine last predicted. Without a prediction nothing
// agrees.
func matches(s *datatypes.Session, selected []int) []bool {
	out := make([]bool, len(selected))
	if len(s.FinalLabels) != len(s.Labels) {
		return out
	}
	for i, row := range selected {
		user := s.Labels[row]
		out[i] = user.IsDefined() && user == s.FinalLabels[row]
	}
	return out
}

func truncate[T any](xs []T, n int) []T {
	if n >= len(xs) {
		return xs
	}
	return xs[:n:n]
}
