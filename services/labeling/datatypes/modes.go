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

// HistoryMode controls what a user sees of previous iterations.
type HistoryMode string

const (
	HistoryNone      HistoryMode = "none"
	HistoryDecisions HistoryMode = "decisions"
	HistoryHeatmaps  HistoryMode = "heatmaps"
)

// FeedbackMode controls who picks the next point to label.
type FeedbackMode string

const (
	FeedbackSystem FeedbackMode = "system"
	FeedbackUser   FeedbackMode = "user"
	FeedbackHybrid FeedbackMode = "hybrid"
)

// HistoryModes lists every history mode.
var HistoryModes = []HistoryMode{HistoryNone, HistoryDecisions, HistoryHeatmaps}

// FeedbackModes lists every feedback mode.
var FeedbackModes = []FeedbackMode{FeedbackSystem, FeedbackUser, FeedbackHybrid}

func (m HistoryMode) Valid() bool {
	for _, v := range HistoryModes {
		if v == m {
			return true
		}
	}
	return false
}

func (m FeedbackMode) Valid() bool {
	for _, v := range FeedbackModes {
		if v == m {
			return true
		}
	}
	return false
}

// Role of a Person.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParamType is the declared type of a classifier or query-strategy parameter.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamDouble ParamType = "double"
	ParamString ParamType = "string"
)

func (t ParamType) Valid() bool {
	return t == ParamInt || t == ParamDouble || t == ParamString
}
