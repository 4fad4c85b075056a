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
	"fmt"
	"slices"
	"time"
)

// Session is one user's progress through one Setup.
//
// # Description
//
// Labels has one slot per dataset row and never changes length. History,
// Heatmaps and UserLabelMatchesAPI each hold one entry per completed
// iteration, so their length always equals Iteration. FinalLabels is empty
// until the engine first returns a global prediction.
//
// InProgress is the number of seconds the session has been active.
// ActiveSince is set while the session is running and cleared on pause,
// close and finish.
//
// Name is derived from the user and setup names when a session is read
// through the session service; it is not stored.
type Session struct {
	ID                  int64             `json:"id"`
	Name                string            `json:"name,omitempty"`
	SetupID             int64             `json:"setupId"`
	UserID              int64             `json:"userId"`
	Iteration           int               `json:"iteration"`
	Labels              UserLabels        `json:"labels"`
	FinalLabels         FinalLabels       `json:"finalLabels"`
	History             [][]int           `json:"history"`
	Heatmaps            []json.RawMessage `json:"heatmaps"`
	UserLabelMatchesAPI [][]bool          `json:"userlabelMatchesAPI"`
	Pauses              int               `json:"pauses"`
	Rewinds             int               `json:"rewinds"`
	InProgress          int64             `json:"inProgress"`
	ActiveSince         *time.Time        `json:"activeSince,omitempty"`
	Finished            bool              `json:"finished"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy, so a failed mutation can be discarded without
// touching the original.
func (s Session) Clone() Session {
	c := s
	c.Labels = slices.Clone(s.Labels)
	c.FinalLabels = slices.Clone(s.FinalLabels)
	c.History = slices.Clone(s.History)
	for i, h := range c.History {
		c.History[i] = slices.Clone(h)
	}
	c.Heatmaps = slices.Clone(s.Heatmaps)
	for i, h := range c.Heatmaps {
		c.Heatmaps[i] = slices.Clone(h)
	}
	c.UserLabelMatchesAPI = slices.Clone(s.UserLabelMatchesAPI)
	for i, m := range c.UserLabelMatchesAPI {
		c.UserLabelMatchesAPI[i] = slices.Clone(m)
	}
	if s.ActiveSince != nil {
		t := *s.ActiveSince
		c.ActiveSince = &t
	}
	return c
}

// SessionName builds the display name "<user>_<setup>_s<id>".
func SessionName(userName, setupName string, id int64) string {
	return fmt.Sprintf("%s_%s_s%d", userName, setupName, id)
}

// SessionFilter narrows Session listings. Zero values match everything.
type SessionFilter struct {
	SetupID  int64
	UserID   int64
	Finished *bool
}

// SessionStatus is the coarse progress state shown in listings.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not started"
	StatusActive     SessionStatus = "active"
	StatusFinished   SessionStatus = "finished"
)

// Progress summarizes how far a session has come.
type Progress struct {
	SessionID  int64         `json:"sessionId"`
	Name       string        `json:"name"`
	Iteration  int           `json:"iteration"`
	Iterations int           `json:"iterations"`
	Percent    int           `json:"percent"`
	Status     SessionStatus `json:"status"`
	Pauses     int           `json:"pauses"`
	Rewinds    int           `json:"rewinds"`
	InProgress int64         `json:"inProgress"`
}

// Comparison is the agreement between the final labels of two sessions.
//
// InlierInlier counts rows both sessions call inlier; InlierOutlier rows the
// first calls inlier and the second outlier, and so on.
type Comparison struct {
	SessionA       int64   `json:"sessionA"`
	SessionB       int64   `json:"sessionB"`
	Rows           int     `json:"rows"`
	InlierInlier   int     `json:"equalInlier"`
	OutlierOutlier int     `json:"equalOutlier"`
	InlierOutlier  int     `json:"inlierOutlier"`
	OutlierInlier  int     `json:"outlierInlier"`
	Agreement      float64 `json:"agreement"`
	Kappa          float64 `json:"kappa"`
}
