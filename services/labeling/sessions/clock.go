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
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Clock
// =============================================================================

// Clock supplies the current time for in-progress accounting.
//
// # Description
//
// Sessions bank the seconds between ActiveSince and "now" whenever they
// pause, close or finish. Injecting the clock keeps that arithmetic
// deterministic in tests.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t, which may be in the past.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// =============================================================================
// Elapsed time
// =============================================================================

// elapsedSeconds returns the whole seconds from since to now.
//
// A clock that moved backwards yields 0 instead of a negative amount, so
// InProgress never decreases.
func elapsedSeconds(since, now time.Time) int64 {
	d := now.Sub(since)
	if d < 0 {
		slog.Warn("session clock moved backwards; not banking time",
			"active_since", since.Format(time.RFC3339),
			"now", now.Format(time.RFC3339),
			"jump", (-d).String())
		return 0
	}
	return int64(d / time.Second)
}
