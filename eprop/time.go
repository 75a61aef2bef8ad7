// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"
	"math"
)

// eprop.Time contains all the timing state and parameter information for running a model
type Time struct {

	// accumulated amount of time the network has been running,
	// in simulation-time (not real world time), in ms.
	Time float64

	// step counter: number of steps of size Dt since the last Reset.
	// This is the global clock that all histories and spike stamps use.
	Step int

	// update interval counter: number of learning intervals completed.
	Interval int

	// step within the current update interval, 0 = reset step.
	IntStep int

	// simulation resolution in ms.
	Dt float64 `def:"1"`

	// length of the learning update interval T in ms -- must be a multiple of Dt.
	// Neurons reset their state at the start of every interval and each
	// plastic synapse produces one gradient per interval.
	UpdtInterval float64 `def:"1000"`

	// UpdtInterval in steps
	IntervalN int `view:"-"`
}

// NewTime returns a new Time struct with default parameters
func NewTime() *Time {
	tm := &Time{}
	tm.Defaults()
	return tm
}

// Defaults sets default values
func (tm *Time) Defaults() {
	tm.Dt = 1
	tm.UpdtInterval = 1000
	tm.Update()
}

// Update computes IntervalN from UpdtInterval and Dt
func (tm *Time) Update() {
	tm.IntervalN = int(math.Round(tm.UpdtInterval / tm.Dt))
}

// Validate checks that the interval is a positive multiple of Dt
func (tm *Time) Validate() error {
	if tm.Dt <= 0 {
		return fmt.Errorf("%w: resolution %g must be > 0", ErrInvalidParam, tm.Dt)
	}
	if tm.UpdtInterval <= 0 {
		return fmt.Errorf("%w: update_interval %g must be > 0", ErrInvalidParam, tm.UpdtInterval)
	}
	n := tm.UpdtInterval / tm.Dt
	if math.Abs(n-math.Round(n)) > 1e-9 {
		return fmt.Errorf("%w: update_interval %g is not a multiple of resolution %g", ErrInvalidParam, tm.UpdtInterval, tm.Dt)
	}
	return nil
}

// Reset resets the counters all back to zero
func (tm *Time) Reset() {
	tm.Time = 0
	tm.Step = 0
	tm.Interval = 0
	tm.IntStep = 0
	if tm.Dt == 0 {
		tm.Defaults()
	}
	tm.Update()
}

// IsReset returns true on the first step of an update interval
func (tm *Time) IsReset() bool {
	return tm.IntStep == 0
}

// StepInc increments at the step level
func (tm *Time) StepInc() {
	tm.Step++
	tm.Time = float64(tm.Step) * tm.Dt
	tm.IntStep++
	if tm.IntStep >= tm.IntervalN {
		tm.IntStep = 0
		tm.Interval++
	}
}

// StepTime returns the time in ms of a given step index
func (tm *Time) StepTime(step int) float64 {
	return float64(step) * tm.Dt
}
