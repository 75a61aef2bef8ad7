// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"
	"math"
)

// ReadoutParams are the parameters of the non-spiking readout neuron that
// computes the per-step learning signal.
type ReadoutParams struct {
	TauM       float64 `def:"10" min:"0" desc:"membrane time constant in ms"`
	Cm         float64 `def:"250" min:"0" desc:"membrane capacitance in pF"`
	EL         float64 `def:"-70" desc:"resting potential in mV -- the readout signal is y = V + E_L"`
	Ie         float64 `def:"0" desc:"constant external input current in pA"`
	VMinAbs    float64 `desc:"lower bound on the membrane potential in mV (absolute) -- -Inf for none"`
	Start      float64 `def:"0" min:"0" desc:"start of the recall window within each update interval in ms -- the learning signal is zero before it"`
	Regression bool    `def:"true" desc:"regression (L = y - y*) vs. softmax classification (L = softmax(y) - p*) across the readout group"`

	VMin   float64 `view:"-" json:"-" desc:"lower bound relative to E_L"`
	P33    float64 `view:"-" json:"-" desc:"leak propagator exp(-dt / tau_m)"`
	P30    float64 `view:"-" json:"-" desc:"input current propagator"`
	StartN int     `view:"-" json:"-" desc:"recall window start in steps"`
	Dt     float64 `view:"-" json:"-" desc:"step size the propagators were computed for"`
}

func (ro *ReadoutParams) Defaults() {
	ro.TauM = 10
	ro.Cm = 250
	ro.EL = -70
	ro.Ie = 0
	ro.VMinAbs = math.Inf(-1)
	ro.Start = 0
	ro.Regression = true
	ro.Dt = 1
	ro.Update()
}

func (ro *ReadoutParams) Update() {
	ro.VMin = ro.VMinAbs - ro.EL
	ro.P33 = math.Exp(-ro.Dt / ro.TauM)
	ro.P30 = (1 - ro.P33) * ro.TauM / ro.Cm
	ro.StartN = int(math.Round(ro.Start / ro.Dt))
}

// Calibrate sets the step size and recomputes the propagators
func (ro *ReadoutParams) Calibrate(dt float64) {
	ro.Dt = dt
	ro.Update()
}

// Validate checks the parameters for consistency
func (ro *ReadoutParams) Validate() error {
	switch {
	case ro.Cm <= 0:
		return fmt.Errorf("%w: capacitance C_m=%g must be > 0", ErrInvalidParam, ro.Cm)
	case ro.TauM <= 0:
		return fmt.Errorf("%w: membrane time constant tau_m=%g must be > 0", ErrInvalidParam, ro.TauM)
	case ro.Start < 0:
		return fmt.Errorf("%w: recall start=%g must not be negative", ErrInvalidParam, ro.Start)
	}
	return nil
}

// CheckInstability returns ErrNumericalInstability for a runaway
// membrane potential (relative v).
func (ro *ReadoutParams) CheckInstability(v float64) error {
	if v+ro.EL < -1e3 || math.IsNaN(v) {
		return fmt.Errorf("%w: readout V_m=%g", ErrNumericalInstability, v+ro.EL)
	}
	return nil
}

// InRecall returns true if step index lies within the recall window of
// its interval of intervalN steps.
func (ro *ReadoutParams) InRecall(step, intervalN int) bool {
	if intervalN <= 0 {
		return true
	}
	return step%intervalN >= ro.StartN
}

// ReadoutState is the dynamic state of a readout neuron.  Y, Targ and
// Norm buffer the readout, target and softmax normalization of the
// current step; they are consumed one step later, when all peer readouts
// have contributed to Norm.  ExpY and Norm are shifted by the group
// maximum of y, exp(y - max), so they never underflow together.
type ReadoutState struct {
	V       float64
	Y       float64
	ExpY    float64
	Targ    float64
	Norm    float64
	HasPrev bool
}

// ReadoutIn are the inputs to one step of a readout neuron
type ReadoutIn struct {
	Reset      bool    // first step of an update interval
	I          float64 // external current this step
	Spk        float64 // incoming weighted spike mass arriving this step
	Targ       float64 // target for this step
	RecallPrev bool    // previous step was inside the recall window
}

// ReadoutOut are the outputs of one step of a readout neuron
type ReadoutOut struct {
	Y    float64 // readout signal for this step
	L    float64 // learning signal for the previous step
	HasL bool    // false on the very first step
}

// Step advances the readout by one step: integrate, compute y (and exp(y)
// for classification), then compute the learning signal of the previous
// step from the buffered values, and buffer this step's values.
// For classification the caller sets ExpY and Norm of the returned state
// from the whole softmax group.
func (ro *ReadoutParams) Step(st ReadoutState, in ReadoutIn) (ReadoutState, ReadoutOut) {
	var out ReadoutOut
	spk := in.Spk
	if in.Reset {
		st.V = 0
		spk = 0
	}
	st.V = ro.P30*(in.I+ro.Ie) + ro.P33*st.V + (1-ro.P33)*spk
	if st.V < ro.VMin {
		st.V = ro.VMin
	}
	y := st.V + ro.EL
	out.Y = y

	if st.HasPrev {
		out.HasL = true
		if in.RecallPrev {
			out.L = ro.Signal(st.Y, st.ExpY, st.Targ, st.Norm)
		}
	}

	st.Y = y
	st.Targ = in.Targ
	st.Norm = 0
	st.ExpY = 0
	if !ro.Regression {
		// a readout alone in its group; Layer.Normalize sets the group values
		st.ExpY = 1
		st.Norm = 1
	}
	st.HasPrev = true
	return st, out
}

// Signal computes the learning signal from readout y, exp(y), target and
// group normalization.
func (ro *ReadoutParams) Signal(y, expY, targ, norm float64) float64 {
	if ro.Regression {
		return y - targ
	}
	if norm <= 0 {
		return -targ
	}
	return expY/norm - targ
}
