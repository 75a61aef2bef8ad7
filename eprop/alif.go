// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"
	"math"

	"github.com/emer/eprop/surrogate"
)

// RecurParams are the parameters of the recurrent adaptive leaky
// integrate-and-fire neuron.  Potentials are given in absolute mV and
// converted to values relative to E_L in Update.
type RecurParams struct {
	TauM    float64            `def:"10" min:"0" desc:"membrane time constant in ms"`
	Cm      float64            `def:"250" min:"0" desc:"membrane capacitance in pF"`
	TRef    float64            `def:"2" min:"0" desc:"duration of refractory period in ms"`
	EL      float64            `def:"-70" desc:"resting membrane potential in mV"`
	VThAbs  float64            `def:"-55" desc:"spike threshold in mV (absolute)"`
	VReset  float64            `def:"-70" desc:"reset potential in mV (absolute) -- must be below threshold; reset itself is by subtraction of the threshold"`
	Beta    float64            `def:"1" desc:"adaptation coupling: effective threshold is V_th + beta * a (only for Adaptive neurons)"`
	TauA    float64            `def:"10" min:"0" desc:"adaptation time constant in ms"`
	Ie      float64            `def:"0" desc:"constant external input current in pA"`
	VMinAbs float64            `desc:"lower bound on the membrane potential in mV (absolute) -- -Inf for none"`
	PDeriv  surrogate.Params   `view:"inline" desc:"pseudo-derivative parameters"`

	VTh   float64 `view:"-" json:"-" desc:"threshold relative to E_L"`
	VMin  float64 `view:"-" json:"-" desc:"lower bound relative to E_L"`
	P33   float64 `view:"-" json:"-" desc:"leak propagator exp(-dt / tau_m)"`
	P30   float64 `view:"-" json:"-" desc:"input current propagator (1 - P33) tau_m / C_m"`
	Pa    float64 `view:"-" json:"-" desc:"adaptation propagator exp(-dt / tau_a)"`
	RefrN int     `view:"-" json:"-" desc:"refractory period in steps"`
	Dt    float64 `view:"-" json:"-" desc:"step size the propagators were computed for"`
}

func (rp *RecurParams) Defaults() {
	rp.TauM = 10
	rp.Cm = 250
	rp.TRef = 2
	rp.EL = -70
	rp.VThAbs = -55
	rp.VReset = -70
	rp.Beta = 1
	rp.TauA = 10
	rp.Ie = 0
	rp.VMinAbs = math.Inf(-1)
	rp.PDeriv.Defaults()
	rp.Dt = 1
	rp.Update()
}

// Update recomputes the relative potentials and the propagators for Dt
func (rp *RecurParams) Update() {
	rp.VTh = rp.VThAbs - rp.EL
	rp.VMin = rp.VMinAbs - rp.EL
	rp.P33 = math.Exp(-rp.Dt / rp.TauM)
	rp.P30 = (1 - rp.P33) * rp.TauM / rp.Cm
	rp.Pa = math.Exp(-rp.Dt / rp.TauA)
	rp.RefrN = int(math.Round(rp.TRef / rp.Dt))
	rp.PDeriv.Update()
}

// Calibrate sets the step size and recomputes the propagators
func (rp *RecurParams) Calibrate(dt float64) {
	rp.Dt = dt
	rp.Update()
}

// Validate checks the parameters for consistency
func (rp *RecurParams) Validate() error {
	switch {
	case rp.VReset >= rp.VThAbs:
		return fmt.Errorf("%w: reset potential V_reset=%g must be below threshold V_th=%g", ErrInvalidParam, rp.VReset, rp.VThAbs)
	case rp.Cm <= 0:
		return fmt.Errorf("%w: capacitance C_m=%g must be > 0", ErrInvalidParam, rp.Cm)
	case rp.TRef < 0:
		return fmt.Errorf("%w: refractory time t_ref=%g must not be negative", ErrInvalidParam, rp.TRef)
	case rp.TauM <= 0:
		return fmt.Errorf("%w: membrane time constant tau_m=%g must be > 0", ErrInvalidParam, rp.TauM)
	case rp.TauA <= 0:
		return fmt.Errorf("%w: adaptation time constant tau_a=%g must be > 0", ErrInvalidParam, rp.TauA)
	}
	return nil
}

// CheckInstability returns ErrNumericalInstability for a runaway
// membrane potential (relative v).
func (rp *RecurParams) CheckInstability(v float64) error {
	if v+rp.EL < -1e3 || math.IsNaN(v) {
		return fmt.Errorf("%w: V_m=%g", ErrNumericalInstability, v+rp.EL)
	}
	return nil
}

// AlifState is the dynamic state of a recurrent neuron
type AlifState struct {
	V     float64
	A     float64
	Refr  int
	Reset bool
}

// AlifIn are the inputs to one step of a recurrent neuron
type AlifIn struct {
	Reset bool    // first step of an update interval
	I     float64 // external current this step
	Spk   float64 // incoming weighted spike mass arriving this step
}

// AlifOut are the outputs of one step of a recurrent neuron
type AlifOut struct {
	Spike bool
	H     float64
	Thr   float64
}

// Step advances the neuron state by one step.  The order of operations is
// fixed: interval reset, adaptation decay, integration, pending reset by
// subtraction, threshold, spike, pseudo-derivative, refractory countdown.
func (rp *RecurParams) Step(st AlifState, in AlifIn) (AlifState, AlifOut) {
	var out AlifOut
	spk := in.Spk
	if in.Reset {
		st = AlifState{}
		spk = 0
	}
	st.A *= rp.Pa
	st.V = rp.P30*(in.I+rp.Ie) + rp.P33*st.V + spk
	if st.Reset && st.Refr == 0 {
		st.V -= rp.VTh
		st.A += 1
		st.Reset = false
		if rp.RefrN > 0 {
			st.Refr = rp.RefrN - 1
		}
	}
	if st.V < rp.VMin {
		st.V = rp.VMin
	}
	out.Thr = rp.VTh + rp.Beta*st.A
	if st.Refr == 0 && st.V >= out.Thr {
		st.Reset = true
		out.Spike = true
	}
	if st.Refr > 0 {
		out.H = 0
		st.Refr--
	} else {
		out.H = rp.PDeriv.PseudoDeriv(st.V, out.Thr, rp.VTh)
	}
	return st, out
}
