// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"
	"reflect"

	"github.com/emer/eprop/hist"
	"github.com/goki/ki/kit"
)

// NeurType is the variant of an e-prop neuron.  Synapses query a small
// capability set (LeakProp, AdaptProp, Beta, IsReadout, IsAdaptive) rather
// than the concrete type.
type NeurType int32

//go:generate stringer -type=NeurType

var KiT_NeurType = kit.Enums.AddEnum(NeurTypeN, false, nil)

func (ev NeurType) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *NeurType) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// Input neurons emit spikes generated externally (Poisson or fixed spike trains)
	Input NeurType = iota

	// NonAdaptive is a recurrent LIF neuron with a fixed threshold
	NonAdaptive

	// Adaptive is a recurrent LIF neuron whose threshold rises after each spike
	Adaptive

	// Readout is a non-spiking leaky integrator that computes the learning signal
	Readout

	NeurTypeN
)

// Neuron holds the state of one e-prop neuron, plus the history and
// registry that its incoming plastic synapses read from.
// All float64 variables accessible by name come first, in contiguous order.
type Neuron struct {
	Spike float64 `desc:"whether neuron has spiked on this step (0 or 1)"`
	V     float64 `desc:"membrane potential relative to resting potential E_L"`
	A     float64 `desc:"adaptation variable -- effective threshold is V_th + beta * A"`
	Thr   float64 `desc:"effective spiking threshold on this step"`
	H     float64 `desc:"pseudo-derivative of the spike function on this step"`
	Y     float64 `desc:"readout signal y = V + E_L"`
	Targ  float64 `desc:"target signal: regression value or one-hot class label"`
	L     float64 `desc:"learning signal most recently computed (readout) or received (recurrent)"`
	Ext   float64 `desc:"external current injected on this step"`

	Type  NeurType `desc:"variant of this neuron"`
	Refr  int      `desc:"refractory counter in steps"`
	Reset bool     `desc:"reset by subtraction is pending for the next step"`

	Hist   History     `view:"-" desc:"per-step history of pseudo-derivative and learning signal"`
	Spikes hist.Spikes `view:"-" desc:"spike times, for firing-rate regularization"`

	rd    ReadoutState
	p33   float64
	pa    float64
	beta  float64
	input float64
}

var NeuronVars = []string{"Spike", "V", "A", "Thr", "H", "Y", "Targ", "L", "Ext"}

var NeuronVarsMap map[string]int

func init() {
	NeuronVarsMap = make(map[string]int, len(NeuronVars))
	for i, v := range NeuronVars {
		NeuronVarsMap[v] = i
	}
}

func (nrn *Neuron) VarNames() []string {
	return NeuronVars
}

// NeuronVarByName returns the index of the variable in the Neuron, or error
func NeuronVarByName(varNm string) (int, error) {
	i, ok := NeuronVarsMap[varNm]
	if !ok {
		return 0, fmt.Errorf("Neuron VarByName: variable name: %v not valid", varNm)
	}
	return i, nil
}

// VarByIndex returns variable using index (0 = first variable in NeuronVars list)
func (nrn *Neuron) VarByIndex(idx int) float64 {
	v := reflect.ValueOf(*nrn)
	return v.Field(idx).Float()
}

// VarByName returns variable by name, or error
func (nrn *Neuron) VarByName(varNm string) (float64, error) {
	i, err := NeuronVarByName(varNm)
	if err != nil {
		return 0, err
	}
	return nrn.VarByIndex(i), nil
}

// IsReadout is true for readout neurons
func (nrn *Neuron) IsReadout() bool { return nrn.Type == Readout }

// IsAdaptive is true for recurrent neurons with an adaptive threshold
func (nrn *Neuron) IsAdaptive() bool { return nrn.Type == Adaptive && nrn.beta != 0 }

// LeakProp returns the membrane leak propagator exp(-dt / tau_m)
func (nrn *Neuron) LeakProp() float64 { return nrn.p33 }

// AdaptProp returns the adaptation propagator exp(-dt / tau_a)
func (nrn *Neuron) AdaptProp() float64 { return nrn.pa }

// Beta returns the adaptation coupling (0 for non-adaptive neurons)
func (nrn *Neuron) Beta() float64 { return nrn.beta }

// History returns the per-step history synapses replay
func (nrn *Neuron) History() *History { return &nrn.Hist }

// SpikeHist returns the spike-time history
func (nrn *Neuron) SpikeHist() *hist.Spikes { return &nrn.Spikes }

// InputSpikes adds incoming spike mass for the current step.
// Exported for hosts that integrate neurons outside a Network.
func (nrn *Neuron) InputSpikes(v float64) { nrn.input += v }

// InitRecur initializes a recurrent neuron for given params and step size
func (nrn *Neuron) InitRecur(rp *RecurParams, dt float64) {
	nrn.initBase(dt)
	nrn.p33 = rp.P33
	nrn.pa = rp.Pa
	if nrn.Type == Adaptive {
		nrn.beta = rp.Beta
	} else {
		nrn.beta = 0
	}
	nrn.Thr = rp.VTh
}

// InitReadout initializes a readout neuron for given params and step size
func (nrn *Neuron) InitReadout(ro *ReadoutParams, dt float64) {
	nrn.initBase(dt)
	nrn.p33 = ro.P33
	nrn.pa = 0
	nrn.beta = 0
	nrn.rd = ReadoutState{}
}

// InitInput initializes an input neuron
func (nrn *Neuron) InitInput(dt float64) {
	nrn.initBase(dt)
	nrn.p33 = 0
	nrn.pa = 0
	nrn.beta = 0
}

func (nrn *Neuron) initBase(dt float64) {
	nrn.Spike = 0
	nrn.V = 0
	nrn.A = 0
	nrn.Thr = 0
	nrn.H = 0
	nrn.Y = 0
	nrn.Targ = 0
	nrn.L = 0
	nrn.Ext = 0
	nrn.Refr = 0
	nrn.Reset = false
	nrn.input = 0
	nrn.Hist.Init(dt) // synapses re-register in Prjn.InitSyns
	nrn.Spikes.Reset()
}

// StepRecur advances a recurrent neuron one step at step index step,
// appending its history entry.  reset is true on the first step of an
// interval.  Returns true if the neuron spiked.
func (nrn *Neuron) StepRecur(rp *RecurParams, step int, reset bool) (bool, error) {
	st := AlifState{V: nrn.V, A: nrn.A, Refr: nrn.Refr, Reset: nrn.Reset}
	st, out := rp.Step(st, AlifIn{Reset: reset, I: nrn.Ext, Spk: nrn.input})
	nrn.input = 0
	nrn.V, nrn.A, nrn.Refr, nrn.Reset = st.V, st.A, st.Refr, st.Reset
	nrn.Thr = out.Thr
	nrn.H = out.H
	nrn.Spike = 0
	t := float64(step) * nrn.Hist.Dt
	if err := rp.CheckInstability(st.V); err != nil {
		return false, err
	}
	if out.Spike {
		nrn.Spike = 1
		nrn.Spikes.Add(t)
	}
	if err := nrn.Hist.Append(Step{T: t, H: out.H}); err != nil {
		return false, err
	}
	return out.Spike, nil
}

// StepReadout advances a readout neuron one step, appending the history
// entry for the previous step once its learning signal is known.
// recall reports whether a given step index lies in the recall window.
func (nrn *Neuron) StepReadout(ro *ReadoutParams, step int, reset bool, recallPrev bool) error {
	st, out := ro.Step(nrn.rd, ReadoutIn{Reset: reset, I: nrn.Ext, Spk: nrn.input, Targ: nrn.Targ, RecallPrev: recallPrev})
	nrn.input = 0
	nrn.rd = st
	nrn.V = st.V
	nrn.Y = out.Y
	if err := ro.CheckInstability(st.V); err != nil {
		return err
	}
	if !out.HasL {
		nrn.Hist.Start(float64(step) * nrn.Hist.Dt)
		return nil
	}
	nrn.L = out.L
	t := float64(step-1) * nrn.Hist.Dt
	return nrn.Hist.Append(Step{T: t, L: out.L})
}

// SetSoftmax sets this step's exp(y - max) and the group normalization
// sum of the same shifted values.
func (nrn *Neuron) SetSoftmax(expY, norm float64) {
	nrn.rd.ExpY = expY
	nrn.rd.Norm = norm
}
