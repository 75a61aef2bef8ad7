// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clopath

import (
	"errors"
	"fmt"
	"math"

	"github.com/emer/eprop/eprop"
	"github.com/emer/eprop/odeint"
	"github.com/goki/ki/kit"
)

// ErrNumericalInstability is returned when the membrane potential or the
// adaptation current diverge.
var ErrNumericalInstability = errors.New("clopath: numerical instability")

// NeuronParams are the parameters of the adaptive exponential integrate
// and fire neuron with adaptive threshold and spike after-depolarization
// of Clopath et al. (2010).  Voltages in mV, currents in pA, times in ms.
type NeuronParams struct {
	VPeak    float64 `def:"0" desc:"spike detection threshold"`
	VReset   float64 `def:"-60" desc:"reset potential"`
	TRef     float64 `def:"0" min:"0" desc:"absolute refractory period"`
	GL       float64 `def:"30" desc:"leak conductance in nS"`
	Cm       float64 `def:"281" min:"0" desc:"membrane capacitance in pF"`
	EL       float64 `def:"-70.6" desc:"leak reversal potential"`
	DeltaT   float64 `def:"2" min:"0" desc:"slope factor of the exponential term"`
	TauW     float64 `def:"144" min:"0" desc:"adaptation time constant"`
	TauZ     float64 `def:"40" min:"0" desc:"spike after-depolarization time constant"`
	TauVT    float64 `def:"50" min:"0" desc:"adaptive threshold time constant"`
	VTMax    float64 `def:"-30.4" desc:"threshold value right after a spike"`
	VTRest   float64 `def:"-50.4" desc:"resting threshold"`
	A        float64 `def:"4" desc:"subthreshold adaptation in nS"`
	B        float64 `def:"80.5" desc:"spike-triggered adaptation increment"`
	ISp      float64 `def:"400" desc:"after-depolarization current right after a spike"`
	TauSynEx float64 `def:"0.2" min:"0" desc:"excitatory synaptic current time constant"`
	TauSynIn float64 `def:"2" min:"0" desc:"inhibitory synaptic current time constant"`
	Ie       float64 `def:"0" desc:"constant external input current"`

	TauPlus   float64 `def:"7" min:"0" desc:"time constant of u_bar_plus"`
	TauMinus  float64 `def:"10" min:"0" desc:"time constant of u_bar_minus"`
	TauBarBar float64 `def:"500" min:"0" desc:"time constant of u_bar_bar, the slow average of u_bar_minus relative to EL"`

	ThetaPlus  float64 `def:"-45.3" desc:"potentiation threshold on the membrane potential"`
	ThetaMinus float64 `def:"-70.6" desc:"threshold on u_bar_plus and u_bar_minus"`
	ALTP       float64 `def:"8e-5" desc:"potentiation amplitude"`
	ALTD       float64 `def:"14e-5" desc:"depression amplitude"`
	ALTDConst  bool    `def:"true" desc:"if false, ALTD is scaled by u_bar_bar^2 / URefSq"`
	URefSq     float64 `def:"60" desc:"reference value of u_bar_bar^2 for homeostatic scaling of ALTD"`

	Tol float64 `def:"1e-6" min:"0" desc:"error tolerance of the integrator"`

	RefrN int `inactive:"+" desc:"refractory period in steps, from TRef and the step size"`
}

func (np *NeuronParams) Defaults() {
	np.VPeak = 0
	np.VReset = -60
	np.TRef = 0
	np.GL = 30
	np.Cm = 281
	np.EL = -70.6
	np.DeltaT = 2
	np.TauW = 144
	np.TauZ = 40
	np.TauVT = 50
	np.VTMax = -30.4
	np.VTRest = -50.4
	np.A = 4
	np.B = 80.5
	np.ISp = 400
	np.TauSynEx = 0.2
	np.TauSynIn = 2
	np.Ie = 0
	np.TauPlus = 7
	np.TauMinus = 10
	np.TauBarBar = 500
	np.ThetaPlus = -45.3
	np.ThetaMinus = -70.6
	np.ALTP = 8e-5
	np.ALTD = 14e-5
	np.ALTDConst = true
	np.URefSq = 60
	np.Tol = 1e-6
}

// Update computes derived values for step size dt
func (np *NeuronParams) Update(dt float64) {
	np.RefrN = int(math.Round(np.TRef / dt))
}

// Validate checks the parameters for consistency
func (np *NeuronParams) Validate() error {
	switch {
	case np.VReset >= np.VPeak:
		return fmt.Errorf("%w: V_reset=%g must be < V_peak=%g", eprop.ErrInvalidParam, np.VReset, np.VPeak)
	case np.DeltaT < 0:
		return fmt.Errorf("%w: Delta_T=%g must be >= 0", eprop.ErrInvalidParam, np.DeltaT)
	case np.Cm <= 0:
		return fmt.Errorf("%w: C_m=%g must be > 0", eprop.ErrInvalidParam, np.Cm)
	case np.TRef < 0:
		return fmt.Errorf("%w: t_ref=%g must be >= 0", eprop.ErrInvalidParam, np.TRef)
	case np.Tol <= 0:
		return fmt.Errorf("%w: tolerance %g must be > 0", eprop.ErrInvalidParam, np.Tol)
	}
	taus := []float64{np.TauW, np.TauZ, np.TauVT, np.TauSynEx, np.TauSynIn, np.TauPlus, np.TauMinus, np.TauBarBar}
	for _, tau := range taus {
		if tau <= 0 {
			return fmt.Errorf("%w: all time constants must be > 0, got %g", eprop.ErrInvalidParam, tau)
		}
	}
	return nil
}

// State indexes the integrated state of a Neuron
type State int

const (
	Vm State = iota
	IExc
	IInh
	W
	Z
	VT
	UBarPlus
	UBarMinus
	UBarBar
	LTPFactor
	StateN
)

// Neuron is an AdEx neuron that writes one Clopath history Entry per step
type Neuron struct {
	Y     [StateN]float64 `desc:"integrated state"`
	Spike bool            `desc:"spiked on the last step"`
	Refr  int             `desc:"remaining refractory steps"`
	IStim float64         `desc:"external current for the current step, added to Ie"`
	Hist  History         `desc:"history read by incoming Clopath synapses"`

	np  *NeuronParams
	dt  float64
	rk  odeint.RKF45
	dyf odeint.Func
}

// Init resets the neuron to rest with given parameters and step size
func (nrn *Neuron) Init(np *NeuronParams, dt float64) {
	nrn.np = np
	nrn.dt = dt
	nrn.Y = [StateN]float64{}
	nrn.Y[VT] = np.VTRest
	nrn.SetVm(np.EL)
	nrn.Spike = false
	nrn.Refr = 0
	nrn.IStim = 0
	nrn.Hist.Init(dt)
	nrn.rk.Defaults()
	nrn.rk.Tol = np.Tol
	nrn.rk.HMin = 1e-16
	nrn.dyf = nrn.derivs
}

// SetVm sets the membrane potential, and the low-pass filtered voltages
// with it.
func (nrn *Neuron) SetVm(v float64) {
	nrn.Y[Vm] = v
	nrn.Y[UBarPlus] = v
	nrn.Y[UBarMinus] = v
}

func (nrn *Neuron) derivs(t float64, y, dy []float64) {
	np := nrn.np
	refr := nrn.Refr > 0
	v := np.VReset
	if !refr {
		v = math.Min(y[Vm], np.VPeak)
	}
	ispk := 0.0
	if np.DeltaT > 0 {
		ispk = np.GL * np.DeltaT * math.Exp((v-y[VT])/np.DeltaT)
	}
	if refr {
		dy[Vm] = 0
	} else {
		dy[Vm] = (-np.GL*(v-np.EL) + ispk + y[IExc] - y[IInh] - y[W] + y[Z] + np.Ie + nrn.IStim) / np.Cm
	}
	dy[IExc] = -y[IExc] / np.TauSynEx
	dy[IInh] = -y[IInh] / np.TauSynIn
	dy[W] = (np.A*(v-np.EL) - y[W]) / np.TauW
	dy[Z] = -y[Z] / np.TauZ
	dy[VT] = -(y[VT] - np.VTRest) / np.TauVT
	dy[UBarPlus] = (v - y[UBarPlus]) / np.TauPlus
	dy[UBarMinus] = (v - y[UBarMinus]) / np.TauMinus
	dy[UBarBar] = (y[UBarMinus] - np.EL - y[UBarBar]) / np.TauBarBar
	dy[LTPFactor] = 0
	if v > np.ThetaPlus && y[UBarPlus] > np.ThetaMinus {
		dy[LTPFactor] = (v - np.ThetaPlus) * (y[UBarPlus] - np.ThetaMinus)
	}
}

// Step integrates the neuron over step [step*dt, (step+1)*dt), appends
// the history entry for the step, and then adds the synaptic input
// arriving at the step (exc and inh both >= 0).
func (nrn *Neuron) Step(step int, exc, inh float64) error {
	np := nrn.np
	t := float64(step) * nrn.dt
	y := nrn.Y[:]
	y[LTPFactor] = 0
	// local time keeps tiny steps around spikes representable
	if err := nrn.rk.Integrate(nrn.dyf, 0, nrn.dt, y); err != nil {
		return fmt.Errorf("%w: %v", ErrNumericalInstability, err)
	}
	if y[Vm] < -1e3 || math.Abs(y[W]) > 1e6 || math.IsNaN(y[Vm]) {
		return fmt.Errorf("%w: V_m=%g w=%g at t=%g", ErrNumericalInstability, y[Vm], y[W], t)
	}
	nrn.Spike = false
	if nrn.Refr > 0 {
		y[Vm] = np.VReset
	} else if y[Vm] >= np.VPeak {
		y[Vm] = np.VReset
		y[W] += np.B
		y[Z] = np.ISp
		y[VT] = np.VTMax
		nrn.Spike = true
		if np.RefrN > 0 {
			nrn.Refr = np.RefrN + 1
		}
	}

	e := Entry{T: t}
	e.LTP = np.ALTP * y[LTPFactor]
	if y[UBarMinus] > np.ThetaMinus {
		altd := np.ALTD
		if !np.ALTDConst {
			altd *= y[UBarBar] * y[UBarBar] / np.URefSq
		}
		e.LTD = altd * (y[UBarMinus] - np.ThetaMinus)
	}
	if err := nrn.Hist.Append(e); err != nil {
		return err
	}
	if nrn.Refr > 0 {
		nrn.Refr--
	}
	y[IExc] += exc
	y[IInh] += inh
	return nil
}

// SetStatus sets neuron state variables from a property dictionary
// (V_m, w, z, V_T, u_bar_plus, u_bar_minus, u_bar_bar).  V_m also sets
// u_bar_plus and u_bar_minus unless those are given too.
func (nrn *Neuron) SetStatus(d eprop.Dict) error {
	ny := nrn.Y
	keys := d.Keys()
	for _, k := range keys {
		v, ok := kit.ToFloat(d[k])
		if !ok {
			return fmt.Errorf("%w: %v: cannot convert %v to a number", eprop.ErrInvalidParam, k, d[k])
		}
		switch k {
		case "V_m":
			ny[Vm] = v
			if _, has := d["u_bar_plus"]; !has {
				ny[UBarPlus] = v
			}
			if _, has := d["u_bar_minus"]; !has {
				ny[UBarMinus] = v
			}
		case "w":
			ny[W] = v
		case "z":
			ny[Z] = v
		case "V_T":
			ny[VT] = v
		case "u_bar_plus":
			ny[UBarPlus] = v
		case "u_bar_minus":
			ny[UBarMinus] = v
		case "u_bar_bar":
			ny[UBarBar] = v
		default:
			return fmt.Errorf("%w: clopath neuron has no property %q", eprop.ErrInvalidParam, k)
		}
	}
	nrn.Y = ny
	return nil
}

// Status returns the neuron state variables
func (nrn *Neuron) Status() eprop.Dict {
	return eprop.Dict{
		"V_m":         nrn.Y[Vm],
		"w":           nrn.Y[W],
		"z":           nrn.Y[Z],
		"V_T":         nrn.Y[VT],
		"u_bar_plus":  nrn.Y[UBarPlus],
		"u_bar_minus": nrn.Y[UBarMinus],
		"u_bar_bar":   nrn.Y[UBarBar],
		"I_syn_ex":    nrn.Y[IExc],
		"I_syn_in":    nrn.Y[IInh],
	}
}
