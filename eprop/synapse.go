// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"errors"
	"fmt"
	"log"
	"reflect"

	"github.com/emer/eprop/hist"
	"github.com/emer/eprop/optim"
)

// Synapse holds the state of one e-prop synapse.
// All float64 variables accessible by name come first, in contiguous order.
type Synapse struct {
	Wt   float64 `desc:"synaptic weight"`
	DWt  float64 `desc:"weight change applied by the last optimizer step"`
	Grad float64 `desc:"gradient computed at the last update"`
	ZHat float64 `desc:"pre-synaptic spike trace on the post-synaptic clock"`
	EpsA float64 `desc:"adaptation component of the eligibility trace (adaptive targets)"`
	EBar float64 `desc:"low-pass filtered eligibility trace"`

	TLast int         `desc:"step up to which post-synaptic history has been consumed"`
	TNext int         `desc:"step at or after which the next pre-synaptic spike triggers an update"`
	Opt   optim.State `desc:"optimizer state"`
	Buf   []int       `view:"-" desc:"stamps of pre-synaptic spikes not yet consumed by an update"`
	Grads []float64   `view:"-" desc:"gradients of the current batch"`
}

var SynapseVars = []string{"Wt", "DWt", "Grad", "ZHat", "EpsA", "EBar"}

var SynapseVarsMap map[string]int

func init() {
	SynapseVarsMap = make(map[string]int, len(SynapseVars))
	for i, v := range SynapseVars {
		SynapseVarsMap[v] = i
	}
}

func (sy *Synapse) VarNames() []string {
	return SynapseVars
}

// SynapseVarByName returns the index of the variable in the Synapse, or error
func SynapseVarByName(varNm string) (int, error) {
	i, ok := SynapseVarsMap[varNm]
	if !ok {
		return 0, fmt.Errorf("Synapse VarByName: variable name: %v not valid", varNm)
	}
	return i, nil
}

// VarByIndex returns variable using index (0 = first variable in SynapseVars list)
func (sy *Synapse) VarByIndex(idx int) float64 {
	v := reflect.ValueOf(*sy)
	return v.Field(idx).Float()
}

// VarByName returns variable by name, or error
func (sy *Synapse) VarByName(varNm string) (float64, error) {
	i, err := SynapseVarByName(varNm)
	if err != nil {
		return 0, err
	}
	return sy.VarByIndex(i), nil
}

func (sy *Synapse) SetVarByIndex(idx int, val float64) {
	v := reflect.ValueOf(sy)
	v.Elem().Field(idx).SetFloat(val)
}

// SetVarByName sets synapse variable to given value
func (sy *Synapse) SetVarByName(varNm string, val float64) error {
	i, err := SynapseVarByName(varNm)
	if err != nil {
		return err
	}
	sy.SetVarByIndex(i, val)
	return nil
}

// Post is the capability set a synapse needs from its post-synaptic neuron
type Post interface {
	IsReadout() bool
	IsAdaptive() bool
	LeakProp() float64
	AdaptProp() float64
	Beta() float64
	History() *History
	SpikeHist() *hist.Spikes
}

// SynTiming is the timing shared by the synapses of a projection
type SynTiming struct {
	Dt        float64 // step size in ms
	IntervalN int     // update interval in steps
	Delay     int     // delay in steps from emission to integration by the target
}

// Init sets the weight and resets all learning state to the start of the
// interval containing step, registering with the post-synaptic history.
func (sy *Synapse) Init(wt float64, step int, tm SynTiming, post Post) {
	sy.Wt = wt
	sy.DWt = 0
	sy.Grad = 0
	sy.ZHat = 0
	sy.EpsA = 0
	sy.EBar = 0
	sy.Opt.Reset()
	sy.Buf = sy.Buf[:0]
	sy.Grads = sy.Grads[:0]
	sy.TLast = 0
	if tm.IntervalN > 0 {
		sy.TLast = (step / tm.IntervalN) * tm.IntervalN
	}
	sy.TNext = sy.TLast + tm.IntervalN
	post.History().Reg.Register(float64(sy.TLast) * tm.Dt)
}

// Send processes a pre-synaptic spike event of multiplicity mult with
// stamp step.  A spike arriving on the reset step of an interval is
// dropped (deliver is false).  Otherwise the spike is buffered and, if an
// interval boundary has passed, the synapse replays the post-synaptic
// history since its last update and computes a gradient.  The spike should
// then be delivered with the current Wt.
func (sy *Synapse) Send(lp *LearnParams, step, mult int, tm SynTiming, post Post) (deliver bool, err error) {
	if tm.IntervalN > 0 && (step+tm.Delay)%tm.IntervalN == 0 {
		return false, nil
	}
	for i := 0; i < mult; i++ {
		sy.Buf = append(sy.Buf, step)
	}
	if tm.IntervalN > 0 && step >= sy.TNext {
		tu := (step / tm.IntervalN) * tm.IntervalN
		if err := sy.Update(lp, tu, tm, post); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Update consumes the post-synaptic history in [TLast, tu), computes the
// gradient, applies an optimizer step when the batch is full, and moves
// the registry entry forward to tu.
func (sy *Synapse) Update(lp *LearnParams, tu int, tm SynTiming, post Post) error {
	hs := post.History()
	ta := float64(sy.TLast) * tm.Dt
	tb := float64(tu) * tm.Dt
	if lp.Learn {
		rg, err := hs.Range(ta, tb)
		if err != nil {
			return err
		}
		if len(rg) != tu-sy.TLast {
			return fmt.Errorf("%w: need %d entries from t=%g, have %d", hist.ErrAfterBack, tu-sy.TLast, ta, len(rg))
		}
		g := sy.Gradient(lp, rg, tm, post)
		sy.Grad = g
		sy.Grads = append(sy.Grads, g)
		if len(sy.Grads) >= lp.BatchSize {
			sy.ApplyGrads(lp, tm.Dt)
		}
	}
	if err := hs.RegisterUpdate(ta, tb); err != nil {
		return err
	}
	if !post.IsReadout() {
		if tmin, ok := hs.Reg.Min(); ok {
			post.SpikeHist().Tidy(tmin, hs.Eps())
		}
	}
	sy.TLast = tu
	sy.TNext = tu + tm.IntervalN
	n := 0
	for _, st := range sy.Buf {
		if st+tm.Delay >= tu {
			sy.Buf[n] = st
			n++
		}
	}
	sy.Buf = sy.Buf[:n]
	return nil
}

// Gradient computes the gradient over history entries rg, which start at
// step TLast, from the buffered pre-synaptic spikes aligned to their
// arrival on the post-synaptic clock.
func (sy *Synapse) Gradient(lp *LearnParams, rg []Step, tm SynTiming, post Post) float64 {
	if !lp.KeepTraces {
		sy.ZHat = 0
		sy.EpsA = 0
		sy.EBar = 0
	}
	k := lp.Kappa
	readout := post.IsReadout()
	adapt := post.IsAdaptive()
	alpha := post.LeakProp()
	rho := post.AdaptProp()
	beta := post.Beta()

	bi := 0
	for bi < len(sy.Buf) && sy.Buf[bi]+tm.Delay < sy.TLast {
		bi++
	}
	sum := 0.0
	sumE := 0.0
	for i := range rg {
		step := sy.TLast + i
		jump := 0.0
		for bi < len(sy.Buf) && sy.Buf[bi]+tm.Delay == step {
			jump++
			bi++
		}
		e := &rg[i]
		if readout {
			sy.ZHat = k*sy.ZHat + (1-k)*jump
			sum += e.L * sy.ZHat
			continue
		}
		zprev := sy.ZHat
		sy.ZHat = alpha*sy.ZHat + jump
		var el float64
		if adapt {
			sy.EpsA = e.H*zprev + (rho-beta*e.H)*sy.EpsA
			el = e.H * (sy.ZHat - beta*sy.EpsA)
		} else {
			el = e.H * sy.ZHat
		}
		sy.EBar = k*sy.EBar + (1-k)*el
		sum += sy.EBar * e.L
		sumE += el
	}
	g := sum * tm.Dt
	if !readout && lp.RateReg != 0 && len(rg) > 0 {
		// rate is normalized by the interval T even when the window spans
		// several intervals
		intv := float64(tm.IntervalN) * tm.Dt
		ta := float64(sy.TLast) * tm.Dt
		tb := ta + float64(len(rg))*tm.Dt
		n := post.SpikeHist().Count(ta, tb, 0.5*tm.Dt)
		f := 1000 * float64(n) / intv
		g += lp.RateReg * (f - lp.TargetRate) * sumE * tm.Dt / intv
	}
	return g
}

// ApplyGrads averages the gradients of the batch and applies one optimizer
// step.  A NaN mean is logged and the batch discarded.
func (sy *Synapse) ApplyGrads(lp *LearnParams, dt float64) {
	mean := optim.Mean(sy.Grads)
	sy.Grads = sy.Grads[:0]
	if lp.Optim.Adam {
		mean /= lp.RecallDur / dt
	}
	w, err := lp.Optim.Step(&sy.Opt, sy.Wt, mean, lp.LRate)
	if err != nil {
		if errors.Is(err, optim.ErrNaNGrad) {
			log.Printf("eprop.Synapse.ApplyGrads: NaN gradient, batch skipped\n")
			return
		}
		log.Println(err)
		return
	}
	// TODO: clip to lp.WtBound once sign-constrained (Dale's law) networks are supported
	sy.DWt = w - sy.Wt
	sy.Wt = w
}
