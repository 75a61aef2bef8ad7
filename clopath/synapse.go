// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clopath

import (
	"fmt"
	"math"

	"github.com/emer/eprop/eprop"
	"github.com/goki/ki/kit"
)

// SynParams are the Clopath synapse parameters shared by a set of synapses
type SynParams struct {
	TauX float64 `def:"15" min:"0" desc:"time constant in ms of the pre-synaptic trace x_bar"`
	Wmin float64 `def:"0" desc:"lower bound on the weight"`
	Wmax float64 `def:"100" desc:"upper bound on the weight"`
}

func (sp *SynParams) Defaults() {
	sp.TauX = 15
	sp.Wmin = 0
	sp.Wmax = 100
}

// Validate checks the parameters for consistency
func (sp *SynParams) Validate() error {
	if sp.TauX <= 0 {
		return fmt.Errorf("%w: tau_x=%g must be > 0", eprop.ErrInvalidParam, sp.TauX)
	}
	if sp.Wmin > sp.Wmax {
		return fmt.Errorf("%w: Wmin=%g > Wmax=%g", eprop.ErrInvalidParam, sp.Wmin, sp.Wmax)
	}
	return nil
}

// CheckWtSign returns an error if w and Wmax have different signs
func (sp *SynParams) CheckWtSign(w float64) error {
	if (w >= 0) != (sp.Wmax >= 0) {
		return fmt.Errorf("%w: weight %g and Wmax %g must have the same sign", eprop.ErrInvalidParam, w, sp.Wmax)
	}
	return nil
}

// Synapse is a voltage-based STDP synapse (Clopath et al., 2010).
// Times are in ms.
type Synapse struct {
	Wt    float64 `desc:"synaptic weight"`
	XBar  float64 `desc:"pre-synaptic trace, as of the last pre-synaptic spike"`
	Delay float64 `desc:"dendritic delay in ms"`
	TLast float64 `desc:"time of the last pre-synaptic spike"`
	Spkd  bool    `desc:"a pre-synaptic spike has been processed"`

	treg float64 // time this synapse holds in the history registry
}

// Init sets the weight and delay, clears the trace, and registers with
// the post-synaptic history at time t0 less the delay, or at the history
// front if that is later.
func (sy *Synapse) Init(wt, delay, t0 float64, hs *History) {
	sy.Wt = wt
	sy.Delay = delay
	sy.XBar = 0
	sy.TLast = t0
	sy.Spkd = false
	sy.treg = math.Max(t0-delay, hs.Front())
	hs.Reg.Register(sy.treg)
}

// Send processes a pre-synaptic spike at tSpike: facilitation from the
// post-synaptic history since the last spike, then depression, then the
// trace update.  The spike should then be delivered with Wt.
func (sy *Synapse) Send(sp *SynParams, tSpike float64, hs *History) error {
	d := sy.Delay
	t1 := sy.TLast - d
	t2 := tSpike - d
	if sy.Spkd {
		ta := t1 + hs.Dt
		if ta < hs.Front() {
			ta = hs.Front()
		}
		rg, err := hs.Range(ta, t2+hs.Dt)
		if err != nil {
			return err
		}
		for i := range rg {
			e := &rg[i]
			minusDt := sy.TLast - (e.T + d)
			if minusDt == 0 {
				continue
			}
			sy.Wt = math.Min(sy.Wt+e.LTP*sy.XBar*math.Exp(minusDt/sp.TauX), sp.Wmax)
		}
	}
	sy.Wt = math.Max(sy.Wt-hs.LTDAt(t2), sp.Wmin)
	sy.XBar = sy.XBar*math.Exp((sy.TLast-tSpike)/sp.TauX) + 1
	// never register below the old key, which is at or past the front
	treg := math.Max(t2, sy.treg)
	if err := hs.RegisterUpdate(sy.treg, treg); err != nil {
		return err
	}
	sy.treg = treg
	sy.TLast = tSpike
	sy.Spkd = true
	return nil
}

// SetStatus sets the synapse state and shared parameters from a property
// dictionary (weight, x_bar, tau_x, Wmin, Wmax).  Nothing is changed if
// the result is invalid.
func (sy *Synapse) SetStatus(sp *SynParams, d eprop.Dict) error {
	nsy := *sy
	nsp := *sp
	for _, k := range d.Keys() {
		var ok bool
		v := d[k]
		switch k {
		case "weight":
			nsy.Wt, ok = kit.ToFloat(v)
		case "x_bar":
			nsy.XBar, ok = kit.ToFloat(v)
		case "tau_x":
			nsp.TauX, ok = kit.ToFloat(v)
		case "Wmin":
			nsp.Wmin, ok = kit.ToFloat(v)
		case "Wmax":
			nsp.Wmax, ok = kit.ToFloat(v)
		default:
			return fmt.Errorf("%w: clopath synapse has no property %q", eprop.ErrInvalidParam, k)
		}
		if !ok {
			return fmt.Errorf("%w: %v: cannot convert %v to a number", eprop.ErrInvalidParam, k, v)
		}
	}
	if err := nsp.Validate(); err != nil {
		return err
	}
	if err := nsp.CheckWtSign(nsy.Wt); err != nil {
		return err
	}
	*sy = nsy
	*sp = nsp
	return nil
}

// Status returns the synapse state and shared parameters
func (sy *Synapse) Status(sp *SynParams) eprop.Dict {
	return eprop.Dict{
		"weight": sy.Wt,
		"x_bar":  sy.XBar,
		"tau_x":  sp.TauX,
		"Wmin":   sp.Wmin,
		"Wmax":   sp.Wmax,
		"delay":  sy.Delay,
	}
}
