// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clopath

import (
	"github.com/emer/eprop/hist"
)

// Entry is one step of the history a Clopath synapse reads: the
// potentiation factor integrated over the step, and the depression
// amplitude at the step.
type Entry struct {
	T   float64 `desc:"time of this step in ms"`
	LTP float64 `desc:"A_LTP times the voltage-gated potentiation factor integrated over the step"`
	LTD float64 `desc:"A_LTD times the gated low-pass filtered voltage"`
}

func (e Entry) Time() float64 { return e.T }

// History is the Clopath history of one post-synaptic neuron
type History struct {
	hist.Store[Entry]
}

// LTDAt returns the depression amplitude at time t, 0 if not held
func (hs *History) LTDAt(t float64) float64 {
	if t < hs.Front()-hs.Eps() {
		return 0
	}
	rg, err := hs.Range(t, t+hs.Dt)
	if err != nil || len(rg) == 0 {
		return 0
	}
	return rg[0].LTD
}
