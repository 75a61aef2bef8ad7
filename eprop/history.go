// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"

	"github.com/emer/eprop/hist"
)

// Step is one per-step e-prop history entry of a neuron
type Step struct {
	T float64 `desc:"time of this step in ms"`
	H float64 `desc:"pseudo-derivative (recurrent neurons only)"`
	L float64 `desc:"learning signal, summed over all readouts"`
}

func (st Step) Time() float64 { return st.T }

// History is the e-prop history of one post-synaptic neuron
type History struct {
	hist.Store[Step]
}

// DepositLearningSignal adds wt * ls[i] to the learning signal of the
// i-th entry of [tStart, tEnd).  The whole range must be present in the
// history.  Zero signals are written like any other.
func (hs *History) DepositLearningSignal(tStart, tEnd float64, ls []float64, wt float64) error {
	rg, err := hs.Range(tStart, tEnd)
	if err != nil {
		return err
	}
	if len(rg) < len(ls) {
		return fmt.Errorf("%w: deposit of %d signals at t=%g, only %d entries", hist.ErrAfterBack, len(ls), tStart, len(rg))
	}
	for i, l := range ls {
		rg[i].L += wt * l
	}
	return nil
}

// SizeBytes returns the approximate memory held by the history entries
func (hs *History) SizeBytes() int {
	return hs.Len()*24 + hs.Reg.Len()*16
}
