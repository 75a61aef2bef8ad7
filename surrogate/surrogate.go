// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package surrogate provides the pseudo-derivative of the spiking nonlinearity
used by e-prop: a triangular function of the distance of the membrane
potential from the effective threshold, which stands in for the derivative
of the discontinuous spike function so that gradients can flow through
spike times.

The peak of the triangle is at threshold, its half-width is the (relative)
base threshold, and its height is scaled by a dampening factor, which keeps
gradients through many time steps of recurrent activity from exploding.
*/
package surrogate

import "math"

// Params are the pseudo-derivative parameters.
type Params struct {
	Gamma float64 `def:"0.3" min:"0" desc:"dampening factor scaling the height of the pseudo-derivative -- smaller values reduce gradient magnitude through long recurrent chains"`
	Width float64 `def:"1" min:"0" desc:"half-width of the triangle in units of the base threshold -- 1 is standard"`
}

func (sp *Params) Defaults() {
	sp.Gamma = 0.3
	sp.Width = 1
}

func (sp *Params) Update() {
}

// PseudoDeriv returns the pseudo-derivative for membrane potential v
// relative to effective threshold thr, with vth the base threshold
// (both relative to resting potential).  Returns 0 if vth <= 0.
func (sp *Params) PseudoDeriv(v, thr, vth float64) float64 {
	if vth <= 0 {
		return 0
	}
	wd := sp.Width * vth
	x := 1 - math.Abs(v-thr)/wd
	if x <= 0 {
		return 0
	}
	return (sp.Gamma / vth) * x
}

// Peak returns the maximum value of the pseudo-derivative, at threshold
func (sp *Params) Peak(vth float64) float64 {
	if vth <= 0 {
		return 0
	}
	return sp.Gamma / vth
}
