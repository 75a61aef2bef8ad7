// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package optim provides the per-synapse optimizers used to turn a batch of
e-prop gradients into a weight change: plain stochastic gradient descent and
Adam with bias-corrected first and second moment estimates.

Each synapse keeps its own State; the Params are shared across all synapses
of a projection.
*/
package optim

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNaNGrad is returned when the batch mean gradient is not a number.
// The batch is skipped and the weight left unchanged.
var ErrNaNGrad = errors.New("optim: NaN gradient")

// Params are the optimizer parameters
type Params struct {
	Adam  bool    `desc:"use Adam instead of plain gradient descent"`
	Beta1 float64 `def:"0.9" min:"0" max:"1" viewif:"Adam" desc:"exponential decay rate of the first moment estimate"`
	Beta2 float64 `def:"0.999" min:"0" max:"1" viewif:"Adam" desc:"exponential decay rate of the second moment estimate"`
	Eps   float64 `def:"1e-8" min:"0" viewif:"Adam" desc:"small constant added to the square root of the second moment"`
}

func (op *Params) Defaults() {
	op.Adam = false
	op.Beta1 = 0.9
	op.Beta2 = 0.999
	op.Eps = 1e-8
}

func (op *Params) Update() {
}

// State is the per-synapse optimizer state
type State struct {
	M    float64 `desc:"Adam first moment estimate"`
	V    float64 `desc:"Adam second moment estimate"`
	Iter int     `desc:"number of optimizer steps taken -- the learning period counter"`
}

// Reset zeros the optimizer state
func (st *State) Reset() {
	st.M = 0
	st.V = 0
	st.Iter = 0
}

// Mean returns the mean of a batch of gradients
func Mean(grads []float64) float64 {
	if len(grads) == 0 {
		return 0
	}
	return stat.Mean(grads, nil)
}

// Step applies one optimizer step for gradient g with learning rate lr,
// returning the new weight.  A NaN gradient returns ErrNaNGrad and the
// original weight, leaving the state untouched.
func (op *Params) Step(st *State, w, g, lr float64) (float64, error) {
	if math.IsNaN(g) {
		return w, ErrNaNGrad
	}
	st.Iter++
	if !op.Adam {
		return w - lr*g, nil
	}
	st.M = op.Beta1*st.M + (1-op.Beta1)*g
	st.V = op.Beta2*st.V + (1-op.Beta2)*g*g
	mhat := st.M / (1 - math.Pow(op.Beta1, float64(st.Iter)))
	vhat := st.V / (1 - math.Pow(op.Beta2, float64(st.Iter)))
	return w - lr*mhat/(math.Sqrt(vhat)+op.Eps), nil
}
