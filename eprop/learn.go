// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"errors"
	"fmt"
	"math"

	"github.com/emer/eprop/optim"
	"github.com/emer/etable/minmax"
)

var (
	// ErrInvalidParam is returned when a parameter change fails validation.
	// The change is not applied.
	ErrInvalidParam = errors.New("eprop: invalid parameter")

	// ErrNumericalInstability is returned when a state variable runs away.
	ErrNumericalInstability = errors.New("eprop: numerical instability")
)

// LearnParams are the e-prop learning parameters shared by all synapses
// of a projection.
type LearnParams struct {
	Learn      bool          `desc:"enable learning for this projection"`
	LRate      float64       `def:"0.0001" min:"0" desc:"learning rate"`
	TauDecay   float64       `def:"10" min:"0" desc:"time constant in ms of the low-pass filter on the eligibility trace (readout targets: on the pre-synaptic trace) -- 0 = no filtering"`
	BatchSize  int           `def:"1" min:"1" desc:"number of update intervals whose gradients are averaged before one optimizer step"`
	RateReg    float64       `def:"0" min:"0" desc:"strength of firing-rate regularization (recurrent targets only)"`
	TargetRate float64       `def:"10" min:"0" desc:"target firing rate in Hz for firing-rate regularization"`
	KeepTraces bool          `def:"true" desc:"keep eligibility traces across updates -- if false they are cleared at each update"`
	RecallDur  float64       `def:"1" min:"0" desc:"duration of the recall window in ms -- the Adam gradient is divided by RecallDur / dt"`
	WtBound    minmax.F64    `desc:"weight bounds Wmin, Wmax -- stored but not applied by the gradient optimizers"`
	Optim      optim.Params  `view:"inline" desc:"optimizer: SGD or Adam"`

	Kappa float64 `view:"-" json:"-" desc:"low-pass propagator exp(-dt / tau_decay), 0 if tau_decay == 0"`
	Dt    float64 `view:"-" json:"-" desc:"step size Kappa was computed for"`
}

func (lp *LearnParams) Defaults() {
	lp.Learn = true
	lp.LRate = 0.0001
	lp.TauDecay = 10
	lp.BatchSize = 1
	lp.RateReg = 0
	lp.TargetRate = 10
	lp.KeepTraces = true
	lp.RecallDur = 1
	lp.WtBound.Set(0, 100)
	lp.Optim.Defaults()
	lp.Dt = 1
	lp.Update()
}

func (lp *LearnParams) Update() {
	if lp.TauDecay > 0 {
		lp.Kappa = math.Exp(-lp.Dt / lp.TauDecay)
	} else {
		lp.Kappa = 0
	}
	lp.Optim.Update()
}

// Calibrate sets the step size and recomputes the propagators
func (lp *LearnParams) Calibrate(dt float64) {
	lp.Dt = dt
	lp.Update()
}

// Validate checks the parameters for consistency
func (lp *LearnParams) Validate() error {
	switch {
	case lp.LRate < 0:
		return fmt.Errorf("%w: learning_rate=%g must not be negative", ErrInvalidParam, lp.LRate)
	case lp.TauDecay < 0:
		return fmt.Errorf("%w: tau_decay=%g must not be negative", ErrInvalidParam, lp.TauDecay)
	case lp.BatchSize < 1:
		return fmt.Errorf("%w: batch_size=%d must be >= 1", ErrInvalidParam, lp.BatchSize)
	case lp.RecallDur <= 0:
		return fmt.Errorf("%w: recall_duration=%g must be > 0", ErrInvalidParam, lp.RecallDur)
	case lp.WtBound.Min > lp.WtBound.Max:
		return fmt.Errorf("%w: Wmin=%g > Wmax=%g", ErrInvalidParam, lp.WtBound.Min, lp.WtBound.Max)
	case lp.Optim.Beta1 < 0 || lp.Optim.Beta1 >= 1 || lp.Optim.Beta2 < 0 || lp.Optim.Beta2 >= 1:
		return fmt.Errorf("%w: Adam betas must be in [0, 1)", ErrInvalidParam)
	}
	return nil
}

// CheckWtSign returns an error if weight w and the upper bound Wmax
// have different signs.
func (lp *LearnParams) CheckWtSign(w float64) error {
	if (w >= 0) != (lp.WtBound.Max >= 0) {
		return fmt.Errorf("%w: weight %g and Wmax %g must have the same sign", ErrInvalidParam, w, lp.WtBound.Max)
	}
	return nil
}
