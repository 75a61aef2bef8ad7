// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"

	"github.com/emer/emergent/erand"
	"github.com/emer/emergent/params"
	"github.com/emer/emergent/prjn"
)

// LSEvent is a learning-signal broadcast from one readout neuron: the
// signals of consecutive steps starting at time T0.
type LSEvent struct {
	T0 float64
	L  []float64
}

// LSPrjn is a learning-signal channel from a readout layer to a recurrent
// layer.  Each connection carries a fixed feedback weight B, and the
// weighted signals of all readouts are summed into the L field of each
// recurrent neuron's history.
type LSPrjn struct {
	Send *Layer       `desc:"sending readout layer"`
	Recv *Layer       `desc:"receiving recurrent layer"`
	Pat  prjn.Pattern `desc:"pattern of connectivity"`
	Cls  string       `desc:"space-separated list of class names for params selectors"`

	WtInit erand.RndParams `view:"inline" desc:"initial random feedback weight distribution"`
	Sym    *Prjn           `desc:"if set, feedback weights are copied from this forward projection (recurrent -> readout) at initialization, giving symmetric e-prop"`

	SConN     []int32   `view:"-" desc:"number of connections per sending readout"`
	SConIdxSt []int32   `view:"-" desc:"starting index per sending readout"`
	SConIdx   []int32   `view:"-" desc:"receiving neuron index per connection"`
	Wts       []float64 `desc:"feedback weights, in sender order"`

	ev LSEvent
}

func (lp *LSPrjn) TypeName() string { return "LSPrjn" }
func (lp *LSPrjn) Class() string    { return lp.Cls }
func (lp *LSPrjn) Name() string {
	return lp.Send.Nm + "LSTo" + lp.Recv.Nm
}

func (lp *LSPrjn) Defaults() {
	lp.WtInit.Dist = erand.Gaussian
	lp.WtInit.Mean = 0
	lp.WtInit.Var = 1
}

// ApplyParams applies given parameter style Sheet to this channel
func (lp *LSPrjn) ApplyParams(pars *params.Sheet, setMsg bool) (bool, error) {
	return pars.Apply(lp, setMsg)
}

// Validate checks the channel connects a readout to a recurrent layer
func (lp *LSPrjn) Validate() error {
	if lp.Send == nil || lp.Recv == nil || lp.Pat == nil {
		return fmt.Errorf("%w: learning-signal channel is not connected", ErrInvalidParam)
	}
	if lp.Send.Type != Readout {
		return fmt.Errorf("%w: learning signals must come from a Readout layer, not %v", ErrInvalidParam, lp.Send.Type)
	}
	if !lp.Recv.IsRecur() {
		return fmt.Errorf("%w: learning signals must go to a recurrent layer, not %v", ErrInvalidParam, lp.Recv.Type)
	}
	if lp.Sym != nil && (lp.Sym.Send != lp.Recv || lp.Sym.Recv != lp.Send) {
		return fmt.Errorf("%w: symmetric projection %v does not mirror %v", ErrInvalidParam, lp.Sym.Name(), lp.Name())
	}
	return nil
}

// Build constructs connectivity from the pattern, in sender order
func (lp *LSPrjn) Build() error {
	if err := lp.Validate(); err != nil {
		return err
	}
	ssh := lp.Send.Shape()
	rsh := lp.Recv.Shape()
	sendn, _, cons := lp.Pat.Connect(ssh, rsh, false)
	slen := ssh.Len()
	rlen := rsh.Len()
	tcons := setNIdxSt(&lp.SConN, &lp.SConIdxSt, sendn)
	lp.SConIdx = make([]int32, tcons)
	sconN := make([]int32, slen)
	cbits := cons.Values
	for ri := 0; ri < rlen; ri++ {
		rbi := ri * slen
		for si := 0; si < slen; si++ {
			if !cbits.Index(rbi + si) {
				continue
			}
			lp.SConIdx[lp.SConIdxSt[si]+sconN[si]] = int32(ri)
			sconN[si]++
		}
	}
	lp.Wts = make([]float64, tcons)
	lp.ev.L = make([]float64, 1)
	return nil
}

// InitWts initializes the feedback weights
func (lp *LSPrjn) InitWts() {
	nt := lp.Recv.Network
	for si := range lp.SConN {
		nc := int(lp.SConN[si])
		st := int(lp.SConIdxSt[si])
		for ci := st; ci < st+nc; ci++ {
			if lp.Sym != nil {
				ri := int(lp.SConIdx[ci])
				if sy := lp.Sym.Syn(ri, si); sy != nil {
					lp.Wts[ci] = sy.Wt
					continue
				}
			}
			lp.Wts[ci] = nt.RandWt(&lp.WtInit)
		}
	}
}

// Broadcast sends the learning signal each readout computed on this step
// (for the previous step) to all connected recurrent neurons.
func (lp *LSPrjn) Broadcast(step int) error {
	if step == 0 {
		return nil
	}
	dt := lp.Send.Network.Time.Dt
	lp.ev.T0 = float64(step-1) * dt
	for si := range lp.SConN {
		lp.ev.L[0] = lp.Send.Neurons[si].L
		if err := lp.Deliver(si, &lp.ev); err != nil {
			return err
		}
	}
	return nil
}

// Deliver deposits one learning-signal event from readout si into every
// connected recurrent neuron's history.
func (lp *LSPrjn) Deliver(si int, ev *LSEvent) error {
	dt := lp.Send.Network.Time.Dt
	t1 := ev.T0 + float64(len(ev.L))*dt
	nc := int(lp.SConN[si])
	st := int(lp.SConIdxSt[si])
	for ci := st; ci < st+nc; ci++ {
		ri := int(lp.SConIdx[ci])
		nrn := &lp.Recv.Neurons[ri]
		if err := nrn.Hist.DepositLearningSignal(ev.T0, t1, ev.L, lp.Wts[ci]); err != nil {
			return fmt.Errorf("learning signal %v %d -> %d: %w", lp.Name(), si, ri, err)
		}
	}
	return nil
}
