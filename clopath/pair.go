// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clopath

import (
	"fmt"

	"github.com/emer/eprop/eprop"
	"github.com/emer/eprop/spikegen"
)

// Pair drives one post-synaptic Neuron from a set of pre-synaptic spike
// trains through Clopath synapses, as used in plasticity protocols.
type Pair struct {
	Neuron NeuronParams      `view:"inline" desc:"post-synaptic neuron parameters"`
	Syn    SynParams         `view:"inline" desc:"synapse parameters shared by all synapses"`
	Dt     float64           `def:"0.1" desc:"step size in ms"`
	Delay  int               `def:"1" min:"1" desc:"delay in steps from a pre-synaptic spike to its effect"`
	Pre    eprop.SpikeSource `view:"-" desc:"pre-synaptic spike trains, one per synapse"`
	Stim   *spikegen.Current `view:"-" desc:"optional current injected into the post-synaptic neuron"`
	Post   Neuron            `desc:"post-synaptic neuron"`
	Syns   []Synapse         `desc:"one synapse per pre-synaptic train"`
	Step   int               `inactive:"+" desc:"current step"`

	ring eprop.Ring
}

func (pr *Pair) Defaults() {
	pr.Neuron.Defaults()
	pr.Syn.Defaults()
	pr.Dt = 0.1
	pr.Delay = 1
}

// Init sets up npre synapses of initial weight wt and resets everything
// to time 0.
func (pr *Pair) Init(npre int, wt float64) error {
	if err := pr.Neuron.Validate(); err != nil {
		return err
	}
	if err := pr.Syn.Validate(); err != nil {
		return err
	}
	if err := pr.Syn.CheckWtSign(wt); err != nil {
		return err
	}
	if pr.Delay < 1 {
		return fmt.Errorf("%w: delay %d must be >= 1 step", eprop.ErrInvalidParam, pr.Delay)
	}
	pr.Neuron.Update(pr.Dt)
	pr.Post.Init(&pr.Neuron, pr.Dt)
	pr.Syns = make([]Synapse, npre)
	d := float64(pr.Delay) * pr.Dt
	for i := range pr.Syns {
		pr.Syns[i].Init(wt, d, 0, &pr.Post.Hist)
	}
	pr.ring.Init(pr.Delay+1, 1)
	pr.Step = 0
	return nil
}

// Cycle runs one step: the neuron integrates the input arriving now, then
// the pre-synaptic spikes of this step are processed by their synapses
// and scheduled for delivery.
func (pr *Pair) Cycle() error {
	t := float64(pr.Step) * pr.Dt
	if pr.Stim != nil {
		pr.Post.IStim = pr.Stim.Value(t)
	}
	in := pr.ring.Take(pr.Step, 0)
	exc, inh := 0.0, 0.0
	if in >= 0 {
		exc = in
	} else {
		inh = -in
	}
	if err := pr.Post.Step(pr.Step, exc, inh); err != nil {
		return err
	}
	if pr.Pre != nil {
		for si := range pr.Syns {
			n := pr.Pre.Spikes(pr.Step, si)
			for k := 0; k < n; k++ {
				sy := &pr.Syns[si]
				if err := sy.Send(&pr.Syn, t, &pr.Post.Hist); err != nil {
					return fmt.Errorf("clopath synapse %d: %w", si, err)
				}
				pr.ring.Add(pr.Step+pr.Delay, 0, sy.Wt)
			}
		}
	}
	pr.Step++
	return nil
}

// Run runs n steps
func (pr *Pair) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := pr.Cycle(); err != nil {
			return err
		}
	}
	return nil
}
