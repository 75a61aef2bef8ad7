// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/emer/emergent/params"
	"github.com/emer/etable/etensor"
	"gonum.org/v1/gonum/floats"
)

// SpikeSource generates external spikes for the neurons of an Input layer.
// Spikes returns the number of spikes neuron ni emits at step.
type SpikeSource interface {
	Spikes(step, ni int) int
}

// Layer is a group of neurons of the same NeurType, managing their
// receiving and sending projections.
type Layer struct {
	Nm      string        `desc:"name of the layer -- must be unique within the network"`
	Cls     string        `desc:"space-separated list of class names for params selectors"`
	Type    NeurType      `desc:"type of neurons in this layer"`
	Shp     etensor.Shape `desc:"shape of the layer (flat list of neurons of len = Shp.Len())"`
	Index   int           `desc:"index of this layer in the network"`
	Network *Network      `view:"-" json:"-" desc:"our parent network"`

	Recur RecurParams   `viewif:"Type=NonAdaptive,Adaptive" desc:"recurrent neuron parameters"`
	Read  ReadoutParams `viewif:"Type=Readout" desc:"readout neuron parameters"`

	Gen SpikeSource `view:"-" json:"-" desc:"source of spikes for Input layers"`

	RecvPrjns []*Prjn   `desc:"projections into this layer"`
	SendPrjns []*Prjn   `desc:"projections out of this layer"`
	LSPrjns   []*LSPrjn `desc:"learning-signal channels into this (recurrent) layer"`
	Neurons   []Neuron  `desc:"neurons, flat list of len = Shp.Len()"`

	spk    Ring
	spiked []int
	expY   []float64
}

func (ly *Layer) Name() string      { return ly.Nm }
func (ly *Layer) TypeName() string  { return "Layer" } // always, for params..
func (ly *Layer) Class() string     { return ly.Type.String() + " " + ly.Cls }

func (ly *Layer) Shape() *etensor.Shape { return &ly.Shp }

// IsRecur returns true for recurrent spiking layers
func (ly *Layer) IsRecur() bool {
	return ly.Type == Adaptive || ly.Type == NonAdaptive
}

// Defaults sets default parameters for the layer and its receiving
// projections.
func (ly *Layer) Defaults() {
	ly.Recur.Defaults()
	ly.Read.Defaults()
	if ly.Type == NonAdaptive {
		ly.Recur.Beta = 0
	}
	for _, pj := range ly.RecvPrjns {
		pj.Defaults()
	}
}

// UpdateParams updates all params given any changes that might have been
// made to individual values, including those in the receiving projections.
func (ly *Layer) UpdateParams() {
	dt := 1.0
	if ly.Network != nil {
		dt = ly.Network.Time.Dt
	}
	if ly.Type == NonAdaptive {
		ly.Recur.Beta = 0
	}
	ly.Recur.Calibrate(dt)
	ly.Read.Calibrate(dt)
	for _, pj := range ly.RecvPrjns {
		pj.UpdateParams()
	}
}

// Validate checks the parameters relevant to this layer's type
func (ly *Layer) Validate() error {
	switch ly.Type {
	case NonAdaptive, Adaptive:
		return ly.Recur.Validate()
	case Readout:
		return ly.Read.Validate()
	}
	return nil
}

// ApplyParams applies given parameter style Sheet to this layer and its recv projections.
// Calls UpdateParams on anything set to ensure derived parameters are all updated.
// If setMsg is true, then a message is printed to confirm each parameter that is set.
// it always prints a message if a parameter fails to be set.
// returns true if any params were set, and error if there were any errors.
func (ly *Layer) ApplyParams(pars *params.Sheet, setMsg bool) (bool, error) {
	applied := false
	var rerr error
	app, err := pars.Apply(ly, setMsg)
	if app {
		ly.UpdateParams()
		applied = true
	}
	if err != nil {
		rerr = err
	}
	for _, pj := range ly.RecvPrjns {
		app, err = pj.ApplyParams(pars, setMsg)
		if app {
			applied = true
		}
		if err != nil {
			rerr = err
		}
	}
	return applied, rerr
}

// Build allocates the neurons and input buffers
func (ly *Layer) Build() error {
	nu := ly.Shp.Len()
	if nu == 0 {
		return fmt.Errorf("Build Layer %v: no units specified in Shape", ly.Nm)
	}
	ly.Neurons = make([]Neuron, nu)
	for ni := range ly.Neurons {
		ly.Neurons[ni].Type = ly.Type
	}
	maxd := 0
	for _, pj := range ly.RecvPrjns {
		if pj.Delay > maxd {
			maxd = pj.Delay
		}
	}
	ly.spk.Init(maxd+1, nu)
	ly.spiked = make([]int, 0, nu)
	return nil
}

// InitActs initializes the neuron state and histories
func (ly *Layer) InitActs() {
	dt := ly.Network.Time.Dt
	ly.spk.Reset()
	ly.spiked = ly.spiked[:0]
	for ni := range ly.Neurons {
		nrn := &ly.Neurons[ni]
		switch ly.Type {
		case NonAdaptive, Adaptive:
			nrn.InitRecur(&ly.Recur, dt)
		case Readout:
			nrn.InitReadout(&ly.Read, dt)
		default:
			nrn.InitInput(dt)
		}
	}
}

// ApplyExt sets external input currents for the next step, one per neuron
func (ly *Layer) ApplyExt(ext []float64) {
	for ni := range ly.Neurons {
		if ni >= len(ext) {
			break
		}
		ly.Neurons[ni].Ext = ext[ni]
	}
}

// ApplyTarg sets the target signals of readout neurons for the next step
func (ly *Layer) ApplyTarg(targ []float64) {
	for ni := range ly.Neurons {
		if ni >= len(targ) {
			break
		}
		ly.Neurons[ni].Targ = targ[ni]
	}
}

// Cycle advances all neurons of the layer by one step, recording which
// neurons spiked.
func (ly *Layer) Cycle(tm *Time) error {
	ly.spiked = ly.spiked[:0]
	step := tm.Step
	reset := tm.IsReset()
	switch ly.Type {
	case Input:
		if ly.Gen == nil {
			return nil
		}
		for ni := range ly.Neurons {
			nrn := &ly.Neurons[ni]
			n := ly.Gen.Spikes(step, ni)
			nrn.Spike = float64(n)
			for i := 0; i < n; i++ {
				ly.spiked = append(ly.spiked, ni)
			}
		}
	case NonAdaptive, Adaptive:
		for ni := range ly.Neurons {
			nrn := &ly.Neurons[ni]
			nrn.input = ly.spk.Take(step, ni)
			spk, err := nrn.StepRecur(&ly.Recur, step, reset)
			if err != nil {
				return fmt.Errorf("layer %v neuron %d: %w", ly.Nm, ni, err)
			}
			if spk {
				ly.spiked = append(ly.spiked, ni)
			}
		}
	case Readout:
		recall := step > 0 && ly.Read.InRecall(step-1, tm.IntervalN)
		for ni := range ly.Neurons {
			nrn := &ly.Neurons[ni]
			nrn.input = ly.spk.Take(step, ni)
			if err := nrn.StepReadout(&ly.Read, step, reset, recall); err != nil {
				return fmt.Errorf("layer %v neuron %d: %w", ly.Nm, ni, err)
			}
		}
	}
	return nil
}

// Normalize broadcasts exp(y) of every readout neuron to all readouts of
// the layer, which form one softmax group.  Values are shifted by the
// group maximum before exponentiation.
func (ly *Layer) Normalize() {
	if ly.Type != Readout || ly.Read.Regression || len(ly.Neurons) == 0 {
		return
	}
	ly.expY = ly.expY[:0]
	for ni := range ly.Neurons {
		ly.expY = append(ly.expY, ly.Neurons[ni].Y)
	}
	floats.AddConst(-floats.Max(ly.expY), ly.expY)
	for i, y := range ly.expY {
		ly.expY[i] = math.Exp(y)
	}
	sum := floats.Sum(ly.expY)
	for ni := range ly.Neurons {
		ly.Neurons[ni].SetSoftmax(ly.expY[ni], sum)
	}
}

// SendSpikes delivers the spikes emitted this step through all sending
// projections.
func (ly *Layer) SendSpikes(step int) error {
	if len(ly.spiked) == 0 {
		return nil
	}
	for _, pj := range ly.SendPrjns {
		if err := pj.SendSpikes(step, ly.spiked); err != nil {
			return err
		}
	}
	return nil
}

// AddSpike adds weighted spike mass for neuron ni arriving at step
func (ly *Layer) AddSpike(step, ni int, v float64) {
	ly.spk.Add(step, ni, v)
}

// SpikedIdxs returns the indexes of neurons that spiked this step,
// repeated by multiplicity.
func (ly *Layer) SpikedIdxs() []int {
	return ly.spiked
}

// UnitVals fills vals with values of given variable name, one per neuron
func (ly *Layer) UnitVals(vals *[]float64, varNm string) error {
	vidx, err := NeuronVarByName(varNm)
	if err != nil {
		return err
	}
	nn := len(ly.Neurons)
	if cap(*vals) < nn {
		*vals = make([]float64, nn)
	} else {
		*vals = (*vals)[:nn]
	}
	for ni := range ly.Neurons {
		(*vals)[ni] = ly.Neurons[ni].VarByIndex(vidx)
	}
	return nil
}

// SizeBytes returns the memory held in histories by this layer's neurons
func (ly *Layer) SizeBytes() int {
	n := 0
	for ni := range ly.Neurons {
		nrn := &ly.Neurons[ni]
		n += nrn.Hist.SizeBytes() + 8*nrn.Spikes.Len()
	}
	return n
}

// RecvPrjnFrom returns the projection from given sending layer name
func (ly *Layer) RecvPrjnFrom(send string) (*Prjn, error) {
	for _, pj := range ly.RecvPrjns {
		if pj.Send.Nm == send {
			return pj, nil
		}
	}
	return nil, fmt.Errorf("Layer %v: no projection from %v", ly.Nm, send)
}

func (ly *Layer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Layer: %v\tType: %v\tUnits: %d\n", ly.Nm, ly.Type, ly.Shp.Len())
	for _, pj := range ly.RecvPrjns {
		b.WriteString("\t" + pj.String() + "\n")
	}
	return b.String()
}

func (ly *Layer) checkBuilt() bool {
	if len(ly.Neurons) == 0 {
		log.Printf("eprop.Layer %v: not built\n", ly.Nm)
		return false
	}
	return true
}
