// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"
	"log"

	"github.com/emer/emergent/erand"
	"github.com/emer/emergent/params"
	"github.com/emer/emergent/prjn"
	"github.com/emer/etable/etensor"
)

// Prjn is a projection of e-prop synapses from a sending layer to a
// receiving layer.  Synapses are stored in sender order, since they are
// visited when a sending neuron spikes.
type Prjn struct {
	Send  *Layer       `desc:"sending layer"`
	Recv  *Layer       `desc:"receiving layer"`
	Pat   prjn.Pattern `desc:"pattern of connectivity"`
	Cls   string       `desc:"space-separated list of class names for params selectors"`
	Notes string       `desc:"notes about this projection"`

	Delay  int             `def:"1" min:"1" desc:"delay in steps between a spike and its effect on the receiving neuron"`
	WtInit erand.RndParams `view:"inline" desc:"initial random weight distribution"`
	Learn  LearnParams     `view:"inline" desc:"e-prop learning parameters"`

	SConN     []int32   `view:"-" desc:"number of sending connections per sending neuron"`
	SConIdxSt []int32   `view:"-" desc:"starting index into SConIdx and Syns per sending neuron"`
	SConIdx   []int32   `view:"-" desc:"receiving neuron index per synapse"`
	RConN     []int32   `view:"-" desc:"number of receiving connections per receiving neuron"`
	RConIdxSt []int32   `view:"-" desc:"starting index into RConIdx and RSynIdx per receiving neuron"`
	RConIdx   []int32   `view:"-" desc:"sending neuron index, in receiver order"`
	RSynIdx   []int32   `view:"-" desc:"index into Syns, in receiver order"`
	Syns      []Synapse `desc:"synapses, in sender order"`
}

func (pj *Prjn) TypeName() string { return "Prjn" } // always, for params..
func (pj *Prjn) Class() string    { return pj.Cls }
func (pj *Prjn) Name() string {
	return pj.Send.Nm + "To" + pj.Recv.Nm
}

func (pj *Prjn) Defaults() {
	pj.Delay = 1
	pj.WtInit.Dist = erand.Gaussian
	pj.WtInit.Mean = 0
	pj.WtInit.Var = 1
	pj.Learn.Defaults()
}

// UpdateParams updates all params given any changes that might have been made to individual values
func (pj *Prjn) UpdateParams() {
	dt := 1.0
	if pj.Recv.Network != nil {
		dt = pj.Recv.Network.Time.Dt
	}
	pj.Learn.Calibrate(dt)
}

// Validate checks the projection parameters
func (pj *Prjn) Validate() error {
	if pj.Send == nil || pj.Recv == nil || pj.Pat == nil {
		return fmt.Errorf("%w: projection %v is not connected", ErrInvalidParam, pj.Cls)
	}
	if pj.Send.Type == Readout {
		return fmt.Errorf("%w: projection %v: readout neurons do not spike", ErrInvalidParam, pj.Name())
	}
	if pj.Recv.Type == Input {
		return fmt.Errorf("%w: projection %v: input layers have no synaptic input", ErrInvalidParam, pj.Name())
	}
	if pj.Delay < 1 {
		return fmt.Errorf("%w: projection %v: delay %d must be >= 1 step", ErrInvalidParam, pj.Name(), pj.Delay)
	}
	if nt := pj.Recv.Network; nt != nil && nt.Time.IntervalN < 2*pj.Delay {
		return fmt.Errorf("%w: projection %v: update interval of %d steps must be at least twice the delay %d", ErrInvalidParam, pj.Name(), nt.Time.IntervalN, pj.Delay)
	}
	return pj.Learn.Validate()
}

// ApplyParams applies given parameter style Sheet to this projection.
// Calls UpdateParams if anything set to ensure derived parameters are all updated.
// If setMsg is true, then a message is printed to confirm each parameter that is set.
// it always prints a message if a parameter fails to be set.
// returns true if any params were set, and error if there were any errors.
func (pj *Prjn) ApplyParams(pars *params.Sheet, setMsg bool) (bool, error) {
	app, err := pars.Apply(pj, setMsg)
	if app {
		pj.UpdateParams()
	}
	return app, err
}

// Timing returns the synapse timing for this projection
func (pj *Prjn) Timing() SynTiming {
	tm := &pj.Recv.Network.Time
	return SynTiming{Dt: tm.Dt, IntervalN: tm.IntervalN, Delay: pj.Delay}
}

// BuildStru constructs the full connectivity among the layers as specified
// by the projection pattern, in both sender and receiver order.
func (pj *Prjn) BuildStru() error {
	if err := pj.Validate(); err != nil {
		return err
	}
	ssh := pj.Send.Shape()
	rsh := pj.Recv.Shape()
	sendn, recvn, cons := pj.Pat.Connect(ssh, rsh, pj.Recv == pj.Send)
	slen := ssh.Len()
	rlen := rsh.Len()
	tcons := setNIdxSt(&pj.SConN, &pj.SConIdxSt, sendn)
	tconr := setNIdxSt(&pj.RConN, &pj.RConIdxSt, recvn)
	if tconr != tcons {
		log.Printf("%v programmer error: total recv cons %v != total send cons %v\n", pj.Name(), tconr, tcons)
	}
	pj.RConIdx = make([]int32, tconr)
	pj.RSynIdx = make([]int32, tconr)
	pj.SConIdx = make([]int32, tcons)

	sconN := make([]int32, slen) // temporary mem needed to tracks cur n of sending cons

	cbits := cons.Values
	for ri := 0; ri < rlen; ri++ {
		rbi := ri * slen     // recv bit index
		rtcn := pj.RConN[ri] // number of cons
		rst := pj.RConIdxSt[ri]
		rci := int32(0)
		for si := 0; si < slen; si++ {
			if !cbits.Index(rbi + si) { // no connection
				continue
			}
			sst := pj.SConIdxSt[si]
			if rci >= rtcn {
				log.Printf("%v programmer error: recv target total con number: %v exceeded at recv idx: %v, send idx: %v\n", pj.Name(), rtcn, ri, si)
				break
			}
			pj.RConIdx[rst+rci] = int32(si)

			sci := sconN[si]
			stcn := pj.SConN[si]
			if sci >= stcn {
				log.Printf("%v programmer error: send target total con number: %v exceeded at recv idx: %v, send idx: %v\n", pj.Name(), stcn, ri, si)
				break
			}
			pj.SConIdx[sst+sci] = int32(ri)
			pj.RSynIdx[rst+rci] = sst + sci
			(sconN[si])++
			rci++
		}
	}
	pj.Syns = make([]Synapse, len(pj.SConIdx))
	return nil
}

// setNIdxSt sets the *ConN and *ConIdxSt values given n tensor from Pat.
// Returns total number of connections for this direction.
func setNIdxSt(n *[]int32, idxst *[]int32, tn *etensor.Int32) int32 {
	ln := tn.Len()
	tnv := tn.Values
	*n = make([]int32, ln)
	*idxst = make([]int32, ln)
	idx := int32(0)
	for i := 0; i < ln; i++ {
		nv := tnv[i]
		(*n)[i] = nv
		(*idxst)[i] = idx
		idx += nv
	}
	return idx
}

// InitWts initializes the weights from WtInit using the network random
// source, and resets and registers every synapse with its receiving neuron.
func (pj *Prjn) InitWts() {
	nt := pj.Recv.Network
	tm := pj.Timing()
	for si := range pj.SConN {
		nc := int(pj.SConN[si])
		st := int(pj.SConIdxSt[si])
		for ci := st; ci < st+nc; ci++ {
			ri := pj.SConIdx[ci]
			wt := nt.RandWt(&pj.WtInit)
			pj.Syns[ci].Init(wt, nt.Time.Step, tm, &pj.Recv.Neurons[ri])
		}
	}
}

// SendSpikes runs every synapse of the spiking senders and delivers the
// spikes that are not dropped with the current weights.
func (pj *Prjn) SendSpikes(step int, spiked []int) error {
	tm := pj.Timing()
	arr := step + pj.Delay
	for _, si := range spiked {
		nc := int(pj.SConN[si])
		st := int(pj.SConIdxSt[si])
		for ci := st; ci < st+nc; ci++ {
			ri := int(pj.SConIdx[ci])
			sy := &pj.Syns[ci]
			dlv, err := sy.Send(&pj.Learn, step, 1, tm, &pj.Recv.Neurons[ri])
			if err != nil {
				return fmt.Errorf("prjn %v synapse %d -> %d: %w", pj.Name(), si, ri, err)
			}
			if dlv {
				pj.Recv.AddSpike(arr, ri, sy.Wt)
			}
		}
	}
	return nil
}

// Syn returns the synapse from sending neuron si to receiving neuron ri,
// or nil if not connected.
func (pj *Prjn) Syn(si, ri int) *Synapse {
	if si < 0 || si >= len(pj.SConN) {
		return nil
	}
	nc := int(pj.SConN[si])
	st := int(pj.SConIdxSt[si])
	for ci := st; ci < st+nc; ci++ {
		if int(pj.SConIdx[ci]) == ri {
			return &pj.Syns[ci]
		}
	}
	return nil
}

// SynVals fills vals with values of given synapse variable, in sender order
func (pj *Prjn) SynVals(vals *[]float64, varNm string) error {
	vidx, err := SynapseVarByName(varNm)
	if err != nil {
		return err
	}
	ns := len(pj.Syns)
	if cap(*vals) < ns {
		*vals = make([]float64, ns)
	} else {
		*vals = (*vals)[:ns]
	}
	for i := range pj.Syns {
		(*vals)[i] = pj.Syns[i].VarByIndex(vidx)
	}
	return nil
}

func (pj *Prjn) String() string {
	return fmt.Sprintf("Prjn: %v -> %v\tPat: %v\tSyns: %d\tDelay: %d", pj.Send.Nm, pj.Recv.Nm, pj.Pat.Name(), len(pj.Syns), pj.Delay)
}
