// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"github.com/emer/emergent/erand"
	"github.com/emer/emergent/params"
	"github.com/emer/emergent/prjn"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Network is a minimal host for e-prop layers: it owns the global step
// clock, the spike ring buffers, and the order of updates within a step.
type Network struct {
	Nm       string            `desc:"overall name of network -- helps discriminate if there are multiple"`
	Layers   []*Layer          `desc:"list of layers"`
	LSPrjns  []*LSPrjn         `desc:"learning-signal channels from readouts to recurrent layers"`
	Time     Time              `desc:"global step clock and update interval"`
	Seed     uint64            `desc:"seed for the random source used for weight initialization"`
	Threads  bool              `desc:"update the neurons of different layers in parallel"`
	MetaData map[string]string `desc:"misc meta data saved with the weights"`

	LayMap map[string]*Layer `view:"-" desc:"map of name to layers -- layer names must be unique"`

	rnd rand.Source
}

// NewNetwork returns a new network with default timing
func NewNetwork(name string) *Network {
	nt := &Network{Nm: name}
	nt.Time.Defaults()
	nt.Seed = 1
	return nt
}

func (nt *Network) Name() string { return nt.Nm }

// AddLayer adds a new layer with given name, shape and type
func (nt *Network) AddLayer(name string, shape []int, typ NeurType) *Layer {
	ly := &Layer{Nm: name, Type: typ, Network: nt, Index: len(nt.Layers)}
	ly.Shp.SetShape(shape, nil, nil)
	ly.Defaults()
	nt.Layers = append(nt.Layers, ly)
	nt.MakeLayMap()
	return ly
}

// AddLayer1D adds a new layer with n neurons
func (nt *Network) AddLayer1D(name string, n int, typ NeurType) *Layer {
	return nt.AddLayer(name, []int{n}, typ)
}

// MakeLayMap updates layer map based on current layers
func (nt *Network) MakeLayMap() {
	nt.LayMap = make(map[string]*Layer, len(nt.Layers))
	for _, ly := range nt.Layers {
		nt.LayMap[ly.Nm] = ly
	}
}

// LayerByName returns layer of given name, nil if not found
func (nt *Network) LayerByName(name string) *Layer {
	if nt.LayMap == nil || len(nt.LayMap) != len(nt.Layers) {
		nt.MakeLayMap()
	}
	return nt.LayMap[name]
}

// LayerByNameTry returns layer of given name, error if not found
func (nt *Network) LayerByNameTry(name string) (*Layer, error) {
	ly := nt.LayerByName(name)
	if ly == nil {
		return nil, fmt.Errorf("Layer named: %v not found in Network: %v", name, nt.Nm)
	}
	return ly, nil
}

// PrjnByNameTry returns the projection of given SendToRecv name, error if not found
func (nt *Network) PrjnByNameTry(name string) (*Prjn, error) {
	for _, ly := range nt.Layers {
		for _, pj := range ly.RecvPrjns {
			if pj.Name() == name {
				return pj, nil
			}
		}
	}
	return nil, fmt.Errorf("Prjn named: %v not found in Network: %v", name, nt.Nm)
}

// ConnectLayers establishes a projection of e-prop synapses between two layers
func (nt *Network) ConnectLayers(send, recv *Layer, pat prjn.Pattern) *Prjn {
	pj := &Prjn{Send: send, Recv: recv, Pat: pat}
	pj.Defaults()
	recv.RecvPrjns = append(recv.RecvPrjns, pj)
	send.SendPrjns = append(send.SendPrjns, pj)
	return pj
}

// ConnectLayerNames establishes a projection between two layers, referenced by name
func (nt *Network) ConnectLayerNames(send, recv string, pat prjn.Pattern) (*Prjn, error) {
	sl, err := nt.LayerByNameTry(send)
	if err != nil {
		return nil, err
	}
	rl, err := nt.LayerByNameTry(recv)
	if err != nil {
		return nil, err
	}
	return nt.ConnectLayers(sl, rl, pat), nil
}

// ConnectLS establishes a learning-signal channel from a readout layer
// to a recurrent layer.
func (nt *Network) ConnectLS(readout, recur *Layer, pat prjn.Pattern) *LSPrjn {
	lp := &LSPrjn{Send: readout, Recv: recur, Pat: pat}
	lp.Defaults()
	recur.LSPrjns = append(recur.LSPrjns, lp)
	nt.LSPrjns = append(nt.LSPrjns, lp)
	return lp
}

// Defaults sets all the default parameters for all layers and projections
func (nt *Network) Defaults() {
	for _, ly := range nt.Layers {
		ly.Defaults()
	}
	for _, lp := range nt.LSPrjns {
		lp.Defaults()
	}
	nt.UpdateParams()
}

// UpdateParams updates all the derived parameters if any have changed, for all layers
// and projections
func (nt *Network) UpdateParams() {
	nt.Time.Update()
	for _, ly := range nt.Layers {
		ly.UpdateParams()
	}
}

// ApplyParams applies given parameter style Sheet to layers and prjns in this network.
// Calls UpdateParams to ensure derived parameters are all updated.
// If setMsg is true, then a message is printed to confirm each parameter that is set.
// it always prints a message if a parameter fails to be set.
// returns true if any params were set, and error if there were any errors.
func (nt *Network) ApplyParams(pars *params.Sheet, setMsg bool) (bool, error) {
	applied := false
	var rerr error
	for _, ly := range nt.Layers {
		app, err := ly.ApplyParams(pars, setMsg)
		if app {
			applied = true
		}
		if err != nil {
			rerr = err
		}
	}
	for _, lp := range nt.LSPrjns {
		app, err := lp.ApplyParams(pars, setMsg)
		if app {
			applied = true
		}
		if err != nil {
			rerr = err
		}
	}
	return applied, rerr
}

// Build constructs the layer and projection state based on the layer shapes
// and patterns of interconnectivity
func (nt *Network) Build() error {
	if err := nt.Time.Validate(); err != nil {
		return err
	}
	nt.UpdateParams()
	var errs []error
	for _, ly := range nt.Layers {
		if err := ly.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("layer %v: %w", ly.Nm, err))
			continue
		}
		if err := ly.Build(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ly := range nt.Layers {
		for _, pj := range ly.RecvPrjns {
			if err := pj.BuildStru(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, lp := range nt.LSPrjns {
		if err := lp.Build(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("eprop.Network.Build: %w", errors.Join(errs...))
	}
	return nil
}

// InitWts resets the clock, the state and histories of all neurons, and
// initializes all weights using the network Seed.
func (nt *Network) InitWts() {
	nt.rnd = rand.NewSource(nt.Seed)
	nt.Time.Reset()
	for _, ly := range nt.Layers {
		if !ly.checkBuilt() {
			return
		}
		ly.InitActs()
	}
	for _, ly := range nt.Layers {
		for _, pj := range ly.RecvPrjns {
			pj.InitWts()
		}
	}
	for _, lp := range nt.LSPrjns {
		lp.InitWts()
	}
}

// RandWt returns a random weight drawn from given distribution using the
// network random source.  Uniform uses Mean +/- Var, Gaussian uses Var
// as the standard deviation; other distributions return Mean.
func (nt *Network) RandWt(rp *erand.RndParams) float64 {
	if nt.rnd == nil {
		nt.rnd = rand.NewSource(nt.Seed)
	}
	switch rp.Dist {
	case erand.Uniform:
		if rp.Var == 0 {
			return rp.Mean
		}
		return distuv.Uniform{Min: rp.Mean - rp.Var, Max: rp.Mean + rp.Var, Src: nt.rnd}.Rand()
	case erand.Gaussian:
		if rp.Var == 0 {
			return rp.Mean
		}
		return distuv.Normal{Mu: rp.Mean, Sigma: rp.Var, Src: nt.rnd}.Rand()
	case erand.Mean:
		return rp.Mean
	}
	log.Printf("eprop.Network.RandWt: distribution %v not supported, using mean\n", rp.Dist)
	return rp.Mean
}

// Cycle advances the network by one step: all neurons are updated, then
// readout normalizations and learning signals are broadcast, then spikes
// are delivered through the synapses, which may update their weights.
func (nt *Network) Cycle() error {
	tm := &nt.Time
	step := tm.Step
	if nt.Threads && len(nt.Layers) > 1 {
		var wg sync.WaitGroup
		errs := make([]error, len(nt.Layers))
		for li, ly := range nt.Layers {
			wg.Add(1)
			go func(li int, ly *Layer) {
				defer wg.Done()
				errs[li] = ly.Cycle(tm)
			}(li, ly)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	} else {
		for _, ly := range nt.Layers {
			if err := ly.Cycle(tm); err != nil {
				return err
			}
		}
	}
	for _, ly := range nt.Layers {
		ly.Normalize()
	}
	for _, lp := range nt.LSPrjns {
		if err := lp.Broadcast(step); err != nil {
			return err
		}
	}
	if step > 0 {
		t := tm.StepTime(step - 1)
		for _, ly := range nt.Layers {
			if len(ly.LSPrjns) == 0 {
				continue
			}
			for ni := range ly.Neurons {
				nrn := &ly.Neurons[ni]
				if rg, err := nrn.Hist.Range(t, t+tm.Dt); err == nil && len(rg) == 1 {
					nrn.L = rg[0].L
				}
			}
		}
	}
	for _, ly := range nt.Layers {
		if err := ly.SendSpikes(step); err != nil {
			return err
		}
	}
	tm.StepInc()
	return nil
}

// Run advances the network by n steps, stopping at the first error
func (nt *Network) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := nt.Cycle(); err != nil {
			return err
		}
	}
	return nil
}

// SizeReport returns a string reporting the size of each layer and projection
// in the network, including the memory currently held in histories.
func (nt *Network) SizeReport() string {
	var b strings.Builder
	neur := 0
	neurMem := 0
	histMem := 0
	syn := 0
	synMem := 0
	for _, ly := range nt.Layers {
		nn := len(ly.Neurons)
		nmem := nn * int(unsafe.Sizeof(Neuron{}))
		hmem := ly.SizeBytes()
		neur += nn
		neurMem += nmem
		histMem += hmem
		fmt.Fprintf(&b, "%14s:\t Neurons: %d\t NeurMem: %v \t HistMem: %v \t Sends To:\n", ly.Nm, nn, (datasize.ByteSize)(nmem).HumanReadable(), (datasize.ByteSize)(hmem).HumanReadable())
		for _, pj := range ly.SendPrjns {
			ns := len(pj.Syns)
			syn += ns
			pmem := ns * int(unsafe.Sizeof(Synapse{}))
			for si := range pj.Syns {
				pmem += 8*cap(pj.Syns[si].Buf) + 8*cap(pj.Syns[si].Grads)
			}
			synMem += pmem
			fmt.Fprintf(&b, "\t%14s:\t Syns: %d\t SynMem: %v\n", pj.Recv.Nm, ns, (datasize.ByteSize)(pmem).HumanReadable())
		}
	}
	fmt.Fprintf(&b, "\n\n%14s:\t Neurons: %d\t NeurMem: %v \t HistMem: %v \t Syns: %d \t SynMem: %v\n", nt.Nm, neur, (datasize.ByteSize)(neurMem).HumanReadable(), (datasize.ByteSize)(histMem).HumanReadable(), syn, (datasize.ByteSize)(synMem).HumanReadable())
	return b.String()
}

// MaxHistLen returns the longest history held by any neuron, in steps
func (nt *Network) MaxHistLen() int {
	mx := 0
	for _, ly := range nt.Layers {
		for ni := range ly.Neurons {
			mx = int(math.Max(float64(mx), float64(ly.Neurons[ni].Hist.Len())))
		}
	}
	return mx
}
