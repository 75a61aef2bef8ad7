// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package spikegen provides external input generators for spiking networks:
Poisson spike trains, fixed lists of spike times, and step currents.

Spike generators implement Spikes(step, ni int) int, returning the number
of spikes neuron ni emits at a given step, and can drive an Input layer of
an eprop.Network directly.  They must be queried in increasing step order
for each neuron.
*/
package spikegen

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Poisson generates independent Poisson spike trains at a fixed rate.
// The count drawn for each neuron and step may exceed 1.
type Poisson struct {
	Rate  float64 `def:"10" min:"0" desc:"firing rate in Hz"`
	Dt    float64 `def:"1" desc:"step size in ms"`
	Start float64 `desc:"time in ms before which no spikes are emitted"`
	Stop  float64 `desc:"time in ms from which no spikes are emitted -- 0 = never stop"`
	Seed  uint64  `desc:"seed of the random source"`

	src  rand.Source
	dist distuv.Poisson
}

// NewPoisson returns a new Poisson generator at rate Hz for step size dt
func NewPoisson(rate, dt float64, seed uint64) *Poisson {
	pg := &Poisson{Rate: rate, Dt: dt, Seed: seed}
	pg.Init()
	return pg
}

// Init reseeds the random source and recomputes the per-step mean
func (pg *Poisson) Init() {
	if pg.Dt <= 0 {
		pg.Dt = 1
	}
	pg.src = rand.NewSource(pg.Seed)
	pg.dist = distuv.Poisson{Lambda: pg.Rate * pg.Dt / 1000, Src: pg.src}
}

// Spikes returns the number of spikes neuron ni emits at step
func (pg *Poisson) Spikes(step, ni int) int {
	if pg.src == nil {
		pg.Init()
	}
	t := float64(step) * pg.Dt
	if t < pg.Start || (pg.Stop > 0 && t >= pg.Stop) || pg.dist.Lambda <= 0 {
		return 0
	}
	return int(pg.dist.Rand())
}

// Generator emits spikes at fixed times, given per neuron in ms.
// Times are snapped to the step grid, and repeated times give
// multiple spikes in the same step.
type Generator struct {
	Times [][]float64 `desc:"spike times in ms, per neuron"`
	Dt    float64     `def:"1" desc:"step size in ms"`

	steps [][]int
	pos   []int
}

// NewGenerator returns a generator for given per-neuron spike times
func NewGenerator(times [][]float64, dt float64) *Generator {
	sg := &Generator{Times: times, Dt: dt}
	sg.Init()
	return sg
}

// Init converts the times to sorted steps and rewinds to the start
func (sg *Generator) Init() {
	if sg.Dt <= 0 {
		sg.Dt = 1
	}
	sg.steps = make([][]int, len(sg.Times))
	sg.pos = make([]int, len(sg.Times))
	for ni, ts := range sg.Times {
		st := make([]int, len(ts))
		for i, t := range ts {
			st[i] = int(math.Round(t / sg.Dt))
		}
		sort.Ints(st)
		sg.steps[ni] = st
	}
}

// Spikes returns the number of spikes neuron ni emits at step
func (sg *Generator) Spikes(step, ni int) int {
	if sg.steps == nil {
		sg.Init()
	}
	if ni >= len(sg.steps) {
		return 0
	}
	st := sg.steps[ni]
	p := sg.pos[ni]
	for p < len(st) && st[p] < step {
		p++
	}
	n := 0
	for p < len(st) && st[p] == step {
		n++
		p++
	}
	sg.pos[ni] = p
	return n
}

// Current is a piecewise constant current: Amps[i] from Times[i] (ms)
// until the next change.  Before the first change it is 0.
type Current struct {
	Times []float64 `desc:"times of amplitude changes in ms, increasing"`
	Amps  []float64 `desc:"amplitude in pA from each time on"`
}

// Value returns the current at time t in ms
func (cg *Current) Value(t float64) float64 {
	i := sort.SearchFloat64s(cg.Times, t+1e-9) - 1
	if i < 0 || i >= len(cg.Amps) {
		return 0
	}
	return cg.Amps[i]
}

// Fill sets vals to the current at time t, for n neurons
func (cg *Current) Fill(vals *[]float64, n int, t float64) {
	if cap(*vals) < n {
		*vals = make([]float64, n)
	} else {
		*vals = (*vals)[:n]
	}
	v := cg.Value(t)
	for i := range *vals {
		(*vals)[i] = v
	}
}
