// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clopath

import (
	"math"
	"testing"

	"github.com/emer/eprop/eprop"
	"github.com/emer/eprop/spikegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const difTol = 1e-12

// newTestHist returns a history with entries for [0, n) ms
func newTestHist(t *testing.T, n int, ltp, ltd func(s int) float64) *History {
	hs := &History{}
	hs.Init(1)
	for s := 0; s < n; s++ {
		require.NoError(t, hs.Append(Entry{T: float64(s), LTP: ltp(s), LTD: ltd(s)}))
	}
	return hs
}

func testSynParams() *SynParams {
	sp := &SynParams{}
	sp.Defaults()
	return sp
}

func TestSynapseFacilitation(t *testing.T) {
	ltp := func(int) float64 { return 0.01 }
	ltd := func(s int) float64 { return 0.001 * float64(s) }
	hs := newTestHist(t, 10, ltp, ltd)
	sp := testSynParams()
	sy := &Synapse{}
	sy.Init(1, 1, 0, hs)

	require.NoError(t, sy.Send(sp, 2, hs))
	assert.InDelta(t, 1-0.001, sy.Wt, difTol, "first spike only depresses")
	assert.Equal(t, 1.0, sy.XBar)
	assert.Equal(t, 1.0, hs.Front(), "compacted to the new read position")

	require.NoError(t, sy.Send(sp, 6, hs))
	cor := 1 - 0.001
	for _, te := range []float64{2, 3, 4, 5} {
		cor += 0.01 * math.Exp((2-(te+1))/sp.TauX)
	}
	cor -= 0.005
	assert.InDelta(t, cor, sy.Wt, difTol)
	assert.InDelta(t, math.Exp(-4/sp.TauX)+1, sy.XBar, difTol)
	assert.Equal(t, 6.0, sy.TLast)
	assert.Equal(t, 5.0, hs.Front())
	assert.NoError(t, hs.Check())
}

func TestSynapseBounds(t *testing.T) {
	hs := newTestHist(t, 20, func(int) float64 { return 1 }, func(s int) float64 {
		if s == 15 {
			return 50
		}
		return 0
	})
	sp := testSynParams()
	sp.Wmax = 1.5
	sy := &Synapse{}
	sy.Init(1, 1, 0, hs)
	require.NoError(t, sy.Send(sp, 2, hs))
	require.NoError(t, sy.Send(sp, 10, hs))
	assert.Equal(t, 1.5, sy.Wt, "capped at Wmax")
	require.NoError(t, sy.Send(sp, 16, hs))
	assert.Equal(t, 0.0, sy.Wt, "floored at Wmin")
}

func TestSynapseStatus(t *testing.T) {
	hs := newTestHist(t, 1, func(int) float64 { return 0 }, func(int) float64 { return 0 })
	sp := testSynParams()
	sy := &Synapse{}
	sy.Init(2, 1, 0, hs)

	err := sy.SetStatus(sp, eprop.Dict{"weight": -1})
	assert.ErrorIs(t, err, eprop.ErrInvalidParam)
	assert.Equal(t, 2.0, sy.Wt)

	err = sy.SetStatus(sp, eprop.Dict{"Wmax": -10, "Wmin": -20})
	assert.ErrorIs(t, err, eprop.ErrInvalidParam, "Wmax sign differs from the weight")
	assert.Equal(t, 100.0, sp.Wmax)

	require.NoError(t, sy.SetStatus(sp, eprop.Dict{"weight": -3, "Wmax": -1, "Wmin": -10}))
	assert.Equal(t, -3.0, sy.Wt)
	assert.Equal(t, -1.0, sy.Status(sp)["Wmax"])

	err = sy.SetStatus(sp, eprop.Dict{"tau_x": 0})
	assert.ErrorIs(t, err, eprop.ErrInvalidParam)
	err = sy.SetStatus(sp, eprop.Dict{"bogus": 0})
	assert.ErrorIs(t, err, eprop.ErrInvalidParam)
}

func testNeuron(dt float64) (*NeuronParams, *Neuron) {
	np := &NeuronParams{}
	np.Defaults()
	np.Update(dt)
	nrn := &Neuron{}
	nrn.Init(np, dt)
	return np, nrn
}

func TestNeuronRest(t *testing.T) {
	np, nrn := testNeuron(0.1)
	for s := 0; s < 1000; s++ {
		require.NoError(t, nrn.Step(s, 0, 0))
		assert.False(t, nrn.Spike)
	}
	assert.InDelta(t, np.EL, nrn.Y[Vm], 0.1)
	assert.Equal(t, 1000, nrn.Hist.Len(), "nothing registered, nothing compacted")
	for _, e := range nrn.Hist.Entries() {
		assert.Equal(t, 0.0, e.LTP)
	}
}

func TestNeuronSpikes(t *testing.T) {
	np, nrn := testNeuron(0.1)
	np.Ie = 1500
	nspk := 0
	ltp := 0.0
	for s := 0; s < 2000; s++ {
		require.NoError(t, nrn.Step(s, 0, 0))
		if nrn.Spike {
			nspk++
			assert.Equal(t, np.VReset, nrn.Y[Vm])
		}
		assert.Less(t, nrn.Y[Vm], np.VPeak)
		e := nrn.Hist.At(nrn.Hist.Len() - 1)
		assert.GreaterOrEqual(t, e.LTP, 0.0)
		ltp += e.LTP
	}
	assert.Greater(t, nspk, 2)
	assert.Greater(t, ltp, 0.0)
}

func TestNeuronSetVm(t *testing.T) {
	_, nrn := testNeuron(0.1)
	require.NoError(t, nrn.SetStatus(eprop.Dict{"V_m": -55}))
	assert.Equal(t, -55.0, nrn.Y[UBarPlus])
	assert.Equal(t, -55.0, nrn.Y[UBarMinus])
	require.NoError(t, nrn.SetStatus(eprop.Dict{"V_m": -50, "u_bar_plus": -60}))
	assert.Equal(t, -60.0, nrn.Y[UBarPlus])
	assert.Equal(t, -50.0, nrn.Y[UBarMinus])
	assert.ErrorIs(t, nrn.SetStatus(eprop.Dict{"V_x": 1}), eprop.ErrInvalidParam)
}

func TestNeuronInstability(t *testing.T) {
	_, nrn := testNeuron(0.1)
	require.NoError(t, nrn.SetStatus(eprop.Dict{"w": 1e8}))
	err := nrn.Step(0, 0, 0)
	assert.ErrorIs(t, err, ErrNumericalInstability)
}

func TestNeuronValidate(t *testing.T) {
	np := &NeuronParams{}
	np.Defaults()
	assert.NoError(t, np.Validate())
	np.VReset = 10
	assert.ErrorIs(t, np.Validate(), eprop.ErrInvalidParam)
	np.Defaults()
	np.TauPlus = 0
	assert.ErrorIs(t, np.Validate(), eprop.ErrInvalidParam)
}

// regular pre-synaptic spikes every 20 ms from 100 to 1000 ms
func preTimes() [][]float64 {
	var ts []float64
	for t := 100.0; t <= 1000; t += 20 {
		ts = append(ts, t)
	}
	return [][]float64{ts}
}

func TestPairDepression(t *testing.T) {
	pr := &Pair{}
	pr.Defaults()
	pr.Neuron.Ie = 300
	pr.Pre = spikegen.NewGenerator(preTimes(), pr.Dt)
	require.NoError(t, pr.Init(1, 1))
	nspk := 0
	for s := 0; s < 10500; s++ {
		require.NoError(t, pr.Cycle())
		if pr.Post.Spike {
			nspk++
		}
	}
	assert.Equal(t, 0, nspk)
	w := pr.Syns[0].Wt
	assert.Less(t, w, 0.96, "depolarized but silent: depression only")
	assert.Greater(t, w, 0.9)
	assert.NoError(t, pr.Post.Hist.Check())
	assert.InDelta(t, 1000-pr.Dt, pr.Post.Hist.Front(), 1e-6, "history compacted to the last pre spike")
}

func TestPairPotentiation(t *testing.T) {
	pr := &Pair{}
	pr.Defaults()
	pr.Neuron.Ie = 1500
	pr.Pre = spikegen.NewGenerator(preTimes(), pr.Dt)
	require.NoError(t, pr.Init(1, 1))
	nspk := 0
	for s := 0; s < 10500; s++ {
		require.NoError(t, pr.Cycle())
		if pr.Post.Spike {
			nspk++
		}
	}
	assert.Greater(t, nspk, 10)
	assert.Greater(t, pr.Syns[0].Wt, 1.2)
	assert.LessOrEqual(t, pr.Syns[0].Wt, pr.Syn.Wmax)
}

func TestPairInitErrors(t *testing.T) {
	pr := &Pair{}
	pr.Defaults()
	assert.ErrorIs(t, pr.Init(1, -1), eprop.ErrInvalidParam)
	pr.Delay = 0
	assert.ErrorIs(t, pr.Init(1, 1), eprop.ErrInvalidParam)
}

func TestPairRegisteredAtFront(t *testing.T) {
	pr := &Pair{}
	pr.Defaults()
	pr.Pre = spikegen.NewGenerator(preTimes(), pr.Dt)
	require.NoError(t, pr.Init(2, 1))
	tmin, ok := pr.Post.Hist.Reg.Min()
	require.True(t, ok)
	assert.Equal(t, 0.0, tmin, "clamped to the history front, not -delay")
	assert.NoError(t, pr.Post.Hist.Check())
	for s := 0; s < 1100; s++ {
		require.NoError(t, pr.Cycle())
		require.NoError(t, pr.Post.Hist.Check(), "step %d", s)
	}
	tmin, _ = pr.Post.Hist.Reg.Min()
	assert.InDelta(t, 100-pr.Dt, tmin, 1e-6, "moved to the first pre spike less the delay")
	assert.InDelta(t, 100-pr.Dt, pr.Post.Hist.Front(), 1e-6)
}
