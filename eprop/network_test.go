// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"bytes"
	"math"
	"testing"

	"github.com/emer/emergent/erand"
	"github.com/emer/emergent/params"
	"github.com/emer/emergent/prjn"
	"github.com/emer/eprop/spikegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRegressNet returns a network of Poisson inputs driving one
// recurrent neuron that projects to a readout with E_L = 0 and target 0,
// so every learning signal is non-negative.
func newRegressNet(t *testing.T) (*Network, *Prjn) {
	nt := NewNetwork("Regress")
	in := nt.AddLayer1D("Input", 20, Input)
	in.Gen = spikegen.NewPoisson(50, 1, 3)
	rec := nt.AddLayer1D("Recur", 1, NonAdaptive)
	out := nt.AddLayer1D("Out", 1, Readout)
	out.Read.EL = 0

	ip := nt.ConnectLayers(in, rec, prjn.NewFull())
	ip.WtInit.Dist = erand.Mean
	ip.WtInit.Mean = 8
	ip.Learn.Learn = false

	op := nt.ConnectLayers(rec, out, prjn.NewFull())
	op.WtInit.Dist = erand.Mean
	op.WtInit.Mean = 1
	op.Learn.LRate = 1e-3
	op.Learn.TauDecay = 0

	require.NoError(t, nt.Build())
	nt.InitWts()
	return nt, op
}

func TestRegressionWeightDecreases(t *testing.T) {
	nt, op := newRegressNet(t)
	rec := nt.LayerByName("Recur")
	w0 := op.Syns[0].Wt
	assert.Equal(t, 1.0, w0)
	prv := w0
	nspk := 0
	for iv := 0; iv < 10; iv++ {
		for s := 0; s < nt.Time.IntervalN; s++ {
			require.NoError(t, nt.Cycle())
			nspk += int(rec.Neurons[0].Spike)
		}
		w := op.Syns[0].Wt
		assert.LessOrEqual(t, w, prv, "interval %d", iv)
		assert.Greater(t, w, 0.0, "interval %d", iv)
		prv = w
	}
	assert.Greater(t, nspk, 0)
	assert.Less(t, prv, w0)
	assert.Equal(t, 10, nt.Time.Interval)
}

func TestSoftmaxNormalization(t *testing.T) {
	nt := NewNetwork("Softmax")
	out := nt.AddLayer1D("Out", 3, Readout)
	out.Read.Regression = false
	require.NoError(t, nt.Build())
	nt.InitWts()
	for s := 0; s < 5; s++ {
		out.ApplyExt([]float64{50, 50, 50})
		out.ApplyTarg([]float64{1, 0, 0})
		require.NoError(t, nt.Cycle())
		if s == 0 {
			continue
		}
		assert.InDelta(t, 1.0/3.0-1, out.Neurons[0].L, difTol)
		assert.InDelta(t, 1.0/3.0, out.Neurons[1].L, difTol)
		assert.InDelta(t, 1.0/3.0, out.Neurons[2].L, difTol)
	}
	assert.Equal(t, 4, out.Neurons[0].Hist.Len())
}

func TestSoftmaxShifted(t *testing.T) {
	nt := NewNetwork("SoftmaxLow")
	out := nt.AddLayer1D("Out", 3, Readout)
	out.Read.Regression = false
	out.Read.EL = -800
	require.NoError(t, nt.Build())
	nt.InitWts()
	ext := []float64{0, 1000, 2000}
	targ := []float64{0, 1, 0}
	prv := make([]float64, 3)
	for s := 0; s < 5; s++ {
		out.ApplyExt(ext)
		out.ApplyTarg(targ)
		require.NoError(t, nt.Cycle())
		if s > 0 {
			mx := math.Max(prv[0], math.Max(prv[1], prv[2]))
			sum := 0.0
			for _, y := range prv {
				sum += math.Exp(y - mx)
			}
			psum := 0.0
			for ni := range out.Neurons {
				p := math.Exp(prv[ni]-mx) / sum
				psum += p
				assert.InDelta(t, p-targ[ni], out.Neurons[ni].L, difTol, "step %d neuron %d", s, ni)
			}
			assert.InDelta(t, 1.0, psum, difTol)
		}
		for ni := range out.Neurons {
			prv[ni] = out.Neurons[ni].Y
			assert.Equal(t, 0.0, math.Exp(prv[ni]), "raw exp(y) underflows")
		}
	}
}

// newLSNet returns inputs -> adaptive recurrent layer -> two readouts,
// with learning signals fed back to the recurrent layer.
func newLSNet(t *testing.T, seed uint64, threads bool) *Network {
	nt := NewNetwork("LS")
	nt.Seed = seed
	nt.Threads = threads
	nt.Time.UpdtInterval = 50
	nt.Time.Update()
	in := nt.AddLayer1D("Input", 10, Input)
	in.Gen = spikegen.NewPoisson(100, 1, seed+1)
	rec := nt.AddLayer1D("Recur", 4, Adaptive)
	out := nt.AddLayer1D("Out", 2, Readout)
	out.Read.Start = 10

	ip := nt.ConnectLayers(in, rec, prjn.NewFull())
	ip.WtInit.Mean = 5
	ip.WtInit.Var = 2
	rr := nt.ConnectLayers(rec, rec, prjn.NewFull())
	rr.Delay = 2
	op := nt.ConnectLayers(rec, out, prjn.NewFull())
	op.Learn.Optim.Adam = true
	op.Learn.LRate = 1e-2
	nt.ConnectLS(out, rec, prjn.NewFull())

	require.NoError(t, nt.Build())
	nt.InitWts()
	return nt
}

func TestLearningSignalSum(t *testing.T) {
	nt := newLSNet(t, 5, false)
	rec := nt.LayerByName("Recur")
	out := nt.LayerByName("Out")
	lp := rec.LSPrjns[0]
	nonzero := 0
	for s := 0; s < 200; s++ {
		out.ApplyTarg([]float64{math.Sin(float64(s) / 10), 0.5})
		require.NoError(t, nt.Cycle())
		if s == 0 {
			continue
		}
		for ri := range rec.Neurons {
			cor := 0.0
			for si := range out.Neurons {
				ci := lp.conIdx(si, ri)
				require.GreaterOrEqual(t, ci, 0)
				cor += lp.Wts[ci] * out.Neurons[si].L
			}
			assert.InDelta(t, cor, rec.Neurons[ri].L, difTol, "step %d neuron %d", s, ri)
			if cor != 0 {
				nonzero++
			}
		}
	}
	assert.Greater(t, nonzero, 0)
}

func TestHistoryBounded(t *testing.T) {
	nt := NewNetwork("Bounded")
	nt.Time.UpdtInterval = 20
	nt.Time.Update()
	in := nt.AddLayer1D("Input", 1000, Input)
	in.Gen = spikegen.NewPoisson(50, 1, 11)
	rec := nt.AddLayer1D("Recur", 1, Adaptive)
	ip := nt.ConnectLayers(in, rec, prjn.NewFull())
	ip.WtInit.Var = 0.5
	require.NoError(t, nt.Build())
	nt.InitWts()

	hs := &rec.Neurons[0].Hist
	for s := 0; s < 100*nt.Time.IntervalN; s++ {
		require.NoError(t, nt.Cycle())
		require.NoError(t, hs.Check())
		mn, ok := hs.Reg.Min()
		require.True(t, ok)
		assert.Equal(t, mn, hs.Front())
		bk, ok := hs.Back()
		require.True(t, ok)
		assert.Equal(t, int(bk-mn)+1, hs.Len())
		assert.Equal(t, 1000, hs.Reg.Count())
	}
	assert.Equal(t, 100, nt.Time.Interval)
	mn, _ := hs.Reg.Min()
	assert.Greater(t, mn, 0.0, "history has been compacted")
}

func weightsOf(nt *Network) []float64 {
	var wts []float64
	for _, ly := range nt.Layers {
		for _, pj := range ly.RecvPrjns {
			for si := range pj.Syns {
				wts = append(wts, pj.Syns[si].Wt)
			}
		}
	}
	return wts
}

func TestReproducible(t *testing.T) {
	run := func(threads bool) []float64 {
		nt := newLSNet(t, 9, threads)
		out := nt.LayerByName("Out")
		for s := 0; s < 500; s++ {
			out.ApplyTarg([]float64{1, -1})
			require.NoError(t, nt.Cycle())
		}
		return weightsOf(nt)
	}
	a := run(false)
	b := run(false)
	c := run(true)
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)

	nt := newLSNet(t, 9, false)
	init := weightsOf(nt)
	assert.NotEqual(t, init, a, "weights have learned")
}

func TestWeightsJSON(t *testing.T) {
	nt := newLSNet(t, 3, false)
	require.NoError(t, nt.Run(120))
	var buf bytes.Buffer
	require.NoError(t, nt.WriteWtsJSON(&buf))

	nt2 := newLSNet(t, 4, false)
	require.NoError(t, nt2.ReadWtsJSON(&buf))
	a := weightsOf(nt)
	b := weightsOf(nt2)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.InDelta(t, a[i], b[i], 1e-5)
	}
	lp1 := nt.LayerByName("Recur").LSPrjns[0]
	lp2 := nt2.LayerByName("Recur").LSPrjns[0]
	for i := range lp1.Wts {
		assert.InDelta(t, lp1.Wts[i], lp2.Wts[i], 1e-5)
	}
}

func TestApplyParams(t *testing.T) {
	nt := newLSNet(t, 1, false)
	sheet := params.Sheet{
		{Sel: "Prjn", Desc: "faster learning", Params: params.Params{
			"Prjn.Learn.LRate": "0.05",
		}},
		{Sel: "#Recur", Desc: "slower membrane", Params: params.Params{
			"Layer.Recur.TauM": "20",
		}},
	}
	app, err := nt.ApplyParams(&sheet, false)
	require.NoError(t, err)
	assert.True(t, app)
	rec := nt.LayerByName("Recur")
	assert.Equal(t, 20.0, rec.Recur.TauM)
	assert.InDelta(t, math.Exp(-1.0/20), rec.Recur.P33, difTol)
	for _, pj := range rec.RecvPrjns {
		assert.Equal(t, 0.05, pj.Learn.LRate)
	}
	assert.Equal(t, 10.0, nt.LayerByName("Out").Read.TauM)
}

func TestBuildErrors(t *testing.T) {
	nt := NewNetwork("Bad")
	nt.Time.UpdtInterval = 3
	nt.Time.Update()
	in := nt.AddLayer1D("Input", 2, Input)
	rec := nt.AddLayer1D("Recur", 2, NonAdaptive)
	pj := nt.ConnectLayers(in, rec, prjn.NewFull())
	pj.Delay = 2
	assert.ErrorIs(t, nt.Build(), ErrInvalidParam)

	nt = NewNetwork("Bad2")
	out := nt.AddLayer1D("Out", 1, Readout)
	rec = nt.AddLayer1D("Recur", 1, NonAdaptive)
	nt.ConnectLayers(out, rec, prjn.NewFull())
	assert.ErrorIs(t, nt.Build(), ErrInvalidParam)
}

func TestSizeReport(t *testing.T) {
	nt := newLSNet(t, 2, false)
	require.NoError(t, nt.Run(60))
	rpt := nt.SizeReport()
	assert.Contains(t, rpt, "Recur")
	assert.Contains(t, rpt, "HistMem")
	assert.Greater(t, nt.MaxHistLen(), 0)
}
