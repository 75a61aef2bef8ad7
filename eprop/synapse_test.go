// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"math"
	"testing"

	"github.com/emer/eprop/hist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPost is a post-synaptic neuron with a hand-written history
type testPost struct {
	readout bool
	adapt   bool
	alpha   float64
	rho     float64
	beta    float64
	hs      History
	spk     hist.Spikes
}

func (tp *testPost) IsReadout() bool         { return tp.readout }
func (tp *testPost) IsAdaptive() bool        { return tp.adapt }
func (tp *testPost) LeakProp() float64       { return tp.alpha }
func (tp *testPost) AdaptProp() float64      { return tp.rho }
func (tp *testPost) Beta() float64           { return tp.beta }
func (tp *testPost) History() *History       { return &tp.hs }
func (tp *testPost) SpikeHist() *hist.Spikes { return &tp.spk }

// newTestPost returns a post neuron with history entries for steps
// [0, n), with h and l giving H and L per step.
func newTestPost(t *testing.T, n int, h, l func(step int) float64) *testPost {
	tp := &testPost{alpha: math.Exp(-0.1), rho: math.Exp(-1.0 / 20)}
	tp.hs.Init(1)
	for s := 0; s < n; s++ {
		require.NoError(t, tp.hs.Append(Step{T: float64(s), H: h(s), L: l(s)}))
	}
	return tp
}

func testLearn() *LearnParams {
	lp := &LearnParams{}
	lp.Defaults()
	lp.LRate = 1e-3
	lp.TauDecay = 0
	lp.Calibrate(1)
	return lp
}

func TestSynapseSingleSpikeGradient(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 400, Delay: 2}
	post := newTestPost(t, 405,
		func(s int) float64 {
			if s == 200 {
				return 0.5
			}
			return 0
		},
		func(s int) float64 {
			if s == 200 {
				return 1
			}
			return 0
		})
	lp := testLearn()
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	assert.Equal(t, 1, post.hs.Reg.Count())

	dlv, err := sy.Send(lp, 100, 1, tm, post)
	require.NoError(t, err)
	assert.True(t, dlv)
	assert.Equal(t, 405, post.hs.Len(), "no update before the interval boundary")

	dlv, err = sy.Send(lp, 405, 1, tm, post)
	require.NoError(t, err)
	assert.True(t, dlv)

	cor := 0.5 * math.Pow(post.alpha, 98)
	assert.InDelta(t, cor, sy.Grad, difTol)
	assert.InDelta(t, 1-1e-3*cor, sy.Wt, difTol)
	assert.InDelta(t, -1e-3*cor, sy.DWt, difTol)

	assert.Equal(t, 400, sy.TLast)
	assert.Equal(t, 800, sy.TNext)
	assert.Equal(t, []int{405}, sy.Buf, "only the triggering spike remains buffered")
	assert.Equal(t, 400.0, post.hs.Front())
	assert.Equal(t, 5, post.hs.Len())
	mn, ok := post.hs.Reg.Min()
	assert.True(t, ok)
	assert.Equal(t, 400.0, mn)
	assert.NoError(t, post.hs.Check())
}

func TestSynapseDropResetArrival(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 400, Delay: 2}
	post := newTestPost(t, 399, func(int) float64 { return 0 }, func(int) float64 { return 0 })
	lp := testLearn()
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	dlv, err := sy.Send(lp, 398, 1, tm, post)
	require.NoError(t, err)
	assert.False(t, dlv, "spike arriving on the reset step is dropped")
	assert.Empty(t, sy.Buf)
}

// adaptiveGradient replays the adaptive eligibility recurrence for a
// single pre-synaptic spike arriving at step arr.
func adaptiveGradient(tp *testPost, kappa float64, arr, n int) (g, z, epsA, ebar float64) {
	ents := tp.hs.Entries()
	for s := 0; s < n; s++ {
		e := ents[s]
		jump := 0.0
		if s == arr {
			jump = 1
		}
		zp := z
		z = tp.alpha*z + jump
		epsA = e.H*zp + (tp.rho-tp.beta*e.H)*epsA
		el := e.H * (z - tp.beta*epsA)
		ebar = kappa*ebar + (1-kappa)*el
		g += ebar * e.L
	}
	return
}

func TestSynapseAdaptiveGradient(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 100, Delay: 1}
	h := func(s int) float64 { return 0.01 * float64(s%7) }
	l := func(s int) float64 { return math.Sin(float64(s) / 5) }
	post := newTestPost(t, 101, h, l)
	post.adapt = true
	post.beta = 1.7
	lp := testLearn()
	lp.TauDecay = 10
	lp.Calibrate(1)

	sy := &Synapse{}
	sy.Init(0.5, 0, tm, post)
	_, err := sy.Send(lp, 10, 1, tm, post)
	require.NoError(t, err)
	cor, z, epsA, ebar := adaptiveGradient(post, lp.Kappa, 11, 100)

	_, err = sy.Send(lp, 100, 1, tm, post)
	require.NoError(t, err)
	assert.InDelta(t, cor, sy.Grad, difTol)
	assert.InDelta(t, z, sy.ZHat, difTol)
	assert.InDelta(t, epsA, sy.EpsA, difTol)
	assert.InDelta(t, ebar, sy.EBar, difTol)
	assert.InDelta(t, 0.5-lp.LRate*cor, sy.Wt, difTol)
}

func TestSynapseReadoutGradient(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 50, Delay: 1}
	l := func(s int) float64 { return float64(s) * 0.1 }
	post := newTestPost(t, 51, func(int) float64 { return 0 }, l)
	post.readout = true
	lp := testLearn()
	lp.TauDecay = 5
	lp.Calibrate(1)
	k := lp.Kappa

	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	for _, st := range []int{3, 20, 20} {
		_, err := sy.Send(lp, st, 1, tm, post)
		require.NoError(t, err)
	}
	cor := 0.0
	z := 0.0
	for s := 0; s < 50; s++ {
		jump := 0.0
		switch s {
		case 4:
			jump = 1
		case 21:
			jump = 2
		}
		z = k*z + (1-k)*jump
		cor += l(s) * z
	}
	_, err := sy.Send(lp, 50, 1, tm, post)
	require.NoError(t, err)
	assert.InDelta(t, cor, sy.Grad, 1e-10)
}

func TestSynapseBatch(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 10, Delay: 1}
	post := newTestPost(t, 21, func(int) float64 { return 1 }, func(int) float64 { return 1 })
	lp := testLearn()
	lp.BatchSize = 2
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)

	_, err := sy.Send(lp, 5, 1, tm, post)
	require.NoError(t, err)
	_, err = sy.Send(lp, 10, 1, tm, post)
	require.NoError(t, err)
	g1 := sy.Grad
	assert.NotZero(t, g1)
	assert.Equal(t, 1.0, sy.Wt, "no step before the batch is full")
	assert.Len(t, sy.Grads, 1)

	_, err = sy.Send(lp, 20, 1, tm, post)
	require.NoError(t, err)
	g2 := sy.Grad
	assert.Empty(t, sy.Grads)
	assert.InDelta(t, 1-lp.LRate*(g1+g2)/2, sy.Wt, difTol)
}

func TestSynapseKeepTraces(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 10, Delay: 1}
	post := newTestPost(t, 21, func(int) float64 { return 1 }, func(s int) float64 {
		if s >= 10 {
			return 1
		}
		return 0
	})
	lp := testLearn()
	lp.KeepTraces = false
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	for _, st := range []int{2, 10} {
		_, err := sy.Send(lp, st, 1, tm, post)
		require.NoError(t, err)
	}
	// the trace from the spike in the first interval is cleared, and the
	// spike stamped 10 arrives at 11
	_, err := sy.Send(lp, 20, 1, tm, post)
	require.NoError(t, err)
	cor := 0.0
	z := 0.0
	for s := 10; s < 20; s++ {
		z *= post.alpha
		if s == 11 {
			z++
		}
		cor += z
	}
	assert.InDelta(t, cor, sy.Grad, difTol)
}

func TestSynapseNaNSkipped(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 10, Delay: 1}
	post := newTestPost(t, 11, func(int) float64 { return math.NaN() }, func(int) float64 { return 1 })
	lp := testLearn()
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	_, err := sy.Send(lp, 3, 1, tm, post)
	require.NoError(t, err)
	_, err = sy.Send(lp, 10, 1, tm, post)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sy.Grad))
	assert.Equal(t, 1.0, sy.Wt, "NaN batch leaves the weight unchanged")
	assert.Empty(t, sy.Grads)
	assert.Equal(t, 10, sy.TLast, "registry still advances")
}

func TestSynapseNoLearn(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 10, Delay: 1}
	post := newTestPost(t, 11, func(int) float64 { return 1 }, func(int) float64 { return 1 })
	lp := testLearn()
	lp.Learn = false
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	_, err := sy.Send(lp, 3, 1, tm, post)
	require.NoError(t, err)
	_, err = sy.Send(lp, 10, 1, tm, post)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sy.Wt)
	mn, _ := post.hs.Reg.Min()
	assert.Equal(t, 10.0, mn)
	assert.Equal(t, 1, post.hs.Len())
}

func TestSynapseRateReg(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 10, Delay: 1}
	post := newTestPost(t, 11, func(int) float64 { return 1 }, func(int) float64 { return 0 })
	post.spk.Add(2)
	post.spk.Add(7)
	lp := testLearn()
	lp.RateReg = 0.5
	lp.TargetRate = 100
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	_, err := sy.Send(lp, 0, 1, tm, post)
	require.NoError(t, err)
	_, err = sy.Send(lp, 10, 1, tm, post)
	require.NoError(t, err)
	sumE := 0.0
	z := 0.0
	for s := 0; s < 10; s++ {
		z *= post.alpha
		if s == 1 {
			z++
		}
		sumE += z
	}
	f := 1000 * 2.0 / 10.0
	cor := 0.5 * (f - 100) * sumE / 10
	assert.InDelta(t, cor, sy.Grad, difTol)
	assert.Equal(t, 0, post.spk.Len(), "spike history tidied to the registry minimum")
}

// TestSynapseAdaptiveClosedForm checks the adaptive gradient against the
// closed form of the trace recurrences for a single spike arriving at
// step 50, constant pseudo-derivative h, beta = 1, and L = 1 on steps
// 100..110.
func TestSynapseAdaptiveClosedForm(t *testing.T) {
	const h = 0.3
	tm := SynTiming{Dt: 1, IntervalN: 200, Delay: 1}
	post := newTestPost(t, 201,
		func(int) float64 { return h },
		func(s int) float64 {
			if s >= 100 && s <= 110 {
				return 1
			}
			return 0
		})
	post.adapt = true
	post.beta = 1
	lp := testLearn()

	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	_, err := sy.Send(lp, 49, 1, tm, post)
	require.NoError(t, err)
	_, err = sy.Send(lp, 200, 1, tm, post)
	require.NoError(t, err)

	a := post.alpha
	c := post.rho - h
	cor := 0.0
	for s := 100; s <= 110; s++ {
		n := float64(s - 50)
		za := math.Pow(a, n)
		eps := h * (za - math.Pow(c, n)) / (a - c)
		cor += h * (za - eps)
	}
	assert.InDelta(t, cor, sy.Grad, 1e-9)
	assert.InDelta(t, 1-lp.LRate*cor, sy.Wt, 1e-9)
}

// TestSynapseMultiIntervalWindow has the synapse silent for a whole
// interval, so one update covers two intervals of history.
func TestSynapseMultiIntervalWindow(t *testing.T) {
	tm := SynTiming{Dt: 1, IntervalN: 10, Delay: 1}
	post := newTestPost(t, 31, func(int) float64 { return 1 }, func(int) float64 { return 1 })
	for _, st := range []float64{2, 7, 15} {
		post.spk.Add(st)
	}
	lp := testLearn()
	lp.RateReg = 0.5
	lp.TargetRate = 100
	sy := &Synapse{}
	sy.Init(1, 0, tm, post)
	_, err := sy.Send(lp, 3, 1, tm, post)
	require.NoError(t, err)
	_, err = sy.Send(lp, 25, 1, tm, post)
	require.NoError(t, err)

	sumE := 0.0
	z := 0.0
	for s := 0; s < 20; s++ {
		z *= post.alpha
		if s == 4 {
			z++
		}
		sumE += z
	}
	f := 1000 * 3.0 / 10.0
	cor := sumE + 0.5*(f-100)*sumE/10
	assert.InDelta(t, cor, sy.Grad, difTol)
	assert.InDelta(t, 1-lp.LRate*cor, sy.Wt, difTol)
	assert.Equal(t, 20, sy.TLast)
	assert.Equal(t, 30, sy.TNext)
	assert.Equal(t, []int{25}, sy.Buf)
	assert.Equal(t, 0, post.spk.Len())
	mn, _ := post.hs.Reg.Min()
	assert.Equal(t, 20.0, mn)
	assert.NoError(t, post.hs.Check())
}
