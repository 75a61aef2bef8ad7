// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

// Ring is a per-neuron ring buffer of deferred input indexed by step.
// Its length must exceed the largest delay of any projection writing to it.
type Ring struct {
	N    int
	NNeu int
	Vals []float64
}

// Init allocates n slots of nneu values
func (rb *Ring) Init(n, nneu int) {
	rb.N = n
	rb.NNeu = nneu
	rb.Vals = make([]float64, n*nneu)
}

// Reset zeros all pending values
func (rb *Ring) Reset() {
	for i := range rb.Vals {
		rb.Vals[i] = 0
	}
}

func (rb *Ring) idx(step, ni int) int {
	return (step%rb.N)*rb.NNeu + ni
}

// Add adds v for neuron ni at step
func (rb *Ring) Add(step, ni int, v float64) {
	rb.Vals[rb.idx(step, ni)] += v
}

// Take returns and clears the value for neuron ni at step
func (rb *Ring) Take(step, ni int) float64 {
	i := rb.idx(step, ni)
	v := rb.Vals[i]
	rb.Vals[i] = 0
	return v
}
