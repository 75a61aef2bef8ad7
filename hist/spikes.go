// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hist

import "golang.org/x/exp/slices"

// Spikes is the spike-time history of one neuron, in increasing order.
// It is used for firing-rate regularization.
type Spikes struct {
	Times []float64
}

// Add appends a spike time, which must not precede the last one
func (sp *Spikes) Add(t float64) {
	sp.Times = append(sp.Times, t)
}

// Len returns number of spikes held
func (sp *Spikes) Len() int {
	return len(sp.Times)
}

// Reset drops all spikes
func (sp *Spikes) Reset() {
	sp.Times = sp.Times[:0]
}

// lower returns the index of the first spike at or after t - eps
func (sp *Spikes) lower(t, eps float64) int {
	i, _ := slices.BinarySearch(sp.Times, t-eps)
	return i
}

// Count returns the number of spikes in [ta, tb), with times snapped
// using tolerance eps.
func (sp *Spikes) Count(ta, tb, eps float64) int {
	b := sp.lower(ta, eps)
	e := sp.lower(tb, eps)
	if e < b {
		return 0
	}
	return e - b
}

// Tidy drops spikes earlier than t, keeping those within eps of it
func (sp *Spikes) Tidy(t, eps float64) {
	n := sp.lower(t, eps)
	if n == 0 {
		return
	}
	sp.Times = append(sp.Times[:0], sp.Times[n:]...)
}
