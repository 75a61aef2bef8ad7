// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hist

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// RegEntry is one key of the Registry: a time and the number of
// synapses whose last update is at that time.
type RegEntry struct {
	T float64
	N int
}

// Registry is a sorted multiset of synapse last-update times.
// Keys closer than Eps are treated as the same time.
type Registry struct {
	Eps  float64
	Keys []RegEntry
}

// Init clears the registry and sets the tolerance from the step size
func (rg *Registry) Init(dt float64) {
	rg.Eps = 0.5 * dt
	rg.Keys = nil
}

func (rg *Registry) find(t float64) (int, bool) {
	i, _ := slices.BinarySearchFunc(rg.Keys, t-rg.Eps, func(e RegEntry, tg float64) int {
		switch {
		case e.T < tg:
			return -1
		case e.T > tg:
			return 1
		}
		return 0
	})
	if i < len(rg.Keys) && math.Abs(rg.Keys[i].T-t) <= rg.Eps {
		return i, true
	}
	return i, false
}

// Register adds one synapse at time t
func (rg *Registry) Register(t float64) {
	i, ok := rg.find(t)
	if ok {
		rg.Keys[i].N++
		return
	}
	rg.Keys = slices.Insert(rg.Keys, i, RegEntry{T: t, N: 1})
}

// Unregister removes one synapse at time t
func (rg *Registry) Unregister(t float64) error {
	i, ok := rg.find(t)
	if !ok {
		return fmt.Errorf("%w: t=%g", ErrNoRegistration, t)
	}
	rg.Keys[i].N--
	if rg.Keys[i].N <= 0 {
		rg.Keys = slices.Delete(rg.Keys, i, i+1)
	}
	return nil
}

// Update moves one synapse from tPrev to tNew
func (rg *Registry) Update(tPrev, tNew float64) error {
	if err := rg.Unregister(tPrev); err != nil {
		return err
	}
	rg.Register(tNew)
	return nil
}

// Min returns the earliest registered time, false if empty
func (rg *Registry) Min() (float64, bool) {
	if len(rg.Keys) == 0 {
		return 0, false
	}
	return rg.Keys[0].T, true
}

// Max returns the latest registered time, false if empty
func (rg *Registry) Max() (float64, bool) {
	if len(rg.Keys) == 0 {
		return 0, false
	}
	return rg.Keys[len(rg.Keys)-1].T, true
}

// Len returns the number of distinct registered times
func (rg *Registry) Len() int {
	return len(rg.Keys)
}

// Count returns the total number of registered synapses
func (rg *Registry) Count() int {
	n := 0
	for _, k := range rg.Keys {
		n += k.N
	}
	return n
}
