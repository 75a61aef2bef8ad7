// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package hist provides the dense, time-indexed per-step history that a
post-synaptic neuron keeps for its incoming plastic synapses, together with
the Registry of synapse read positions that bounds how much of it must be
retained.

Each neuron appends exactly one entry per simulation step.  Synapses are
event driven: when a pre-synaptic spike arrives they replay the slice of
history since their last update, then move their registry entry forward.
Compact drops everything older than the earliest registered time, so the
store only holds as much history as the slowest synapse still needs.

The store is generic over the entry type so that the e-prop history
(pseudo-derivative and learning signal) and the Clopath history (LTP and
LTD factors) share one implementation.
*/
package hist

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBeforeFront is returned when a slice starts before the oldest
	// retained entry, which means a registry entry was lost.
	ErrBeforeFront = errors.New("hist: slice starts before history front")

	// ErrNotContiguous is returned when an appended entry is not exactly
	// one step after the current back.
	ErrNotContiguous = errors.New("hist: appended entry is not contiguous")

	// ErrAfterBack is returned when a write needs entries beyond the
	// newest one.
	ErrAfterBack = errors.New("hist: range extends past history back")

	// ErrNoRegistration is returned when a registry update refers to a time
	// that has no registered synapse.
	ErrNoRegistration = errors.New("hist: no registry entry at time")
)

// Entry is a single per-step history record.
type Entry interface {
	Time() float64
}

// Store is a dense history of per-step entries, one per simulation step
// of size Dt, plus the registry of synapse read positions.
type Store[E Entry] struct {

	// simulation step in ms
	Dt float64

	// read positions of all synapses projecting onto the owning neuron
	Reg Registry

	ents  []E
	next  float64
	begun bool
}

// NewStore returns a new empty store for given step size.
func NewStore[E Entry](dt float64) *Store[E] {
	hs := &Store[E]{}
	hs.Init(dt)
	return hs
}

// Init resets the store to empty for given step size.
func (hs *Store[E]) Init(dt float64) {
	hs.Dt = dt
	hs.Reg.Init(dt)
	hs.ents = nil
	hs.next = 0
	hs.begun = false
}

// Eps returns the time tolerance used for snapping to the step grid
func (hs *Store[E]) Eps() float64 {
	return 0.5 * hs.Dt
}

// Len returns the number of entries currently held
func (hs *Store[E]) Len() int {
	return len(hs.ents)
}

// Front returns the time of the oldest retained entry.
// If the store is empty this is the time the next entry must have.
func (hs *Store[E]) Front() float64 {
	if len(hs.ents) == 0 {
		return hs.next
	}
	return hs.ents[0].Time()
}

// Back returns the time of the newest entry, and false if empty.
func (hs *Store[E]) Back() (float64, bool) {
	if len(hs.ents) == 0 {
		return 0, false
	}
	return hs.ents[len(hs.ents)-1].Time(), true
}

// Next returns the time the next appended entry must have.
func (hs *Store[E]) Next() float64 {
	return hs.next
}

// At returns a pointer to entry i, 0 = front
func (hs *Store[E]) At(i int) *E {
	return &hs.ents[i]
}

// Append adds one entry, which must be exactly one step after the
// current back (or anything at all for the very first entry).
func (hs *Store[E]) Append(e E) error {
	t := e.Time()
	if hs.begun && math.Abs(t-hs.next) > hs.Eps() {
		return fmt.Errorf("%w: got t=%g, want t=%g", ErrNotContiguous, t, hs.next)
	}
	hs.begun = true
	hs.ents = append(hs.ents, e)
	hs.next = t + hs.Dt
	return nil
}

// Start sets the time of the first entry for an empty store that has not
// yet received any entries.  Used when a neuron is created mid-run.
func (hs *Store[E]) Start(t float64) {
	if !hs.begun {
		hs.next = t
		hs.begun = true
	}
}

// pos returns the grid position of time t relative to the front,
// clamped to [0, Len].
func (hs *Store[E]) pos(t float64) int {
	p := int(math.Round((t - hs.Front()) / hs.Dt))
	if p < 0 {
		return 0
	}
	if p > len(hs.ents) {
		return len(hs.ents)
	}
	return p
}

// Slice returns the half-open index range [begin, end) of entries with
// times in [ta, tb).  Times are snapped to the step grid.  A left endpoint
// before the front is an error: it means history needed by a synapse has
// already been compacted away.
func (hs *Store[E]) Slice(ta, tb float64) (begin, end int, err error) {
	if ta < hs.Front()-hs.Eps() {
		return 0, 0, fmt.Errorf("%w: t=%g front=%g", ErrBeforeFront, ta, hs.Front())
	}
	begin = hs.pos(ta)
	end = hs.pos(tb)
	if end < begin {
		end = begin
	}
	return
}

// Range returns the entries with times in [ta, tb).  The returned slice
// aliases the store, so writes through it modify the history.
func (hs *Store[E]) Range(ta, tb float64) ([]E, error) {
	b, e, err := hs.Slice(ta, tb)
	if err != nil {
		return nil, err
	}
	return hs.ents[b:e], nil
}

// RegisterUpdate moves one synapse registry entry from tPrev to tNew and
// compacts the history.
func (hs *Store[E]) RegisterUpdate(tPrev, tNew float64) error {
	if err := hs.Reg.Update(tPrev, tNew); err != nil {
		return err
	}
	hs.Compact()
	return nil
}

// Compact drops all entries strictly older than the earliest registered
// time.  It is the only way the store shrinks.
func (hs *Store[E]) Compact() {
	tmin, ok := hs.Reg.Min()
	if !ok {
		return
	}
	n := 0
	for n < len(hs.ents) && hs.ents[n].Time() < tmin-hs.Eps() {
		n++
	}
	if n == 0 {
		return
	}
	if n == len(hs.ents) {
		hs.ents = hs.ents[:0]
		return
	}
	hs.ents = hs.ents[n:]
}

// Check verifies density of the entries and that no registered time
// precedes the front.  Returns nil if all is well.
func (hs *Store[E]) Check() error {
	for i := 1; i < len(hs.ents); i++ {
		d := hs.ents[i].Time() - hs.ents[i-1].Time()
		if math.Abs(d-hs.Dt) > hs.Eps() {
			return fmt.Errorf("%w: gap of %g at index %d", ErrNotContiguous, d, i)
		}
	}
	if tmin, ok := hs.Reg.Min(); ok && len(hs.ents) > 0 {
		if tmin < hs.Front()-hs.Eps() {
			return fmt.Errorf("%w: registry min %g front %g", ErrBeforeFront, tmin, hs.Front())
		}
	}
	return nil
}

// Entries returns the underlying entries, front first.  Read only.
func (hs *Store[E]) Entries() []E {
	return hs.ents
}
