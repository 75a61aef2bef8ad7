// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"
	"math"
	"sort"

	"github.com/goki/ki/kit"
)

// Dict is a string-keyed property dictionary, used to get and set the
// parameters of the network, a layer or a projection by name.
type Dict map[string]any

// Keys returns the keys of the dictionary in sorted order
func (d Dict) Keys() []string {
	ks := make([]string, 0, len(d))
	for k := range d {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func dictFloat(k string, v any) (float64, error) {
	f, ok := kit.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %v: cannot convert %v to a number", ErrInvalidParam, k, v)
	}
	return f, nil
}

func dictInt(k string, v any) (int, error) {
	i, ok := kit.ToInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %v: cannot convert %v to an integer", ErrInvalidParam, k, v)
	}
	return int(i), nil
}

func dictBool(k string, v any) (bool, error) {
	b, ok := kit.ToBool(v)
	if !ok {
		return false, fmt.Errorf("%w: %v: cannot convert %v to a bool", ErrInvalidParam, k, v)
	}
	return b, nil
}

func unknownKey(obj, k string) error {
	return fmt.Errorf("%w: %v has no property %q", ErrInvalidParam, obj, k)
}

// SetStatus sets properties of the object of given name: the network
// itself (its Nm or ""), a layer, or a projection (SendToRecv).  All
// values are converted and validated before anything is changed, so a
// failing call leaves the object untouched.
func (nt *Network) SetStatus(name string, d Dict) error {
	if name == "" || name == nt.Nm {
		return nt.setStatus(d)
	}
	if ly := nt.LayerByName(name); ly != nil {
		return ly.SetStatus(d)
	}
	pj, err := nt.PrjnByNameTry(name)
	if err != nil {
		return err
	}
	return pj.SetStatus(d)
}

// Status returns the properties of the object of given name, see SetStatus
func (nt *Network) Status(name string) (Dict, error) {
	if name == "" || name == nt.Nm {
		return Dict{
			"resolution":      nt.Time.Dt,
			"update_interval": nt.Time.UpdtInterval,
			"time":            nt.Time.Time,
			"step":            nt.Time.Step,
			"seed":            nt.Seed,
		}, nil
	}
	if ly := nt.LayerByName(name); ly != nil {
		return ly.Status(), nil
	}
	pj, err := nt.PrjnByNameTry(name)
	if err != nil {
		return nil, err
	}
	return pj.Status(), nil
}

func (nt *Network) setStatus(d Dict) error {
	tm := nt.Time
	seed := nt.Seed
	for _, k := range d.Keys() {
		v := d[k]
		var err error
		switch k {
		case "resolution":
			tm.Dt, err = dictFloat(k, v)
		case "update_interval":
			tm.UpdtInterval, err = dictFloat(k, v)
		case "seed":
			var s int
			s, err = dictInt(k, v)
			seed = uint64(s)
		default:
			err = unknownKey(nt.Nm, k)
		}
		if err != nil {
			return err
		}
	}
	if err := tm.Validate(); err != nil {
		return err
	}
	tm.Update()
	if tm.Dt != nt.Time.Dt && nt.built() {
		return fmt.Errorf("%w: resolution cannot change once the network is built", ErrInvalidParam)
	}
	if tm.IntervalN != nt.Time.IntervalN && nt.Time.Step > 0 {
		return fmt.Errorf("%w: update_interval cannot change after the simulation has started", ErrInvalidParam)
	}
	for _, ly := range nt.Layers {
		for _, pj := range ly.RecvPrjns {
			if tm.IntervalN < 2*pj.Delay {
				return fmt.Errorf("%w: update interval of %d steps must be at least twice the delay %d of %v", ErrInvalidParam, tm.IntervalN, pj.Delay, pj.Name())
			}
		}
	}
	nt.Time.Dt = tm.Dt
	nt.Time.UpdtInterval = tm.UpdtInterval
	nt.Time.Update()
	nt.Seed = seed
	nt.UpdateParams()
	for _, ly := range nt.Layers {
		ly.syncNeurons()
		for _, pj := range ly.RecvPrjns {
			for si := range pj.Syns {
				sy := &pj.Syns[si]
				sy.TNext = sy.TLast + nt.Time.IntervalN
			}
		}
	}
	return nil
}

// built returns true once any layer has allocated its neurons, after
// which histories are stamped with the current resolution.
func (nt *Network) built() bool {
	for _, ly := range nt.Layers {
		if len(ly.Neurons) > 0 {
			return true
		}
	}
	return false
}

// SetStatus sets neuron parameters of the layer, for all its neurons.
// Potentials are absolute, in mV.
func (ly *Layer) SetStatus(d Dict) error {
	rp := ly.Recur
	ro := ly.Read
	for _, k := range d.Keys() {
		v := d[k]
		var err error
		if ly.Type == Readout {
			err = ro.setKey(k, v)
		} else if ly.IsRecur() {
			err = rp.setKey(k, v)
		} else {
			err = unknownKey(ly.Nm, k)
		}
		if err != nil {
			return fmt.Errorf("layer %v: %w", ly.Nm, err)
		}
	}
	dt := 1.0
	if ly.Network != nil {
		dt = ly.Network.Time.Dt
	}
	switch ly.Type {
	case Readout:
		ro.Calibrate(dt)
		if err := ro.Validate(); err != nil {
			return fmt.Errorf("layer %v: %w", ly.Nm, err)
		}
		ly.Read = ro
	case NonAdaptive, Adaptive:
		if ly.Type == NonAdaptive && rp.Beta != 0 {
			return fmt.Errorf("%w: layer %v: beta must be 0 for non-adaptive neurons", ErrInvalidParam, ly.Nm)
		}
		rp.Calibrate(dt)
		if err := rp.Validate(); err != nil {
			return fmt.Errorf("layer %v: %w", ly.Nm, err)
		}
		ly.Recur = rp
	}
	ly.syncNeurons()
	return nil
}

// Status returns the neuron parameters of the layer
func (ly *Layer) Status() Dict {
	d := Dict{
		"type": ly.Type.String(),
		"n":    ly.Shp.Len(),
	}
	switch ly.Type {
	case Readout:
		ro := &ly.Read
		d["tau_m"] = ro.TauM
		d["C_m"] = ro.Cm
		d["E_L"] = ro.EL
		d["I_e"] = ro.Ie
		d["V_min"] = ro.VMinAbs
		d["regression"] = ro.Regression
		d["start"] = ro.Start
	case NonAdaptive, Adaptive:
		rp := &ly.Recur
		d["tau_m"] = rp.TauM
		d["C_m"] = rp.Cm
		d["t_ref"] = rp.TRef
		d["E_L"] = rp.EL
		d["V_th"] = rp.VThAbs
		d["V_reset"] = rp.VReset
		d["beta"] = rp.Beta
		d["tau_a"] = rp.TauA
		d["I_e"] = rp.Ie
		d["V_min"] = rp.VMinAbs
		d["gamma"] = rp.PDeriv.Gamma
	}
	return d
}

// syncNeurons copies changed propagators into the neurons without
// resetting their state.
func (ly *Layer) syncNeurons() {
	for ni := range ly.Neurons {
		nrn := &ly.Neurons[ni]
		switch ly.Type {
		case Readout:
			nrn.p33 = ly.Read.P33
		case NonAdaptive, Adaptive:
			nrn.p33 = ly.Recur.P33
			nrn.pa = ly.Recur.Pa
			if ly.Type == Adaptive {
				nrn.beta = ly.Recur.Beta
			}
		}
	}
}

func (rp *RecurParams) setKey(k string, v any) error {
	var err error
	switch k {
	case "tau_m":
		rp.TauM, err = dictFloat(k, v)
	case "C_m":
		rp.Cm, err = dictFloat(k, v)
	case "t_ref":
		rp.TRef, err = dictFloat(k, v)
	case "E_L":
		rp.EL, err = dictFloat(k, v)
	case "V_th":
		rp.VThAbs, err = dictFloat(k, v)
	case "V_reset":
		rp.VReset, err = dictFloat(k, v)
	case "beta":
		rp.Beta, err = dictFloat(k, v)
	case "tau_a":
		rp.TauA, err = dictFloat(k, v)
	case "I_e":
		rp.Ie, err = dictFloat(k, v)
	case "V_min":
		rp.VMinAbs, err = dictFloat(k, v)
	case "gamma":
		rp.PDeriv.Gamma, err = dictFloat(k, v)
	default:
		err = unknownKey("recurrent neuron", k)
	}
	return err
}

func (ro *ReadoutParams) setKey(k string, v any) error {
	var err error
	switch k {
	case "tau_m":
		ro.TauM, err = dictFloat(k, v)
	case "C_m":
		ro.Cm, err = dictFloat(k, v)
	case "E_L":
		ro.EL, err = dictFloat(k, v)
	case "I_e":
		ro.Ie, err = dictFloat(k, v)
	case "V_min":
		ro.VMinAbs, err = dictFloat(k, v)
	case "regression":
		ro.Regression, err = dictBool(k, v)
	case "start":
		ro.Start, err = dictFloat(k, v)
	default:
		err = unknownKey("readout neuron", k)
	}
	return err
}

// SetStatus sets learning parameters of the projection.  The "weight"
// key sets the weight of every synapse, and must have the same sign as
// Wmax.
func (pj *Prjn) SetStatus(d Dict) error {
	lp := pj.Learn
	delay := pj.Delay
	wt := math.NaN()
	for _, k := range d.Keys() {
		v := d[k]
		var err error
		switch k {
		case "weight":
			wt, err = dictFloat(k, v)
		case "delay":
			delay, err = dictInt(k, v)
		default:
			err = lp.setKey(k, v)
		}
		if err != nil {
			return fmt.Errorf("prjn %v: %w", pj.Name(), err)
		}
	}
	if err := lp.Validate(); err != nil {
		return fmt.Errorf("prjn %v: %w", pj.Name(), err)
	}
	if !math.IsNaN(wt) {
		if err := lp.CheckWtSign(wt); err != nil {
			return fmt.Errorf("prjn %v: %w", pj.Name(), err)
		}
	}
	if delay != pj.Delay {
		if delay < 1 {
			return fmt.Errorf("%w: prjn %v: delay %d must be >= 1 step", ErrInvalidParam, pj.Name(), delay)
		}
		if nt := pj.Recv.Network; nt != nil && nt.Time.IntervalN < 2*delay {
			return fmt.Errorf("%w: prjn %v: update interval of %d steps must be at least twice the delay %d", ErrInvalidParam, pj.Name(), nt.Time.IntervalN, delay)
		}
		if pj.Recv.spk.N > 0 && delay >= pj.Recv.spk.N {
			return fmt.Errorf("%w: prjn %v: delay %d exceeds the input buffer built for the layer, rebuild the network", ErrInvalidParam, pj.Name(), delay)
		}
	}
	pj.Learn = lp
	pj.Delay = delay
	pj.UpdateParams()
	if !math.IsNaN(wt) {
		for si := range pj.Syns {
			pj.Syns[si].Wt = wt
		}
	}
	return nil
}

// Status returns the learning parameters of the projection
func (pj *Prjn) Status() Dict {
	lp := &pj.Learn
	return Dict{
		"learn":              lp.Learn,
		"learning_rate":      lp.LRate,
		"tau_decay":          lp.TauDecay,
		"batch_size":         lp.BatchSize,
		"rate_reg":           lp.RateReg,
		"target_firing_rate": lp.TargetRate,
		"keep_traces":        lp.KeepTraces,
		"recall_duration":    lp.RecallDur,
		"Wmin":               lp.WtBound.Min,
		"Wmax":               lp.WtBound.Max,
		"use_adam":           lp.Optim.Adam,
		"beta1_adam":         lp.Optim.Beta1,
		"beta2_adam":         lp.Optim.Beta2,
		"epsilon_adam":       lp.Optim.Eps,
		"delay":              pj.Delay,
		"n_synapses":         len(pj.Syns),
	}
}

func (lp *LearnParams) setKey(k string, v any) error {
	var err error
	switch k {
	case "learn":
		lp.Learn, err = dictBool(k, v)
	case "learning_rate":
		lp.LRate, err = dictFloat(k, v)
	case "tau_decay":
		lp.TauDecay, err = dictFloat(k, v)
	case "batch_size":
		lp.BatchSize, err = dictInt(k, v)
	case "rate_reg":
		lp.RateReg, err = dictFloat(k, v)
	case "target_firing_rate":
		lp.TargetRate, err = dictFloat(k, v)
	case "keep_traces":
		lp.KeepTraces, err = dictBool(k, v)
	case "recall_duration":
		lp.RecallDur, err = dictFloat(k, v)
	case "Wmin":
		lp.WtBound.Min, err = dictFloat(k, v)
	case "Wmax":
		lp.WtBound.Max, err = dictFloat(k, v)
	case "use_adam":
		lp.Optim.Adam, err = dictBool(k, v)
	case "beta1_adam":
		lp.Optim.Beta1, err = dictFloat(k, v)
	case "beta2_adam":
		lp.Optim.Beta2, err = dictFloat(k, v)
	case "epsilon_adam":
		lp.Optim.Eps, err = dictFloat(k, v)
	default:
		err = unknownKey("synapse", k)
	}
	return err
}

// SynStatus returns the state of the synapse from sending neuron si to
// receiving neuron ri of the projection of given name.
func (nt *Network) SynStatus(prjn string, si, ri int) (Dict, error) {
	pj, err := nt.PrjnByNameTry(prjn)
	if err != nil {
		return nil, err
	}
	sy := pj.Syn(si, ri)
	if sy == nil {
		return nil, fmt.Errorf("Prjn %v: no synapse from %d to %d", prjn, si, ri)
	}
	return Dict{
		"weight": sy.Wt,
		"grad":   sy.Grad,
		"z_hat":  sy.ZHat,
		"e_bar":  sy.EBar,
		"t_last": nt.Time.StepTime(sy.TLast),
		"t_next": nt.Time.StepTime(sy.TNext),
		"delay":  pj.Delay,
	}, nil
}

// SetSynStatus sets the weight of one synapse, which must have the same
// sign as Wmax.
func (nt *Network) SetSynStatus(prjn string, si, ri int, d Dict) error {
	pj, err := nt.PrjnByNameTry(prjn)
	if err != nil {
		return err
	}
	sy := pj.Syn(si, ri)
	if sy == nil {
		return fmt.Errorf("Prjn %v: no synapse from %d to %d", prjn, si, ri)
	}
	wt := sy.Wt
	for _, k := range d.Keys() {
		switch k {
		case "weight":
			if wt, err = dictFloat(k, d[k]); err != nil {
				return err
			}
		default:
			return unknownKey(prjn+" synapse", k)
		}
	}
	if err := pj.Learn.CheckWtSign(wt); err != nil {
		return err
	}
	sy.Wt = wt
	return nil
}
