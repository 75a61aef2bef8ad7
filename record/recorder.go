// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package record samples the state of an eprop.Network while it runs.

A Recorder keeps two etable.Tables: Multi, with one tensor column per
recorded layer variable (a multimeter), and Wts, with one tensor column
per recorded projection holding its weights in sender order (a weight
recorder).  Each has a row per sample.  Tables can be summarized with
Mean, written as CSV, and weight trajectories can be flushed to a Store.
*/
package record

import (
	"context"
	"fmt"
	"io"

	"github.com/emer/eprop/eprop"
	"github.com/emer/etable/agg"
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
)

// UnitVar names one neuron variable of one layer
type UnitVar struct {
	Layer string
	Var   string
}

// ColName is the column name used for this variable
func (uv UnitVar) ColName() string {
	return uv.Layer + ":" + uv.Var
}

// Recorder samples neuron variables and projection weights every
// Interval steps.
type Recorder struct {
	Net      *eprop.Network `view:"-" desc:"network being recorded"`
	Interval int            `def:"1" min:"1" desc:"record every Interval steps"`
	Units    []UnitVar      `desc:"neuron variables to record"`
	Prjns    []string       `desc:"names of projections whose weights are recorded"`
	Multi    *etable.Table  `view:"no-inline" desc:"neuron variables, one row per sample"`
	Wts      *etable.Table  `view:"no-inline" desc:"weights, one row per sample"`

	vals []float64
}

// NewRecorder returns a recorder for given network that samples every
// interval steps.
func NewRecorder(nt *eprop.Network, interval int) *Recorder {
	if interval < 1 {
		interval = 1
	}
	return &Recorder{Net: nt, Interval: interval}
}

// AddUnits adds variables of a layer to record, e.g., "V", "Spike", "Y"
func (rc *Recorder) AddUnits(layer string, vars ...string) {
	for _, v := range vars {
		rc.Units = append(rc.Units, UnitVar{Layer: layer, Var: v})
	}
}

// AddPrjn adds a projection whose weights are recorded
func (rc *Recorder) AddPrjn(name string) {
	rc.Prjns = append(rc.Prjns, name)
}

// Config checks the recorded names against the built network and
// configures the tables, with no rows.
func (rc *Recorder) Config() error {
	msch := etable.Schema{
		{Name: "Step", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "Time", Type: etensor.FLOAT64, CellShape: nil, DimNames: nil},
	}
	for _, uv := range rc.Units {
		ly, err := rc.Net.LayerByNameTry(uv.Layer)
		if err != nil {
			return err
		}
		if _, err := eprop.NeuronVarByName(uv.Var); err != nil {
			return err
		}
		msch = append(msch, etable.Column{Name: uv.ColName(), Type: etensor.FLOAT64, CellShape: []int{len(ly.Neurons)}, DimNames: []string{"Neuron"}})
	}
	wsch := etable.Schema{
		{Name: "Step", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "Time", Type: etensor.FLOAT64, CellShape: nil, DimNames: nil},
	}
	for _, pn := range rc.Prjns {
		pj, err := rc.Net.PrjnByNameTry(pn)
		if err != nil {
			return err
		}
		wsch = append(wsch, etable.Column{Name: pn, Type: etensor.FLOAT64, CellShape: []int{len(pj.Syns)}, DimNames: []string{"Synapse"}})
	}
	rc.Multi = &etable.Table{}
	rc.Multi.SetMetaData("name", rc.Net.Name()+"Multimeter")
	rc.Multi.SetMetaData("desc", "neuron variables sampled over time")
	rc.Multi.SetFromSchema(msch, 0)
	rc.Wts = &etable.Table{}
	rc.Wts.SetMetaData("name", rc.Net.Name()+"Weights")
	rc.Wts.SetMetaData("desc", "synaptic weights sampled over time")
	rc.Wts.SetFromSchema(wsch, 0)
	return nil
}

// Record adds a row to each table if the current step is a multiple of
// Interval.  Call after Network.Cycle.
func (rc *Recorder) Record() error {
	if rc.Multi == nil {
		if err := rc.Config(); err != nil {
			return err
		}
	}
	tm := &rc.Net.Time
	if tm.Step%rc.Interval != 0 {
		return nil
	}
	row := rc.Multi.Rows
	rc.Multi.SetNumRows(row + 1)
	rc.Multi.SetCellFloat("Step", row, float64(tm.Step))
	rc.Multi.SetCellFloat("Time", row, tm.Time)
	for _, uv := range rc.Units {
		ly := rc.Net.LayerByName(uv.Layer)
		if err := ly.UnitVals(&rc.vals, uv.Var); err != nil {
			return err
		}
		cn := uv.ColName()
		for ni, v := range rc.vals {
			rc.Multi.SetCellTensorFloat1D(cn, row, ni, v)
		}
	}

	row = rc.Wts.Rows
	rc.Wts.SetNumRows(row + 1)
	rc.Wts.SetCellFloat("Step", row, float64(tm.Step))
	rc.Wts.SetCellFloat("Time", row, tm.Time)
	for _, pn := range rc.Prjns {
		pj, err := rc.Net.PrjnByNameTry(pn)
		if err != nil {
			return err
		}
		if err := pj.SynVals(&rc.vals, "Wt"); err != nil {
			return err
		}
		for si, v := range rc.vals {
			rc.Wts.SetCellTensorFloat1D(pn, row, si, v)
		}
	}
	return nil
}

// Mean returns the mean over all rows of given column, per cell, looking
// in Multi and then in Wts.
func (rc *Recorder) Mean(colNm string) ([]float64, error) {
	for _, dt := range []*etable.Table{rc.Multi, rc.Wts} {
		if dt == nil || dt.ColByName(colNm) == nil {
			continue
		}
		if dt.Rows == 0 {
			return nil, fmt.Errorf("record.Recorder.Mean: no rows recorded for %v", colNm)
		}
		return agg.Mean(etable.NewIdxView(dt), colNm), nil
	}
	return nil, fmt.Errorf("record.Recorder.Mean: column %q not found", colNm)
}

// WriteCSV writes the multimeter table, with headers, to w
func (rc *Recorder) WriteCSV(w io.Writer) error {
	if rc.Multi == nil {
		return fmt.Errorf("record.Recorder.WriteCSV: not configured")
	}
	return rc.Multi.WriteCSV(w, etable.Comma, true)
}

// WriteWtsCSV writes the weight table, with headers, to w
func (rc *Recorder) WriteWtsCSV(w io.Writer) error {
	if rc.Wts == nil {
		return fmt.Errorf("record.Recorder.WriteWtsCSV: not configured")
	}
	return rc.Wts.WriteCSV(w, etable.Comma, true)
}

// WtSamples returns the weights recorded in row of the Wts table, with
// sender and receiver indexes.
func (rc *Recorder) WtSamples(row int) ([]WtSample, error) {
	var ws []WtSample
	step := int(rc.Wts.CellFloat("Step", row))
	for _, pn := range rc.Prjns {
		pj, err := rc.Net.PrjnByNameTry(pn)
		if err != nil {
			return nil, err
		}
		for si := range pj.SConN {
			nc := int(pj.SConN[si])
			st := int(pj.SConIdxSt[si])
			for ci := st; ci < st+nc; ci++ {
				ws = append(ws, WtSample{
					Step: step,
					Prjn: pn,
					Si:   si,
					Ri:   int(pj.SConIdx[ci]),
					Wt:   rc.Wts.CellTensorFloat1D(pn, row, ci),
				})
			}
		}
	}
	return ws, nil
}

// Flush appends all recorded weight rows to the store under runID, and
// clears the Wts table.
func (rc *Recorder) Flush(ctx context.Context, st Store, runID string) error {
	if rc.Wts == nil {
		return nil
	}
	for row := 0; row < rc.Wts.Rows; row++ {
		ws, err := rc.WtSamples(row)
		if err != nil {
			return err
		}
		if err := st.AppendWeights(ctx, runID, ws); err != nil {
			return fmt.Errorf("record.Recorder.Flush: %w", err)
		}
	}
	rc.Wts.SetNumRows(0)
	return nil
}
