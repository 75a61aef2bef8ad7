// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/emer/emergent/prjn"
	"github.com/emer/eprop/eprop"
	"github.com/emer/eprop/spikegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNet(t *testing.T) *eprop.Network {
	nt := eprop.NewNetwork("Rec")
	nt.Time.UpdtInterval = 50
	nt.Time.Update()
	in := nt.AddLayer1D("Input", 5, eprop.Input)
	in.Gen = spikegen.NewPoisson(80, 1, 2)
	rec := nt.AddLayer1D("Recur", 3, eprop.Adaptive)
	out := nt.AddLayer1D("Out", 2, eprop.Readout)
	nt.ConnectLayers(in, rec, prjn.NewFull())
	nt.ConnectLayers(rec, out, prjn.NewFull())
	require.NoError(t, nt.Build())
	nt.InitWts()
	return nt
}

func TestRecorder(t *testing.T) {
	nt := newTestNet(t)
	rc := NewRecorder(nt, 10)
	rc.AddUnits("Recur", "V", "Spike")
	rc.AddUnits("Out", "Y")
	rc.AddPrjn("RecurToOut")
	require.NoError(t, rc.Config())
	for s := 0; s < 100; s++ {
		require.NoError(t, nt.Cycle())
		require.NoError(t, rc.Record())
	}
	assert.Equal(t, 10, rc.Multi.Rows)
	assert.Equal(t, 10, rc.Wts.Rows)
	assert.Equal(t, 100.0, rc.Multi.CellFloat("Step", 9))

	mv, err := rc.Mean("Recur:V")
	require.NoError(t, err)
	assert.Len(t, mv, 3)
	mw, err := rc.Mean("RecurToOut")
	require.NoError(t, err)
	assert.Len(t, mw, 6)
	_, err = rc.Mean("Nope")
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, rc.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 11, "header plus one line per sample")
	assert.Contains(t, lines[0], "Step")

	ws, err := rc.WtSamples(9)
	require.NoError(t, err)
	require.Len(t, ws, 6)
	pj, err := nt.PrjnByNameTry("RecurToOut")
	require.NoError(t, err)
	for _, w := range ws {
		assert.Equal(t, pj.Syn(w.Si, w.Ri).Wt, w.Wt, "last sample is the current weight")
	}
}

func TestRecorderConfigErrors(t *testing.T) {
	nt := newTestNet(t)
	rc := NewRecorder(nt, 1)
	rc.AddUnits("NoLayer", "V")
	assert.Error(t, rc.Config())

	rc = NewRecorder(nt, 1)
	rc.AddUnits("Recur", "Bogus")
	assert.Error(t, rc.Config())

	rc = NewRecorder(nt, 1)
	rc.AddPrjn("NoPrjn")
	assert.Error(t, rc.Config())
}

// testStore exercises any Store implementation
func testStore(t *testing.T, st Store) {
	ctx := context.Background()
	run := NewRun("test", map[string]string{"lrate": "0.01"})
	assert.NotEmpty(t, run.ID)

	err := st.AppendWeights(ctx, run.ID, []WtSample{{Step: 1}})
	assert.ErrorIs(t, err, ErrNoRun)

	require.NoError(t, st.SaveRun(ctx, run))
	got, ok, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.Name, got.Name)
	assert.Equal(t, "0.01", got.Params["lrate"])
	assert.True(t, run.Started.Equal(got.Started))

	_, ok, err = st.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ws := []WtSample{
		{Step: 10, Prjn: "AToB", Si: 0, Ri: 1, Wt: 0.5},
		{Step: 20, Prjn: "AToB", Si: 0, Ri: 1, Wt: 0.25},
	}
	require.NoError(t, st.AppendWeights(ctx, run.ID, ws[:1]))
	require.NoError(t, st.AppendWeights(ctx, run.ID, ws[1:]))
	gws, ok, err := st.GetWeights(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ws, gws)
}

func TestMemoryStore(t *testing.T) {
	st, err := NewStore("memory", "")
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	testStore(t, st)
	assert.NoError(t, CloseIfSupported(st))
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	nt := newTestNet(t)
	rc := NewRecorder(nt, 25)
	rc.AddPrjn("InputToRecur")
	st := NewMemoryStore()
	require.NoError(t, st.Init(ctx))
	run := NewRun("flush", nil)
	require.NoError(t, st.SaveRun(ctx, run))
	for s := 0; s < 100; s++ {
		require.NoError(t, nt.Cycle())
		require.NoError(t, rc.Record())
	}
	require.NoError(t, rc.Flush(ctx, st, run.ID))
	assert.Equal(t, 0, rc.Wts.Rows)
	ws, ok, err := st.GetWeights(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, ws, 4*15)
	assert.Equal(t, 25, ws[0].Step)
	assert.Equal(t, 100, ws[len(ws)-1].Step)
}

func TestUnknownBackend(t *testing.T) {
	_, err := NewStore("bolt", "")
	assert.Error(t, err)
}
