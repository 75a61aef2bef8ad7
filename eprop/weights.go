// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/emer/emergent/weights"
	"github.com/goki/ki/indent"
)

// SaveWtsJSON saves network weights to a JSON-formatted file.
// If filename has .gz extension, then file is gzip compressed.
func (nt *Network) SaveWtsJSON(filename string) error {
	fp, err := os.Create(filename)
	if err != nil {
		log.Println(err)
		return err
	}
	defer fp.Close()
	if filepath.Ext(filename) == ".gz" {
		gzr := gzip.NewWriter(fp)
		err = nt.WriteWtsJSON(gzr)
		gzr.Close()
	} else {
		bw := bufio.NewWriter(fp)
		err = nt.WriteWtsJSON(bw)
		bw.Flush()
	}
	return err
}

// OpenWtsJSON opens network weights from a JSON-formatted file.
// If filename has .gz extension, then file is gzip uncompressed.
func (nt *Network) OpenWtsJSON(filename string) error {
	fp, err := os.Open(filename)
	if err != nil {
		log.Println(err)
		return err
	}
	defer fp.Close()
	if filepath.Ext(filename) == ".gz" {
		gzr, err := gzip.NewReader(fp)
		if err != nil {
			log.Println(err)
			return err
		}
		defer gzr.Close()
		return nt.ReadWtsJSON(gzr)
	}
	return nt.ReadWtsJSON(bufio.NewReader(fp))
}

// WriteWtsJSON writes the weights of the network from the receiver-side
// perspective in a JSON text format.  Learning-signal feedback weights are
// written as projections of the recurrent layer with MetaData Type = LS.
// Weights are read back at float32 precision.
func (nt *Network) WriteWtsJSON(w io.Writer) error {
	depth := 0
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Network\": %q,\n", nt.Nm)))
	if len(nt.MetaData) > 0 {
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("\"MetaData\": {\n"))
		depth++
		i := 0
		for k, v := range nt.MetaData {
			w.Write(indent.TabBytes(depth))
			w.Write([]byte(fmt.Sprintf("%q: %q", k, v)))
			if i == len(nt.MetaData)-1 {
				w.Write([]byte("\n"))
			} else {
				w.Write([]byte(",\n"))
			}
			i++
		}
		depth--
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("},\n"))
	}
	w.Write(indent.TabBytes(depth))
	nl := len(nt.Layers)
	if nl == 0 {
		w.Write([]byte("\"Layers\": null\n"))
	} else {
		w.Write([]byte("\"Layers\": [\n"))
		depth++
		for li, ly := range nt.Layers {
			ly.WriteWtsJSON(w, depth)
			if li == nl-1 {
				w.Write([]byte("\n"))
			} else {
				w.Write([]byte(",\n"))
			}
		}
		depth--
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("]\n"))
	}
	depth--
	w.Write(indent.TabBytes(depth))
	_, err := w.Write([]byte("}\n"))
	return err
}

// WriteWtsJSON writes the weights of all receiving projections of the layer
func (ly *Layer) WriteWtsJSON(w io.Writer, depth int) {
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Layer\": %q,\n", ly.Nm)))
	w.Write(indent.TabBytes(depth))
	np := len(ly.RecvPrjns) + len(ly.LSPrjns)
	if np == 0 {
		w.Write([]byte("\"Prjns\": null\n"))
	} else {
		w.Write([]byte("\"Prjns\": [\n"))
		depth++
		pi := 0
		for _, pj := range ly.RecvPrjns {
			pj.WriteWtsJSON(w, depth)
			pi++
			writeSep(w, pi, np)
		}
		for _, lp := range ly.LSPrjns {
			lp.WriteWtsJSON(w, depth)
			pi++
			writeSep(w, pi, np)
		}
		depth--
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("]\n"))
	}
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}"))
}

func writeSep(w io.Writer, i, n int) {
	if i == n {
		w.Write([]byte("\n"))
	} else {
		w.Write([]byte(",\n"))
	}
}

// writeRecv writes one receiving neuron's sender indexes and weights
func writeRecv(w io.Writer, depth, ri int, sis []int, wts []float64) {
	nc := len(sis)
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Ri\": %v,\n", ri)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"N\": %v,\n", nc)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Si\": [ "))
	for ci, si := range sis {
		w.Write([]byte(fmt.Sprintf("%v", si)))
		if ci == nc-1 {
			w.Write([]byte(" "))
		} else {
			w.Write([]byte(", "))
		}
	}
	w.Write([]byte("],\n"))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Wt\": [ "))
	for ci, wt := range wts {
		w.Write([]byte(strconv.FormatFloat(wt, 'g', -1, 64)))
		if ci == nc-1 {
			w.Write([]byte(" "))
		} else {
			w.Write([]byte(", "))
		}
	}
	w.Write([]byte("]\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}"))
}

// WriteWtsJSON writes the weights of the projection, per receiving neuron
func (pj *Prjn) WriteWtsJSON(w io.Writer, depth int) {
	nr := len(pj.Recv.Neurons)
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"From\": %q,\n", pj.Send.Nm)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"MetaData\": {\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Delay\": \"%d\"\n", pj.Delay)))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("},\n"))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Rs\": [\n"))
	depth++
	var sis []int
	var wts []float64
	for ri := 0; ri < nr; ri++ {
		nc := int(pj.RConN[ri])
		st := int(pj.RConIdxSt[ri])
		sis = sis[:0]
		wts = wts[:0]
		for ci := 0; ci < nc; ci++ {
			sis = append(sis, int(pj.RConIdx[st+ci]))
			wts = append(wts, pj.Syns[pj.RSynIdx[st+ci]].Wt)
		}
		writeRecv(w, depth, ri, sis, wts)
		writeSep(w, ri+1, nr)
	}
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("]\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}"))
}

// WriteWtsJSON writes the feedback weights of the channel, per receiving
// recurrent neuron
func (lp *LSPrjn) WriteWtsJSON(w io.Writer, depth int) {
	nr := len(lp.Recv.Neurons)
	sis := make([][]int, nr)
	wts := make([][]float64, nr)
	for si := range lp.SConN {
		nc := int(lp.SConN[si])
		st := int(lp.SConIdxSt[si])
		for ci := st; ci < st+nc; ci++ {
			ri := lp.SConIdx[ci]
			sis[ri] = append(sis[ri], si)
			wts[ri] = append(wts[ri], lp.Wts[ci])
		}
	}
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"From\": %q,\n", lp.Send.Nm)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"MetaData\": {\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Type\": \"LS\"\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("},\n"))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Rs\": [\n"))
	depth++
	for ri := 0; ri < nr; ri++ {
		writeRecv(w, depth, ri, sis[ri], wts[ri])
		writeSep(w, ri+1, nr)
	}
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("]\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}"))
}

// ReadWtsJSON reads network weights from the receiver-side perspective
// in a JSON text format.  Reads entire file into a temporary weights.Weights
// structure that is then passed to Layers etc using SetWts method.
func (nt *Network) ReadWtsJSON(r io.Reader) error {
	nw, err := weights.NetReadJSON(r)
	if err != nil {
		return err // note: already logged
	}
	err = nt.SetWts(nw)
	if err != nil {
		log.Println(err)
	}
	return err
}

// SetWts sets the weights for this network from weights.Network decoded values
func (nt *Network) SetWts(nw *weights.Network) error {
	var err error
	if nw.Network != "" {
		nt.Nm = nw.Network
	}
	if nw.MetaData != nil {
		if nt.MetaData == nil {
			nt.MetaData = nw.MetaData
		} else {
			for mk, mv := range nw.MetaData {
				nt.MetaData[mk] = mv
			}
		}
	}
	for li := range nw.Layers {
		lw := &nw.Layers[li]
		ly, er := nt.LayerByNameTry(lw.Layer)
		if er != nil {
			err = er
			continue
		}
		if er := ly.SetWts(lw); er != nil {
			err = er
		}
	}
	return err
}

// SetWts sets the weights of the layer's projections from decoded values
func (ly *Layer) SetWts(lw *weights.Layer) error {
	var err error
	for pi := range lw.Prjns {
		pw := &lw.Prjns[pi]
		if pw.MetaData != nil && pw.MetaData["Type"] == "LS" {
			lp := ly.LSPrjnFrom(pw.From)
			if lp == nil {
				err = fmt.Errorf("Layer %v: no learning-signal channel from %v", ly.Nm, pw.From)
				continue
			}
			if er := lp.SetWts(pw); er != nil {
				err = er
			}
			continue
		}
		pj, er := ly.RecvPrjnFrom(pw.From)
		if er != nil {
			err = er
			continue
		}
		if er := pj.SetWts(pw); er != nil {
			err = er
		}
	}
	return err
}

// LSPrjnFrom returns the learning-signal channel from given readout layer name, or nil
func (ly *Layer) LSPrjnFrom(send string) *LSPrjn {
	for _, lp := range ly.LSPrjns {
		if lp.Send.Nm == send {
			return lp
		}
	}
	return nil
}

// SetWts sets the synaptic weights from decoded values
func (pj *Prjn) SetWts(pw *weights.Prjn) error {
	if pw.MetaData != nil {
		if ds, ok := pw.MetaData["Delay"]; ok {
			if d, err := strconv.Atoi(ds); err == nil && d != pj.Delay {
				return fmt.Errorf("Prjn %v: saved delay %d does not match %d", pj.Name(), d, pj.Delay)
			}
		}
	}
	var err error
	for i := range pw.Rs {
		pr := &pw.Rs[i]
		for si := range pr.Si {
			sy := pj.Syn(pr.Si[si], pr.Ri)
			if sy == nil {
				err = fmt.Errorf("Prjn %v: no synapse from %d to %d", pj.Name(), pr.Si[si], pr.Ri)
				continue
			}
			sy.Wt = float64(pr.Wt[si])
		}
	}
	return err
}

// SetWts sets the feedback weights from decoded values
func (lp *LSPrjn) SetWts(pw *weights.Prjn) error {
	var err error
	for i := range pw.Rs {
		pr := &pw.Rs[i]
		for si := range pr.Si {
			ci := lp.conIdx(pr.Si[si], pr.Ri)
			if ci < 0 {
				err = fmt.Errorf("LSPrjn %v: no connection from %d to %d", lp.Name(), pr.Si[si], pr.Ri)
				continue
			}
			lp.Wts[ci] = float64(pr.Wt[si])
		}
	}
	return err
}

// conIdx returns the connection index from readout si to neuron ri, -1 if none
func (lp *LSPrjn) conIdx(si, ri int) int {
	if si < 0 || si >= len(lp.SConN) {
		return -1
	}
	nc := int(lp.SConN[si])
	st := int(lp.SConIdxSt[si])
	for ci := st; ci < st+nc; ci++ {
		if int(lp.SConIdx[ci]) == ri {
			return ci
		}
	}
	return -1
}
