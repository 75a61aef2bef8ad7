// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package eprop implements online e-prop learning in recurrent networks of
leaky integrate-and-fire neurons (Bellec et al., 2020).

Time advances in steps of Time.Dt ms.  The simulation is divided into
update intervals of Time.UpdtInterval ms: neurons reset their state on the
first step of each interval, and each plastic synapse turns the interval's
eligibility traces and learning signals into one gradient.

Within a step, Network.Cycle:

	* updates all neurons, each appending one entry (pseudo-derivative h)
	  to its history,
	* lets readout neurons share exp(y) for softmax normalization and
	  compute the learning signal L of the previous step,
	* broadcasts L through LSPrjn feedback weights into the histories of
	  the recurrent neurons,
	* delivers the spikes of this step through the Prjn synapses.

Synapses are event driven.  The first spike a synapse sees after an
interval boundary replays the history of the post-synaptic neuron since
its last update, computes the gradient, and applies an optimizer step once
BatchSize gradients have been collected.  The history of each neuron is
compacted to the oldest position still registered by one of its synapses.

A spike that would arrive on the reset step of an interval is dropped.
*/
package eprop
