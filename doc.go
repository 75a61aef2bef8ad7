// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package eprop is the overall repository for the online e-prop (eligibility
propagation) learning code for recurrent spiking networks, implemented in
the Go language (golang).

This top-level of the repository has no functional code -- everything is organized
into the following sub-repositories:

* hist: the dense per-step history each post-synaptic neuron keeps for its
incoming plastic synapses, the registry of synapse read positions, and the
compaction that keeps memory bounded.

* eprop: the adaptive and non-adaptive recurrent LIF neurons, the readout
neurons that compute the learning signal (regression or softmax classification),
the learning-signal channel, the eligibility synapse, and a minimal Network
host that runs them step by step.

* optim: the SGD and Adam optimizers used by the eligibility synapse.

* surrogate: the pseudo-derivative of the spike function.

* clopath: the voltage-based Clopath STDP synapse and the AdEx neuron with
adaptive threshold that writes the history it reads.

* odeint: adaptive Runge-Kutta-Fehlberg integration used by the AdEx neuron.

* spikegen: Poisson, fixed spike train and step current input generators.

* record: multimeter and weight recorder tables, and run stores.

* examples: these actually compile into runnable programs and provide the starting
point for your own simulations.  examples/regress is the place to start for a
recurrent network that learns to reproduce a target signal.
*/
package eprop
