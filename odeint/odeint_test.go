// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package odeint

import (
	"errors"
	"math"
	"testing"
)

func TestDecay(t *testing.T) {
	rk := RKF45{}
	rk.Defaults()
	rk.Tol = 1e-10
	y := []float64{1}
	decay := func(t float64, y, dydt []float64) { dydt[0] = -y[0] }
	for i := 0; i < 10; i++ {
		if err := rk.Integrate(decay, float64(i)*0.1, float64(i+1)*0.1, y); err != nil {
			t.Fatal(err)
		}
	}
	if dif := math.Abs(y[0] - math.Exp(-1)); dif > 1e-8 {
		t.Errorf("y(1): %v, cor: %v, dif: %v\n", y[0], math.Exp(-1), dif)
	}
	if rk.H <= 0 {
		t.Errorf("step size not carried over: %v\n", rk.H)
	}
}

func TestOscillator(t *testing.T) {
	rk := RKF45{}
	rk.Defaults()
	rk.Tol = 1e-9
	y := []float64{1, 0}
	osc := func(t float64, y, dydt []float64) {
		dydt[0] = y[1]
		dydt[1] = -y[0]
	}
	if err := rk.Integrate(osc, 0, math.Pi, y); err != nil {
		t.Fatal(err)
	}
	if math.Abs(y[0]+1) > 1e-6 || math.Abs(y[1]) > 1e-6 {
		t.Errorf("half period: %v\n", y)
	}
}

func TestStepFailed(t *testing.T) {
	rk := RKF45{}
	rk.Defaults()
	y := []float64{1}
	bad := func(t float64, y, dydt []float64) { dydt[0] = math.NaN() }
	err := rk.Integrate(bad, 0, 1, y)
	if !errors.Is(err, ErrStepFailed) {
		t.Errorf("expected step failure, got: %v\n", err)
	}
	if y[0] != 1 {
		t.Errorf("state must be unchanged on failure: %v\n", y[0])
	}
}
