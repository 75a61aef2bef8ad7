// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package odeint provides an embedded Runge-Kutta-Fehlberg 4(5) integrator
with adaptive step size control, for neuron models whose dynamics are
stiff around spike times (e.g., the exponential term of the AdEx model).

The integrator carries its last accepted step size across calls, so a
neuron can keep one RKF45 and call Integrate once per simulation step.
*/
package odeint

import (
	"errors"
	"fmt"
	"math"
)

// ErrStepFailed is returned when the step size needed to meet the error
// tolerance falls below the minimum step.
var ErrStepFailed = errors.New("odeint: step size underflow")

// Func computes the derivatives dydt of state y at time t
type Func func(t float64, y, dydt []float64)

// Fehlberg coefficients
var (
	rkC = [6]float64{0, 1.0 / 4, 3.0 / 8, 12.0 / 13, 1, 1.0 / 2}
	rkA = [6][5]float64{
		{},
		{1.0 / 4},
		{3.0 / 32, 9.0 / 32},
		{1932.0 / 2197, -7200.0 / 2197, 7296.0 / 2197},
		{439.0 / 216, -8, 3680.0 / 513, -845.0 / 4104},
		{-8.0 / 27, 2, -3544.0 / 2565, 1859.0 / 4104, -11.0 / 40},
	}
	// fifth order weights
	rkB = [6]float64{16.0 / 135, 0, 6656.0 / 12825, 28561.0 / 56430, -9.0 / 50, 2.0 / 55}
	// fifth minus fourth order weights
	rkE = [6]float64{1.0 / 360, 0, -128.0 / 4275, -2197.0 / 75240, 1.0 / 50, 2.0 / 55}
)

// RKF45 is an adaptive Runge-Kutta-Fehlberg 4(5) integrator
type RKF45 struct {
	Tol  float64 `def:"1e-3" min:"0" desc:"absolute and relative error tolerance per step"`
	HMin float64 `def:"1e-8" min:"0" desc:"smallest allowed step size, in units of t"`
	H    float64 `desc:"step size to try first on the next call -- updated after each accepted step"`

	k    [6][]float64
	ytmp []float64
	yerr []float64
}

func (rk *RKF45) Defaults() {
	rk.Tol = 1e-3
	rk.HMin = 1e-8
	rk.H = 0
}

func (rk *RKF45) alloc(n int) {
	if len(rk.ytmp) == n {
		return
	}
	for i := range rk.k {
		rk.k[i] = make([]float64, n)
	}
	rk.ytmp = make([]float64, n)
	rk.yerr = make([]float64, n)
}

// Integrate advances y in place from t0 to t1.  The step size starts at
// H, or t1 - t0 if H is not set, and is adapted to meet Tol.
func (rk *RKF45) Integrate(f Func, t0, t1 float64, y []float64) error {
	n := len(y)
	rk.alloc(n)
	span := t1 - t0
	if span <= 0 {
		return nil
	}
	h := rk.H
	if h <= 0 || h > span {
		h = span
	}
	t := t0
	for t < t1 {
		if t+h > t1 {
			h = t1 - t
		}
		ratio := rk.step(f, t, h, y)
		if ratio <= 1 {
			t += h
			copy(y, rk.ytmp)
			fac := 5.0
			if ratio > 0 {
				fac = math.Min(5, math.Max(0.2, 0.9*math.Pow(ratio, -0.2)))
			}
			if t < t1 {
				rk.H = h
			}
			h *= fac
			continue
		}
		fac := 0.1
		if !math.IsNaN(ratio) && !math.IsInf(ratio, 0) {
			fac = math.Max(0.1, 0.9*math.Pow(ratio, -0.25))
		}
		h *= fac
		if h < rk.HMin {
			return fmt.Errorf("%w: h=%g at t=%g", ErrStepFailed, h, t)
		}
	}
	if h > rk.H {
		rk.H = math.Min(h, span)
	}
	return nil
}

// step computes one trial step of size h from (t, y) into ytmp, returning
// the ratio of the error estimate to the tolerance (NaN if not finite).
func (rk *RKF45) step(f Func, t, h float64, y []float64) float64 {
	n := len(y)
	f(t, y, rk.k[0])
	for s := 1; s < 6; s++ {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < s; j++ {
				sum += rkA[s][j] * rk.k[j][i]
			}
			rk.ytmp[i] = y[i] + h*sum
		}
		f(t+rkC[s]*h, rk.ytmp, rk.k[s])
	}
	ratio := 0.0
	for i := 0; i < n; i++ {
		yn := y[i]
		er := 0.0
		for s := 0; s < 6; s++ {
			yn += h * rkB[s] * rk.k[s][i]
			er += h * rkE[s] * rk.k[s][i]
		}
		rk.ytmp[i] = yn
		rk.yerr[i] = er
		if math.IsNaN(yn) || math.IsInf(yn, 0) {
			return math.NaN()
		}
		sc := rk.Tol * (1 + math.Abs(y[i]))
		if r := math.Abs(er) / sc; r > ratio {
			ratio = r
		}
	}
	return ratio
}
