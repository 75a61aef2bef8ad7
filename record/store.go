// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoRun is returned when weights are appended for an unknown run
var ErrNoRun = errors.New("record: no such run")

// Run is the metadata of one simulation run
type Run struct {
	ID      string
	Name    string
	Started time.Time
	Params  map[string]string
}

// NewRun returns a run with a fresh uuid, started now
func NewRun(name string, params map[string]string) Run {
	return Run{
		ID:      uuid.NewString(),
		Name:    name,
		Started: time.Now().UTC(),
		Params:  params,
	}
}

// WtSample is the weight of one synapse at one step
type WtSample struct {
	Step int
	Prjn string
	Si   int
	Ri   int
	Wt   float64
}

// Store persists run metadata and weight trajectories
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	AppendWeights(ctx context.Context, runID string, ws []WtSample) error
	GetWeights(ctx context.Context, runID string) ([]WtSample, bool, error)
}
