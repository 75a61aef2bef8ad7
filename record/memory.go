// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps everything in maps, for tests and short runs
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
	wts  map[string][]WtSample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]Run)
	s.wts = make(map[string][]WtSample)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) AppendWeights(_ context.Context, runID string, ws []WtSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	s.wts[runID] = append(s.wts[runID], ws...)
	return nil
}

func (s *MemoryStore) GetWeights(_ context.Context, runID string) ([]WtSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.wts[runID]
	if !ok {
		return nil, false, nil
	}
	out := make([]WtSample, len(ws))
	copy(out, ws)
	return out, true, nil
}
