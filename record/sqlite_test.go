// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build sqlite

package record

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRunAndWeights(t *testing.T) {
	ctx := context.Background()
	st, err := NewStore("sqlite", filepath.Join(t.TempDir(), "eprop.db"))
	require.NoError(t, err)
	require.NoError(t, st.Init(ctx))
	t.Cleanup(func() {
		_ = CloseIfSupported(st)
	})
	testStore(t, st)
}
