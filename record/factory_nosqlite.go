// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !sqlite

package record

import "fmt"

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("record: sqlite backend unavailable in this build; rebuild with -tags sqlite")
}
