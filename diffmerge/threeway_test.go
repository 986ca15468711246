// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diffmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNoConflict(t *testing.T) {
	base := Body{"k": 1, "untouched": "x"}
	left := Body{"k": 2, "untouched": "x"}
	right := Body{"k": 1, "untouched": "x", "added": "y"}

	merged, conflicts := Merge(left, right, base)
	assert.Empty(t, conflicts)
	assert.Equal(t, Body{"k": 2, "untouched": "x", "added": "y"}, merged)
}

func TestMergeConflictModifyModify(t *testing.T) {
	base := Body{"k": 1}
	left := Body{"k": 2}
	right := Body{"k": 3}

	merged, conflicts := Merge(left, right, base)
	require.Equal(t, []string{"k"}, conflicts)
	assert.Equal(t, 1, merged["k"]) // unresolved: base's value until the caller decides

	inspection := ApplyLeftBias(merged, left, conflicts)
	assert.Equal(t, 2, inspection["k"])
}

func TestMergeConflictDeleteVsModify(t *testing.T) {
	base := Body{"k": 1}
	left := Body{} // deleted k
	right := Body{"k": 2}

	_, conflicts := Merge(left, right, base)
	assert.Equal(t, []string{"k"}, conflicts)
}

func TestMergeDeleteVsDeleteIsNotConflict(t *testing.T) {
	base := Body{"k": 1}
	left := Body{}
	right := Body{}

	merged, conflicts := Merge(left, right, base)
	assert.Empty(t, conflicts)
	_, present := merged["k"]
	assert.False(t, present)
}

func TestMergeIsCommutativeUpToConflictSide(t *testing.T) {
	base := Body{"k": 1, "other": "x"}
	left := Body{"k": 2, "other": "y"}
	right := Body{"k": 1, "other": "z"}

	m1, c1 := Merge(left, right, base)
	m2, c2 := Merge(right, left, base)
	assert.Equal(t, c1, c2)
	assert.Equal(t, m1, m2)
}

func TestMergeIdempotent(t *testing.T) {
	a := Body{"k": 1, "nested": Body{"x": 1}}
	merged, conflicts := Merge(a, a, a)
	assert.Empty(t, conflicts)
	assert.True(t, bodiesEqual(merged, a))
}
