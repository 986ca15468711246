// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diffmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffEmpty(t *testing.T) {
	got := Diff(Body{"foo": "bar"}, Body{"foo": "bar"})
	assert.Empty(t, got)
}

func TestDiffMixed(t *testing.T) {
	a := Body{
		"foo":   "bar",
		"bar":   "baz",
		"baz":   "qux",
		"fubar": Body{"a": "b", "c": "d"},
	}
	b := Body{
		"bar":   "baz",
		"baz":   "quux",
		"qux":   "raboof",
		"fubar": Body{"a": "b", "c": "e"},
	}
	got := Diff(a, b)
	want := map[string]Tag{
		"foo":   Added,
		"baz":   Changed,
		"qux":   Removed,
		"fubar": Changed,
	}
	assert.Equal(t, want, got)
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	a := Body{"k": "v1", "only_a": 1}
	b := Body{"k": "v2", "only_b": 2}
	aCopy, bCopy := a.Clone(), b.Clone()
	_ = Diff(a, b)
	assert.Equal(t, aCopy, a)
	assert.Equal(t, bCopy, b)
}

func TestDiffRoundTrip(t *testing.T) {
	// Applying diff(a,b) on top of b recovers a, for the non-conflict case.
	a := Body{"k": "new", "removed_from_b": "x"}
	b := Body{"k": "old", "only_in_b": "y"}
	d := Diff(a, b)

	result := b.Clone()
	for k, tag := range d {
		switch tag {
		case Added, Changed:
			result[k] = a[k]
		case Removed:
			delete(result, k)
		}
	}
	require.True(t, bodiesEqual(result, a))
}
