// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mergetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/header"
	"github.com/mastersync/perspectivedb/storekv/memkv"
)

func newTestMergeTree(t *testing.T) *MergeTree {
	mt, err := Open(memkv.New())
	require.NoError(t, err)
	return mt
}

func rawHeader(id []byte, v string, pa []string) header.Raw {
	return header.Raw{ID: id, V: v, Pa: pa}
}

// TestMultiHeadThenMerge exercises spec.md scenario S4: A, then B[A] and
// C[A] both modifying k; lca(B,C) == {A}; merge surfaces the conflict.
func TestMultiHeadThenMerge(t *testing.T) {
	mt := newTestMergeTree(t)

	_, err := mt.Write(Local, rawHeader([]byte("x"), "A", nil), diffmerge.Body{"k": 1}, WriteOptions{})
	require.NoError(t, err)
	_, err = mt.Write(Local, rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{"k": 2}, WriteOptions{})
	require.NoError(t, err)
	_, err = mt.Write(Local, rawHeader([]byte("x"), "C", []string{"A"}), diffmerge.Body{"k": 3}, WriteOptions{})
	require.NoError(t, err)

	heads, err := mt.Local().GetHeads([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, heads)

	lca, err := mt.LCA("B", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, lca)

	result, err := mt.Merge("B", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, result.Conflicts)
	assert.Equal(t, []string{"A"}, result.BaseVersions)
}

func TestMergeWithNoCommonAncestorUsesVirtualBase(t *testing.T) {
	mt := newTestMergeTree(t)
	_, err := mt.Write(Local, rawHeader([]byte("x"), "A", nil), diffmerge.Body{"k": 1}, WriteOptions{})
	require.NoError(t, err)
	_, err = mt.Write(Local, rawHeader([]byte("y"), "Z", nil), diffmerge.Body{"q": 9}, WriteOptions{})
	require.NoError(t, err)

	result, err := mt.Merge("A", "Z")
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, int64(1), result.Merged["k"])
	assert.Equal(t, int64(9), result.Merged["q"])
	assert.Empty(t, result.BaseVersions)
}

func TestWriteUnknownParentAcrossTreesFails(t *testing.T) {
	mt := newTestMergeTree(t)
	_, err := mt.Write(Local, rawHeader([]byte("x"), "B", []string{"missing"}), diffmerge.Body{}, WriteOptions{})
	require.Error(t, err)
}

func TestWriteParentKnownViaStageFallback(t *testing.T) {
	mt := newTestMergeTree(t)
	_, err := mt.Write(Stage, rawHeader([]byte("x"), "A", nil), diffmerge.Body{"k": 1}, WriteOptions{})
	require.NoError(t, err)

	_, err = mt.Write(Local, rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{"k": 2}, WriteOptions{})
	require.NoError(t, err)

	rev, found, err := mt.GetByVersion("B")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "B", rev.Header.V)
}

func TestWriteAutoMergeReducesMultipleHeadsToOne(t *testing.T) {
	mt := newTestMergeTree(t)

	_, err := mt.Write(Local, rawHeader([]byte("x"), "A", nil), diffmerge.Body{"k": 1}, WriteOptions{})
	require.NoError(t, err)
	_, err = mt.Write(Local, rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{"k": 1, "m": 1}, WriteOptions{})
	require.NoError(t, err)
	_, err = mt.Write(Local, rawHeader([]byte("x"), "C", []string{"A"}), diffmerge.Body{"k": 1, "n": 1}, WriteOptions{AutoMerge: true})
	require.NoError(t, err)

	heads, err := mt.Local().GetHeads([]byte("x"))
	require.NoError(t, err)
	require.Len(t, heads, 1)

	merged, found, err := mt.GetByVersion(heads[0])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"B", "C"}, merged.Header.Pa)
	assert.Equal(t, int64(1), merged.Body["m"])
	assert.Equal(t, int64(1), merged.Body["n"])
}

func TestPerspectiveStats(t *testing.T) {
	mt := newTestMergeTree(t)
	_, err := mt.Write(Local, rawHeader([]byte("x"), "A", nil), diffmerge.Body{}, WriteOptions{})
	require.NoError(t, err)

	stats, err := mt.PerspectiveStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats[string(Local)].HeadsCount)
	assert.Equal(t, 0, stats[string(Stage)].HeadsCount)
}
