// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/header"
	"github.com/mastersync/perspectivedb/keycodec"
	"github.com/mastersync/perspectivedb/perrors"
	"github.com/mastersync/perspectivedb/storekv/memkv"
)

func newTestTree(t *testing.T) *Tree {
	tr, err := Open(memkv.New(), keycodec.PerspectivePrefix('L', ""))
	require.NoError(t, err)
	return tr
}

func rawHeader(id []byte, v string, pa []string) header.Raw {
	return header.Raw{ID: id, V: v, Pa: pa}
}

// TestAppendAndIterate exercises spec.md scenario S3: append A then B,
// iteration yields [A, B] with i=[1,2], and heads('x') == {'B'}.
func TestAppendAndIterate(t *testing.T) {
	tr := newTestTree(t)

	iA, err := tr.Append(rawHeader([]byte("x"), "A", nil), diffmerge.Body{"k": 1}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, iA)

	iB, err := tr.Append(rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{"k": 2}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, iB)

	cur, err := tr.IterateInsertionOrder(IterOptions{})
	require.NoError(t, err)
	defer cur.Close()

	var versions []string
	var seqs []uint64
	for cur.Next() {
		rev, err := cur.Revision()
		require.NoError(t, err)
		versions = append(versions, rev.Header.V)
		seqs = append(seqs, rev.Header.I)
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []string{"A", "B"}, versions)
	assert.Equal(t, []uint64{1, 2}, seqs)

	heads, err := tr.GetHeads([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, heads)
}

// TestIterateReverseIsExactReverse checks universal invariant 3.
func TestIterateReverseIsExactReverse(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.Append(rawHeader([]byte("x"), "A", nil), diffmerge.Body{}, nil)
	require.NoError(t, err)
	_, err = tr.Append(rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{}, nil)
	require.NoError(t, err)
	_, err = tr.Append(rawHeader([]byte("x"), "C", []string{"B"}), diffmerge.Body{}, nil)
	require.NoError(t, err)

	fwd, err := tr.IterateInsertionOrder(IterOptions{})
	require.NoError(t, err)
	defer fwd.Close()
	var fwdVersions []string
	for fwd.Next() {
		rev, err := fwd.Revision()
		require.NoError(t, err)
		fwdVersions = append(fwdVersions, rev.Header.V)
	}

	rev, err := tr.IterateInsertionOrder(IterOptions{Reverse: true})
	require.NoError(t, err)
	defer rev.Close()
	var revVersions []string
	for rev.Next() {
		r, err := rev.Revision()
		require.NoError(t, err)
		revVersions = append(revVersions, r.Header.V)
	}

	require.Len(t, fwdVersions, 3)
	require.Len(t, revVersions, 3)
	for i := range fwdVersions {
		assert.Equal(t, fwdVersions[i], revVersions[len(revVersions)-1-i])
	}
}

func TestAppendDuplicateVersionFails(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.Append(rawHeader([]byte("x"), "A", nil), diffmerge.Body{}, nil)
	require.NoError(t, err)

	_, err = tr.Append(rawHeader([]byte("x"), "A", nil), diffmerge.Body{}, nil)
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.Duplicate))
}

func TestAppendUnknownParentFails(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.Append(rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{}, nil)
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.UnknownParent))
}

func TestAppendUnknownParentResolvedByFallback(t *testing.T) {
	tr := newTestTree(t)
	fallback := func(v string) bool { return v == "A" }
	_, err := tr.Append(rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{}, fallback)
	require.NoError(t, err)
}

func TestMultiHeadThenHeadsReflectBoth(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.Append(rawHeader([]byte("x"), "A", nil), diffmerge.Body{"k": 1}, nil)
	require.NoError(t, err)
	_, err = tr.Append(rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{"k": 2}, nil)
	require.NoError(t, err)
	_, err = tr.Append(rawHeader([]byte("x"), "C", []string{"A"}), diffmerge.Body{"k": 3}, nil)
	require.NoError(t, err)

	heads, err := tr.GetHeads([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, heads)
}

func TestHasDeletedDescendant(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.Append(rawHeader([]byte("x"), "A", nil), diffmerge.Body{"k": 1}, nil)
	require.NoError(t, err)
	raw := rawHeader([]byte("x"), "B", []string{"A"})
	raw.D = true
	_, err = tr.Append(raw, diffmerge.Body{}, nil)
	require.NoError(t, err)

	deleted, err := tr.HasDeletedDescendant([]byte("x"), "A")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestAllIDsAndGetIDVersions(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.Append(rawHeader([]byte("x"), "A", nil), diffmerge.Body{}, nil)
	require.NoError(t, err)
	_, err = tr.Append(rawHeader([]byte("x"), "B", []string{"A"}), diffmerge.Body{}, nil)
	require.NoError(t, err)
	_, err = tr.Append(rawHeader([]byte("y"), "Z", nil), diffmerge.Body{}, nil)
	require.NoError(t, err)

	ids, err := tr.AllIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	versions, err := tr.GetIDVersions([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, versions)
}
