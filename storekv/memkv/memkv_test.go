// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastersync/perspectivedb/storekv"
)

func TestGetAndWriteBatch(t *testing.T) {
	s := New()
	var batch storekv.Batch
	batch = batch.Put([]byte("a"), []byte("1")).Put([]byte("b"), []byte("2"))
	require.NoError(t, s.WriteBatch(batch))

	v, ok, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	_, ok, err = s.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanAscendingAndDescending(t *testing.T) {
	s := New()
	var batch storekv.Batch
	for _, k := range []string{"a", "b", "c", "d"} {
		batch = batch.Put([]byte(k), []byte(k))
	}
	require.NoError(t, s.WriteBatch(batch))

	it := s.Scan([]byte("b"), []byte("d"), false)
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"b", "c"}, keys)

	it = s.Scan([]byte("a"), []byte("d"), true)
	keys = nil
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"c", "b", "a"}, keys)
}

func TestDeleteRemovesKey(t *testing.T) {
	s := New()
	require.NoError(t, s.WriteBatch(storekv.Batch{}.Put([]byte("a"), []byte("1"))))
	require.NoError(t, s.WriteBatch(storekv.Batch{}.Delete([]byte("a"))))
	_, ok, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotIsNotAffectedByLaterWrites(t *testing.T) {
	s := New()
	require.NoError(t, s.WriteBatch(storekv.Batch{}.Put([]byte("a"), []byte("1"))))
	snap := s.NewSnapshot()
	defer snap.Close()

	require.NoError(t, s.WriteBatch(storekv.Batch{}.Put([]byte("a"), []byte("2"))))

	v, ok, err := snap.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	_, _, err := s.Get([]byte("a"))
	assert.Error(t, err)
}
