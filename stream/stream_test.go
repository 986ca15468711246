// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/header"
	"github.com/mastersync/perspectivedb/keycodec"
	"github.com/mastersync/perspectivedb/stream/selector"
	"github.com/mastersync/perspectivedb/storekv/memkv"
	"github.com/mastersync/perspectivedb/tree"
)

func buildTree(t *testing.T, items []struct {
	v  string
	pa []string
	bd diffmerge.Body
}) *tree.Tree {
	tr, err := tree.Open(memkv.New(), keycodec.PerspectivePrefix('L', ""))
	require.NoError(t, err)
	for _, it := range items {
		_, err := tr.Append(header.Raw{ID: []byte("x"), V: it.v, Pa: it.pa}, it.bd, nil)
		require.NoError(t, err)
	}
	return tr
}

func TestStreamAdvanceYieldsInsertionOrder(t *testing.T) {
	tr := buildTree(t, []struct {
		v  string
		pa []string
		bd diffmerge.Body
	}{
		{v: "A", bd: diffmerge.Body{"foo": "qux"}},
		{v: "B", pa: []string{"A"}, bd: diffmerge.Body{"foo": "quux"}},
	})

	cur, err := tr.IterateInsertionOrder(tree.IterOptions{})
	require.NoError(t, err)
	s := FromCursor(cur)
	defer s.Cancel()

	var versions []string
	for s.Advance() {
		versions = append(versions, s.Revision().Header.V)
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"A", "B"}, versions)
}

// TestSelectorMatch exercises spec.md scenario S5.
func TestSelectorMatch(t *testing.T) {
	tr := buildTree(t, []struct {
		v  string
		pa []string
		bd diffmerge.Body
	}{
		{v: "C", bd: diffmerge.Body{"foo": "qux"}},
		{v: "D", pa: []string{"C"}, bd: diffmerge.Body{"foo": "quux"}},
	})

	sel, err := selector.Compile(map[string]interface{}{
		"_id._v": map[string]interface{}{"$in": []interface{}{"B", "D"}},
	})
	require.NoError(t, err)

	cur, err := tr.IterateInsertionOrder(tree.IterOptions{})
	require.NoError(t, err)
	s := FromCursor(cur).Select(sel)
	defer s.Cancel()

	var versions []string
	for s.Advance() {
		versions = append(versions, s.Revision().Header.V)
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"D"}, versions)
}

func TestPauseBlocksAdvanceUntilResume(t *testing.T) {
	tr := buildTree(t, []struct {
		v  string
		pa []string
		bd diffmerge.Body
	}{
		{v: "A"}, {v: "B", pa: []string{"A"}},
	})
	cur, err := tr.IterateInsertionOrder(tree.IterOptions{})
	require.NoError(t, err)
	s := FromCursor(cur)
	defer s.Cancel()

	require.True(t, s.Advance())
	assert.Equal(t, "A", s.Revision().Header.V)

	s.Pause()
	var advanced bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		advanced = s.Advance()
	}()

	time.Sleep(20 * time.Millisecond)
	s.Resume()
	wg.Wait()

	assert.True(t, advanced)
	assert.Equal(t, "B", s.Revision().Header.V)
}

func TestCancelStopsAdvance(t *testing.T) {
	tr := buildTree(t, []struct {
		v  string
		pa []string
		bd diffmerge.Body
	}{
		{v: "A"},
	})
	cur, err := tr.IterateInsertionOrder(tree.IterOptions{})
	require.NoError(t, err)
	s := FromCursor(cur)
	s.Cancel()
	assert.False(t, s.Advance())
}

// TestConcatDescending exercises spec.md scenario S6's ordering: two
// sources concatenated in order.
func TestConcatDescending(t *testing.T) {
	tr1 := buildTree(t, []struct {
		v  string
		pa []string
		bd diffmerge.Body
	}{
		{v: "A"}, {v: "B", pa: []string{"A"}},
	})
	tr2, err := tree.Open(memkv.New(), keycodec.PerspectivePrefix('L', ""))
	require.NoError(t, err)
	_, err = tr2.Append(header.Raw{ID: []byte("y"), V: "C"}, diffmerge.Body{}, nil)
	require.NoError(t, err)
	_, err = tr2.Append(header.Raw{ID: []byte("y"), V: "D", Pa: []string{"C"}}, diffmerge.Body{}, nil)
	require.NoError(t, err)

	cur1, err := tr1.IterateInsertionOrder(tree.IterOptions{Reverse: true})
	require.NoError(t, err)
	cur2, err := tr2.IterateInsertionOrder(tree.IterOptions{Reverse: true})
	require.NoError(t, err)

	concat := NewConcat(FromCursor(cur1), FromCursor(cur2))
	defer concat.Cancel()

	var versions []string
	for concat.Advance() {
		versions = append(versions, concat.Revision().Header.V)
	}
	require.NoError(t, concat.Err())
	assert.Equal(t, []string{"B", "A", "D", "C"}, versions)
}
