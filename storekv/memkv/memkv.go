// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memkv is an in-memory storekv.Store, grounded on the teacher's
// storeState test double (store/test/store.go): a sorted map guarded by
// a mutex, used by this module's own tests. The CLIs do not use it; they
// always open the leveldb backend.
package memkv

import (
	"bytes"
	"sort"
	"sync"

	"github.com/mastersync/perspectivedb/storekv"
)

type entry struct {
	key   []byte
	value []byte
}

// Store is a sorted in-memory implementation of storekv.Store.
type Store struct {
	mu      sync.RWMutex
	entries []entry // kept sorted by key
	closed  bool
}

var _ storekv.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) find(key []byte) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].key, key) >= 0
	})
	if i < len(s.entries) && bytes.Equal(s.entries[i].key, key) {
		return i, true
	}
	return i, false
}

// Get implements storekv.Reader.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, errClosed
	}
	i, ok := s.find(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), s.entries[i].value...), true, nil
}

// Scan implements storekv.Reader.
func (s *Store) Scan(start, limit []byte, reverse bool) storekv.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &sliceIter{err: errClosed}
	}
	lo := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].key, start) >= 0
	})
	hi := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].key, limit) >= 0
	})
	if hi < lo {
		hi = lo
	}
	snapshot := make([]entry, hi-lo)
	copy(snapshot, s.entries[lo:hi])
	if reverse {
		for i, j := 0, len(snapshot)-1; i < j; i, j = i+1, j-1 {
			snapshot[i], snapshot[j] = snapshot[j], snapshot[i]
		}
	}
	return &sliceIter{entries: snapshot, pos: -1}
}

// WriteBatch implements storekv.Store.
func (s *Store) WriteBatch(batch storekv.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, op := range batch {
		switch op.Kind {
		case storekv.OpPut:
			i, ok := s.find(op.Key)
			val := append([]byte(nil), op.Value...)
			if ok {
				s.entries[i].value = val
			} else {
				s.entries = append(s.entries, entry{})
				copy(s.entries[i+1:], s.entries[i:])
				s.entries[i] = entry{key: append([]byte(nil), op.Key...), value: val}
			}
		case storekv.OpDelete:
			if i, ok := s.find(op.Key); ok {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
			}
		}
	}
	return nil
}

// NewSnapshot implements storekv.Store.
func (s *Store) NewSnapshot() storekv.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make([]entry, len(s.entries))
	copy(snap, s.entries)
	return &snapshot{entries: snap}
}

// Close implements storekv.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type snapshot struct {
	entries []entry
}

func (sn *snapshot) Get(key []byte) ([]byte, bool, error) {
	i := sort.Search(len(sn.entries), func(i int) bool {
		return bytes.Compare(sn.entries[i].key, key) >= 0
	})
	if i < len(sn.entries) && bytes.Equal(sn.entries[i].key, key) {
		return append([]byte(nil), sn.entries[i].value...), true, nil
	}
	return nil, false, nil
}

func (sn *snapshot) Scan(start, limit []byte, reverse bool) storekv.Iterator {
	lo := sort.Search(len(sn.entries), func(i int) bool {
		return bytes.Compare(sn.entries[i].key, start) >= 0
	})
	hi := sort.Search(len(sn.entries), func(i int) bool {
		return bytes.Compare(sn.entries[i].key, limit) >= 0
	})
	if hi < lo {
		hi = lo
	}
	out := make([]entry, hi-lo)
	copy(out, sn.entries[lo:hi])
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return &sliceIter{entries: out, pos: -1}
}

func (sn *snapshot) Close() error { return nil }

type sliceIter struct {
	entries []entry
	pos     int
	err     error
}

func (it *sliceIter) Next() bool {
	if it.err != nil {
		return false
	}
	it.pos++
	return it.pos < len(it.entries)
}

func (it *sliceIter) Key() []byte   { return it.entries[it.pos].key }
func (it *sliceIter) Value() []byte { return it.entries[it.pos].value }
func (it *sliceIter) Err() error    { return it.err }
func (it *sliceIter) Close() error  { return nil }

var errClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "memkv: closed store" }
