// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storekv states the contract required of the ordered
// key-value store that backs a MergeTree (spec.md section 1: "only its
// contract is required"). Concrete backends live in storekv/memkv (an
// in-memory backend used by tests) and storekv/leveldb
// (a github.com/syndtr/goleveldb-backed production backend).
package storekv

// Store is an ordered byte-keyed key-value store with point get, range
// scan in ascending or descending order, atomic batch write, and
// snapshot-consistent iterators.
type Store interface {
	Reader

	// WriteBatch atomically applies the given writes. Implementations
	// must apply all of them or none of them.
	WriteBatch(Batch) error

	// NewSnapshot returns a reader pinned to the current committed
	// state; later writes are not observed through it.
	NewSnapshot() Snapshot

	// Close releases the store's resources.
	Close() error
}

// Reader is the read-only subset of Store, also satisfied by Snapshot.
type Reader interface {
	// Get returns the value for key, or (nil, false, nil) if absent.
	Get(key []byte) (value []byte, ok bool, err error)

	// Scan returns an iterator over [start, limit) in ascending key
	// order, or (limit, start] in descending key order when reverse is
	// true (note the bounds are still the same two byte strings; only
	// the direction of traversal changes).
	Scan(start, limit []byte, reverse bool) Iterator
}

// Snapshot is a Reader pinned to a point-in-time view of the store.
type Snapshot interface {
	Reader
	Close() error
}

// Iterator walks a key range. Callers must call Next before the first
// Key/Value access and must call Close when done.
type Iterator interface {
	// Next advances the iterator and reports whether an item is
	// available.
	Next() bool

	Key() []byte
	Value() []byte

	// Err returns the first error encountered, if any.
	Err() error

	Close() error
}

// OpKind distinguishes a put from a delete within a Batch.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is a single write within a Batch.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte // unused for OpDelete
}

// Batch is an ordered list of writes to apply atomically.
type Batch []Op

// Put appends a put operation and returns the batch for chaining.
func (b Batch) Put(key, value []byte) Batch {
	return append(b, Op{Kind: OpPut, Key: key, Value: value})
}

// Delete appends a delete operation and returns the batch for chaining.
func (b Batch) Delete(key []byte) Batch {
	return append(b, Op{Kind: OpDelete, Key: key})
}
