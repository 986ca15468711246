// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leveldb implements storekv.Store on top of
// github.com/syndtr/goleveldb, the pure-Go ordered KV engine declared by
// the dolthub-dolt noms-derived store module (go/store/go.mod). The
// teacher (store/leveldb in the Vanadium syncbase tree) wraps the same
// engine's C bindings via cgo; this module swaps the cgo binding for the
// pack's pure-Go equivalent but keeps the teacher's wrapper shape: a db
// type guarding a handle, snapshot and batch types delegating to it.
package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/mastersync/perspectivedb/perrors"
	"github.com/mastersync/perspectivedb/storekv"
)

// db is a wrapper around goleveldb that implements storekv.Store.
type db struct {
	ldb *leveldb.DB
}

var _ storekv.Store = (*db)(nil)

// Open opens the database located at path, creating it if it doesn't
// exist.
func Open(path string) (storekv.Store, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		// Mirrors the teacher's leveldb_options_set_paranoid_checks(1).
		Strict: opt.StrictAll,
	})
	if err != nil {
		return nil, perrors.Wrap(perrors.IoError, path, err)
	}
	return &db{ldb: ldb}, nil
}

func (d *db) Get(key []byte) ([]byte, bool, error) {
	value, err := d.ldb.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perrors.Wrap(perrors.IoError, string(key), err)
	}
	return value, true, nil
}

func (d *db) Scan(start, limit []byte, reverse bool) storekv.Iterator {
	it := d.ldb.NewIterator(&util.Range{Start: start, Limit: limit}, nil)
	return &iter{it: it, reverse: reverse, started: false}
}

func (d *db) WriteBatch(ops storekv.Batch) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Kind {
		case storekv.OpPut:
			batch.Put(op.Key, op.Value)
		case storekv.OpDelete:
			batch.Delete(op.Key)
		}
	}
	if err := d.ldb.Write(batch, nil); err != nil {
		return perrors.Wrap(perrors.IoError, "", err)
	}
	return nil
}

func (d *db) NewSnapshot() storekv.Snapshot {
	snap, err := d.ldb.GetSnapshot()
	if err != nil {
		return &errSnapshot{err: perrors.Wrap(perrors.IoError, "", err)}
	}
	return &snapshot{snap: snap}
}

func (d *db) Close() error {
	if err := d.ldb.Close(); err != nil {
		return perrors.Wrap(perrors.IoError, "", err)
	}
	return nil
}

type snapshot struct {
	snap *leveldb.Snapshot
}

func (s *snapshot) Get(key []byte) ([]byte, bool, error) {
	value, err := s.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perrors.Wrap(perrors.IoError, string(key), err)
	}
	return value, true, nil
}

func (s *snapshot) Scan(start, limit []byte, reverse bool) storekv.Iterator {
	it := s.snap.NewIterator(&util.Range{Start: start, Limit: limit}, nil)
	return &iter{it: it, reverse: reverse, started: false}
}

func (s *snapshot) Close() error {
	s.snap.Release()
	return nil
}

type errSnapshot struct{ err error }

func (e *errSnapshot) Get([]byte) ([]byte, bool, error)         { return nil, false, e.err }
func (e *errSnapshot) Scan([]byte, []byte, bool) storekv.Iterator { return &iter{err: e.err} }
func (e *errSnapshot) Close() error                             { return nil }

// iter adapts goleveldb's iterator.Iterator to
// storekv.Iterator, including reverse traversal (goleveldb iterates
// ascending natively; descending walks from Last() via Prev()).
type iter struct {
	it      iterator.Iterator
	reverse bool
	started bool
	err     error
}

func (i *iter) Next() bool {
	if i.err != nil || i.it == nil {
		return false
	}
	if !i.started {
		i.started = true
		if i.reverse {
			return i.it.Last()
		}
		return i.it.First()
	}
	if i.reverse {
		return i.it.Prev()
	}
	return i.it.Next()
}

func (i *iter) Key() []byte   { return i.it.Key() }
func (i *iter) Value() []byte { return i.it.Value() }

func (i *iter) Err() error {
	if i.err != nil {
		return i.err
	}
	if i.it == nil {
		return nil
	}
	return i.it.Error()
}

func (i *iter) Close() error {
	if i.it != nil {
		i.it.Release()
	}
	return nil
}
