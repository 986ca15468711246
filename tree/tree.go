// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tree implements component C4 of spec.md: one DAG scoped to one
// perspective, backed by the four key-codec sub-namespaces of
// keycodec.Tag. It is grounded on the teacher's sync/dag.go, which
// tracks the same head/graft invariants one level up (across a whole
// sync session); Tree narrows that down to a single perspective's
// on-disk state, leaving cross-tree concerns (LCA, merge orchestration)
// to the mergetree package.
package tree

import (
	"sort"
	"sync"

	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/header"
	"github.com/mastersync/perspectivedb/keycodec"
	"github.com/mastersync/perspectivedb/perrors"
	"github.com/mastersync/perspectivedb/storekv"
)

// FallbackLookup resolves a version that this tree does not itself
// contain, consulting other trees in a MergeTree's fixed lookup order
// (spec.md section 4.4, invariant 5). A nil FallbackLookup means "no
// other trees to consult".
type FallbackLookup func(v string) bool

// Tree is one perspective's DAG: append, lookup by version, iteration
// by insertion order, and head-set maintenance (spec.md section 4.4).
type Tree struct {
	store  storekv.Store
	prefix []byte // this tree's namespace prefix, e.g. "L", "S", "R"+lp(peer)

	mu    sync.Mutex
	lastI uint64
}

// Open attaches a Tree to the given namespace prefix within store. The
// store may be shared by other Trees under different prefixes (the
// local tree, the stage tree, and any number of remote-perspective
// trees all share one underlying storekv.Store, per spec.md section
// 4.1).
func Open(store storekv.Store, prefix []byte) (*Tree, error) {
	t := &Tree{store: store, prefix: prefix}
	last, err := t.scanLastInsertionSeq()
	if err != nil {
		return nil, err
	}
	t.lastI = last
	return t, nil
}

func (t *Tree) key(tag keycodec.Tag, rest []byte) []byte {
	out := make([]byte, 0, len(t.prefix)+1+len(rest))
	out = append(out, t.prefix...)
	out = append(out, byte(tag))
	out = append(out, rest...)
	return out
}

// scanLastInsertionSeq finds the highest insertion sequence already
// present in the D namespace, by scanning backwards one entry.
func (t *Tree) scanLastInsertionSeq() (uint64, error) {
	start := t.key(keycodec.TagDAG, nil)
	limit := dagLimit(t.prefix)
	it := t.store.Scan(start, limit, true)
	defer it.Close()
	if !it.Next() {
		return 0, it.Err()
	}
	i, err := keycodec.DecodeDAGKey(stripPrefix(it.Key(), t.prefix))
	if err != nil {
		return 0, err
	}
	return i, nil
}

// dagLimit returns the exclusive upper bound of the D namespace range
// for this tree's prefix: the same prefix with the tag byte incremented,
// which works because tags are assigned in strictly increasing byte
// order (D < H < I < V) and no other namespace byte can fall between.
func dagLimit(prefix []byte) []byte {
	limit := append([]byte(nil), prefix...)
	return append(limit, byte(keycodec.TagDAG)+1)
}

func stripPrefix(key, prefix []byte) []byte {
	return key[len(prefix):]
}

// Append validates raw, assigns the next insertion sequence, and writes
// the revision atomically across all four sub-namespaces, updating the
// head set. fallback resolves parent versions not present in this tree
// (spec.md section 4.4, invariant 5); pass nil if there are none.
func (t *Tree) Append(raw header.Raw, body diffmerge.Body, fallback FallbackLookup) (uint64, error) {
	h, msg := header.Normalize(raw)
	if msg != "" {
		return 0, perrors.New(perrors.InvalidHeader, "", "%s", msg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, found, err := t.lookupVersion(h.V); err != nil {
		return 0, err
	} else if found {
		return 0, perrors.New(perrors.Duplicate, h.V, "version already exists in this tree")
	}

	for _, p := range h.Pa {
		if t.hasVersionLocked(p) {
			continue
		}
		if fallback != nil && fallback(p) {
			continue
		}
		return 0, perrors.New(perrors.UnknownParent, p, "parent version not known to this tree or its fallbacks")
	}

	i := t.lastI + 1
	rev := Revision{Header: h, Body: body}
	rev.Header.I = i

	batch, err := t.appendBatch(rev)
	if err != nil {
		return 0, err
	}
	if err := t.store.WriteBatch(batch); err != nil {
		return 0, perrors.Wrap(perrors.IoError, h.V, err)
	}
	t.lastI = i
	return i, nil
}

// appendBatch builds the atomic multi-namespace write for a new
// revision, including head-set maintenance: each parent is removed from
// the id's head set (unless another still-unprocessed head also claims
// it, which cannot happen within one batch since a new node's parents
// are, by invariant 2, already committed), and the new version is added
// to the head set unless a later committed revision already lists it as
// a parent (also impossible for a brand new version).
func (t *Tree) appendBatch(rev Revision) (storekv.Batch, error) {
	encoded, err := encodeRevision(rev)
	if err != nil {
		return nil, err
	}

	var batch storekv.Batch
	batch = batch.Put(t.key(keycodec.TagDAG, keycodec.EncodeDAGKey(rev.Header.I)[1:]), encoded)
	batch = batch.Put(t.key(keycodec.TagVersion, []byte(rev.Header.V)), keycodec.EncodeVersionValue(rev.Header.I))
	batch = batch.Put(t.key(keycodec.TagIDHeads, idHeadsRest(rev.Header.ID, rev.Header.V)), nil)

	for _, p := range rev.Header.Pa {
		batch = batch.Delete(t.key(keycodec.TagHead, idHeadsRest(rev.Header.ID, p)))
	}
	batch = batch.Put(t.key(keycodec.TagHead, idHeadsRest(rev.Header.ID, rev.Header.V)), nil)

	return batch, nil
}

func idHeadsRest(id []byte, v string) []byte {
	full := keycodec.EncodeHeadKey(id, v)
	return full[1:] // strip the tag byte; key() re-adds prefix+tag
}

func (t *Tree) hasVersionLocked(v string) bool {
	_, found, _ := t.lookupVersion(v)
	return found
}

func (t *Tree) lookupVersion(v string) (uint64, bool, error) {
	key := t.key(keycodec.TagVersion, []byte(v))
	value, ok, err := t.store.Get(key)
	if err != nil {
		return 0, false, perrors.Wrap(perrors.IoError, v, err)
	}
	if !ok {
		return 0, false, nil
	}
	i, err := keycodec.DecodeVersionValue(value)
	if err != nil {
		return 0, false, err
	}
	return i, true, nil
}

// GetByVersion looks up a revision by its version identifier.
func (t *Tree) GetByVersion(v string) (Revision, bool, error) {
	i, found, err := t.lookupVersion(v)
	if err != nil || !found {
		return Revision{}, false, err
	}
	return t.getByInsertionSeq(i)
}

func (t *Tree) getByInsertionSeq(i uint64) (Revision, bool, error) {
	key := t.key(keycodec.TagDAG, keycodec.EncodeDAGKey(i)[1:])
	value, ok, err := t.store.Get(key)
	if err != nil {
		return Revision{}, false, perrors.Wrap(perrors.IoError, "", err)
	}
	if !ok {
		return Revision{}, false, nil
	}
	rev, err := decodeRevision(value)
	if err != nil {
		return Revision{}, false, err
	}
	return rev, true, nil
}

// GetHeads returns the current set of head versions for id.
func (t *Tree) GetHeads(id []byte) ([]string, error) {
	prefixRest := keycodec.HeadPrefix(id)[1:]
	start := t.key(keycodec.TagHead, prefixRest)
	limit := append(append([]byte(nil), start...), 0xff)

	it := t.store.Scan(start, limit, false)
	defer it.Close()

	var heads []string
	for it.Next() {
		_, v, err := keycodec.DecodeHeadKey(stripPrefix(it.Key(), t.prefix))
		if err != nil {
			return nil, err
		}
		heads = append(heads, v)
	}
	if err := it.Err(); err != nil {
		return nil, perrors.Wrap(perrors.IoError, string(id), err)
	}
	sort.Strings(heads)
	return heads, nil
}

// AllIDs returns every document id that currently has at least one
// head in this tree, in lexicographic order. Used by the compare
// package to enumerate the population of one tree.
func (t *Tree) AllIDs() ([][]byte, error) {
	start := t.key(keycodec.TagHead, nil)
	limit := append(append([]byte(nil), t.prefix...), byte(keycodec.TagHead)+1)
	it := t.store.Scan(start, limit, false)
	defer it.Close()

	seen := map[string]bool{}
	var ids [][]byte
	for it.Next() {
		id, _, err := keycodec.DecodeHeadKey(stripPrefix(it.Key(), t.prefix))
		if err != nil {
			return nil, err
		}
		if !seen[string(id)] {
			seen[string(id)] = true
			ids = append(ids, id)
		}
	}
	if err := it.Err(); err != nil {
		return nil, perrors.Wrap(perrors.IoError, "", err)
	}
	sort.Slice(ids, func(i, j int) bool { return string(ids[i]) < string(ids[j]) })
	return ids, nil
}

// IterOptions controls IterateInsertionOrder.
type IterOptions struct {
	Reverse bool
	Start   uint64 // lowest insertion sequence included; 0 means the beginning. With Reverse, iteration runs from the newest entry down to Start
	Limit   int    // maximum number of items to return; 0 means unbounded
}

// IterateInsertionOrder returns a snapshot-consistent cursor over the D
// namespace. Items are produced in strictly monotonic insertion order
// (ascending, or descending when opts.Reverse), and the cursor does not
// observe appends made after it was created (spec.md section 4.4 and
// section 5, ordering guarantee 2).
func (t *Tree) IterateInsertionOrder(opts IterOptions) (*Cursor, error) {
	snap := t.store.NewSnapshot()

	start := t.key(keycodec.TagDAG, keycodec.EncodeDAGKey(opts.Start)[1:])
	if opts.Start == 0 {
		start = t.key(keycodec.TagDAG, nil)
	}
	limit := dagLimit(t.prefix)

	it := snap.Scan(start, limit, opts.Reverse)
	return &Cursor{snap: snap, it: it, prefix: t.prefix, limit: opts.Limit}, nil
}

// Cursor is a lazy, snapshot-pinned sequence of revisions in insertion
// order. Stream (package stream) builds pause/resume/filter semantics on
// top of a Cursor.
type Cursor struct {
	snap    storekv.Snapshot
	it      storekv.Iterator
	prefix  []byte
	limit   int
	emitted int
	closed  bool
}

// Next advances the cursor and reports whether a revision is available.
func (c *Cursor) Next() bool {
	if c.closed {
		return false
	}
	if c.limit > 0 && c.emitted >= c.limit {
		return false
	}
	if !c.it.Next() {
		return false
	}
	c.emitted++
	return true
}

// Revision decodes the item at the cursor's current position. Call only
// after Next returns true.
func (c *Cursor) Revision() (Revision, error) {
	return decodeRevision(c.it.Value())
}

// Err returns the first error encountered during iteration, if any.
func (c *Cursor) Err() error {
	if err := c.it.Err(); err != nil {
		return perrors.Wrap(perrors.IoError, "", err)
	}
	return nil
}

// Close releases the cursor's snapshot and iterator. Idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.it.Close()
	return c.snap.Close()
}

// Stats summarizes the head population of a tree (spec.md section 4.4).
type Stats struct {
	HeadsCount    int
	HeadsConflict int
	HeadsDeleted  int
}

// Stats scans the entire H namespace and classifies each head's
// revision. It is intended for operator/CLI use, not hot paths.
func (t *Tree) Stats() (Stats, error) {
	start := t.key(keycodec.TagHead, nil)
	limit := append(append([]byte(nil), t.prefix...), byte(keycodec.TagHead)+1)
	it := t.store.Scan(start, limit, false)
	defer it.Close()

	var s Stats
	for it.Next() {
		_, v, err := keycodec.DecodeHeadKey(stripPrefix(it.Key(), t.prefix))
		if err != nil {
			return Stats{}, err
		}
		rev, found, err := t.GetByVersion(v)
		if err != nil {
			return Stats{}, err
		}
		if !found {
			continue
		}
		s.HeadsCount++
		if rev.Header.C {
			s.HeadsConflict++
		}
		if rev.Header.D {
			s.HeadsDeleted++
		}
	}
	if err := it.Err(); err != nil {
		return Stats{}, perrors.Wrap(perrors.IoError, "", err)
	}
	return s, nil
}

// HasDeletedDescendant reports whether any descendant of (id, version)
// on a path from a current head is a deletion (header.D == true);
// version's own deletion marker is not considered. It walks backward
// along parent links from the current heads of id to version, grounded
// on the teacher's dag.hasDeletedDescendant (sync/dag.go).
func (t *Tree) HasDeletedDescendant(id []byte, version string) (bool, error) {
	heads, err := t.GetHeads(id)
	if err != nil {
		return false, err
	}

	type step struct {
		v       string
		deleted bool
	}
	visited := map[string]bool{}
	queue := make([]step, 0, len(heads))
	for _, h := range heads {
		queue = append(queue, step{v: h})
		visited[h] = true
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.v == version {
			if cur.deleted {
				return true, nil
			}
			continue
		}
		rev, found, err := t.GetByVersion(cur.v)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		nextDeleted := cur.deleted || rev.Header.D
		for _, p := range rev.Header.Pa {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, step{v: p, deleted: nextDeleted})
			}
		}
	}
	return false, nil
}

// AncestorWalk performs a breadth-first traversal of the ancestors of
// start (inclusive), invoking visit once per reachable version. It stops
// early if visit returns false.
func (t *Tree) AncestorWalk(start []string, visit func(v string, rev Revision) bool) error {
	visited := map[string]bool{}
	queue := append([]string(nil), start...)
	for _, v := range queue {
		visited[v] = true
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		rev, found, err := t.GetByVersion(v)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if !visit(v, rev) {
			return nil
		}
		for _, p := range rev.Header.Pa {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return nil
}

// GetIDVersions returns every version ever appended for id, in
// lexicographic order, using the I namespace (the full per-id version
// log; unlike GetHeads, membership here is never retracted).
func (t *Tree) GetIDVersions(id []byte) ([]string, error) {
	prefixRest := keycodec.IDHeadsPrefix(id)[1:]
	start := t.key(keycodec.TagIDHeads, prefixRest)
	limit := append(append([]byte(nil), start...), 0xff)

	it := t.store.Scan(start, limit, false)
	defer it.Close()

	var versions []string
	for it.Next() {
		_, v, err := keycodec.DecodeHeadKey(stripPrefix(it.Key(), t.prefix))
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := it.Err(); err != nil {
		return nil, perrors.Wrap(perrors.IoError, string(id), err)
	}
	sort.Strings(versions)
	return versions, nil
}
