// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keycodec encodes and decodes the composite binary keys used by
// the tree package's sub-namespaces (spec.md section 4.1): the insertion
// order DAG log, the per-id version index (every version ever appended
// for an id), the version lookup index, and the head set.
//
// Ordering within each namespace is produced by concatenating
// length-prefixed variable fields with fixed-width big-endian numeric
// fields, so that lexicographic byte order on the underlying store
// matches the desired semantic order: ascending insertion sequence for
// the DAG namespace, and for the index namespaces ordering by the
// length-prefixed id (shorter ids first, equal-length ids bytewise) and
// then bytewise by version. Id order is therefore not lexicographic.
package keycodec

import (
	"encoding/binary"

	"github.com/mastersync/perspectivedb/perrors"
)

// Tag is the one-byte namespace discriminator that begins every key.
type Tag byte

const (
	TagDAG     Tag = 'D' // D ‖ u64-be(i)                 -> encoded revision
	TagIDHeads Tag = 'I' // I ‖ lp(id) ‖ v                 -> full per-id version log (never retracted)
	TagVersion Tag = 'V' // V ‖ v                          -> u64-be(i) back-pointer
	TagHead    Tag = 'H' // H ‖ lp(id) ‖ v                 -> current head-set membership (retracted on supersession)
)

// EncodeDAGKey returns the D-namespace key for insertion sequence i.
func EncodeDAGKey(i uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(TagDAG)
	binary.BigEndian.PutUint64(buf[1:], i)
	return buf
}

// DecodeDAGKey extracts the insertion sequence from a D-namespace key.
func DecodeDAGKey(key []byte) (uint64, error) {
	if err := expectTag(key, TagDAG); err != nil {
		return 0, err
	}
	if len(key) != 9 {
		return 0, perrors.New(perrors.IoError, "", "malformed DAG key: %x", key)
	}
	return binary.BigEndian.Uint64(key[1:]), nil
}

// EncodeIDHeadsKey returns the I-namespace key for (id, v).
func EncodeIDHeadsKey(id []byte, v string) []byte {
	return appendTagged(TagIDHeads, id, []byte(v))
}

// EncodeHeadKey returns the H-namespace key for (id, v).
func EncodeHeadKey(id []byte, v string) []byte {
	return appendTagged(TagHead, id, []byte(v))
}

// HeadPrefix returns the H-namespace range-scan prefix for all heads of id.
func HeadPrefix(id []byte) []byte {
	buf := []byte{byte(TagHead)}
	buf = appendLenPrefixed(buf, id)
	return buf
}

// IDHeadsPrefix returns the I-namespace range-scan prefix for id.
func IDHeadsPrefix(id []byte) []byte {
	buf := []byte{byte(TagIDHeads)}
	buf = appendLenPrefixed(buf, id)
	return buf
}

// DecodeHeadKey splits an H-namespace (or I-namespace) key back into its
// id and version parts.
func DecodeHeadKey(key []byte) (id []byte, v string, err error) {
	if len(key) == 0 {
		return nil, "", perrors.New(perrors.IoError, "", "empty key")
	}
	rest := key[1:]
	id, rest, err = readLenPrefixed(rest)
	if err != nil {
		return nil, "", err
	}
	return id, string(rest), nil
}

// EncodeVersionKey returns the V-namespace key for version v.
func EncodeVersionKey(v string) []byte {
	buf := []byte{byte(TagVersion)}
	return append(buf, []byte(v)...)
}

// DecodeVersionValue decodes the u64-be insertion-sequence back-pointer
// stored as the value of a V-namespace entry.
func DecodeVersionValue(value []byte) (uint64, error) {
	if len(value) != 8 {
		return 0, perrors.New(perrors.IoError, "", "malformed version back-pointer: %x", value)
	}
	return binary.BigEndian.Uint64(value), nil
}

// EncodeVersionValue encodes the u64-be insertion-sequence back-pointer.
func EncodeVersionValue(i uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, i)
	return buf
}

// appendTagged builds tag ‖ lp(id) ‖ v.
func appendTagged(tag Tag, id, v []byte) []byte {
	buf := []byte{byte(tag)}
	buf = appendLenPrefixed(buf, id)
	buf = append(buf, v...)
	return buf
}

// appendLenPrefixed appends a single-unsigned-varint length prefix
// followed by data.
func appendLenPrefixed(buf, data []byte) []byte {
	var lenbuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenbuf[:], uint64(len(data)))
	buf = append(buf, lenbuf[:n]...)
	buf = append(buf, data...)
	return buf
}

// readLenPrefixed reads a single-unsigned-varint length prefix followed by
// that many bytes, returning the remainder.
func readLenPrefixed(buf []byte) (data, rest []byte, err error) {
	length, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, nil, perrors.New(perrors.IoError, "", "malformed length prefix")
	}
	buf = buf[n:]
	if uint64(len(buf)) < length {
		return nil, nil, perrors.New(perrors.IoError, "", "truncated length-prefixed field")
	}
	return buf[:length], buf[length:], nil
}

// expectTag refuses mixed-namespace reads (spec.md section 4.1).
func expectTag(key []byte, want Tag) error {
	if len(key) == 0 || Tag(key[0]) != want {
		return perrors.New(perrors.IoError, "", "key %x does not belong to namespace %q", key, byte(want))
	}
	return nil
}

// PerspectivePrefix returns the per-tree namespace prefix: a single byte
// for the local and stage trees, or `R` ‖ lp(peerName) for a remote
// perspective tree. The tree package nests all four tag namespaces for a
// tree under this prefix.
func PerspectivePrefix(kind byte, peerName string) []byte {
	if kind != 'R' {
		return []byte{kind}
	}
	buf := []byte{kind}
	return appendLenPrefixed(buf, []byte(peerName))
}
