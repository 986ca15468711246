// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree

import (
	"encoding/binary"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/header"
	"github.com/mastersync/perspectivedb/perrors"
)

// versionTag is the wire format version prefixing every encoded
// revision (spec.md section 6).
const versionTag = 1

var canonicalMode cbor.EncMode

// decodeMode decodes bodies back into diffmerge.Body's value set:
// integers as int64 and nested maps as map[string]interface{}.
var decodeMode cbor.DecMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	opts.TimeTag = cbor.EncTagRequired
	mode, err := opts.EncMode()
	if err != nil {
		panic(err) // options are a compile-time constant; cannot fail
	}
	canonicalMode = mode

	dec, err := cbor.DecOptions{
		IntDec:         cbor.IntDecConvertSigned,
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(err) // options are a compile-time constant; cannot fail
	}
	decodeMode = dec
}

type wireHeader struct {
	ID []byte   `cbor:"id"`
	V  string   `cbor:"v"`
	Pa []string `cbor:"pa"`
	Pe string   `cbor:"pe"`
	I  uint64   `cbor:"i"`
	D  bool     `cbor:"d"`
	C  bool     `cbor:"c"`
}

// encodeRevision produces the on-disk value for the D namespace: u8
// version_tag ‖ varint-prefixed canonical header ‖ varint-prefixed
// canonical body. CBOR's canonical encoding mode sorts map keys and uses
// the shortest-form integer encoding, giving the deterministic,
// round-trip-stable bytes spec.md section 6 requires.
func encodeRevision(rev Revision) ([]byte, error) {
	wh := wireHeader{
		ID: rev.Header.ID,
		V:  rev.Header.V,
		Pa: rev.Header.Pa,
		Pe: rev.Header.Pe,
		I:  rev.Header.I,
		D:  rev.Header.D,
		C:  rev.Header.C,
	}
	hdrBytes, err := canonicalMode.Marshal(wh)
	if err != nil {
		return nil, perrors.Wrap(perrors.IoError, rev.Header.V, err)
	}
	bodyBytes, err := canonicalMode.Marshal(rev.Body)
	if err != nil {
		return nil, perrors.Wrap(perrors.IoError, rev.Header.V, err)
	}

	var lenbuf [binary.MaxVarintLen64]byte
	out := []byte{versionTag}
	n := binary.PutUvarint(lenbuf[:], uint64(len(hdrBytes)))
	out = append(out, lenbuf[:n]...)
	out = append(out, hdrBytes...)
	n = binary.PutUvarint(lenbuf[:], uint64(len(bodyBytes)))
	out = append(out, lenbuf[:n]...)
	out = append(out, bodyBytes...)
	return out, nil
}

func decodeRevision(data []byte) (Revision, error) {
	if len(data) == 0 || data[0] != versionTag {
		return Revision{}, perrors.New(perrors.IoError, "", "unsupported revision wire version")
	}
	rest := data[1:]

	hdrLen, n := binary.Uvarint(rest)
	if n <= 0 {
		return Revision{}, perrors.New(perrors.IoError, "", "malformed revision: header length")
	}
	rest = rest[n:]
	if uint64(len(rest)) < hdrLen {
		return Revision{}, perrors.New(perrors.IoError, "", "truncated revision: header")
	}
	hdrBytes, rest := rest[:hdrLen], rest[hdrLen:]

	bodyLen, n := binary.Uvarint(rest)
	if n <= 0 {
		return Revision{}, perrors.New(perrors.IoError, "", "malformed revision: body length")
	}
	rest = rest[n:]
	if uint64(len(rest)) < bodyLen {
		return Revision{}, perrors.New(perrors.IoError, "", "truncated revision: body")
	}
	bodyBytes := rest[:bodyLen]

	var wh wireHeader
	if err := decodeMode.Unmarshal(hdrBytes, &wh); err != nil {
		return Revision{}, perrors.Wrap(perrors.IoError, "", err)
	}
	var body diffmerge.Body
	if err := decodeMode.Unmarshal(bodyBytes, &body); err != nil {
		return Revision{}, perrors.Wrap(perrors.IoError, "", err)
	}

	return Revision{
		Header: header.Header{
			ID: wh.ID,
			V:  wh.V,
			Pa: wh.Pa,
			Pe: wh.Pe,
			I:  wh.I,
			D:  wh.D,
			C:  wh.C,
		},
		Body: body,
	}, nil
}
