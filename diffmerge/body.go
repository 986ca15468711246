// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diffmerge implements attribute-level diff and three-way merge
// over revision bodies (spec.md section 4.3, component C3).
package diffmerge

import "time"

// Body is an opaque attribute map compared structurally. Values are one
// of: nil, bool, int64, float64, string, []byte, time.Time, []interface{},
// or Body (recursive map), matching the closed scalar set in spec.md
// section 9.
type Body map[string]interface{}

// Clone returns a deep copy of b so callers can mutate the result without
// affecting the original (diff/merge never mutate their inputs).
func (b Body) Clone() Body {
	return cloneValue(b).(Body)
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case Body:
		out := make(Body, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(Body, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// valuesEqual implements the structural deep-equality convention from
// spec.md section 4.3: two time instants compare equal iff their
// underlying instant is equal, regardless of wrapper identity.
func valuesEqual(a, b interface{}) bool {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		return at.Equal(bt)
	}

	switch av := a.(type) {
	case Body:
		bv, ok := asBody(b)
		if !ok {
			return false
		}
		return bodiesEqual(av, bv)
	case map[string]interface{}:
		bv, ok := asBody(b)
		if !ok {
			return false
		}
		return bodiesEqual(Body(av), bv)
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case []byte:
		bv, ok := b.([]byte)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func asBody(v interface{}) (Body, bool) {
	switch x := v.(type) {
	case Body:
		return x, true
	case map[string]interface{}:
		return Body(x), true
	default:
		return nil, false
	}
}

func bodiesEqual(a, b Body) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}
