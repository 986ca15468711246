// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package selector implements the small filter language streams accept
// (spec.md section 4.6): dotted field paths, scalar equality, and
// `{$in: [...]}` set membership, with deep matching restricted to
// nested maps. It has no teacher analogue in the example corpus (the
// teacher's syncbase query layer is full SQL-like query compilation,
// out of proportion to this language's scope); it is written in the
// plain recursive-descent style the teacher uses for its own small
// parsers (e.g. server/util's key-splitting helpers).
package selector

import (
	"reflect"

	"github.com/mastersync/perspectivedb/perrors"
)

// Selector is a compiled filter: a set of field-path -> constraint
// pairs, implicitly ANDed together.
type Selector map[string]interface{}

// inOperator is the sole supported operator key.
const inOperator = "$in"

// Compile validates raw as a Selector, rejecting malformed `$in`
// constraints up front rather than failing lazily during a scan.
func Compile(raw map[string]interface{}) (Selector, error) {
	for path, want := range raw {
		if m, ok := want.(map[string]interface{}); ok {
			if set, ok := m[inOperator]; ok {
				if _, ok := set.([]interface{}); !ok {
					return nil, perrors.New(perrors.SelectorError, path, "$in requires a list")
				}
			}
		}
	}
	return Selector(raw), nil
}

// Match reports whether doc satisfies every constraint in sel. A field
// path absent from doc is treated as a non-match for that constraint
// (and therefore for the whole selector), per spec.md section 4.6.
func Match(doc map[string]interface{}, sel Selector) bool {
	for path, want := range sel {
		val, ok := lookupPath(doc, path)
		if !ok || !matches(val, want) {
			return false
		}
	}
	return true
}

func lookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = doc
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		seg := path[start:i]
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
		start = i + 1
	}
	return cur, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func matches(val, want interface{}) bool {
	if m, ok := want.(map[string]interface{}); ok {
		if set, ok := m[inOperator]; ok {
			return inSetMatch(val, set)
		}
		sub, ok := asMap(val)
		if !ok {
			return false
		}
		return Match(sub, Selector(m))
	}
	return scalarEqual(val, want)
}

func inSetMatch(val interface{}, set interface{}) bool {
	arr, ok := set.([]interface{})
	if !ok {
		return false
	}
	for _, candidate := range arr {
		if scalarEqual(val, candidate) {
			return true
		}
	}
	return false
}

// scalarEqual compares two leaf values, treating the numeric scalar
// types interchangeably (a JSON/CBOR-decoded 1 and a literal int64(1)
// must compare equal) and falling back to structural equality
// otherwise.
func scalarEqual(a, b interface{}) bool {
	if an, ok := asFloat(a); ok {
		if bn, ok := asFloat(b); ok {
			return an == bn
		}
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}
