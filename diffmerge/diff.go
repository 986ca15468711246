// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diffmerge

// Tag classifies how an attribute changed between two bodies.
type Tag byte

const (
	Added    Tag = '+' // present in a, absent in b
	Changed  Tag = '~' // present in both but values differ
	Removed  Tag = '-' // absent in a, present in b
)

// Diff returns a mapping from attribute name to Tag describing how a
// differs from b (spec.md section 4.3). Neither input is mutated.
func Diff(a, b Body) map[string]Tag {
	out := make(map[string]Tag)
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			out[k] = Added
			continue
		}
		if !valuesEqual(av, bv) {
			out[k] = Changed
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			out[k] = Removed
		}
	}
	return out
}
