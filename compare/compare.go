// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compare implements component C7: pairwise comparison of two
// trees' document populations, classifying each id as missing, equal,
// inequal, or multiple (spec.md section 4.7). It is grounded on the
// teacher's vsync/syncgroup.go membership-diffing pattern (computing
// set differences between two peers' views of the same namespace),
// narrowed here to per-id head comparison instead of syncgroup
// membership.
package compare

import (
	"sort"

	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/tree"
)

// Classification names the outcome of comparing one id across two trees.
type Classification int

const (
	Missing Classification = iota
	Equal
	Inequal
	Multiple
)

func (c Classification) String() string {
	switch c {
	case Missing:
		return "missing"
	case Equal:
		return "equal"
	case Inequal:
		return "inequal"
	case Multiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// Entry is one row of a comparison result: id, its classification, and
// (for Multiple) the specific T2 head version this entry covers.
type Entry struct {
	ID             []byte
	Classification Classification
	T1Head         string
	T2Head         string // empty when t2 has no head for ID
}

// Filter selects which attributes participate in body comparison.
// IncludeAttrs, if non-empty, restricts comparison to those keys;
// otherwise every key except those in ExcludeAttrs is compared.
type Filter struct {
	IncludeAttrs []string
	ExcludeAttrs []string
}

func (f Filter) apply(body diffmerge.Body) diffmerge.Body {
	if len(f.IncludeAttrs) == 0 && len(f.ExcludeAttrs) == 0 {
		return body
	}
	out := diffmerge.Body{}
	if len(f.IncludeAttrs) > 0 {
		for _, k := range f.IncludeAttrs {
			if v, ok := body[k]; ok {
				out[k] = v
			}
		}
		return out
	}
	exclude := make(map[string]bool, len(f.ExcludeAttrs))
	for _, k := range f.ExcludeAttrs {
		exclude[k] = true
	}
	for k, v := range body {
		if !exclude[k] {
			out[k] = v
		}
	}
	return out
}

// Trees is the minimal view compare needs of a tree: enumerate ids
// (via their current heads) and resolve versions to revisions.
type Trees interface {
	AllIDs() ([][]byte, error)
	GetHeads(id []byte) ([]string, error)
	GetByVersion(v string) (tree.Revision, bool, error)
}

// Run compares t1 against t2, producing one Entry per id present in
// t1's head set (spec.md section 4.7). Ids are visited in
// lexicographic order for deterministic output.
func Run(t1, t2 Trees, filter Filter) ([]Entry, error) {
	ids, err := t1.AllIDs()
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return string(ids[i]) < string(ids[j]) })

	var entries []Entry
	for _, id := range ids {
		heads1, err := t1.GetHeads(id)
		if err != nil {
			return nil, err
		}
		if len(heads1) == 0 {
			continue
		}
		sort.Strings(heads1)
		t1Head := heads1[len(heads1)-1]

		heads2, err := t2.GetHeads(id)
		if err != nil {
			return nil, err
		}

		switch len(heads2) {
		case 0:
			entries = append(entries, Entry{ID: id, Classification: Missing, T1Head: t1Head})
		case 1:
			cls, err := classifyPair(t1, t2, t1Head, heads2[0], filter)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{ID: id, Classification: cls, T1Head: t1Head, T2Head: heads2[0]})
		default:
			sort.Strings(heads2)
			for _, h2 := range heads2 {
				entries = append(entries, Entry{ID: id, Classification: Multiple, T1Head: t1Head, T2Head: h2})
			}
		}
	}
	return entries, nil
}

func classifyPair(t1, t2 Trees, v1, v2 string, filter Filter) (Classification, error) {
	r1, ok1, err := t1.GetByVersion(v1)
	if err != nil {
		return Missing, err
	}
	r2, ok2, err := t2.GetByVersion(v2)
	if err != nil {
		return Missing, err
	}
	if !ok1 || !ok2 {
		return Missing, nil
	}
	b1 := filter.apply(r1.Body)
	b2 := filter.apply(r2.Body)
	if len(diffmerge.Diff(b1, b2)) == 0 {
		return Equal, nil
	}
	return Inequal, nil
}
