// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diffmerge

import "sort"

// Merge performs a three-way merge of left and right against base
// (spec.md section 4.3). It returns the merged body and the sorted list
// of attribute names in conflict. Conflicting attributes are left
// unresolved at base's value in the returned body (neither side is
// preferred), which is what makes the result commutative: merge(a, b,
// base) and merge(b, a, base) always produce equal bodies. Use
// ApplyLeftBias to materialize the operator-inspection revision
// described in spec.md section 4.3 step 4, which does pick a side.
func Merge(left, right, base Body) (merged Body, conflicts []string) {
	dl := Diff(left, base)
	dr := Diff(right, base)

	merged = base.Clone()
	if merged == nil {
		merged = Body{}
	}

	conflictSet := map[string]struct{}{}
	for k := range unionKeys(dl, dr) {
		lt, lok := dl[k]
		rt, rok := dr[k]

		if lok && rok && isConflicting(lt, rt, left[k], right[k]) {
			conflictSet[k] = struct{}{}
			continue
		}

		// Non-conflicting: apply whichever side actually changed it.
		// Both sides may have made the identical change (lt == rt and
		// values equal), which is not a conflict either.
		if lok {
			applyChange(merged, k, lt, left)
		} else if rok {
			applyChange(merged, k, rt, right)
		}
	}

	if len(conflictSet) == 0 {
		return merged, nil
	}
	for k := range conflictSet {
		conflicts = append(conflicts, k)
	}
	sort.Strings(conflicts)
	return merged, conflicts
}

// ApplyLeftBias overlays left's value for each conflicting attribute
// onto merged, producing the body spec.md section 4.3 step 4 describes
// for a c=true conflict revision held for operator inspection. It does
// not mutate merged's caller-visible copy in place; it returns a new
// Body.
func ApplyLeftBias(merged, left Body, conflicts []string) Body {
	out := merged.Clone()
	for _, k := range conflicts {
		if v, ok := left[k]; ok {
			out[k] = v
		} else {
			delete(out, k)
		}
	}
	return out
}

// isConflicting implements spec.md section 4.3 step 3 and the delete-vs-
// modify open question resolution from section 9(a): delete-vs-modify is
// a conflict, delete-vs-delete (both '-') is not, and the key is then
// removed from the merged body like any other agreed change.
func isConflicting(lt, rt Tag, lv, rv interface{}) bool {
	switch {
	case lt == Changed && rt == Changed:
		return !valuesEqual(lv, rv)
	case lt == Changed && rt == Removed, lt == Removed && rt == Changed:
		return true
	case lt == Added && rt == Added:
		return !valuesEqual(lv, rv)
	case lt == Removed && rt == Removed:
		return false
	default:
		return false
	}
}

func applyChange(merged Body, key string, tag Tag, side Body) {
	switch tag {
	case Added, Changed:
		merged[key] = side[key]
	case Removed:
		delete(merged, key)
	}
}

func unionKeys(a, b map[string]Tag) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}
