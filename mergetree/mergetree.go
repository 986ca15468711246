// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mergetree implements component C5: the owner of a local tree,
// a stage tree, and zero or more remote-perspective trees sharing one
// storekv.Store, plus the cross-tree operations that only make sense
// once more than one tree exists — lowest common ancestor, three-way
// merge, and version resolution that falls through the trees in a fixed
// order. It is grounded on the teacher's sync/dag.go, whose
// getLogRecMetadata/updatedNodes family walks exactly this kind of
// multi-head DAG, generalized here to operate across a small fixed set
// of trees instead of one tree's full sync-session view.
package mergetree

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/header"
	"github.com/mastersync/perspectivedb/keycodec"
	"github.com/mastersync/perspectivedb/perrors"
	"github.com/mastersync/perspectivedb/storekv"
	"github.com/mastersync/perspectivedb/tree"
)

// Perspective names the tree a caller wants to operate against.
type Perspective string

const (
	// Local is the single local perspective tree.
	Local Perspective = ""
	// Stage is the staging tree used to park unmerged remote work.
	Stage Perspective = "stage"
)

// MergeTree owns one local tree, one stage tree, and any number of
// named remote-perspective trees, all multiplexed over a single
// storekv.Store via keycodec.PerspectivePrefix (spec.md section 4.1).
type MergeTree struct {
	store   storekv.Store
	local   *tree.Tree
	stage   *tree.Tree
	remotes map[string]*tree.Tree
}

// Open attaches a MergeTree to store, opening the local and stage trees
// immediately. Remote trees are opened lazily via Remote.
func Open(store storekv.Store) (*MergeTree, error) {
	local, err := tree.Open(store, keycodec.PerspectivePrefix('L', ""))
	if err != nil {
		return nil, err
	}
	stage, err := tree.Open(store, keycodec.PerspectivePrefix('S', ""))
	if err != nil {
		return nil, err
	}
	return &MergeTree{store: store, local: local, stage: stage, remotes: map[string]*tree.Tree{}}, nil
}

// Local returns the local tree.
func (m *MergeTree) Local() *tree.Tree { return m.local }

// Stage returns the stage tree.
func (m *MergeTree) Stage() *tree.Tree { return m.stage }

// Remote returns (opening if necessary) the tree for peer's perspective.
func (m *MergeTree) Remote(peer string) (*tree.Tree, error) {
	if t, ok := m.remotes[peer]; ok {
		return t, nil
	}
	t, err := tree.Open(m.store, keycodec.PerspectivePrefix('R', peer))
	if err != nil {
		return nil, err
	}
	m.remotes[peer] = t
	return t, nil
}

// lookupOrder is the fixed fallthrough order for GetByVersion and for
// Append's parent-resolution fallback: local, then stage, then remotes
// in lexicographic peer-name order (spec.md section 4.4, invariant 5
// requires a fixed, deterministic order, not which peers happen to be
// open).
func (m *MergeTree) lookupOrder() []*tree.Tree {
	order := []*tree.Tree{m.local, m.stage}
	names := make([]string, 0, len(m.remotes))
	for name := range m.remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		order = append(order, m.remotes[name])
	}
	return order
}

// GetByVersion resolves v against the local tree first, then stage,
// then each open remote tree in name order, returning the first hit.
func (m *MergeTree) GetByVersion(v string) (tree.Revision, bool, error) {
	for _, t := range m.lookupOrder() {
		rev, found, err := t.GetByVersion(v)
		if err != nil {
			return tree.Revision{}, false, err
		}
		if found {
			return rev, true, nil
		}
	}
	return tree.Revision{}, false, nil
}

// fallbackExcept builds a tree.FallbackLookup that consults every tree
// in lookup order except the one being appended to.
func (m *MergeTree) fallbackExcept(target *tree.Tree) tree.FallbackLookup {
	return func(v string) bool {
		for _, t := range m.lookupOrder() {
			if t == target {
				continue
			}
			if _, found, _ := t.GetByVersion(v); found {
				return true
			}
		}
		return false
	}
}

// WriteOptions controls Write's behavior once its append has succeeded.
type WriteOptions struct {
	// AutoMerge, when true and p is Local, makes Write detect whether
	// the written id now has more than one head in the local tree and,
	// if so, attempt to automatically merge them down to a single head
	// (spec.md section 4.5's write contract). Off by default: most
	// callers want to see and resolve the multi-head situation
	// themselves rather than have Write fold it away.
	AutoMerge bool
}

// Write validates and appends a revision to the named perspective's
// tree, resolving unknown-parent checks against all other open trees
// (spec.md section 4.4, invariant 5). When p is Local and
// opts.AutoMerge is set, Write additionally detects a resulting
// multi-head situation for the written id and attempts to auto-merge
// it; an auto-merge failure is returned as this call's error rather
// than being silently swallowed.
func (m *MergeTree) Write(p Perspective, raw header.Raw, body diffmerge.Body, opts WriteOptions) (uint64, error) {
	target, err := m.treeFor(p)
	if err != nil {
		return 0, err
	}
	seq, err := target.Append(raw, body, m.fallbackExcept(target))
	if err != nil {
		return 0, err
	}
	if p != Local || !opts.AutoMerge {
		return seq, nil
	}
	id, ok := coerceID(raw.ID)
	if !ok {
		return seq, nil
	}
	if err := m.autoMergeHeads(id); err != nil {
		return seq, perrors.Wrap(perrors.Conflict, string(id), err)
	}
	return seq, nil
}

// autoMergeHeads repeatedly merges pairs of the local tree's heads for
// id, persisting each merge as a new local revision, until at most one
// head remains. Each merge step's own version is minted with uuid.
func (m *MergeTree) autoMergeHeads(id []byte) error {
	for {
		heads, err := m.local.GetHeads(id)
		if err != nil {
			return err
		}
		if len(heads) < 2 {
			return nil
		}
		sort.Strings(heads)
		v1, v2 := heads[0], heads[1]

		result, err := m.Merge(v1, v2)
		if err != nil {
			return err
		}
		raw, body, err := m.MergedRevision(v1, v2, uuid.NewString(), result)
		if err != nil {
			return err
		}
		if _, err := m.Write(Local, raw, body, WriteOptions{}); err != nil {
			return err
		}
	}
}

func coerceID(v interface{}) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	default:
		return nil, false
	}
}

func (m *MergeTree) treeFor(p Perspective) (*tree.Tree, error) {
	switch p {
	case Local:
		return m.local, nil
	case Stage:
		return m.stage, nil
	default:
		return m.Remote(string(p))
	}
}

// LCA computes the lowest common ancestor set of v1 and v2 within the
// trees currently open on m (local, stage, and any opened remotes),
// resolving each version via GetByVersion's fallthrough order. It
// collects the full ancestor sets of v1 and v2 (each inclusive of the
// version itself, following the reverse-edge walk in the teacher's
// dag.go), intersects them, and keeps only the members of the
// intersection that are not themselves an ancestor of another member
// (spec.md section 4.5).
func (m *MergeTree) LCA(v1, v2 string) ([]string, error) {
	anc1, err := m.ancestorSet(v1)
	if err != nil {
		return nil, err
	}
	anc2, err := m.ancestorSet(v2)
	if err != nil {
		return nil, err
	}

	var common []string
	for v := range anc1 {
		if anc2[v] {
			common = append(common, v)
		}
	}
	return lowestOf(m, common)
}

// ancestorSet returns the set of versions reachable from start by
// following parent edges, including start itself.
func (m *MergeTree) ancestorSet(start string) (map[string]bool, error) {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		rev, found, err := m.GetByVersion(v)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		for _, p := range rev.Header.Pa {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return visited, nil
}

// lowestOf discards any candidate that is a (non-strict) ancestor of
// another candidate, leaving only the lowest common ancestors.
func lowestOf(m *MergeTree, candidates []string) ([]string, error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}

	var lowest []string
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i == j {
				continue
			}
			anc, err := m.isAncestorOf(c, other)
			if err != nil {
				return nil, err
			}
			if anc {
				dominated = true
				break
			}
		}
		if !dominated {
			lowest = append(lowest, c)
		}
	}
	sort.Strings(lowest)
	return lowest, nil
}

// isAncestorOf reports whether anc is a strict ancestor of v.
func (m *MergeTree) isAncestorOf(anc, v string) (bool, error) {
	if anc == v {
		return false, nil
	}
	rev, found, err := m.GetByVersion(v)
	if err != nil || !found {
		return false, err
	}
	found = false
	seen := map[string]bool{}
	queue := append([]string(nil), rev.Header.Pa...)
	for _, p := range queue {
		seen[p] = true
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == anc {
			return true, nil
		}
		prev, ok, err := m.GetByVersion(p)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		for _, pp := range prev.Header.Pa {
			if !seen[pp] {
				seen[pp] = true
				queue = append(queue, pp)
			}
		}
	}
	return false, nil
}

// MergeResult is the outcome of merging two versions.
type MergeResult struct {
	Merged       diffmerge.Body
	Conflicts    []string
	BaseVersions []string // the LCA set used as the merge base (empty if no common ancestor)
}

// Merge computes the three-way merge of v1 and v2. When the LCA set has
// exactly one member, that revision's body is the base. When it has
// more than one (a "criss-cross" merge), the bases are themselves
// recursively merged pairwise into a single synthetic base body before
// the final three-way diff, per spec.md section 4.5; any conflicts
// surfaced while synthesizing the virtual base propagate into the
// result's conflict set (Open Question resolved: conflict tags
// propagate rather than silently resolving).
func (m *MergeTree) Merge(v1, v2 string) (MergeResult, error) {
	r1, found1, err := m.GetByVersion(v1)
	if err != nil {
		return MergeResult{}, err
	}
	r2, found2, err := m.GetByVersion(v2)
	if err != nil {
		return MergeResult{}, err
	}
	if !found1 {
		return MergeResult{}, perrors.New(perrors.NotFound, v1, "version not found in any open tree")
	}
	if !found2 {
		return MergeResult{}, perrors.New(perrors.NotFound, v2, "version not found in any open tree")
	}

	lcas, err := m.LCA(v1, v2)
	if err != nil {
		return MergeResult{}, err
	}

	base, baseConflicts, err := m.synthesizeBase(lcas)
	if err != nil {
		return MergeResult{}, err
	}

	merged, conflicts := diffmerge.Merge(r1.Body, r2.Body, base)
	all := append(append([]string(nil), baseConflicts...), conflicts...)
	sort.Strings(all)
	all = dedupeSorted(all)

	return MergeResult{Merged: merged, Conflicts: all, BaseVersions: lcas}, nil
}

// MergedRevision assembles the header and body for persisting the
// merge of v1 and v2 as newVersion, per spec.md section 4.3 steps 4-5:
// pa holds v1 and v2 in lexicographic order (invariant 6 requires this
// for determinism, regardless of which argument order the caller used),
// d is the conjunction of both inputs' deletion markers, id is taken
// from the shared document id, c reflects whether the merge left any
// attribute in conflict, and the returned body carries the first
// argument's (v1's) values for conflicting attributes, matching the
// operator-inspection revision spec.md section 4.3 step 4 describes for
// a c=true merge.
func (m *MergeTree) MergedRevision(v1, v2, newVersion string, result MergeResult) (header.Raw, diffmerge.Body, error) {
	r1, found1, err := m.GetByVersion(v1)
	if err != nil {
		return header.Raw{}, nil, err
	}
	if !found1 {
		return header.Raw{}, nil, perrors.New(perrors.NotFound, v1, "version not found in any open tree")
	}
	r2, found2, err := m.GetByVersion(v2)
	if err != nil {
		return header.Raw{}, nil, err
	}
	if !found2 {
		return header.Raw{}, nil, perrors.New(perrors.NotFound, v2, "version not found in any open tree")
	}

	pa := []string{v1, v2}
	sort.Strings(pa)

	raw := header.Raw{
		ID: r1.Header.ID,
		V:  newVersion,
		Pa: pa,
		D:  r1.Header.D && r2.Header.D,
		C:  len(result.Conflicts) > 0,
	}
	body := diffmerge.ApplyLeftBias(result.Merged, r1.Body, result.Conflicts)
	return raw, body, nil
}

// synthesizeBase reduces an LCA set to a single body. Zero LCAs (no
// common ancestor) produces an empty base, per spec.md section 4.5's
// "no-common-ancestor" case. One LCA is used directly. More than one is
// reduced by repeated pairwise three-way merge against an empty base,
// since the bases themselves have no single ancestor to diff against.
func (m *MergeTree) synthesizeBase(lcas []string) (diffmerge.Body, []string, error) {
	if len(lcas) == 0 {
		return diffmerge.Body{}, nil, nil
	}
	first, _, err := m.GetByVersion(lcas[0])
	if err != nil {
		return nil, nil, err
	}
	base := first.Body
	var conflicts []string
	for _, v := range lcas[1:] {
		rev, _, err := m.GetByVersion(v)
		if err != nil {
			return nil, nil, err
		}
		merged, c := diffmerge.Merge(base, rev.Body, diffmerge.Body{})
		base = merged
		conflicts = append(conflicts, c...)
	}
	return base, conflicts, nil
}

func dedupeSorted(xs []string) []string {
	out := xs[:0]
	var prev string
	first := true
	for _, x := range xs {
		if first || x != prev {
			out = append(out, x)
			prev = x
			first = false
		}
	}
	return out
}

// PerspectiveStats reports per-tree head statistics, keyed by
// perspective name ("" for local, "stage" for stage, peer name for
// remotes).
func (m *MergeTree) PerspectiveStats() (map[string]tree.Stats, error) {
	out := map[string]tree.Stats{}
	localStats, err := m.local.Stats()
	if err != nil {
		return nil, err
	}
	out[string(Local)] = localStats

	stageStats, err := m.stage.Stats()
	if err != nil {
		return nil, err
	}
	out[string(Stage)] = stageStats

	for name, t := range m.remotes {
		s, err := t.Stats()
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}
