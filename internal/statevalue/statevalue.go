// Package statevalue implements the state-value algebra of spec.md §4.1
// (component C1): the representation and conversions between a live
// configuration, its active path set, and its active node set.
//
// A Value is one of:
//   - string: a bare leaf name.
//   - map[string]Value: a single-key record for a compound node's
//     contribution ({childName: childValue}), or a multi-key record for a
//     parallel node's regions ({region1: v1, region2: v2, ...}).
package statevalue

import (
	"sort"
	"strings"
)

// Value is a state value as defined in spec.md §3 ("State value (live
// configuration)"). It is either a string leaf name or a
// map[string]Value record.
type Value any

// BuildTree constructs a Value by merging one or more dotted paths into a
// single nested structure, matching spec.md §4.1 "encode a single path" and
// "merge a list of disjoint values into one". Paths sharing a prefix are
// merged at that prefix; callers pass absolute paths rooted at the machine
// root, or (when splicing a sub-contribution into an ancestor value)
// relative paths stripped of the shared ancestor prefix.
func BuildTree(paths []string) Value {
	var v Value
	for _, p := range paths {
		v = insertPath(v, splitNonEmpty(p))
	}
	return v
}

func insertPath(existing Value, segs []string) Value {
	if len(segs) == 0 {
		return existing
	}
	if len(segs) == 1 {
		return segs[0]
	}
	m := copyMap(existing)
	key := segs[0]
	m[key] = insertPath(m[key], segs[1:])
	return m
}

func copyMap(v Value) map[string]Value {
	out := make(map[string]Value)
	if m, ok := v.(map[string]Value); ok {
		for k, val := range m {
			out[k] = val
		}
	}
	return out
}

func splitNonEmpty(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Paths decodes v into the full set of root-to-leaf dotted paths it
// encodes — the active path set (spec.md §3).
func Paths(v Value) []string {
	out := pathsWithPrefix(v, "")
	sort.Strings(out)
	return out
}

func pathsWithPrefix(v Value, prefix string) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{join(prefix, t)}
	case map[string]Value:
		var out []string
		for k, child := range t {
			out = append(out, pathsWithPrefix(child, join(prefix, k))...)
		}
		return out
	default:
		return nil
	}
}

func join(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

// NodeSet returns the active node set: every leaf path plus every one of
// its prefixes (spec.md §3 "active node set").
func NodeSet(v Value) map[string]bool {
	set := make(map[string]bool)
	for _, leaf := range Paths(v) {
		segs := strings.Split(leaf, ".")
		cur := ""
		for _, seg := range segs {
			cur = join(cur, seg)
			set[cur] = true
		}
	}
	return set
}

// GetAt descends v along the absolute dotted path, returning the value
// found there (the contribution of path's active child/children) and
// whether the path could be resolved.
func GetAt(v Value, path string) (Value, bool) {
	segs := splitNonEmpty(path)
	cur := v
	for _, seg := range segs {
		m, ok := cur.(map[string]Value)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SpliceAtLCA replaces the value found at lcaPath with a new contribution
// built from targetLeafPaths (absolute paths under lcaPath), preserving
// every sibling along the way from root to lcaPath, and — if lcaKindIsParallel
// is true — preserving lcaPath's own untouched region keys too. If
// lcaKindIsParallel is false (lcaPath is a compound node, or the LCA
// boundary the self-transition restart rule produced, spec.md §4.3), the
// entirety of lcaPath's prior contribution is discarded, matching "exactly
// one active child" semantics.
func SpliceAtLCA(root Value, lcaPath string, lcaKindIsParallel bool, targetLeafPaths []string) Value {
	lcaSegs := splitNonEmpty(lcaPath)
	suffixes := make([]string, len(targetLeafPaths))
	for i, p := range targetLeafPaths {
		segs := splitNonEmpty(p)
		suffixes[i] = strings.Join(segs[len(lcaSegs):], ".")
	}
	contribution := BuildTree(suffixes)
	return spliceRec(root, lcaSegs, lcaKindIsParallel, contribution)
}

func spliceRec(node Value, segs []string, merge bool, contribution Value) Value {
	if len(segs) == 0 {
		if merge {
			out := copyMap(node)
			if cm, ok := contribution.(map[string]Value); ok {
				for k, v := range cm {
					out[k] = v
				}
				return out
			}
			return contribution
		}
		return contribution
	}
	key, rest := segs[0], segs[1:]
	m := copyMap(node)
	m[key] = spliceRec(m[key], rest, merge, contribution)
	return m
}

// ShallowChildName extracts the single immediate child name recorded at the
// top of v — the piece a shallow-history projection keeps (spec.md §4.4
// "shallow keeps only the immediate child identity ... discarding deeper
// structure"). The caller re-resolves that name via the normal target
// resolver so it is re-expanded through its own `initial` chain.
func ShallowChildName(v Value) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]Value:
		for k := range t {
			return k, true
		}
	}
	return "", false
}

// CloneValue returns a structurally independent copy of v, used when
// reading a value out of the history store so later mutation of the live
// configuration never aliases a stored snapshot (spec.md §4.1 "deep copy of
// history fragments").
func CloneValue(v Value) Value {
	switch t := v.(type) {
	case map[string]Value:
		out := make(map[string]Value, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	default:
		return t
	}
}

// Match reports whether query is satisfied by v: every path implied by
// query must be a prefix of some active path in v (spec.md §4.1 "match a
// query against a value"). query is either a dotted string or a nested
// map[string]any mirroring the Value shape.
func Match(v Value, query any) bool {
	nodes := NodeSet(v)
	for _, p := range queryPaths(query, "") {
		if !nodes[p] {
			return false
		}
	}
	return true
}

func queryPaths(query any, prefix string) []string {
	switch t := query.(type) {
	case string:
		return []string{join(prefix, t)}
	case map[string]any:
		var out []string
		for k, child := range t {
			out = append(out, queryPaths(child, join(prefix, k))...)
		}
		return out
	default:
		return nil
	}
}
