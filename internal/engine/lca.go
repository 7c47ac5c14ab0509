// Package engine implements components C3 (transition resolver) and C4
// (target resolver) of spec.md §4.3/§4.4: selecting transitions against the
// active configuration, resolving their targets, and deriving the exit and
// entry sets an actor runs actions over.
package engine

import "github.com/kestrelhq/statecraft/internal/model"

// LCA returns the least common ancestor path of a and b: the longest
// dotted-segment prefix on which they agree (spec.md §4.3 "walk both from
// the root while names agree; the prefix of agreement is the LCA").
func LCA(a, b string) string {
	segsA := model.SplitPath(a)
	segsB := model.SplitPath(b)
	n := len(segsA)
	if len(segsB) < n {
		n = len(segsB)
	}
	i := 0
	for i < n && segsA[i] == segsB[i] {
		i++
	}
	if i == 0 {
		return ""
	}
	return model.Path(segsA[:i]...)
}

// LCAForTransition computes the LCA used to drive exit/entry derivation,
// applying the self-transition restart rule: a transition whose target
// equals its source exits the source itself, so its LCA is the source's
// parent (spec.md §4.3 "this restart semantics is required so that
// self-transitions on compound states re-initialise their children").
func LCAForTransition(sourcePath, targetPath string) string {
	if sourcePath == targetPath {
		return model.ParentPath(sourcePath)
	}
	return LCA(sourcePath, targetPath)
}
