package engine

import (
	"github.com/kestrelhq/statecraft/internal/model"
	"github.com/kestrelhq/statecraft/internal/statevalue"
)

// ActiveLeafPaths walks the tree structurally, following each compound
// node's actual active child (read out of value) and every parallel node's
// full, declaration-ordered set of regions, returning the active leaf paths
// in a deterministic, declaration-order sequence. This is used in place of
// statevalue.Paths' alphabetical order wherever region declaration order
// matters (spec.md §4.3 selection walk, §4.5 action ordering).
func ActiveLeafPaths(node *model.StateNode, path string, value statevalue.Value) []string {
	switch node.Kind {
	case model.Atomic, model.History:
		return []string{path}
	case model.Compound:
		contribution, ok := statevalue.GetAt(value, path)
		if !ok {
			return []string{path}
		}
		name, ok := statevalue.ShallowChildName(contribution)
		if !ok {
			return []string{path}
		}
		child := node.Child(name)
		if child == nil {
			return []string{path}
		}
		return ActiveLeafPaths(child, model.Path(path, name), value)
	case model.Parallel:
		var out []string
		for _, child := range node.Children {
			out = append(out, ActiveLeafPaths(child, model.Path(path, child.ID), value)...)
		}
		return out
	default:
		return nil
	}
}
