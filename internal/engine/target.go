package engine

import (
	"fmt"

	"github.com/kestrelhq/statecraft/internal/machinedef"
	"github.com/kestrelhq/statecraft/internal/model"
	"github.com/kestrelhq/statecraft/internal/statevalue"
)

// HistoryStore is the read side of the history table the actor runtime
// owns (spec.md §4.5 step 5 "snapshot each node about to be exited ... into
// the history store, keyed by its path"). Get returns the contribution
// previously stored for node path (a compound/parallel node), i.e. the
// value found at that path at the moment it was exited.
type HistoryStore interface {
	Get(path string) (statevalue.Value, bool)
}

// ResolveTargetPath implements spec.md §4.4's relative-target search:
// walk the source node's ancestor chain looking for one whose parent has a
// child named by the target's first segment; if found, the target resolves
// under that parent. Otherwise fall back to an absolute path from the
// machine root.
func ResolveTargetPath(m *machinedef.Machine, sourcePath, rawTarget string) (string, error) {
	if rawTarget == "" {
		return "", fmt.Errorf("unresolved-target: empty target from %q", sourcePath)
	}
	segs := model.SplitPath(rawTarget)
	firstSeg := segs[0]

	srcSegs := model.SplitPath(sourcePath)
	for end := len(srcSegs); end >= 2; end-- {
		ancestorPath := model.Path(srcSegs[:end]...)
		parentPath := model.ParentPath(ancestorPath)
		parentNode := m.Nodes[parentPath]
		if parentNode == nil || parentNode.Child(firstSeg) == nil {
			continue
		}
		candidate := parentPath + "." + rawTarget
		if _, ok := m.Nodes[candidate]; ok {
			return candidate, nil
		}
	}

	if _, ok := m.Nodes[rawTarget]; ok {
		return rawTarget, nil
	}
	candidate := model.Path(m.Config.Root.ID, rawTarget)
	if _, ok := m.Nodes[candidate]; ok {
		return candidate, nil
	}
	return "", fmt.Errorf("unresolved-target: %q is not reachable from %q", rawTarget, sourcePath)
}

// ExpandTarget recursively resolves path to the set of absolute leaf paths
// it denotes, per spec.md §4.4: atomic resolves to itself; compound follows
// `initial`; parallel expands every region; history consults histories,
// else its declared default target, else the parent's `initial`.
func ExpandTarget(m *machinedef.Machine, path string, histories HistoryStore) ([]string, error) {
	node := m.Nodes[path]
	if node == nil {
		return nil, fmt.Errorf("unresolved-target: no state at %q", path)
	}

	switch node.Kind {
	case model.Atomic:
		return []string{path}, nil

	case model.Compound:
		if node.Initial == "" {
			return []string{path}, nil
		}
		return ExpandTarget(m, model.Path(path, node.Initial), histories)

	case model.Parallel:
		var out []string
		for _, child := range node.Children {
			leaves, err := ExpandTarget(m, model.Path(path, child.ID), histories)
			if err != nil {
				return nil, err
			}
			out = append(out, leaves...)
		}
		return out, nil

	case model.History:
		parentPath := model.ParentPath(path)
		if histories != nil {
			if stored, ok := histories.Get(parentPath); ok {
				if node.HistoryFlavor == model.Deep {
					return prefixPaths(parentPath, statevalue.Paths(statevalue.CloneValue(stored))), nil
				}
				if name, ok := statevalue.ShallowChildName(stored); ok {
					return ExpandTarget(m, model.Path(parentPath, name), histories)
				}
			}
		}
		if node.HistoryTarget != "" {
			resolved, err := ResolveTargetPath(m, parentPath, node.HistoryTarget)
			if err != nil {
				return nil, err
			}
			return ExpandTarget(m, resolved, histories)
		}
		parent := m.Nodes[parentPath]
		if parent != nil && parent.Initial != "" {
			return ExpandTarget(m, model.Path(parentPath, parent.Initial), histories)
		}
		return nil, fmt.Errorf("unresolved-target: history %q has no stored snapshot, default target, or parent initial", path)

	default:
		return nil, fmt.Errorf("unresolved-target: state %q has unsupported kind %q", path, node.Kind)
	}
}

func prefixPaths(prefix string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if p == "" {
			out[i] = prefix
			continue
		}
		out[i] = prefix + "." + p
	}
	return out
}

// Autocomplete fills in any parallel node within value whose regions are
// not all present, inserting the missing regions' `initial` resolution
// (spec.md §4.4 "autocompletes any parallel node found inside the merged
// value whose regions are not all present").
func Autocomplete(m *machinedef.Machine, value statevalue.Value, histories HistoryStore) (statevalue.Value, error) {
	return autocompleteWalk(m, m.Config.Root, m.Config.Root.ID, value, histories)
}

func autocompleteWalk(m *machinedef.Machine, node *model.StateNode, path string, value statevalue.Value, histories HistoryStore) (statevalue.Value, error) {
	switch node.Kind {
	case model.Parallel:
		contribution, _ := statevalue.GetAt(value, path)
		present, _ := contribution.(map[string]statevalue.Value)
		for _, child := range node.Children {
			if _, ok := present[child.ID]; ok {
				continue
			}
			leaves, err := ExpandTarget(m, model.Path(path, child.ID), histories)
			if err != nil {
				return nil, err
			}
			value = statevalue.SpliceAtLCA(value, path, true, leaves)
		}
		for _, child := range node.Children {
			var err error
			value, err = autocompleteWalk(m, child, model.Path(path, child.ID), value, histories)
			if err != nil {
				return nil, err
			}
		}
		return value, nil

	case model.Compound:
		contribution, ok := statevalue.GetAt(value, path)
		if !ok {
			return value, nil
		}
		name, ok := statevalue.ShallowChildName(contribution)
		if !ok {
			return value, nil
		}
		child := node.Child(name)
		if child == nil {
			return value, nil
		}
		return autocompleteWalk(m, child, model.Path(path, name), value, histories)

	default:
		return value, nil
	}
}

// InitialValue computes the machine's starting configuration by expanding
// the root's own `initial`/regions (spec.md §4.5 "Start. Set the initial
// configuration via C4 from the declared initial").
func InitialValue(m *machinedef.Machine) (statevalue.Value, error) {
	leaves, err := ExpandTarget(m, m.Config.Root.ID, nil)
	if err != nil {
		return nil, err
	}
	v := statevalue.BuildTree(leaves)
	return Autocomplete(m, v, nil)
}
