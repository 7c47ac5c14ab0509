package engine

import (
	"sort"
	"strings"

	"github.com/kestrelhq/statecraft/internal/machinedef"
	"github.com/kestrelhq/statecraft/internal/model"
	"github.com/kestrelhq/statecraft/internal/statevalue"
)

// Plan is the fully-resolved effect of applying one Selected transition:
// the exit set (deepest-first) and entry set (shallowest-first) to run
// actions over, per spec.md §4.3.
type Plan struct {
	SourcePath    string
	LCA           string
	LCAIsParallel bool
	ExitPaths     []string
	EntryPaths    []string
	Transition    model.TransitionConfig
	IsInternal    bool
}

// BuildPlan resolves sel against oldValue, producing the Plan together with
// the next state value. Internal transitions (no target) leave the value
// untouched and carry empty exit/entry sets (spec.md §4.3 "Internal
// transitions ... executes its actions without computing an exit set or
// entry set").
func BuildPlan(m *machinedef.Machine, oldValue statevalue.Value, sel Selected, histories HistoryStore) (*Plan, statevalue.Value, error) {
	t := sel.Transition
	if t.IsInternal() {
		return &Plan{SourcePath: sel.SourcePath, Transition: t, IsInternal: true}, oldValue, nil
	}

	resolvedTarget, err := ResolveTargetPath(m, sel.SourcePath, t.Target)
	if err != nil {
		return nil, nil, err
	}

	lca := LCAForTransition(sel.SourcePath, resolvedTarget)
	lcaNode := m.Nodes[lca]
	lcaIsParallel := lcaNode != nil && lcaNode.Kind == model.Parallel

	targetLeaves, err := ExpandTarget(m, resolvedTarget, histories)
	if err != nil {
		return nil, nil, err
	}

	nextValue := statevalue.SpliceAtLCA(oldValue, lca, lcaIsParallel, targetLeaves)
	nextValue, err = Autocomplete(m, nextValue, histories)
	if err != nil {
		return nil, nil, err
	}

	exitPaths := descendantsUnder(lca, statevalue.NodeSet(oldValue))
	sort.Slice(exitPaths, func(i, j int) bool { return lessDeepestFirst(exitPaths[i], exitPaths[j]) })

	entryPaths := descendantsUnder(lca, statevalue.NodeSet(nextValue))
	sort.Slice(entryPaths, func(i, j int) bool { return lessShallowestFirst(entryPaths[i], entryPaths[j]) })

	return &Plan{
		SourcePath:    sel.SourcePath,
		LCA:           lca,
		LCAIsParallel: lcaIsParallel,
		ExitPaths:     exitPaths,
		EntryPaths:    entryPaths,
		Transition:    t,
	}, nextValue, nil
}

func descendantsUnder(lca string, nodes map[string]bool) []string {
	var out []string
	if lca == "" {
		for p := range nodes {
			out = append(out, p)
		}
		return out
	}
	prefix := lca + "."
	for p := range nodes {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

func depth(path string) int {
	return len(model.SplitPath(path))
}

func lessDeepestFirst(a, b string) bool {
	da, db := depth(a), depth(b)
	if da != db {
		return da > db
	}
	return a < b
}

func lessShallowestFirst(a, b string) bool {
	da, db := depth(a), depth(b)
	if da != db {
		return da < db
	}
	return a < b
}
