package engine

import (
	"fmt"

	"github.com/kestrelhq/statecraft/internal/machinedef"
	"github.com/kestrelhq/statecraft/internal/model"
	"github.com/kestrelhq/statecraft/internal/obslog"
	"github.com/kestrelhq/statecraft/internal/statevalue"
)

// Selected is one transition chosen by the selection rule, still carrying
// its raw (possibly relative) target text — resolution happens separately
// in target.go.
type Selected struct {
	SourceNode *model.StateNode
	SourcePath string
	Transition model.TransitionConfig
}

// SelectTransitions implements spec.md §4.3's selection rule: for each
// active leaf path, walk deepest node to root, picking the first node whose
// `on[event.Type]` contains a guard-true descriptor. Distinct leaf paths
// (parallel regions) select independently, but a shared ancestor node is
// only ever selected once even if more than one leaf's walk reaches it —
// collapsing what would otherwise be duplicate exit/entry processing of the
// very same transition.
func SelectTransitions(m *machinedef.Machine, value statevalue.Value, ctx any, event model.Event) ([]Selected, error) {
	leaves := ActiveLeafPaths(m.Config.Root, m.Config.Root.ID, value)
	seen := make(map[string]bool)
	var out []Selected

	for _, leaf := range leaves {
		segs := model.SplitPath(leaf)
		for i := len(segs); i > 0; i-- {
			levelPath := model.Path(segs[:i]...)
			node := m.Nodes[levelPath]
			if node == nil {
				continue
			}
			list, ok := node.On[event.Type]
			if !ok {
				continue
			}
			matchedHere := false
			for _, t := range list {
				guard, ok := m.ResolveGuard(t.Guard)
				if !ok {
					obslog.UnresolvedReference(m.Config.ID, "guard", fmt.Sprintf("%v", t.Guard), fmt.Errorf("no implementation registered"))
				}
				if guard(ctx, event) {
					if !seen[levelPath] {
						seen[levelPath] = true
						out = append(out, Selected{SourceNode: node, SourcePath: levelPath, Transition: t})
					}
					matchedHere = true
					break
				}
			}
			if matchedHere {
				break
			}
		}
	}
	return out, nil
}

// SelectAlways applies the same selection rule to each active node's own
// `Always` list (not its `on` map), evaluating guards against the
// synthesised `$$always` event; used by the actor's eventless closure
// (spec.md §4.5 step 12).
func SelectAlways(m *machinedef.Machine, value statevalue.Value, ctx any) ([]Selected, error) {
	leaves := ActiveLeafPaths(m.Config.Root, m.Config.Root.ID, value)
	seen := make(map[string]bool)
	var out []Selected
	always := model.Event{Type: model.AlwaysEvent}

	for _, leaf := range leaves {
		segs := model.SplitPath(leaf)
		for i := len(segs); i > 0; i-- {
			levelPath := model.Path(segs[:i]...)
			node := m.Nodes[levelPath]
			if node == nil || len(node.Always) == 0 {
				continue
			}
			matchedHere := false
			for _, t := range node.Always {
				guard, ok := m.ResolveGuard(t.Guard)
				if !ok {
					obslog.UnresolvedReference(m.Config.ID, "guard", fmt.Sprintf("%v", t.Guard), fmt.Errorf("no implementation registered"))
				}
				if guard(ctx, always) {
					if !seen[levelPath] {
						seen[levelPath] = true
						out = append(out, Selected{SourceNode: node, SourcePath: levelPath, Transition: t})
					}
					matchedHere = true
					break
				}
			}
			if matchedHere {
				break
			}
		}
	}
	return out, nil
}
