package model

import "fmt"

// MachineConfig is the full, immutable tree of state nodes plus the
// machine-level options named in spec.md §6 ("Machine root additionally
// accepts id, context ..., and top-level on").
type MachineConfig struct {
	ID      string
	Context any // a value, or a zero-argument func() any factory
	Root    *StateNode
}

// Validate checks the whole tree per spec.md §4.2: every compound node has
// an existing initial child and every state validates recursively. The
// root may be of any kind; an atomic root is a single-state machine.
func (m *MachineConfig) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("invalid-config: machine id is required")
	}
	if m.Root == nil {
		return fmt.Errorf("invalid-config: machine %q has no root state", m.ID)
	}
	return m.Root.Validate(m.Root.ID)
}

// FindNode resolves an absolute dotted path (rooted at m.Root.ID) to its
// node, or nil if no such node exists.
func (m *MachineConfig) FindNode(path string) *StateNode {
	segs := SplitPath(path)
	if len(segs) == 0 || m.Root == nil || segs[0] != m.Root.ID {
		return nil
	}
	cur := m.Root
	for _, seg := range segs[1:] {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Flatten returns every node path to its node, including the root.
func (m *MachineConfig) Flatten() map[string]*StateNode {
	out := make(map[string]*StateNode)
	if m.Root != nil {
		flattenInto(m.Root, m.Root.ID, out)
	}
	return out
}

func flattenInto(n *StateNode, path string, out map[string]*StateNode) {
	out[path] = n
	for _, child := range n.Children {
		flattenInto(child, path+"."+child.ID, out)
	}
}

// InitialContext evaluates the Context option into a concrete value: either
// the value itself, or the result of invoking a zero-argument factory.
func (m *MachineConfig) InitialContext() any {
	if factory, ok := m.Context.(func() any); ok {
		return factory()
	}
	return m.Context
}
