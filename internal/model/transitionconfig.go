package model

// TransitionConfig describes one outgoing edge from a state node (spec.md
// §3 "Transition descriptor").
//
// Target is the raw (possibly relative, sibling, or absolute) path as
// written in configuration; an empty Target marks an internal transition.
// Resolution against a specific source path happens in internal/engine.
type TransitionConfig struct {
	Target  string
	Guard   GuardRef
	Actions []ActionRef
}

// IsInternal reports whether the transition has no target, meaning it runs
// its actions without computing an exit/entry set (spec.md §4.3 "Internal
// transitions").
func (t TransitionConfig) IsInternal() bool {
	return t.Target == ""
}
