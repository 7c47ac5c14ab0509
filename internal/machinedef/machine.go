// Package machinedef implements component C2 of spec.md §4.2: building an
// immutable Machine from a model.MachineConfig, normalising invocation
// descriptors into implicit event types, and overlaying named
// implementations via Provide.
package machinedef

import (
	"github.com/kestrelhq/statecraft/internal/invoke"
	"github.com/kestrelhq/statecraft/internal/model"
)

// Machine is the immutable, validated, implementation-resolved form of a
// MachineConfig (spec.md §4.2 "The builder returns an immutable machine").
type Machine struct {
	Config *model.MachineConfig

	// Nodes indexes every node in the tree by its dotted path, including
	// the root, for O(1) lookup by C3/C4/C5.
	Nodes map[string]*model.StateNode

	// Impls is the resolved table of named action/guard/delay/invoke-logic
	// implementations this machine was built or Provide()-d with.
	Impls *Implementations
}

// Implementations is the named-implementation table spec.md §9 "Dynamic
// dispatch of named actions/guards/delays" describes: symbolic string
// references in a MachineConfig are resolved against this table at Send
// time, or left as direct callables when the config already carries one.
type Implementations struct {
	Actions map[string]ActionFunc
	Guards  map[string]GuardFunc
	Delays  map[string]DelayFunc
	Logics  map[string]InvokeLogicFactory
}

// ActionFunc mutates ctx in place and returns effect descriptors; it is the
// resolved, type-erased form of a user action (spec.md §3 "Action/guard
// descriptor"). The public statecraft package re-exports it as Action.
// Helpers carries the `spawn` function spec.md §4.5 says every action
// receives.
type ActionFunc func(ctx any, event model.Event, helpers Helpers) []model.Effect

// Helpers bundles the runtime capabilities an action may use beyond its
// context and event (spec.md §4.5 "An action receives a spawn(logic,
// options?) function").
type Helpers struct {
	Spawn SpawnFunc
}

// SpawnFunc registers and synchronously starts a new child actor running
// logic (an invoke.Logic, a *Machine for nested-machine-as-logic, or a
// string name resolved against the machine's Impls.Logics table), returning
// a handle to it. A non-empty id is used verbatim; an empty id gets one
// generated. Duplicate ids fail (spec.md §4.5 "Duplicate ids cause
// failure").
type SpawnFunc func(logic any, input any, id string) (*ChildRef, error)

// ChildRef is the handle spawn() returns (spec.md §4.5 "a handle with
// send, stop, getSnapshot, subscribe").
type ChildRef struct {
	ID          string
	Send        func(model.Event) error
	Stop        func()
	GetSnapshot func() any
	Subscribe   func(func(any)) (unsubscribe func())
}

// GuardFunc evaluates a condition against context and event.
type GuardFunc func(ctx any, event model.Event) bool

// DelayFunc resolves a symbolic delay reference to a duration in
// nanoseconds, given the current context.
type DelayFunc func(ctx any) int64

// InvokeLogicFactory builds an invocation's running logic on demand; see
// internal/invoke for the concrete shapes (fromPromise, fromCallback) and
// internal/actor for the nested-machine adapter.
type InvokeLogicFactory func() invoke.Logic

func newImplementations() *Implementations {
	return &Implementations{
		Actions: make(map[string]ActionFunc),
		Guards:  make(map[string]GuardFunc),
		Delays:  make(map[string]DelayFunc),
		Logics:  make(map[string]InvokeLogicFactory),
	}
}

// Build validates config per spec.md §4.2 and synthesises the
// done.invoke.<id>/error.invoke.<id> transitions for every invocation that
// declares onDone/onError, and a model.DelayEvent(path, key) transition for
// every `after` entry, then returns the immutable Machine.
func Build(config *model.MachineConfig, impls *Implementations) (*Machine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if impls == nil {
		impls = newImplementations()
	}

	normalizeInvocations(config.Root)

	nodes := config.Flatten()
	for path, n := range nodes {
		for key, transitions := range n.After {
			for _, t := range transitions {
				addOn(n, model.DelayEvent(path, key), t)
			}
		}
	}

	return &Machine{
		Config: config,
		Nodes:  nodes,
		Impls:  impls,
	}, nil
}

// normalizeInvocations synthesises implicit done.invoke.<id>/error.invoke.<id>
// event types into the declaring state's `on` map for every invocation that
// names an onDone/onError transition (spec.md §4.2).
func normalizeInvocations(n *model.StateNode) {
	if n == nil {
		return
	}
	for _, inv := range n.Invoke {
		if inv.OnDone != nil {
			addOn(n, model.DoneInvokeEvent(inv.ID), *inv.OnDone)
		}
		if inv.OnError != nil {
			addOn(n, model.ErrorInvokeEvent(inv.ID), *inv.OnError)
		}
	}
	for _, child := range n.Children {
		normalizeInvocations(child)
	}
}

func addOn(n *model.StateNode, eventType string, t model.TransitionConfig) {
	if n.On == nil {
		n.On = make(map[string][]model.TransitionConfig)
	}
	n.On[eventType] = append(n.On[eventType], t)
}

// Provide returns a new Machine sharing the same tree but overlaying the
// given named implementations on top of (not replacing) the current table
// (spec.md §4.2 "a provide operation that returns a new machine sharing the
// tree but overlaying named ... implementations").
func (m *Machine) Provide(overrides *Implementations) *Machine {
	merged := newImplementations()
	for k, v := range m.Impls.Actions {
		merged.Actions[k] = v
	}
	for k, v := range m.Impls.Guards {
		merged.Guards[k] = v
	}
	for k, v := range m.Impls.Delays {
		merged.Delays[k] = v
	}
	for k, v := range m.Impls.Logics {
		merged.Logics[k] = v
	}
	if overrides != nil {
		for k, v := range overrides.Actions {
			merged.Actions[k] = v
		}
		for k, v := range overrides.Guards {
			merged.Guards[k] = v
		}
		for k, v := range overrides.Delays {
			merged.Delays[k] = v
		}
		for k, v := range overrides.Logics {
			merged.Logics[k] = v
		}
	}
	return &Machine{Config: m.Config, Nodes: m.Nodes, Impls: merged}
}

// ResolveAction resolves an ActionRef (a direct ActionFunc, a symbolic
// string name, or nil) against the machine's implementation table. A named
// reference with no registered implementation is an Implementation-reference
// error (spec.md §7): it degrades to a no-op action rather than failing, and
// ok reports false so the caller can warn once via obslog.
func (m *Machine) ResolveAction(ref model.ActionRef) (fn ActionFunc, ok bool) {
	switch v := ref.(type) {
	case nil:
		return nil, true
	case ActionFunc:
		return v, true
	case func(any, model.Event, Helpers) []model.Effect:
		return ActionFunc(v), true
	case string:
		fn, found := m.Impls.Actions[v]
		if !found {
			return func(any, model.Event, Helpers) []model.Effect { return nil }, false
		}
		return fn, true
	default:
		return func(any, model.Event, Helpers) []model.Effect { return nil }, false
	}
}

// ResolveGuard resolves a GuardRef the same way ResolveAction resolves
// actions. A nil guard is always satisfied (spec.md §3 "a transition
// without a guard always matches"); an unresolved named guard degrades to
// truthy (spec.md §7), likewise reported via ok.
func (m *Machine) ResolveGuard(ref model.GuardRef) (fn GuardFunc, ok bool) {
	switch v := ref.(type) {
	case nil:
		return func(any, model.Event) bool { return true }, true
	case GuardFunc:
		return v, true
	case func(any, model.Event) bool:
		return GuardFunc(v), true
	case string:
		fn, found := m.Impls.Guards[v]
		if !found {
			return func(any, model.Event) bool { return true }, false
		}
		return fn, true
	default:
		return func(any, model.Event) bool { return true }, false
	}
}

// ResolveDelay resolves a DelayRef to a concrete duration function. An
// unresolved named delay degrades to zero (spec.md §7 "treated as an
// immediate/zero delay"), again reported via ok.
func (m *Machine) ResolveDelay(ref model.DelayRef) (fn DelayFunc, ok bool) {
	switch v := ref.(type) {
	case nil:
		return func(any) int64 { return 0 }, true
	case DelayFunc:
		return v, true
	case func(any) int64:
		return DelayFunc(v), true
	case int64:
		return func(any) int64 { return v }, true
	case int:
		return func(any) int64 { return int64(v) }, true
	case string:
		fn, found := m.Impls.Delays[v]
		if !found {
			return func(any) int64 { return 0 }, false
		}
		return fn, true
	default:
		return func(any) int64 { return 0 }, false
	}
}

// ResolveLogic resolves an invocation's `src` descriptor to a running
// invoke.Logic: a direct invoke.Logic value, a nested *Machine (wrapped by
// wrapMachine, supplied by internal/actor to avoid a machinedef->actor
// import cycle), or a string name looked up in Impls.Logics (spec.md §4.7
// "constructing the adapter ... from the logic descriptor").
func (m *Machine) ResolveLogic(src any, wrapMachine func(*Machine) invoke.Logic) (invoke.Logic, bool) {
	switch v := src.(type) {
	case invoke.Logic:
		return v, true
	case *Machine:
		if wrapMachine == nil {
			return nil, false
		}
		return wrapMachine(v), true
	case string:
		factory, ok := m.Impls.Logics[v]
		if !ok {
			return nil, false
		}
		return factory(), true
	default:
		return nil, false
	}
}

// ResolveInput evaluates an invocation's `input` option: a static value, or
// a callable over the current context and triggering event (spec.md §4.7
// "resolving the input argument").
func ResolveInput(ref any, ctx any, event model.Event) any {
	if fn, ok := ref.(func(ctx any, event model.Event) any); ok {
		return fn(ctx, event)
	}
	return ref
}
