// Package statecraft is the public surface of the statechart engine: a
// builder over a declarative MachineConfig, and an Actor runtime that
// drives one live instance of it to completion on every event.
//
// The internal/ tiers do the work (internal/model's data types,
// internal/machinedef's builder, internal/engine's selection/exit/entry
// algorithm, internal/actor's macro-step runtime, internal/timer's delayed
// transitions, internal/invoke's invoked-child-actor adapters); this
// package re-exports just enough of their surface, via type aliases and
// thin wrappers, that a caller never needs to import internal/.
package statecraft

import (
	"github.com/kestrelhq/statecraft/internal/actor"
	"github.com/kestrelhq/statecraft/internal/clock"
	"github.com/kestrelhq/statecraft/internal/idgen"
	"github.com/kestrelhq/statecraft/internal/invoke"
	"github.com/kestrelhq/statecraft/internal/machinedef"
	"github.com/kestrelhq/statecraft/internal/model"
)

// Configuration schema (spec.md §3, §6), re-exported verbatim as aliases
// over internal/model so a caller authors a MachineConfig directly.
type (
	MachineConfig    = model.MachineConfig
	StateNode        = model.StateNode
	TransitionConfig = model.TransitionConfig
	InvokeConfig     = model.InvokeConfig
	Kind             = model.Kind
	HistoryFlavor    = model.HistoryFlavor
	Event            = model.Event
	Effect           = model.Effect
)

const (
	Atomic   = model.Atomic
	Compound = model.Compound
	Parallel = model.Parallel
	History  = model.History
)

const (
	Shallow = model.Shallow
	Deep    = model.Deep
)

// NewEvent constructs an Event.
func NewEvent(eventType string, data any) Event { return model.NewEvent(eventType, data) }

// SendTo and SendParent build the two effect descriptors an action may
// return (spec.md §4.5 "Effect descriptors").
func SendTo(targetID string, event Event) Effect { return model.SendTo(targetID, event) }
func SendParent(event Event) Effect              { return model.SendParent(event) }

// Implementation surface (spec.md §3 "Action/guard/delay descriptor", §9
// "Dynamic dispatch"), re-exported over internal/machinedef.
type (
	Action          = machinedef.ActionFunc
	Guard           = machinedef.GuardFunc
	Delay           = machinedef.DelayFunc
	Helpers         = machinedef.Helpers
	SpawnFunc       = machinedef.SpawnFunc
	ChildRef        = machinedef.ChildRef
	Implementations = machinedef.Implementations
)

// Machine is the immutable, built, implementation-resolved form of a
// MachineConfig (spec.md §4.2 "The builder returns an immutable machine").
// It is itself inert: SpawnActor creates the live instance that drives it.
type Machine struct {
	inner *machinedef.Machine
}

// Build validates config, normalizes invocation onDone/onError descriptors
// into implicit transitions, and installs impls as the machine's
// named-implementation table; names are looked up when the action, guard,
// delay or invocation runs (spec.md §4.2). impls may be nil.
func Build(config *MachineConfig, impls *Implementations) (*Machine, error) {
	inner, err := machinedef.Build(config, impls)
	if err != nil {
		return nil, err
	}
	return &Machine{inner: inner}, nil
}

// Provide returns a new Machine sharing this one's tree but overlaying
// additional named implementations (spec.md §4.2 "a provide operation").
func (m *Machine) Provide(overrides *Implementations) *Machine {
	return &Machine{inner: m.inner.Provide(overrides)}
}

// Environment services (spec.md §6): injectable at SpawnActor time so
// tests can run the macro-step algorithm deterministically (spec.md §8
// property P-5).
type (
	Clock       = clock.Clock
	IDGenerator = idgen.Generator
)

// RealClock and UUIDGenerator are the production defaults SpawnActor uses
// when no override is given.
var (
	RealClock     Clock       = clock.Real{}
	UUIDGenerator IDGenerator = idgen.UUID{}
)

// SequentialIDGenerator returns a fresh deterministic IDGenerator for tests
// and replay (spec.md §6 "test implementations permit deterministic
// replay").
func SequentialIDGenerator() IDGenerator { return &idgen.Sequential{} }

// Snapshot is the immutable (value, context) pair handed to observers and
// returned by Actor.GetSnapshot (spec.md §4.5 "State snapshot").
type Snapshot = actor.Snapshot

// ActorOption configures an Actor at SpawnActor time, following the
// functional-options pattern internal/actor itself uses.
type ActorOption = actor.Option

// WithClock overrides the actor's time source (default RealClock).
func WithClock(c Clock) ActorOption { return actor.WithClock(c) }

// WithIDGenerator overrides the actor's id service (default UUIDGenerator).
func WithIDGenerator(g IDGenerator) ActorOption { return actor.WithIDGenerator(g) }

// WithParentSink wires a sink for sendParent effects. Used internally by
// spawn/invoke adapters; a caller spawning a root actor normally leaves
// this unset.
func WithParentSink(sink func(Event)) ActorOption { return actor.WithParentSink(sink) }

// WithID overrides the actor's instance id (default generated).
func WithID(id string) ActorOption { return actor.WithID(id) }

// Actor is one live instance of a Machine (spec.md §3 "Actor state", §6
// "spawnActor").
type Actor struct {
	a *actor.Actor
}

// SpawnActor creates an Actor for m in the stopped state (spec.md §6
// "spawnActor(machine, options?) creates in the stopped state").
func SpawnActor(m *Machine, opts ...ActorOption) *Actor {
	return &Actor{a: actor.New(m.inner, opts...)}
}

// ID returns the actor's instance id.
func (a *Actor) ID() string { return a.a.ID() }

// Start sets the initial configuration and runs to quiescence (spec.md
// §4.5 "Start").
func (a *Actor) Start() error { return a.a.Start() }

// Send delivers event and runs the resulting macro-step (and any eventless
// closure) to completion before returning (spec.md §4.5 "Send").
func (a *Actor) Send(event Event) { a.a.Send(event) }

// Stop tears the actor down: cancels timers, stops invocations and spawned
// children, runs exit actions, and clears observers (spec.md §4.5 "Stop").
func (a *Actor) Stop() { a.a.Stop() }

// Subscribe registers an observer notified with a Snapshot after every
// macro-step, returning an unsubscribe function (spec.md §4.5 "Observer
// contract").
func (a *Actor) Subscribe(obs func(Snapshot)) (unsubscribe func()) { return a.a.Subscribe(obs) }

// GetSnapshot returns the actor's current snapshot, safe to call from any
// goroutine (spec.md §6 "Actor.getSnapshot()").
func (a *Actor) GetSnapshot() Snapshot { return a.a.GetSnapshot() }

// Invocation logic (spec.md §4.8, §6 "fromPromise"/"fromCallback"),
// re-exported over internal/invoke.
type (
	Logic        = invoke.Logic
	PromiseFunc  = invoke.PromiseFunc
	CallbackFunc = invoke.CallbackFunc
	CallbackArgs = invoke.CallbackArgs
)

// FromPromise wraps a callable that runs to completion once and delivers
// done.invoke.<id> or error.invoke.<id> (spec.md §4.8 "Promise logic").
func FromPromise(fn PromiseFunc) Logic { return invoke.FromPromise(fn) }

// FromCallback wraps a callback-style logic that can send events into its
// owning actor at any time and receive events sent back to it (spec.md
// §4.8 "Callback logic").
func FromCallback(fn CallbackFunc) Logic { return invoke.FromCallback(fn) }
