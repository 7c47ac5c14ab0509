// Package actor implements component C5 of spec.md §4.5: the per-machine
// actor runtime that drives the macro-step algorithm, owns mutable context
// and the history store, and reconciles timers (C6) and invocations (C7)
// against the active configuration after every step.
//
// Grounded on the teacher's internal/core/machine.go Machine (event queue,
// Start/Send/Stop, goroutine-driven interpret loop), generalized from a
// single-leaf `current []string` to a full statevalue.Value, and on the
// top-level statechart.go Runtime for the synchronous-drain/recursion-guard
// shape of processMicrosteps — closer to spec.md §5's single-actor,
// run-to-completion requirement than machine.go's background goroutine.
package actor

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kestrelhq/statecraft/internal/clock"
	"github.com/kestrelhq/statecraft/internal/engine"
	"github.com/kestrelhq/statecraft/internal/idgen"
	"github.com/kestrelhq/statecraft/internal/invoke"
	"github.com/kestrelhq/statecraft/internal/machinedef"
	"github.com/kestrelhq/statecraft/internal/model"
	"github.com/kestrelhq/statecraft/internal/obslog"
	"github.com/kestrelhq/statecraft/internal/statevalue"
	"github.com/kestrelhq/statecraft/internal/timer"
)

// alwaysCap bounds the eventless closure (spec.md §4.5 step 12, invariant
// I-7): "a safety counter (≈ 100 iterations)".
const alwaysCap = 100

// Snapshot is the immutable observation handed to observers and returned by
// GetSnapshot (spec.md §4.5 "State snapshot").
type Snapshot struct {
	Value   statevalue.Value
	Context any

	machine *machinedef.Machine
}

// Matches delegates to C1's query matcher (spec.md §4.5 "matches(query)
// method delegating to C1").
func (s Snapshot) Matches(query any) bool {
	return statevalue.Match(s.Value, query)
}

// Can dry-runs C3 selection for eventType without running any action side
// effects (spec.md §4.5 "can(event) ... dry-runs C3 selection without
// invoking guards' side effects; guards must be pure").
func (s Snapshot) Can(eventType string) bool {
	if s.machine == nil {
		return false
	}
	sels, err := engine.SelectTransitions(s.machine, s.Value, s.Context, model.NewEvent(eventType, nil))
	return err == nil && len(sels) > 0
}

type childEntry struct {
	send func(model.Event) error
	stop func()
}

type historyStore struct {
	entries map[string]statevalue.Value
}

func newHistoryStore() *historyStore { return &historyStore{entries: make(map[string]statevalue.Value)} }

func (h *historyStore) Get(path string) (statevalue.Value, bool) {
	v, ok := h.entries[path]
	return v, ok
}

func (h *historyStore) Set(path string, v statevalue.Value) {
	h.entries[path] = statevalue.CloneValue(v)
}

// Actor is one live instance of a Machine (spec.md §3 "Actor state").
type Actor struct {
	machine *machinedef.Machine
	id      string
	clk     clock.Clock
	ids     idgen.Generator

	mu         sync.Mutex
	value      statevalue.Value
	ctx        any
	histories  *historyStore
	running    bool
	processing bool
	pending    []model.Event

	observers map[int]func(Snapshot)
	nextObs   int

	parentSink func(model.Event)

	timers      *timer.Manager
	invocations *invoke.Manager
	children    map[string]childEntry
}

// Option configures an Actor at construction, following the teacher's
// functional-options pattern (internal/core/options.go's Option/WithX).
type Option func(*Actor)

// WithClock overrides the actor's time source (default clock.Real{}).
func WithClock(c clock.Clock) Option { return func(a *Actor) { a.clk = c } }

// WithIDGenerator overrides the actor's id service (default idgen.UUID{}).
func WithIDGenerator(g idgen.Generator) Option { return func(a *Actor) { a.ids = g } }

// WithParentSink wires a sink for sendParent effects (spec.md §4.5
// "Actor.stop()"; §4.8 "a parent-event sink directed at the outer actor's
// event queue"). Unset for a root (non-spawned, non-invoked) actor.
func WithParentSink(sink func(model.Event)) Option { return func(a *Actor) { a.parentSink = sink } }

// WithID overrides the actor's instance id (default generated from ids).
func WithID(id string) Option { return func(a *Actor) { a.id = id } }

// New constructs an Actor in the stopped state (spec.md §6 "spawnActor ...
// creates in the stopped state").
func New(m *machinedef.Machine, opts ...Option) *Actor {
	a := &Actor{
		machine:     m,
		clk:         clock.Real{},
		ids:         idgen.UUID{},
		histories:   newHistoryStore(),
		observers:   make(map[int]func(Snapshot)),
		invocations: invoke.New(),
		children:    make(map[string]childEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.timers = timer.New(a.clk, a.onTimerFired)
	if a.id == "" {
		a.id = a.ids.NewID(m.Config.ID)
	}
	return a
}

// ID returns the actor's instance id.
func (a *Actor) ID() string { return a.id }

// Start sets the initial configuration, runs entry actions shallowest
// first, starts timers/invocations, runs the eventless closure, and
// notifies observers (spec.md §4.5 "Start"). Idempotent: re-Start on an
// already-running actor is a no-op with a warning.
func (a *Actor) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		obslog.UnresolvedReference(a.machine.Config.ID, "actor", "already started", fmt.Errorf("re-start ignored"))
		return nil
	}
	value, err := engine.InitialValue(a.machine)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	working := model.CloneContext(a.machine.Config.InitialContext())
	a.value = value
	a.ctx = working
	a.running = true
	a.processing = true
	a.mu.Unlock()

	var effects []model.Effect
	paths := shallowestFirst(setKeys(statevalue.NodeSet(value)))
	for _, p := range paths {
		effects = append(effects, a.runActionRefs(a.machine.Nodes[p].Entry, working, model.Event{})...)
	}
	a.reconcile(nil, statevalue.NodeSet(value), working, model.Event{})
	a.executeEffects(effects)

	startErr := a.runEventlessClosure()
	a.notify()

	// A Send arriving concurrently while Start was still running queued
	// itself into a.pending instead of being dropped; drain it now before
	// releasing the processing flag.
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.processing = false
		a.mu.Unlock()
		return startErr
	}
	event := a.pending[0]
	a.pending = a.pending[1:]
	a.mu.Unlock()

	a.drain(event)
	a.mu.Lock()
	a.processing = false
	a.mu.Unlock()
	return startErr
}

// Stop cancels every timer, stops every invocation and spawned child, runs
// exit actions deepest-first with the synthesized $stop event, and clears
// observers (spec.md §4.5 "Stop").
func (a *Actor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	value := a.value
	working := a.ctx
	a.running = false
	a.mu.Unlock()

	a.timers.CancelAll()
	a.invocations.StopAll()

	a.mu.Lock()
	for id, c := range a.children {
		c.stop()
		delete(a.children, id)
	}
	a.mu.Unlock()

	paths := deepestFirst(setKeys(statevalue.NodeSet(value)))
	stopEvent := model.Event{Type: model.StopEvent}
	for _, p := range paths {
		a.runActionRefs(a.machine.Nodes[p].Exit, working, stopEvent)
	}

	a.mu.Lock()
	a.observers = make(map[int]func(Snapshot))
	a.mu.Unlock()
}

// Send enqueues event and processes it to quiescence before returning
// (spec.md §4.5 "send runs synchronously to completion before returning").
// A reentrant call made from inside an action defers to the in-flight
// macro-step's drain loop, matching the teacher's processing-flag/internal
// queue pattern (statechart.go).
func (a *Actor) Send(event model.Event) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		obslog.UnresolvedReference(a.machine.Config.ID, "event", event.Type, fmt.Errorf("actor not running"))
		return
	}
	if a.processing {
		a.pending = append(a.pending, event)
		a.mu.Unlock()
		return
	}
	a.processing = true
	a.mu.Unlock()

	a.drain(event)

	a.mu.Lock()
	a.processing = false
	a.mu.Unlock()
}

func (a *Actor) drain(first model.Event) {
	event := first
	for {
		if err := a.macroStep(event); err != nil {
			obslog.UnresolvedReference(a.machine.Config.ID, "macro-step", event.Type, err)
		} else {
			a.notify()
		}

		a.mu.Lock()
		if len(a.pending) == 0 {
			a.mu.Unlock()
			return
		}
		event = a.pending[0]
		a.pending = a.pending[1:]
		a.mu.Unlock()
	}
}

// macroStep runs one external event through the selection/exit/transition
// /entry sequence and its eventless closure (spec.md §4.5 steps 1-12).
func (a *Actor) macroStep(event model.Event) error {
	a.mu.Lock()
	working := model.CloneContext(a.ctx)
	value := a.value
	a.mu.Unlock()

	sels, err := engine.SelectTransitions(a.machine, value, working, event)
	if err != nil {
		return err
	}
	if len(sels) == 0 {
		if isInvocationError(event.Type) {
			obslog.InvocationErrorUnhandled(a.machine.Config.ID, invocationIDFromErrorEvent(event.Type), fmt.Errorf("no active handler"))
		}
		return nil
	}

	if err := a.applyRound(sels, working, event); err != nil {
		return err
	}
	return a.runEventlessClosure()
}

// runEventlessClosure repeats selection against the synthesized $$always
// event until nothing more fires or the safety counter is exceeded
// (spec.md §4.5 step 12, I-7).
func (a *Actor) runEventlessClosure() error {
	for i := 0; i < alwaysCap; i++ {
		a.mu.Lock()
		working := a.ctx
		value := a.value
		a.mu.Unlock()

		sels, err := engine.SelectAlways(a.machine, value, working)
		if err != nil {
			return err
		}
		if len(sels) == 0 {
			return nil
		}
		if err := a.applyRound(sels, working, model.Event{Type: model.AlwaysEvent}); err != nil {
			return err
		}
	}
	obslog.AlwaysLoopCapExceeded(a.machine.Config.ID, alwaysCap)
	return nil
}

// applyRound resolves every Selected transition of one round against the
// actor's current value, runs exit/transition/entry actions, publishes the
// result, reconciles timers/invocations, and executes collected effects
// (spec.md §4.5 steps 4-11).
func (a *Actor) applyRound(sels []engine.Selected, working any, event model.Event) error {
	a.mu.Lock()
	value := a.value
	a.mu.Unlock()

	oldNodeSet := statevalue.NodeSet(value)
	var effects []model.Effect

	for _, sel := range sels {
		plan, next, err := engine.BuildPlan(a.machine, value, sel, a.histories)
		if err != nil {
			return err
		}

		// A path both exited and entered by this plan is re-entered: drop it
		// from the old set so reconcile reschedules its timers and restarts
		// its invocations, replacing the prior ones.
		if !plan.IsInternal {
			exited := make(map[string]bool, len(plan.ExitPaths))
			for _, p := range plan.ExitPaths {
				exited[p] = true
			}
			for _, p := range plan.EntryPaths {
				if exited[p] {
					delete(oldNodeSet, p)
				}
			}
		}

		for _, p := range plan.ExitPaths {
			node := a.machine.Nodes[p]
			if node != nil && (node.Kind == model.Compound || node.Kind == model.Parallel) {
				if contribution, ok := statevalue.GetAt(value, p); ok {
					a.histories.Set(p, contribution)
				}
			}
		}

		if !plan.IsInternal {
			for _, p := range plan.ExitPaths {
				effects = append(effects, a.runActionRefs(a.machine.Nodes[p].Exit, working, event)...)
			}
		}

		effects = append(effects, a.runActionRefs(plan.Transition.Actions, working, event)...)

		if !plan.IsInternal {
			for _, p := range plan.EntryPaths {
				effects = append(effects, a.runActionRefs(a.machine.Nodes[p].Entry, working, event)...)
			}
		}

		value = next
	}

	a.mu.Lock()
	a.value = value
	a.ctx = working
	a.mu.Unlock()

	a.reconcile(oldNodeSet, statevalue.NodeSet(value), working, event)
	a.executeEffects(effects)
	return nil
}

func (a *Actor) runActionRefs(refs []model.ActionRef, ctx any, event model.Event) []model.Effect {
	var out []model.Effect
	for _, ref := range refs {
		fn, ok := a.machine.ResolveAction(ref)
		if !ok {
			obslog.UnresolvedReference(a.machine.Config.ID, "action", fmt.Sprintf("%v", ref), fmt.Errorf("no implementation registered"))
		}
		if fn == nil {
			continue
		}
		out = append(out, fn(ctx, event, machinedef.Helpers{Spawn: a.spawnFunc})...)
	}
	return out
}

// reconcile starts timers/invocations for nodes newly present in the
// active node set and cancels them for nodes newly absent (spec.md §4.5
// step 10; I-4, I-5).
func (a *Actor) reconcile(oldSet, newSet map[string]bool, ctx any, event model.Event) {
	for path := range newSet {
		if oldSet[path] {
			continue
		}
		node := a.machine.Nodes[path]
		if node == nil {
			continue
		}
		for key, transitions := range node.After {
			if len(transitions) == 0 {
				continue
			}
			d := a.resolveDelay(key, ctx)
			a.timers.Schedule(path, key, d)
		}
		for _, inv := range node.Invoke {
			a.startInvocation(path, inv, ctx, event)
		}
	}
	for path := range oldSet {
		if newSet[path] {
			continue
		}
		a.timers.CancelPath(path)
		a.invocations.StopPath(path)
	}
}

func (a *Actor) resolveDelay(key string, ctx any) time.Duration {
	if ms, err := strconv.Atoi(key); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	fn, ok := a.machine.ResolveDelay(key)
	if !ok {
		obslog.UnresolvedReference(a.machine.Config.ID, "delay", key, fmt.Errorf("no implementation registered"))
	}
	return time.Duration(fn(ctx))
}

func (a *Actor) startInvocation(path string, inv model.InvokeConfig, ctx any, event model.Event) {
	logic, ok := a.machine.ResolveLogic(inv.Src, a.wrapMachineLogic)
	if !ok {
		obslog.UnresolvedReference(a.machine.Config.ID, "invoke", fmt.Sprintf("%v", inv.Src), fmt.Errorf("no implementation registered"))
		return
	}
	input := machinedef.ResolveInput(inv.Input, ctx, event)
	deliver := func(eventType string, data any) { a.Send(model.NewEvent(eventType, data)) }
	a.invocations.Start(path, inv.ID, logic, input, deliver)
}

// wrapMachineLogic adapts a nested *machinedef.Machine into invoke.Logic by
// spawning a child Actor whose parent sink feeds events back into this
// actor's own mailbox (spec.md §4.8 "A machine can also be used as a logic:
// the adapter creates a nested actor with a parent-event sink directed at
// the outer actor's event queue").
func (a *Actor) wrapMachineLogic(child *machinedef.Machine) invoke.Logic {
	return invoke.LogicFunc(func(id string, input any, deliver invoke.Deliver) invoke.Handle {
		nested := New(child, WithClock(a.clk), WithIDGenerator(a.ids), WithID(id),
			WithParentSink(func(ev model.Event) { deliver(ev.Type, ev.Data) }))
		_ = nested.Start()
		return nested
	})
}

func (a *Actor) onTimerFired(path, key string) {
	a.Send(model.NewEvent(model.DelayEvent(path, key), nil))
}

func (a *Actor) spawnFunc(logic any, input any, id string) (*machinedef.ChildRef, error) {
	if id == "" {
		id = a.ids.NewID("spawn")
	}
	a.mu.Lock()
	if _, exists := a.children[id]; exists {
		a.mu.Unlock()
		return nil, fmt.Errorf("spawn: duplicate id %q", id)
	}
	a.mu.Unlock()

	if name, ok := logic.(string); ok {
		resolved, found := a.machine.ResolveLogic(name, nil)
		if !found {
			return nil, fmt.Errorf("spawn: no logic registered under %q", name)
		}
		logic = resolved
	}

	switch v := logic.(type) {
	case *machinedef.Machine:
		child := New(v, WithClock(a.clk), WithIDGenerator(a.ids), WithID(id),
			WithParentSink(func(ev model.Event) { a.Send(ev) }))
		if err := child.Start(); err != nil {
			return nil, err
		}
		entry := childEntry{
			send: func(ev model.Event) error { child.Send(ev); return nil },
			stop: child.Stop,
		}
		a.mu.Lock()
		a.children[id] = entry
		a.mu.Unlock()
		return &machinedef.ChildRef{
			ID:          id,
			Send:        entry.send,
			Stop:        func() { child.Stop(); a.mu.Lock(); delete(a.children, id); a.mu.Unlock() },
			GetSnapshot: func() any { return child.GetSnapshot() },
			Subscribe:   func(obs func(any)) func() { return child.Subscribe(func(s Snapshot) { obs(s) }) },
		}, nil

	case invoke.Logic:
		handle := v.Start(id, input, func(eventType string, data any) { a.Send(model.NewEvent(eventType, data)) })
		entry := childEntry{
			send: func(ev model.Event) error {
				r, ok := handle.(invoke.Receiver)
				if !ok {
					return fmt.Errorf("spawn: child %q does not accept events", id)
				}
				r.Send(ev.Type, ev.Data)
				return nil
			},
			stop: handle.Stop,
		}
		a.mu.Lock()
		a.children[id] = entry
		a.mu.Unlock()
		return &machinedef.ChildRef{
			ID:          id,
			Send:        entry.send,
			Stop:        func() { handle.Stop(); a.mu.Lock(); delete(a.children, id); a.mu.Unlock() },
			GetSnapshot: func() any { return nil },
			Subscribe:   func(func(any)) func() { return func() {} },
		}, nil

	default:
		return nil, fmt.Errorf("spawn: unsupported logic type %T", logic)
	}
}

// executeEffects carries out sendTo/sendParent effect descriptors after a
// round's actions have all run (spec.md §4.5 "Effect descriptors").
func (a *Actor) executeEffects(effects []model.Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case model.SendToEffect:
			a.mu.Lock()
			entry, ok := a.children[eff.TargetID]
			a.mu.Unlock()
			if ok {
				_ = entry.send(eff.Event)
				continue
			}
			if a.invocations.Send(eff.TargetID, eff.Event.Type, eff.Event.Data) {
				continue
			}
			obslog.UnknownSendTarget(a.machine.Config.ID, eff.TargetID)
		case model.SendParentEffect:
			if a.parentSink == nil {
				obslog.NoParentSink(a.machine.Config.ID)
				continue
			}
			a.parentSink(eff.Event)
		}
	}
}

// Subscribe registers an observer, notified with a Snapshot after every
// macro-step including Start (spec.md §4.5 "Observer contract"). Panics
// from obs are recovered, logged, and swallowed so they never affect other
// observers or the actor itself.
func (a *Actor) Subscribe(obs func(Snapshot)) func() {
	a.mu.Lock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = obs
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.observers, id)
		a.mu.Unlock()
	}
}

func (a *Actor) notify() {
	snap := a.GetSnapshot()
	a.mu.Lock()
	obs := make([]func(Snapshot), 0, len(a.observers))
	for _, fn := range a.observers {
		obs = append(obs, fn)
	}
	a.mu.Unlock()
	for _, fn := range obs {
		a.safeNotify(fn, snap)
	}
}

func (a *Actor) safeNotify(obs func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			obslog.ObserverPanic(a.machine.Config.ID, r)
		}
	}()
	obs(snap)
}

// GetSnapshot returns the actor's current (value, context) pair, safe to
// call from any goroutine (spec.md §6 "Actor.getSnapshot()").
func (a *Actor) GetSnapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{Value: a.value, Context: a.ctx, machine: a.machine}
}

func isInvocationError(eventType string) bool {
	return strings.HasPrefix(eventType, "error.invoke.")
}

func invocationIDFromErrorEvent(eventType string) string {
	return strings.TrimPrefix(eventType, "error.invoke.")
}

func setKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func shallowestFirst(paths []string) []string {
	return sortByDepth(paths, true)
}

func deepestFirst(paths []string) []string {
	return sortByDepth(paths, false)
}

func sortByDepth(paths []string, shallowFirst bool) []string {
	out := append([]string(nil), paths...)
	depth := func(p string) int { return len(model.SplitPath(p)) }
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			swap := depth(a) > depth(b)
			if !shallowFirst {
				swap = depth(a) < depth(b)
			}
			if depth(a) == depth(b) {
				swap = a > b
			}
			if !swap {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
