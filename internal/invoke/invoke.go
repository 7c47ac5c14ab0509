// Package invoke implements components C7 (invocation manager) and C8
// (child-actor adapters) of spec.md §4.7/§4.8: starting and stopping child
// actors bound to a declaring state node's activation, and the two built-in
// logic kinds (promise, callback) those children run.
//
// Grounded on the teacher's pluggable-component pattern
// (internal/core/machine.go's ActionRunner/GuardEvaluator interfaces,
// generalized here to an invocation Logic interface) and on
// internal/production/eventpublisher.go's ChannelPublisher for the
// non-blocking outbound-event-to-mailbox wiring shape.
package invoke

import "sync"

// Deliver is how a running invocation hands an event back to the actor
// that owns it (spec.md §4.7 "wiring the adapter's outbound event sink to
// enqueue events on C5").
type Deliver func(eventType string, data any)

// Handle is what Start returns: the live invocation's stop function.
// Stop must be idempotent and must guarantee no further Deliver call after
// it returns (spec.md §4.8 "the adapter must ignore outbound events emitted
// after its stop has been called").
type Handle interface {
	Stop()
}

// Receiver is optionally implemented by a Handle to accept events sent
// into it from its owning actor (spec.md §4.5 "sendTo(actorId, event)",
// §4.8 "receive registers a listener for events the parent sends into this
// invocation"). Promise logic does not implement it; callback logic does.
type Receiver interface {
	Send(eventType string, data any)
}

// Logic is the resolved, running form of an invocation descriptor's `src`
// (spec.md §3 "Action/guard/delay descriptor" extended to invocation logic,
// §4.8). Start is called once, synchronously, on state entry.
type Logic interface {
	Start(id string, input any, deliver Deliver) Handle
}

// LogicFunc adapts a plain function to Logic.
type LogicFunc func(id string, input any, deliver Deliver) Handle

func (f LogicFunc) Start(id string, input any, deliver Deliver) Handle { return f(id, input, deliver) }

type key struct {
	path string
	id   string
}

// Manager owns every running invocation for one actor (spec.md §3
// "Invoked child actors exist only for state nodes in the active node
// set"). Like timer.Manager it is intended for the single-actor-owner
// model of spec.md §5.
type Manager struct {
	mu      sync.Mutex
	running map[key]Handle
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{running: make(map[key]Handle)}
}

// Start begins running logic for invocation id declared at path, recording
// its handle so StopPath/StopAll can later stop it (spec.md §4.7 "Starting
// means constructing the adapter ... and wiring the adapter's outbound
// event sink"). A duplicate (path, id) stops the prior handle first, the
// re-entry case of spec.md §4.7, where exiting and re-entering the
// declaring state stops the old invocation and starts a new one.
func (m *Manager) Start(path, id string, logic Logic, input any, deliver Deliver) {
	m.mu.Lock()
	k := key{path: path, id: id}
	if prior, ok := m.running[k]; ok {
		prior.Stop()
	}
	m.mu.Unlock()

	h := logic.Start(id, input, deliver)

	m.mu.Lock()
	m.running[k] = h
	m.mu.Unlock()
}

// StopPath stops and forgets every invocation declared at path (spec.md
// §4.7 "stop each on exit").
func (m *Manager) StopPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.running {
		if k.path == path {
			h.Stop()
			delete(m.running, k)
		}
	}
}

// StopAll stops every running invocation (actor Stop, spec.md §4.5).
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.running {
		h.Stop()
		delete(m.running, k)
	}
}

// Send routes an inbound sendTo(actorId, event) effect to the running
// invocation with the given id, regardless of which path declared it
// (spec.md §4.5 "sendTo(actorId, event) ... the target may be an invoked
// child"). Reports false if no running invocation has that id, or if its
// Handle does not accept inbound events (promise logic does not).
func (m *Manager) Send(id, eventType string, data any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, h := range m.running {
		if k.id != id {
			continue
		}
		r, ok := h.(Receiver)
		if !ok {
			return false
		}
		r.Send(eventType, data)
		return true
	}
	return false
}
