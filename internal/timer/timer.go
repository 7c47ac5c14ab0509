// Package timer implements component C6 of spec.md §4.6: scheduling and
// cancellation of delayed (`after`) transitions, keyed by the (path,
// delay-key) pair of the state node that declared them.
//
// Grounded on the teacher's internal/extensibility/eventsource.go
// TimerEventSource, which drives a channel off a single time.Ticker;
// generalized here from one periodic ticker to a table of one-shot
// clock.Timer handles, one per active (path, key), cancelled via
// Timer.Stop() exactly as the teacher cancels its ticker.
package timer

import (
	"sync"
	"time"

	"github.com/kestrelhq/statecraft/internal/clock"
)

// Key identifies one scheduled (or fired) delayed transition.
type Key struct {
	Path string
	Name string // delay key, stringified (numeric or named)
}

// Sink is how a fired timer delivers its synthesized $delay event back to
// the actor. Implementations must be safe to call from the timer's own
// goroutine (spec.md §4.6 "scheduled deferred event ... against C5").
type Sink func(path, name string)

type entry struct {
	handle clock.Timer
	token  uint64
}

// Manager owns every live timer handle for one actor (spec.md §3 "Timer
// table").
type Manager struct {
	mu      sync.Mutex
	clock   clock.Clock
	sink    Sink
	nextTok uint64
	handles map[Key]entry
}

// New constructs a Manager delivering fired timers to sink via clk.
func New(clk clock.Clock, sink Sink) *Manager {
	return &Manager{clock: clk, sink: sink, handles: make(map[Key]entry)}
}

// Schedule starts one timer for (path, name) after d, per spec.md §4.6
// "resolve the key ... schedule a deferred event $delay{path, key} against
// C5, and record the handle under (path, key)". A zero duration is still
// scheduled via the clock rather than fired synchronously (spec.md §4.6
// "Zero delay ... delivered in a subsequent macro-step, not synchronously
// within the current one").
func (m *Manager) Schedule(path, name string, d time.Duration) {
	key := Key{Path: path, Name: name}
	m.mu.Lock()
	if existing, ok := m.handles[key]; ok {
		existing.handle.Stop()
	}
	m.nextTok++
	tok := m.nextTok
	h := m.clock.AfterFunc(d, func() { m.fire(key, tok) })
	m.handles[key] = entry{handle: h, token: tok}
	m.mu.Unlock()
}

func (m *Manager) fire(key Key, tok uint64) {
	m.mu.Lock()
	current, ok := m.handles[key]
	m.mu.Unlock()
	// A timer that fires after its path was cancelled (exited, or
	// rescheduled by re-entry) must have no effect (I-4): only the
	// still-installed token for this key may deliver its event.
	if !ok || current.token != tok {
		return
	}
	m.sink(key.Path, key.Name)
}

// CancelPath cancels every timer scheduled under path, per spec.md §4.6
// "On deactivation of the path, cancel every handle under that path".
func (m *Manager) CancelPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.handles {
		if key.Path == path {
			e.handle.Stop()
			delete(m.handles, key)
		}
	}
}

// CancelAll stops every live timer (actor Stop, spec.md §4.5).
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.handles {
		e.handle.Stop()
		delete(m.handles, key)
	}
}
