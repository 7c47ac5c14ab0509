package invoke

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// DoneEventType and ErrorEventType build the implicit event types spec.md
// §4.2/§4.8 synthesizes for invocation completion, mirroring
// model.DoneInvokeEvent/ErrorInvokeEvent without importing internal/model
// (keeping this package's only dependency the stdlib, like the teacher's
// extensibility tier).
func DoneEventType(id string) string  { return fmt.Sprintf("done.invoke.%s", id) }
func ErrorEventType(id string) string { return fmt.Sprintf("error.invoke.%s", id) }

// PromiseFunc is the callable spec.md §4.8 "Promise logic" wraps: given the
// resolved input, it runs to completion and returns an output or an error.
type PromiseFunc func(ctx context.Context, input any) (any, error)

type promiseHandle struct {
	cancel context.CancelFunc
	done   atomic.Bool
}

func (h *promiseHandle) Stop() {
	h.done.Store(true)
	h.cancel()
}

// FromPromise builds the Logic for a PromiseFunc (spec.md §4.8, §6
// "fromPromise(fn) wraps a callable that returns a future"). On
// completion it delivers done.invoke.<id> with the output under key
// "output", or error.invoke.<id> with the error under key "error"; after
// Stop, neither is ever delivered (spec.md §4.8 "After stop, no emission").
func FromPromise(fn PromiseFunc) Logic {
	return LogicFunc(func(id string, input any, deliver Deliver) Handle {
		ctx, cancel := context.WithCancel(context.Background())
		h := &promiseHandle{cancel: cancel}
		go func() {
			out, err := fn(ctx, input)
			if h.done.Load() {
				return
			}
			if err != nil {
				deliver(ErrorEventType(id), map[string]any{"error": err})
				return
			}
			deliver(DoneEventType(id), map[string]any{"output": out})
		}()
		return h
	})
}

// CallbackArgs is what a callback-logic function receives (spec.md §4.8
// "Callback logic ... receives {sendBack, receive, input}").
type CallbackArgs struct {
	Input    any
	SendBack func(eventType string, data any)
	Receive  func(listener func(eventType string, data any))
}

// CallbackFunc is the callable FromCallback wraps; its optional returned
// cleanup runs on Stop.
type CallbackFunc func(args CallbackArgs) (cleanup func())

type callbackHandle struct {
	mu       sync.Mutex
	stopped  bool
	cleanup  func()
	listener func(eventType string, data any)
}

func (h *callbackHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	if h.cleanup != nil {
		h.cleanup()
	}
}

// send delivers an event this invocation sends to the actor that spawned
// it, ignored after Stop (spec.md §4.8 "inhibit further sendBack calls").
func (h *callbackHandle) send(deliver Deliver, eventType string, data any) {
	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()
	if stopped {
		return
	}
	deliver(eventType, data)
}

// Send forwards an event from the parent actor into this invocation's
// registered receive listener, if any (spec.md §4.8 "receive registers a
// listener for events the parent sends into this invocation").
func (h *callbackHandle) Send(eventType string, data any) {
	h.mu.Lock()
	listener := h.listener
	stopped := h.stopped
	h.mu.Unlock()
	if stopped || listener == nil {
		return
	}
	listener(eventType, data)
}

// FromCallback builds the Logic for a CallbackFunc (spec.md §4.8, §6
// "fromCallback(fn) wraps a callback-style logic").
func FromCallback(fn CallbackFunc) Logic {
	return LogicFunc(func(id string, input any, deliver Deliver) Handle {
		h := &callbackHandle{}
		args := CallbackArgs{
			Input:    input,
			SendBack: func(eventType string, data any) { h.send(deliver, eventType, data) },
			Receive: func(listener func(eventType string, data any)) {
				h.mu.Lock()
				h.listener = listener
				h.mu.Unlock()
			},
		}
		h.cleanup = fn(args)
		return h
	})
}
