// Package obslog centralizes the handful of warn/log call sites spec.md
// names explicitly, grounded on internal/extensibility/actionrunner.go's
// LoggingActionRunner and internal/core/machine.go's "// TODO log" markers,
// both of which use the standard library log package directly.
package obslog

import "log"

// ObserverPanic logs a recovered panic from a snapshot observer (spec.md
// §4.5 "Exceptions thrown by observers are logged and swallowed").
func ObserverPanic(machineID string, r any) {
	log.Printf("statecraft: machine %q: observer panicked: %v", machineID, r)
}

// UnresolvedReference logs a symbolic action/guard/delay/logic name that
// has no registered implementation (spec.md §7 "Unresolved reference").
func UnresolvedReference(machineID, kind, name string, err error) {
	log.Printf("statecraft: machine %q: unresolved %s %q: %v", machineID, kind, name, err)
}

// AlwaysLoopCapExceeded logs when the eventless closure's safety counter is
// exceeded (spec.md §4.5 step 12, invariant I-7).
func AlwaysLoopCapExceeded(machineID string, cap int) {
	log.Printf("statecraft: machine %q: eventless closure exceeded %d iterations, stopping", machineID, cap)
}

// InvocationErrorUnhandled logs an invocation's error event that no active
// node's `on` map handled (spec.md §4.8).
func InvocationErrorUnhandled(machineID, invocationID string, err error) {
	log.Printf("statecraft: machine %q: invocation %q errored with no handler: %v", machineID, invocationID, err)
}

// UnknownSendTarget logs a sendTo effect naming a child id the actor has no
// record of (spec.md §4.5 "warn if unknown").
func UnknownSendTarget(machineID, targetID string) {
	log.Printf("statecraft: machine %q: sendTo target %q not found", machineID, targetID)
}

// NoParentSink logs a sendParent effect when the actor has no parent sink
// wired (spec.md §4.5 "warn if none").
func NoParentSink(machineID string) {
	log.Printf("statecraft: machine %q: sendParent with no parent actor", machineID)
}
