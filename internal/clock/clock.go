// Package clock provides the injectable time source spec.md §6 names among
// the environment/services surface, grounded on
// internal/extensibility/eventsource.go's direct use of time.Ticker/
// time.Timer — generalized here into an interface so C6's timer manager is
// deterministically testable (spec.md §8 property P-5).
package clock

import "time"

// Clock abstracts wall-clock time and timer creation.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the minimal handle C6 needs: cancellation.
type Timer interface {
	Stop() bool
}

// Real is the production Clock backed by the time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
