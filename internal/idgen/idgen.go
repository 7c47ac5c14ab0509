// Package idgen implements the id-generation service spec.md §6 names
// ("test implementations permit deterministic replay"): a uuid-backed
// default for production and a sequential counter for reproducible tests.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces ids for spawned actors and invocations that don't name
// one explicitly.
type Generator interface {
	NewID(prefix string) string
}

// UUID is the production Generator, backed by github.com/google/uuid, as
// used for spawned/invoked child ids in the pack's actor-style repos.
type UUID struct{}

func (UUID) NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Sequential is a deterministic Generator for tests and replay. One counter
// is shared by every prefix, so ids are numbered in call order: NewID("a")
// then NewID("b") yields "a-1", then "b-2".
type Sequential struct {
	counter atomic.Int64
}

func (s *Sequential) NewID(prefix string) string {
	n := s.counter.Add(1)
	return fmt.Sprintf("%s-%d", prefix, n)
}
