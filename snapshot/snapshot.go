// Package snapshot implements the Snapshot Store from spec.md §4.3: a
// lock-free published handle to an immutable Container, swapped
// atomically by the Update Controller.
//
// The pattern is the one ipni-go-libipni's pcache.ProviderCache uses for
// its own `read atomic.Pointer[readOnly]` field — an atomic.Pointer swap
// with no mutex on the read path — generalized here from one fixed
// struct type to any container.Container[K, V].
package snapshot

import (
	"sync/atomic"

	"github.com/IvanBrykalov/pgcache/container"
)

// Store owns the current published snapshot. The zero value is ready to
// use and reports Get as empty until the first Set.
type Store[K comparable, V any] struct {
	p atomic.Pointer[container.Container[K, V]]
}

// Get returns the current published snapshot, or nil if none has been
// published yet. The returned Container must not be mutated by the
// caller: once published, a container is immutable until it is replaced
// in its entirety by a later Set. Lock-free.
func (s *Store[K, V]) Get() container.Container[K, V] {
	p := s.p.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Set atomically replaces the current snapshot. Any reader holding a
// handle returned by a prior Get keeps observing that prior container in
// full: Set never mutates what Get previously returned.
func (s *Store[K, V]) Set(c container.Container[K, V]) {
	s.p.Store(&c)
}

// Clear replaces the current snapshot with nil, as if none had ever been
// published. Used on shutdown.
func (s *Store[K, V]) Clear() {
	s.p.Store(nil)
}
