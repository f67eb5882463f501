package container

import "sync/atomic"

// Handle is the caller's reference to a resolved service instance.
//
// What Release does depends on the definition the handle came from:
//   - transient: tears down the handle's own instance
//   - shared, persistent: nothing; the instance lives until the container closes
//   - shared, not persistent: drops one reference; the last one tears the
//     shared instance down so the next Get builds a fresh one
//
// Release is idempotent. A handle points back at its definition but does not
// own it; once the container is closed, releasing a shared handle is a no-op.
type Handle[T any] struct {
	value    T
	release  func() error
	released atomic.Bool
}

func newHandle[T any](value T, release func() error) *Handle[T] {
	return &Handle[T]{value: value, release: release}
}

// Value returns the service instance.
func (h *Handle[T]) Value() T { return h.value }

// Release gives the handle back. Only the first call has an effect.
func (h *Handle[T]) Release() error {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return nil
	}
	if h.release == nil {
		return nil
	}
	return h.release()
}

// Released reports whether Release has been called.
func (h *Handle[T]) Released() bool { return h.released.Load() }
