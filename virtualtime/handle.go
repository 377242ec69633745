package virtualtime

import (
	"github.com/noodlebox/vclock"
)

// A Handle is returned for every scheduled action. Disposing it cancels the
// action if it has not run yet. For recursive and periodic work the Handle
// follows every continuation scheduled through it.
type Handle[T any] struct {
	items    []*item[T]
	owned    vclock.Composite
	disposed bool
}

var _ vclock.Disposable = (*Handle[int])(nil)

// Dispose cancels any pending action tracked by h. Cancelled actions stay
// in the queue and are discarded when the run loop reaches them. If an
// action already ran and returned a Disposable, that is disposed as well.
func (h *Handle[T]) Dispose() {
	if h.disposed {
		return
	}
	h.disposed = true
	for _, it := range h.items {
		it.cancelled = true
	}
	h.items = nil
	h.owned.Dispose()
}

// Disposed reports whether Dispose has been called.
func (h *Handle[T]) Disposed() bool {
	return h.disposed
}

// Pending reports whether an action tracked by h is still waiting to run.
func (h *Handle[T]) Pending() bool {
	for _, it := range h.items {
		if it.queued() && !it.cancelled {
			return true
		}
	}
	return false
}

func (h *Handle[T]) track(it *item[T]) {
	live := h.items[:0]
	for _, prev := range h.items {
		if prev.queued() {
			live = append(live, prev)
		}
	}
	for i := len(live); i < len(h.items); i++ {
		h.items[i] = nil
	}
	h.items = append(live, it)
}

// attach takes ownership of the Disposable returned by an action. Once h
// is disposed, d is disposed immediately.
func (h *Handle[T]) attach(d vclock.Disposable) {
	h.owned.Add(d)
}
