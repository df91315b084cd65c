package index

import (
	"sync/atomic"

	"github.com/soulnutri/dishscan/internal/metrics"
)

// Handle publishes the serving index to concurrent readers. Searches run
// lock-free against an immutable snapshot; a rebuild constructs a new Index
// off to the side and Swap makes it visible in one atomic store, letting
// in-flight searches finish against the old view.
type Handle struct {
	ptr atomic.Pointer[Index]
}

// NewHandle returns a handle serving x, which may be nil (not ready).
func NewHandle(x *Index) *Handle {
	h := &Handle{}
	h.Swap(x)
	return h
}

// Current returns the serving index snapshot, or nil when none is loaded.
func (h *Handle) Current() *Index {
	return h.ptr.Load()
}

// Swap atomically replaces the serving index.
func (h *Handle) Swap(x *Index) {
	h.ptr.Store(x)
	metrics.IndexEntries.Set(float64(x.Len()))
	metrics.IndexDishes.Set(float64(x.DishCount()))
}

// Ready reports whether a usable index is being served.
func (h *Handle) Ready() bool {
	return h.Current().Ready()
}

// Stats summarizes the serving index.
func (h *Handle) Stats() Stats {
	return h.Current().Stats()
}
