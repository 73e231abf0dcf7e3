package backend

import (
	"runtime"
	"sync/atomic"

	"github.com/coinbase/pk11-go/internal/bindings"
)

// Owned is the exclusive owner of one non-null native handle. Close releases
// the handle through its free function exactly once, no matter how many
// times or from how many goroutines it is called. An owner that is garbage
// collected without being closed is released by a finalizer.
type Owned[H ~uintptr] struct {
	raw  atomic.Uintptr
	free func(H)
}

// Wrap takes ownership of h. A null handle is never stored: Wrap returns the
// translation of code instead, which callers must capture from the same
// native call that produced h.
func Wrap[H ~uintptr](op string, h H, code bindings.Code, free func(H)) (*Owned[H], error) {
	if h == 0 {
		return nil, Native(op, code)
	}
	o := &Owned[H]{free: free}
	o.raw.Store(uintptr(h))
	runtime.SetFinalizer(o, (*Owned[H]).Close)
	return o, nil
}

// Get borrows the raw handle for a native call. The owner keeps it; callers
// must hold a reference to the owner (runtime.KeepAlive) until the call
// returns. Get returns the null handle after Close.
func (o *Owned[H]) Get() H {
	if o == nil {
		return 0
	}
	return H(o.raw.Load())
}

// Valid reports whether the owner still holds a handle.
func (o *Owned[H]) Valid() bool {
	return o.Get() != 0
}

// Close frees the handle. It is safe to call on a nil owner.
func (o *Owned[H]) Close() {
	if o == nil {
		return
	}
	h := o.raw.Swap(0)
	if h == 0 {
		return
	}
	runtime.SetFinalizer(o, nil)
	o.free(H(h))
}
