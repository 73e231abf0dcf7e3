package bindings

import "sync"

// registry maps opaque integer handles to Go values living on the native side
// of the ABI. Handles are never reused within a registry.
type registry struct {
	mu   sync.Mutex
	next uintptr
	objs map[uintptr]any
}

func newRegistry() *registry {
	return &registry{next: 1, objs: make(map[uintptr]any)}
}

func (r *registry) put(v any) uintptr {
	r.mu.Lock()
	h := r.next
	r.next++
	r.objs[h] = v
	r.mu.Unlock()
	return h
}

func (r *registry) get(h uintptr) (any, bool) {
	if h == 0 {
		return nil, false
	}
	r.mu.Lock()
	v, ok := r.objs[h]
	r.mu.Unlock()
	return v, ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objs)
}

// lookup fetches h and asserts its kind. A handle of the wrong kind is
// indistinguishable from an unknown one.
func lookup[T any](r *registry, h uintptr) (T, bool) {
	var zero T
	v, ok := r.get(h)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// release removes h only when it holds a value of kind T.
func release[T any](r *registry, h uintptr) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.objs[h]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	delete(r.objs, h)
	return t, true
}
