package vm

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Handle registries
// ---------------------------------------------------------------------------

// Handle is the integer scripts hold for a native resource. The low 16 bits
// index a registry slot and the high bits carry the slot's generation, so a
// handle to a removed resource never resolves to its slot's next occupant.
type Handle int32

const (
	handleIndexBits = 16
	handleIndexMask = 1<<handleIndexBits - 1
	maxGeneration   = 0x7FFF

	// MaxRegistrySlots is the capacity of a registry.
	MaxRegistrySlots = 1 << handleIndexBits
)

func makeHandle(index int, generation uint16) Handle {
	return Handle(int32(generation)<<handleIndexBits | int32(index))
}

// Index returns the slot index part of h.
func (h Handle) Index() int { return int(h) & handleIndexMask }

// Generation returns the generation part of h.
func (h Handle) Generation() uint16 { return uint16(int32(h) >> handleIndexBits) }

// Value returns h as a script Integer.
func (h Handle) Value() Value { return FromInteger(int32(h)) }

type registrySlot[T any] struct {
	value      T
	live       bool
	generation uint16
}

// Registry maps handles to resources of one type. It has its own lock and
// may be used without holding the global lock.
type Registry[T any] struct {
	name  string
	mu    sync.RWMutex
	slots []registrySlot[T]
	count int
}

// NewRegistry creates an empty registry. name appears in error messages.
func NewRegistry[T any](name string) *Registry[T] {
	return &Registry[T]{name: name}
}

// Name returns the registry's name.
func (r *Registry[T]) Name() string { return r.name }

// Create stores v in the first free slot and returns its handle.
func (r *Registry[T]) Create(v T) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			s.value = v
			s.live = true
			r.count++
			return makeHandle(i, s.generation), nil
		}
	}
	if len(r.slots) >= MaxRegistrySlots {
		return 0, Errorf(ResourceState, "Cannot create more than %d %s resources.", MaxRegistrySlots, r.name)
	}
	idx, err := safecast.Conv[uint16](len(r.slots))
	if err != nil {
		return 0, fmt.Errorf("%s registry index: %w", r.name, err)
	}
	r.slots = append(r.slots, registrySlot[T]{value: v, live: true})
	r.count++
	return makeHandle(int(idx), 0), nil
}

// Resolve looks up h. Failures are IndexOutOfRange errors naming the valid
// handle range.
func (r *Registry[T]) Resolve(h Handle) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(h)
}

func (r *Registry[T]) lookup(h Handle) (T, error) {
	var zero T
	idx := h.Index()
	if h < 0 || idx >= len(r.slots) {
		return zero, r.rangeError(h)
	}
	s := &r.slots[idx]
	if !s.live {
		return zero, r.rangeError(h)
	}
	if s.generation != h.Generation() {
		return zero, RangeErrorf(int(h), 0, len(r.slots)-1,
			"%s handle %d refers to a resource that was unloaded.", r.name, h)
	}
	return s.value, nil
}

func (r *Registry[T]) rangeError(h Handle) *ScriptError {
	return RangeErrorf(int(h), 0, len(r.slots)-1,
		"Invalid %s handle %d (valid range 0 to %d).", r.name, h, len(r.slots)-1)
}

// Remove frees h's slot and returns the value it held.
func (r *Registry[T]) Remove(h Handle) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.lookup(h)
	if err != nil {
		return v, err
	}
	r.free(h.Index())
	return v, nil
}

func (r *Registry[T]) free(idx int) {
	s := &r.slots[idx]
	var zero T
	s.value = zero
	s.live = false
	if s.generation == maxGeneration {
		s.generation = 0
	} else {
		s.generation++
	}
	r.count--
}

// Len returns the number of slots ever allocated.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// Count returns the number of live entries.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Each visits live entries until fn returns false. fn must not call back
// into the registry.
func (r *Registry[T]) Each(fn func(Handle, T) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.slots {
		s := &r.slots[i]
		if s.live && !fn(makeHandle(i, s.generation), s.value) {
			return
		}
	}
}

// RemoveIf removes every live entry for which pred is true and returns the
// removed values.
func (r *Registry[T]) RemoveIf(pred func(T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []T
	for i := range r.slots {
		s := &r.slots[i]
		if s.live && pred(s.value) {
			removed = append(removed, s.value)
			r.free(i)
		}
	}
	return removed
}
