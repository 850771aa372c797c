package stdlib

import (
	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// Map natives
// ---------------------------------------------------------------------------

func (lib *Library) mapBindings() []binding {
	return []binding{
		{"Map.Create", vm.NativeN(0, func(t *vm.Thread, _ []vm.Value) (vm.Value, error) {
			v := vm.Null
			err := locked(t, func(h *vm.Heap) error {
				v = vm.FromObject(h.NewMap())
				return nil
			})
			return v, err
		})},

		{"Map.Length", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, err := vm.GetMap(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			n := 0
			if err := locked(t, func(*vm.Heap) error { n = m.Len(); return nil }); err != nil {
				return vm.Null, err
			}
			return intValue(n)
		})},

		// Keys(map) - array of keys in insertion order
		{"Map.Keys", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, err := vm.GetMap(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(h *vm.Heap) error {
				keys := m.Keys()
				a := h.NewArray(0, vm.Null)
				for _, k := range keys {
					a.Push(vm.FromObject(h.NewString(k)))
				}
				v = vm.FromObject(a)
				return nil
			})
			return v, err
		})},

		{"Map.Values", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, err := vm.GetMap(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(h *vm.Heap) error {
				a := h.NewArray(0, vm.Null)
				m.Each(func(_ string, e vm.Value) bool {
					a.Push(vm.Delink(e))
					return true
				})
				v = vm.FromObject(a)
				return nil
			})
			return v, err
		})},

		{"Map.Has", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, key, err := mapKey(t, args)
			if err != nil {
				return vm.Null, err
			}
			ok := false
			err = locked(t, func(*vm.Heap) error { ok = m.Has(key); return nil })
			return vm.FromBool(ok), err
		})},

		// Get(map, key) - the value under key, or null when absent
		{"Map.Get", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, key, err := mapKey(t, args)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(*vm.Heap) error {
				v, _ = m.Get(key)
				return nil
			})
			return vm.Delink(v), err
		})},

		{"Map.Put", vm.NativeN(3, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, key, err := mapKey(t, args)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error {
				m.Put(key, vm.Delink(args[2]))
				return nil
			})
		})},

		// Remove(map, key) - 1 if the key was present
		{"Map.Remove", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, key, err := mapKey(t, args)
			if err != nil {
				return vm.Null, err
			}
			ok := false
			err = locked(t, func(*vm.Heap) error { ok = m.Remove(key); return nil })
			return vm.FromBool(ok), err
		})},

		// Iterate(map, iterator) - next iterator, starting from 0; 0 when done
		{"Map.Iterate", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, it, err := mapIterator(t, args)
			if err != nil {
				return vm.Null, err
			}
			next := 0
			if err := locked(t, func(*vm.Heap) error { next = m.Iterate(it); return nil }); err != nil {
				return vm.Null, err
			}
			return intValue(next)
		})},

		{"Map.IteratorKey", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, it, err := mapIterator(t, args)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(h *vm.Heap) error {
				k, ok := m.IteratorKey(it)
				if !ok {
					return iteratorError(it, m.Len())
				}
				v = vm.FromObject(h.NewString(k))
				return nil
			})
			return v, err
		})},

		{"Map.IteratorValue", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			m, it, err := mapIterator(t, args)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(*vm.Heap) error {
				var ok bool
				if v, ok = m.IteratorValue(it); !ok {
					return iteratorError(it, m.Len())
				}
				return nil
			})
			return vm.Delink(v), err
		})},
	}
}

func mapKey(t *vm.Thread, args []vm.Value) (*vm.MapObject, string, error) {
	m, err := vm.GetMap(args, 0, t)
	if err != nil {
		return nil, "", err
	}
	key, err := vm.GetString(args, 1, t)
	if err != nil {
		return nil, "", err
	}
	return m, key, nil
}

func mapIterator(t *vm.Thread, args []vm.Value) (*vm.MapObject, int, error) {
	m, err := vm.GetMap(args, 0, t)
	if err != nil {
		return nil, 0, err
	}
	it, err := vm.GetInteger(args, 1, t)
	if err != nil {
		return nil, 0, err
	}
	return m, int(it), nil
}

func iteratorError(it, size int) *vm.ScriptError {
	return vm.RangeErrorf(it, 1, size, "Iterator %d is not valid for a map of size %d.", it, size)
}
