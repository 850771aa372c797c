package stdlib

import (
	"slices"

	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// Array natives
// ---------------------------------------------------------------------------

func (lib *Library) arrayBindings() []binding {
	return []binding{
		// Create([size [, fill]]) - array of size copies of fill
		{"Array.Create", func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			if len(args) > 2 {
				return vm.Null, vm.CheckArgCount(args, 2, t)
			}
			size, err := vm.Optional(args, 0, t, vm.GetInteger, 0)
			if err != nil {
				return vm.Null, err
			}
			fill, err := vm.Optional(args, 1, t, vm.GetValue, vm.Null)
			if err != nil {
				return vm.Null, err
			}
			if size < 0 {
				return vm.Null, vm.DomainErrorf(vm.FromInteger(size), 0, 0, "Array size %d cannot be negative.", size)
			}
			v := vm.Null
			err = locked(t, func(h *vm.Heap) error {
				v = vm.FromObject(h.NewArray(int(size), fill))
				return nil
			})
			return v, err
		}},

		{"Array.Length", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			n := 0
			if err := locked(t, func(*vm.Heap) error { n = a.Len(); return nil }); err != nil {
				return vm.Null, err
			}
			return intValue(n)
		})},

		{"Array.Get", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, i, err := arrayIndex(t, args)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(*vm.Heap) error {
				var err error
				v, err = a.Get(i)
				return err
			})
			return v, err
		})},

		{"Array.Set", vm.NativeN(3, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, i, err := arrayIndex(t, args)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error { return a.Set(i, vm.Delink(args[2])) })
		})},

		{"Array.Push", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error {
				a.Push(vm.Delink(args[1]))
				return nil
			})
		})},

		// Pop(array) - remove and return the last element
		{"Array.Pop", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Null
			err = locked(t, func(*vm.Heap) error {
				var err error
				v, err = a.Pop()
				return err
			})
			return v, err
		})},

		{"Array.Insert", vm.NativeN(3, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, i, err := arrayIndex(t, args)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error { return a.Insert(i, vm.Delink(args[2])) })
		})},

		{"Array.Erase", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, i, err := arrayIndex(t, args)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error { return a.Erase(i) })
		})},

		{"Array.Clear", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error { a.Clear(); return nil })
		})},

		{"Array.Contains", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			found := false
			err = locked(t, func(*vm.Heap) error { found = a.IndexOf(args[1]) >= 0; return nil })
			return vm.FromBool(found), err
		})},

		// IndexOf(array, value) - first index of an equal element, or -1
		{"Array.IndexOf", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			idx := -1
			if err := locked(t, func(*vm.Heap) error { idx = a.IndexOf(args[1]); return nil }); err != nil {
				return vm.Null, err
			}
			return intValue(idx)
		})},

		{"Array.Reverse", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.Null, locked(t, func(*vm.Heap) error { slices.Reverse(a.Values); return nil })
		})},

		// SetAll(array, value) - overwrite every element
		{"Array.SetAll", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			a, err := vm.GetArray(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			v := vm.Delink(args[1])
			return vm.Null, locked(t, func(*vm.Heap) error {
				for i := range a.Values {
					a.Values[i] = v
				}
				return nil
			})
		})},

		{"Array.Sort", arraySort},
	}
}

// arrayIndex fetches the (array, index) pair most array natives start with.
func arrayIndex(t *vm.Thread, args []vm.Value) (*vm.ArrayObject, int, error) {
	a, err := vm.GetArray(args, 0, t)
	if err != nil {
		return nil, 0, err
	}
	i, err := vm.GetInteger(args, 1, t)
	if err != nil {
		return nil, 0, err
	}
	return a, int(i), nil
}

// arraySort sorts in place and is stable. With a comparator the order is
// comparator(a, b) < 0; without one, numeric elements are ordered among
// themselves and every other element keeps its position.
func arraySort(t *vm.Thread, args []vm.Value) (vm.Value, error) {
	if len(args) > 2 {
		return vm.Null, vm.CheckArgCount(args, 2, t)
	}
	a, err := vm.GetArray(args, 0, t)
	if err != nil {
		return vm.Null, err
	}
	cmp, err := vm.Optional(args, 1, t, vm.GetCallable, vm.Null)
	if err != nil {
		return vm.Null, err
	}
	if cmp.IsNull() {
		return vm.Null, locked(t, func(*vm.Heap) error {
			sortNumbers(a.Values)
			return nil
		})
	}

	var values []vm.Value
	if err := locked(t, func(*vm.Heap) error {
		values = slices.Clone(a.Values)
		return nil
	}); err != nil {
		return vm.Null, err
	}
	// The comparator may drop elements from the array while we hold them.
	t.Pin(values...)
	defer t.Unpin(len(values))

	var callErr error
	slices.SortStableFunc(values, func(x, y vm.Value) int {
		if callErr != nil {
			return 0
		}
		r, err := t.RunValue(cmp, x, y)
		if err != nil {
			callErr = err
			return 0
		}
		if !r.IsNumber() {
			callErr = vm.NewTypeMismatchError(0, "Number", vm.TypeName(r))
			return 0
		}
		switch d := vm.CastAsDecimal(r).AsDecimal(); {
		case d < 0:
			return -1
		case d > 0:
			return 1
		default:
			return 0
		}
	})
	if callErr != nil {
		return vm.Null, callErr
	}
	return vm.Null, locked(t, func(*vm.Heap) error {
		if a.Len() != len(values) {
			return vm.Errorf(vm.Runtime, "Array was resized while being sorted.")
		}
		copy(a.Values, values)
		return nil
	})
}

func sortNumbers(values []vm.Value) {
	var slots []int
	var nums []vm.Value
	for i, v := range values {
		if v.IsNumber() {
			slots = append(slots, i)
			nums = append(nums, v)
		}
	}
	slices.SortStableFunc(nums, func(x, y vm.Value) int {
		c, _ := vm.CompareNumbers(x, y)
		return c
	})
	for i, slot := range slots {
		values[slot] = nums[i]
	}
}
