package stdlib

import (
	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// Number and Function natives
// ---------------------------------------------------------------------------

func (lib *Library) numberBindings() []binding {
	return []binding{
		// ToString(value) - the printed form of any value
		{"Number.ToString", vm.Native1(func(t *vm.Thread, v vm.Value) (vm.Value, error) {
			var s string
			if err := locked(t, func(*vm.Heap) error { s = v.String(); return nil }); err != nil {
				return vm.Null, err
			}
			return newString(t, s)
		})},

		{"Number.AsInteger", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			if _, err := vm.GetDecimal(args, 0, t); err != nil {
				return vm.Null, err
			}
			return vm.CastAsInteger(args[0]), nil
		})},

		{"Number.AsDecimal", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			d, err := vm.GetDecimal(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return vm.FromDecimal(d), nil
		})},
	}
}

func (lib *Library) functionBindings() []binding {
	return []binding{
		// Bind(function, receiver) - a bound method calling function on receiver
		{"Function.Bind", vm.NativeN(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			fn, err := vm.GetFunction(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			recv := vm.Delink(args[1])
			v := vm.Null
			err = locked(t, func(h *vm.Heap) error {
				v = vm.FromObject(h.NewBoundMethod(recv, fn))
				return nil
			})
			return v, err
		})},

		{"Function.IsCallable", vm.Native1(func(_ *vm.Thread, v vm.Value) (vm.Value, error) {
			return vm.FromBool(vm.IsCallable(v)), nil
		})},
	}
}
