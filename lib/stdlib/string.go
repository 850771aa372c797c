package stdlib

import (
	"strconv"
	"strings"

	"github.com/chazu/hatchvm/vm"
)

// ---------------------------------------------------------------------------
// String natives
// ---------------------------------------------------------------------------

func (lib *Library) stringBindings() []binding {
	return []binding{
		{"String.Length", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetString(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return intValue(len(s))
		})},

		// Concat(a, b, ...) - join any number of values; non-strings are
		// formatted the way print shows them
		{"String.Concat", vm.NativeAtLeast(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			v := vm.Null
			err := locked(t, func(h *vm.Heap) error {
				var b strings.Builder
				for _, a := range args {
					b.WriteString(a.String())
				}
				v = vm.FromObject(h.NewString(b.String()))
				return nil
			})
			return v, err
		})},

		// Substring(s, start [, length]) - byte range of s
		{"String.Substring", vm.NativeAtLeast(2, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			if len(args) > 3 {
				return vm.Null, vm.CheckArgCount(args, 3, t)
			}
			s, err := vm.GetString(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			start, err := vm.GetInteger(args, 1, t)
			if err != nil {
				return vm.Null, err
			}
			n := len(s)
			if start < 0 || int(start) > n {
				return vm.Null, vm.RangeErrorf(int(start), 0, n,
					"Index %d is out of bounds of string of size %d.", start, n)
			}
			length, err := vm.Optional(args, 2, t, vm.GetInteger, int32(n)-start)
			if err != nil {
				return vm.Null, err
			}
			end := int(start) + int(length)
			if length < 0 || end > n {
				return vm.Null, vm.DomainErrorf(vm.FromInteger(length), 0, n-int(start),
					"Substring length %d is out of range for a string of size %d starting at %d.", length, n, start)
			}
			return newString(t, s[start:end])
		})},

		{"String.ToUpperCase", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetString(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return newString(t, strings.ToUpper(s))
		})},

		{"String.ToLowerCase", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetString(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			return newString(t, strings.ToLower(s))
		})},

		{"String.ParseInteger", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetString(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return vm.Null, vm.DomainErrorf(args[0], 0, 0, "Could not parse %q as an Integer.", s)
			}
			return vm.FromInteger(int32(i)), nil
		})},

		{"String.ParseDecimal", vm.NativeN(1, func(t *vm.Thread, args []vm.Value) (vm.Value, error) {
			s, err := vm.GetString(args, 0, t)
			if err != nil {
				return vm.Null, err
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
			if err != nil {
				return vm.Null, vm.DomainErrorf(args[0], 0, 0, "Could not parse %q as a Decimal.", s)
			}
			return vm.FromDecimal(float32(f)), nil
		})},
	}
}
