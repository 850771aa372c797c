package vm

// Native0Fn is a native taking no arguments.
type Native0Fn func(t *Thread) (Value, error)

// Native1Fn is a native taking one argument.
type Native1Fn func(t *Thread, a Value) (Value, error)

// Native2Fn is a native taking two arguments.
type Native2Fn func(t *Thread, a, b Value) (Value, error)

// Native3Fn is a native taking three arguments.
type Native3Fn func(t *Thread, a, b, c Value) (Value, error)

// ---------------------------------------------------------------------------
// Arity-checked native wrappers
// ---------------------------------------------------------------------------

// Native0 adapts fn to NativeFn, checking that no arguments were passed.
func Native0(fn Native0Fn) NativeFn {
	return func(t *Thread, args []Value) (Value, error) {
		if err := CheckArgCount(args, 0, t); err != nil {
			return Null, err
		}
		return fn(t)
	}
}

// Native1 adapts fn to NativeFn, checking for exactly one argument.
func Native1(fn Native1Fn) NativeFn {
	return func(t *Thread, args []Value) (Value, error) {
		if err := CheckArgCount(args, 1, t); err != nil {
			return Null, err
		}
		return fn(t, args[0])
	}
}

// Native2 adapts fn to NativeFn, checking for exactly two arguments.
func Native2(fn Native2Fn) NativeFn {
	return func(t *Thread, args []Value) (Value, error) {
		if err := CheckArgCount(args, 2, t); err != nil {
			return Null, err
		}
		return fn(t, args[0], args[1])
	}
}

// Native3 adapts fn to NativeFn, checking for exactly three arguments.
func Native3(fn Native3Fn) NativeFn {
	return func(t *Thread, args []Value) (Value, error) {
		if err := CheckArgCount(args, 3, t); err != nil {
			return Null, err
		}
		return fn(t, args[0], args[1], args[2])
	}
}

// NativeN checks for exactly n arguments before calling fn.
func NativeN(n int, fn NativeFn) NativeFn {
	return func(t *Thread, args []Value) (Value, error) {
		if err := CheckArgCount(args, n, t); err != nil {
			return Null, err
		}
		return fn(t, args)
	}
}

// NativeAtLeast checks for at least n arguments before calling fn.
func NativeAtLeast(n int, fn NativeFn) NativeFn {
	return func(t *Thread, args []Value) (Value, error) {
		if err := CheckAtLeastArgCount(args, n, t); err != nil {
			return Null, err
		}
		return fn(t, args)
	}
}
