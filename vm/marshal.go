package vm

// ---------------------------------------------------------------------------
// Argument marshaling
// ---------------------------------------------------------------------------

// Accessor fetches argument index from args and checks its type. On
// failure it raises the error on t (when t is non-nil) and returns the
// zero placeholder together with the error.
type Accessor[T any] func(args []Value, index int, t *Thread) (T, error)

// CheckArgCount requires exactly n arguments.
func CheckArgCount(args []Value, n int, t *Thread) error {
	if len(args) == n {
		return nil
	}
	return failCount(t, NewArgumentCountError(n, len(args), false))
}

// CheckAtLeastArgCount requires at least n arguments.
func CheckAtLeastArgCount(args []Value, n int, t *Thread) error {
	if len(args) >= n {
		return nil
	}
	return failCount(t, NewArgumentCountError(n, len(args), true))
}

func failCount(t *Thread, err *ScriptError) error {
	if t != nil {
		t.Raise(err)
		t.countError = err
	}
	return err
}

// fetch returns args[index] unless a count error was already raised in
// this call or index is out of range.
func fetch(args []Value, index int, t *Thread) (Value, error) {
	if t != nil && t.countError != nil {
		return Null, t.countError
	}
	if index < 0 || index >= len(args) {
		return Null, failCount(t, NewArgumentCountError(index+1, len(args), true))
	}
	return args[index], nil
}

func mismatch(t *Thread, index int, expected string, got Value) error {
	err := newTypeError(index+1, expected, TypeName(got))
	err.Value = got
	if t != nil {
		t.Raise(err)
	}
	return err
}

// GetValue returns the argument unchecked.
func GetValue(args []Value, index int, t *Thread) (Value, error) {
	return fetch(args, index, t)
}

// GetInteger fetches an Integer argument, reading through linked cells.
func GetInteger(args []Value, index int, t *Thread) (int32, error) {
	v, err := fetch(args, index, t)
	if err != nil {
		return 0, err
	}
	if !v.IsIntegral() {
		return 0, mismatch(t, index, IntegerType.String(), v)
	}
	return v.AsInteger(), nil
}

// GetDecimal fetches a Decimal argument. Integers widen.
func GetDecimal(args []Value, index int, t *Thread) (float32, error) {
	v, err := fetch(args, index, t)
	if err != nil {
		return 0, err
	}
	switch {
	case v.IsFractional():
		return v.AsDecimal(), nil
	case v.IsIntegral():
		return float32(v.AsInteger()), nil
	default:
		return 0, mismatch(t, index, DecimalType.String(), v)
	}
}

// GetBool fetches a truth value: any number, nonzero meaning true.
func GetBool(args []Value, index int, t *Thread) (bool, error) {
	v, err := fetch(args, index, t)
	if err != nil {
		return false, err
	}
	if !v.IsNumber() {
		return false, mismatch(t, index, IntegerType.String(), v)
	}
	return !Falsey(v), nil
}

func getObject[T Object](args []Value, index int, t *Thread, kind ObjectKind) (T, error) {
	var zero T
	v, err := fetch(args, index, t)
	if err != nil {
		return zero, err
	}
	o, ok := v.AsObject().(T)
	if !ok {
		return zero, mismatch(t, index, kind.String(), v)
	}
	return o, nil
}

// GetStringObject fetches a String argument.
func GetStringObject(args []Value, index int, t *Thread) (*StringObject, error) {
	return getObject[*StringObject](args, index, t, KindString)
}

// GetString fetches a String argument and copies its contents out under
// the global lock.
func GetString(args []Value, index int, t *Thread) (string, error) {
	s, err := GetStringObject(args, index, t)
	if err != nil {
		return "", err
	}
	if t == nil {
		return s.String(), nil
	}
	var out string
	err = t.m.WithLock(t, func(*Heap) error {
		out = s.String()
		return nil
	})
	return out, err
}

// GetArray fetches an Array argument.
func GetArray(args []Value, index int, t *Thread) (*ArrayObject, error) {
	return getObject[*ArrayObject](args, index, t, KindArray)
}

// GetMap fetches a Map argument.
func GetMap(args []Value, index int, t *Thread) (*MapObject, error) {
	return getObject[*MapObject](args, index, t, KindMap)
}

// GetFunction fetches a script Function argument.
func GetFunction(args []Value, index int, t *Thread) (*FunctionObject, error) {
	return getObject[*FunctionObject](args, index, t, KindFunction)
}

// GetBoundMethod fetches a Bound Method argument.
func GetBoundMethod(args []Value, index int, t *Thread) (*BoundMethodObject, error) {
	return getObject[*BoundMethodObject](args, index, t, KindBoundMethod)
}

// GetCallable fetches anything that can be called: a Function, Bound
// Method, Native or Class.
func GetCallable(args []Value, index int, t *Thread) (Value, error) {
	v, err := fetch(args, index, t)
	if err != nil {
		return Null, err
	}
	if !IsCallable(v) {
		return Null, mismatch(t, index, KindFunction.String(), v)
	}
	return v, nil
}

// GetClass fetches a Class argument.
func GetClass(args []Value, index int, t *Thread) (*ClassObject, error) {
	return getObject[*ClassObject](args, index, t, KindClass)
}

// GetInstance fetches an Instance argument. Entities are instances too.
func GetInstance(args []Value, index int, t *Thread) (*InstanceObject, error) {
	v, err := fetch(args, index, t)
	if err != nil {
		return nil, err
	}
	inst, ok := AsInstance(v)
	if !ok {
		return nil, mismatch(t, index, KindInstance.String(), v)
	}
	return inst, nil
}

// GetEntity fetches an Entity argument whose scene object is still alive.
// The liveness check takes t's global lock; with a nil thread the caller
// must hold it.
func GetEntity(args []Value, index int, t *Thread) (*EntityObject, error) {
	e, err := getObject[*EntityObject](args, index, t, KindEntity)
	if err != nil {
		return nil, err
	}
	alive := false
	if t != nil {
		if err := t.m.WithLock(t, func(*Heap) error {
			alive = e.Exists()
			return nil
		}); err != nil {
			return nil, err
		}
	} else {
		alive = e.Exists()
	}
	if !alive {
		err := errEntityGone(e.Ref)
		if t != nil {
			t.Raise(err)
		}
		return nil, err
	}
	return e, nil
}

// GetNamespace fetches a Namespace argument.
func GetNamespace(args []Value, index int, t *Thread) (*NamespaceObject, error) {
	return getObject[*NamespaceObject](args, index, t, KindNamespace)
}

// GetStream fetches a Stream argument.
func GetStream(args []Value, index int, t *Thread) (*StreamObject, error) {
	return getObject[*StreamObject](args, index, t, KindStream)
}

// GetHandle fetches an Integer argument as a registry handle.
func GetHandle(args []Value, index int, t *Thread) (Handle, error) {
	i, err := GetInteger(args, index, t)
	return Handle(i), err
}

// Optional fetches argument index with get, or returns def when the
// script passed fewer arguments. args[index] is not touched in that case.
func Optional[T any](args []Value, index int, t *Thread, get Accessor[T], def T) (T, error) {
	if index >= len(args) {
		if t != nil && t.countError != nil {
			return def, t.countError
		}
		return def, nil
	}
	return get(args, index, t)
}

// Resolve fetches a handle argument and looks it up in reg.
func Resolve[T any](reg *Registry[T], args []Value, index int, t *Thread) (T, error) {
	var zero T
	h, err := GetHandle(args, index, t)
	if err != nil {
		return zero, err
	}
	v, err := reg.Resolve(h)
	if err != nil {
		if t != nil {
			t.Raise(err)
		}
		return zero, err
	}
	return v, nil
}
