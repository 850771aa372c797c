package vm

// ---------------------------------------------------------------------------
// Callables
// ---------------------------------------------------------------------------

// Code is the executable body of a script function as produced by the
// compiler. Execute runs with the function's frame on top of the thread's
// frame stack and returns the function's result.
type Code interface {
	Execute(t *Thread, frame *CallFrame) (Value, error)
}

// CodeFunc adapts a Go function to Code.
type CodeFunc func(t *Thread, frame *CallFrame) (Value, error)

func (f CodeFunc) Execute(t *Thread, frame *CallFrame) (Value, error) {
	return f(t, frame)
}

// FunctionObject is a compiled script function. It is immutable once
// created.
type FunctionObject struct {
	objectHeader
	Name      string
	Arity     int
	MinArity  int
	Code      Code
	Constants []Value
	Class     *ClassObject
}

func (f *FunctionObject) Kind() ObjectKind { return KindFunction }

// AcceptsArgs reports whether argCount satisfies the function's arity.
func (f *FunctionObject) AcceptsArgs(argCount int) bool {
	return argCount >= f.MinArity && argCount <= f.Arity
}

// BoundMethodObject pairs a function with the receiver it is called on.
type BoundMethodObject struct {
	objectHeader
	Receiver Value
	Method   *FunctionObject
}

func (b *BoundMethodObject) Kind() ObjectKind { return KindBoundMethod }

// NativeFn is the signature of every native binding. args holds exactly
// the arguments the script passed. A returned error (or any error raised
// on t during the call) makes the call yield Null; see Thread.CallValue.
type NativeFn func(t *Thread, args []Value) (Value, error)

// NativeObject exposes a Go function to scripts.
type NativeObject struct {
	objectHeader
	Name string
	Fn   NativeFn
}

func (n *NativeObject) Kind() ObjectKind { return KindNative }

// IsCallable reports whether v can be passed to Thread.CallValue.
func IsCallable(v Value) bool {
	if !v.IsObject() {
		return false
	}
	switch v.obj.Kind() {
	case KindFunction, KindBoundMethod, KindNative, KindClass:
		return true
	default:
		return false
	}
}
