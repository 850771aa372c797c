package vm

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// CallFrame
// ---------------------------------------------------------------------------

// CallFrame is one activation on a thread's frame stack. Base is the stack
// slot holding the callee (or the receiver, for methods); the arguments
// follow it.
type CallFrame struct {
	Function *FunctionObject
	Native   *NativeObject
	Base     int
	ArgCount int

	thread *Thread
}

// Name returns the name of the running callable.
func (f *CallFrame) Name() string {
	switch {
	case f.Function != nil:
		if f.Function.Class != nil {
			return f.Function.Class.Name + "." + f.Function.Name
		}
		return f.Function.Name
	case f.Native != nil:
		return f.Native.Name
	default:
		return "<unknown>"
	}
}

// Receiver returns the value in the callee slot.
func (f *CallFrame) Receiver() Value {
	return f.thread.stack[f.Base]
}

// Arg returns argument i, or Null when i is out of range.
func (f *CallFrame) Arg(i int) Value {
	if i < 0 || i >= f.ArgCount {
		return Null
	}
	return f.thread.stack[f.Base+1+i]
}

// Args returns a copy of the frame's arguments.
func (f *CallFrame) Args() []Value {
	out := make([]Value, f.ArgCount)
	copy(out, f.thread.stack[f.Base+1:f.Base+1+f.ArgCount])
	return out
}

// ---------------------------------------------------------------------------
// Thread
// ---------------------------------------------------------------------------

// ThreadState is the continuable error state of a thread.
type ThreadState uint8

const (
	Running ThreadState = iota
	ErrorRaised
)

func (s ThreadState) String() string {
	if s == ErrorRaised {
		return "ErrorRaised"
	}
	return "Running"
}

// ErrorResult is the decision taken after a runtime error was reported.
type ErrorResult uint8

const (
	ErrorContinue ErrorResult = iota
	ErrorExit
)

const defaultStackSize = 256

// Thread is one script execution context: a value stack, a frame stack and
// the per-thread error state. A Thread is driven by one goroutine at a
// time.
type Thread struct {
	ID   int
	Name string

	m           *Manager
	stack       []Value
	sp          int
	frames      []*CallFrame
	returnFrame int
	nativeBases []int
	pinned      []Value

	state       ThreadState
	callError   *ScriptError
	countError  *ScriptError
	exiting     bool
	lastError   *ScriptError
	errorCounts [numErrorKinds]int
	suppressed  int

	// active counts nested RunValue calls; other threads read it to decide
	// whether a collection may run.
	active atomic.Int32
	done   chan struct{}
}

func newThread(m *Manager, id int, name string, stackSize int) *Thread {
	if stackSize <= 0 {
		stackSize = defaultStackSize
	}
	return &Thread{
		ID:    id,
		Name:  name,
		m:     m,
		stack: make([]Value, stackSize),
		done:  make(chan struct{}),
	}
}

// Manager returns the owning script manager.
func (t *Thread) Manager() *Manager { return t.m }

// State returns the current error state.
func (t *Thread) State() ThreadState { return t.state }

// Done is closed when a spawned thread finishes.
func (t *Thread) Done() <-chan struct{} { return t.done }

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

// Push pushes v, growing the stack as needed.
func (t *Thread) Push(v Value) {
	if t.sp >= len(t.stack) {
		grown := make([]Value, len(t.stack)*2)
		copy(grown, t.stack)
		t.stack = grown
	}
	t.stack[t.sp] = v
	t.sp++
}

// Pop pops the top value. Popping an empty stack is fatal.
func (t *Thread) Pop() Value {
	if t.sp == 0 {
		t.m.fatal(t, Fatalf("Stack underflow!"))
	}
	t.sp--
	v := t.stack[t.sp]
	t.stack[t.sp] = Null
	return v
}

// PopN discards the top n values.
func (t *Thread) PopN(n int) {
	if n > t.sp {
		t.m.fatal(t, Fatalf("Stack underflow!"))
	}
	t.truncate(t.sp - n)
}

// Peek returns the value distance slots below the top.
func (t *Thread) Peek(distance int) Value {
	if distance < 0 || distance >= t.sp {
		return Null
	}
	return t.stack[t.sp-1-distance]
}

// StackSize returns the number of values on the stack.
func (t *Thread) StackSize() int { return t.sp }

// FrameCount returns the depth of the frame stack.
func (t *Thread) FrameCount() int { return len(t.frames) }

// ResetStack empties the value and frame stacks.
func (t *Thread) ResetStack() {
	t.truncate(0)
	t.frames = t.frames[:0]
	t.nativeBases = t.nativeBases[:0]
	t.returnFrame = 0
	t.state = Running
}

func (t *Thread) truncate(sp int) {
	if sp < t.sp {
		clear(t.stack[sp:t.sp])
	}
	t.sp = sp
}

// Pin keeps values alive across collections while a native holds them
// outside the stack, typically across a reentrant RunValue. Release them
// with Unpin(len(values)).
func (t *Thread) Pin(values ...Value) {
	t.pinned = append(t.pinned, values...)
}

// Unpin releases the n most recently pinned values.
func (t *Thread) Unpin(n int) {
	if n > len(t.pinned) {
		n = len(t.pinned)
	}
	clear(t.pinned[len(t.pinned)-n:])
	t.pinned = t.pinned[:len(t.pinned)-n]
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// CallValue calls callee with the argCount values on top of the stack.
// The callee (or receiver) occupies the slot below the arguments. On
// return the callee slot and arguments are replaced by the result.
//
// Failures are continuable: they are reported and the call yields Null.
// The returned error is non-nil only when the thread must stop
// (ErrThreadExit).
func (t *Thread) CallValue(callee Value, argCount int) error {
	if argCount < 0 || t.sp-argCount-1 < 0 {
		t.m.fatal(t, Fatalf("Stack underflow!"))
	}
	if callee.IsObject() {
		switch o := callee.obj.(type) {
		case *BoundMethodObject:
			t.stack[t.sp-argCount-1] = o.Receiver
			return t.call(o.Method, argCount)
		case *FunctionObject:
			return t.call(o, argCount)
		case *NativeObject:
			return t.callNative(o, argCount)
		case *ClassObject:
			return t.construct(o, argCount)
		}
	}
	return t.failCall(argCount, &ScriptError{
		Kind:    Runtime,
		Message: "Could not call value!",
		Actual:  TypeName(callee),
		Value:   callee,
	})
}

// failCall reports err, replaces the callee and arguments with Null and
// continues unless the error handler asked to stop.
func (t *Thread) failCall(argCount int, err *ScriptError) error {
	res := t.report(err)
	t.truncate(t.sp - argCount - 1)
	if res == ErrorExit {
		return ErrThreadExit
	}
	t.Push(Null)
	return nil
}

func (t *Thread) call(fn *FunctionObject, argCount int) error {
	if !fn.AcceptsArgs(argCount) {
		return t.failCall(argCount, &ScriptError{
			Kind:    ArgumentCount,
			Message: fmt.Sprintf("Expected %d arguments to function call, got %d.", fn.Arity, argCount),
			Min:     fn.MinArity,
			Max:     fn.Arity,
		})
	}
	if max := t.m.config.MaxFrames; max > 0 && len(t.frames) >= max {
		t.m.fatal(t, Fatalf("Call stack overflow: more than %d frames.", max))
	}

	frame := &CallFrame{Function: fn, Base: t.sp - argCount - 1, ArgCount: argCount, thread: t}
	t.frames = append(t.frames, frame)
	prevState := t.state
	t.state = Running

	result := Null
	var err error
	if fn.Code != nil {
		result, err = fn.Code.Execute(t, frame)
	}
	exit := t.settle(err)
	if err != nil {
		result = Null
	}

	t.frames = t.frames[:len(t.frames)-1]
	t.state = prevState
	t.truncate(frame.Base)
	if exit {
		return ErrThreadExit
	}
	t.Push(result)
	return nil
}

// settle routes an error returned by script or native code: fatal errors
// to the fatal channel, everything else through the continuable path
// unless it was already reported. It reports whether the thread must stop.
func (t *Thread) settle(err error) bool {
	if err != nil {
		var fe *FatalError
		if errors.As(err, &fe) {
			t.m.fatal(t, fe)
		}
		if !errors.Is(err, ErrThreadExit) {
			if se := asScriptError(err); !se.reported {
				t.report(se)
			}
		}
	}
	return t.exiting
}

// callNative is the native dispatcher. Errors returned by the native, or
// raised on t while it ran, turn the call's result into Null; the stack is
// always rewound to the callee slot before the result is pushed.
func (t *Thread) callNative(n *NativeObject, argCount int) error {
	base := t.sp - argCount - 1
	frame := &CallFrame{Native: n, Base: base, ArgCount: argCount, thread: t}
	t.frames = append(t.frames, frame)
	t.nativeBases = append(t.nativeBases, base)
	prevState, prevErr, prevCount := t.state, t.callError, t.countError
	t.state, t.callError, t.countError = Running, nil, nil

	args := t.stack[base+1 : t.sp : t.sp]
	result, err := n.Fn(t, args)
	exit := t.settle(err)
	if err != nil || t.state == ErrorRaised {
		result = Null
	}

	t.ReturnFromNative()
	t.nativeBases = t.nativeBases[:len(t.nativeBases)-1]
	t.frames = t.frames[:len(t.frames)-1]
	t.state, t.callError, t.countError = prevState, prevErr, prevCount
	if exit {
		return ErrThreadExit
	}
	t.Push(result)
	t.m.collectIfDue(t)
	return nil
}

// ReturnFromNative rewinds the stack to the callee slot of the innermost
// native call, discarding its arguments and anything it pushed. The
// dispatcher calls it on every native return.
func (t *Thread) ReturnFromNative() {
	if n := len(t.nativeBases); n > 0 {
		t.truncate(t.nativeBases[n-1])
	}
}

// construct instantiates c and runs its initializer, if any.
func (t *Thread) construct(c *ClassObject, argCount int) error {
	var inst Value
	err := t.m.WithLock(t, func(h *Heap) error {
		v, err := t.m.instantiate(h, c)
		inst = v
		return err
	})
	if err != nil {
		return t.failCall(argCount, asScriptError(err))
	}
	t.stack[t.sp-argCount-1] = inst

	if c.Initializer.IsNull() {
		if argCount != 0 {
			return t.failCall(argCount, &ScriptError{
				Kind:    ArgumentCount,
				Message: fmt.Sprintf("Expected 0 arguments to function call, got %d.", argCount),
			})
		}
		return nil
	}
	if err := t.CallValue(c.Initializer, argCount); err != nil {
		return err
	}
	t.stack[t.sp-1] = inst
	return nil
}

// RunValue calls callable with args and runs it to completion, returning
// its result. It is the call-in entry point for host code and for natives
// that call back into script code; nesting depth is bounded only by memory
// unless MaxFrames is configured.
//
// The outer native's arguments stay on the stack, so they survive any
// collection triggered inside the nested call. Heap values a native holds
// only in Go variables must be pinned with Pin for the duration.
func (t *Thread) RunValue(callable Value, args ...Value) (Value, error) {
	top := t.enter()
	defer t.leave(top)
	defer t.isolate()()

	lastReturn := t.returnFrame
	t.returnFrame = len(t.frames)
	base := t.sp
	t.Push(callable)
	for _, a := range args {
		t.Push(a)
	}
	err := t.CallValue(callable, len(args))
	result := Null
	if err == nil && t.sp > base {
		result = t.stack[t.sp-1]
	}
	t.truncate(base)
	t.returnFrame = lastReturn
	return result, err
}

// Invoke calls the named method of receiver's class. Script methods see
// receiver in the callee slot; native methods receive it as args[0].
func (t *Thread) Invoke(receiver Value, name string, args ...Value) (Value, error) {
	defer t.isolate()()
	var class *ClassObject
	if inst, ok := AsInstance(receiver); ok {
		class = inst.Class
	} else if c, ok := receiver.AsObject().(*ClassObject); ok {
		class = c
	}
	if class == nil {
		if t.ThrowRuntimeError(false, "Only instances and classes have methods.") == ErrorExit {
			return Null, ErrThreadExit
		}
		return Null, nil
	}
	method, ok := class.LookupMethod(name)
	if !ok {
		if t.ThrowRuntimeError(false, "Event %s does not exist in class %s.", name, class.Name) == ErrorExit {
			return Null, ErrThreadExit
		}
		return Null, nil
	}
	fn, ok := method.AsObject().(*FunctionObject)
	if !ok {
		return t.RunValue(method, append([]Value{receiver}, args...)...)
	}

	top := t.enter()
	defer t.leave(top)
	base := t.sp
	t.Push(receiver)
	for _, a := range args {
		t.Push(a)
	}
	err := t.call(fn, len(args))
	result := Null
	if err == nil && t.sp > base {
		result = t.stack[t.sp-1]
	}
	t.truncate(base)
	return result, err
}

// enter marks the thread active. The outermost entry checks in under the
// global lock so it cannot start while a collection is running.
func (t *Thread) enter() bool {
	if t.active.Load() > 0 {
		t.active.Add(1)
		return false
	}
	t.m.lock.acquire(t)
	t.active.Add(1)
	t.m.lock.release(t)
	return true
}

func (t *Thread) leave(top bool) {
	t.active.Add(-1)
	if top {
		t.exiting = false
		t.state = Running
	}
}

// isolate clears the caller's error state for a call-in and returns the
// function that puts it back. Errors raised by the nested call are counted
// and reported but never mark the enclosing native as failed.
func (t *Thread) isolate() func() {
	state, callErr, countErr := t.state, t.callError, t.countError
	t.state, t.callError, t.countError = Running, nil, nil
	return func() {
		t.state, t.callError, t.countError = state, callErr, countErr
	}
}

// Nested reports whether t is running a call-in from native code.
func (t *Thread) Nested() bool { return t.active.Load() > 1 }

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// ThrowRuntimeError reports a formatted runtime error with the current call
// trace. A fatal error is handed to the manager's fatal handler and does
// not return. Otherwise the caller must honor the result: on ErrorContinue
// a native returns Null; on ErrorExit it returns ErrThreadExit.
func (t *Thread) ThrowRuntimeError(fatal bool, format string, args ...any) ErrorResult {
	if fatal {
		t.m.fatal(t, Fatalf(format, args...))
	}
	return t.report(Errorf(Runtime, format, args...))
}

// Raise reports err unless it was already reported. Fatal errors are
// routed to the fatal channel.
func (t *Thread) Raise(err error) ErrorResult {
	var fe *FatalError
	if errors.As(err, &fe) {
		t.m.fatal(t, fe)
	}
	se := asScriptError(err)
	if se.reported {
		if t.exiting {
			return ErrorExit
		}
		return ErrorContinue
	}
	return t.report(se)
}

func (t *Thread) report(e *ScriptError) ErrorResult {
	e.reported = true
	t.state = ErrorRaised
	t.lastError = e
	if t.callError == nil {
		t.callError = e
	}
	if e.Kind < numErrorKinds {
		t.errorCounts[e.Kind]++
	}
	if t.m.config.IgnoreAllErrors {
		t.suppressed++
		return ErrorContinue
	}
	log.Errorf("%s: %s\n%s", e.Kind, e.Message, t.traceText())
	res := t.m.handleError(t, e)
	if res == ErrorExit {
		t.exiting = true
	}
	return res
}

// LastError returns the most recently reported error.
func (t *Thread) LastError() *ScriptError { return t.lastError }

// ErrorCount returns how many errors of kind were reported on t.
func (t *Thread) ErrorCount(kind ErrorKind) int {
	if kind >= numErrorKinds {
		return 0
	}
	return t.errorCounts[kind]
}

// SuppressedErrors returns how many errors were swallowed by ignore mode.
func (t *Thread) SuppressedErrors() int { return t.suppressed }

// CallTrace lists the active frames, innermost first.
func (t *Thread) CallTrace() []string {
	out := make([]string, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		kind := "function"
		if f.Native != nil {
			kind = "native"
		}
		out = append(out, kind+" "+f.Name())
	}
	return out
}

func (t *Thread) traceText() string {
	var b strings.Builder
	if n := len(t.frames); n > 0 {
		fmt.Fprintf(&b, "In %s of thread %d\n", t.frames[n-1].Name(), t.ID)
	}
	fmt.Fprintf(&b, "Call Trace (Thread %d):", t.ID)
	for _, line := range t.CallTrace() {
		b.WriteString("\n    ")
		b.WriteString(line)
	}
	return b.String()
}
