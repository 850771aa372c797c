package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies script-level failures. Every kind except Fatal is
// continuable: the failing native call yields Null and the script resumes.
type ErrorKind uint8

const (
	ArgumentCount ErrorKind = iota
	TypeMismatch
	IndexOutOfRange
	Domain
	ResourceState
	Runtime
	Fatal

	numErrorKinds
)

func (k ErrorKind) String() string {
	switch k {
	case ArgumentCount:
		return "ArgumentCountError"
	case TypeMismatch:
		return "TypeMismatchError"
	case IndexOutOfRange:
		return "IndexOutOfRangeError"
	case Domain:
		return "DomainError"
	case ResourceState:
		return "ResourceStateError"
	case Runtime:
		return "RuntimeError"
	case Fatal:
		return "FatalError"
	default:
		return "UnknownError"
	}
}

// Sentinel errors.
var (
	// ErrShuttingDown is returned when the global lock cannot be taken
	// because the manager is shutting down.
	ErrShuttingDown = errors.New("vm: script manager is shutting down")

	// ErrNoFreeThread is returned by Spawn when every thread slot is busy.
	ErrNoFreeThread = errors.New("vm: no free thread slot")

	// ErrThreadExit unwinds a thread after an error handler chose to stop
	// execution instead of continuing.
	ErrThreadExit = errors.New("vm: thread execution stopped after runtime error")
)

// ScriptError is a continuable script-level failure. Position is the
// 1-based argument position (0 when the error is not about an argument).
// Min and Max carry the valid range for range and domain errors.
type ScriptError struct {
	Kind     ErrorKind
	Message  string
	Position int
	Expected string
	Actual   string
	Value    Value
	Min      int
	Max      int

	reported bool
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Reported reports whether the error already went through a thread's
// error sink.
func (e *ScriptError) Reported() bool { return e.reported }

// Errorf creates a ScriptError of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *ScriptError {
	return &ScriptError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewArgumentCountError reports a call with the wrong number of arguments.
func NewArgumentCountError(expected, got int, atLeast bool) *ScriptError {
	msg := fmt.Sprintf("Expected %d arguments but got %d.", expected, got)
	if atLeast {
		msg = fmt.Sprintf("Expected at least %d arguments but got %d.", expected, got)
	}
	return &ScriptError{
		Kind:    ArgumentCount,
		Message: msg,
		Min:     expected,
		Max:     expected,
	}
}

// NewTypeMismatchError reports an argument (position >= 1) or a value
// (position 0) of the wrong type.
func NewTypeMismatchError(position int, expected, actual string) *ScriptError {
	return newTypeError(position, expected, actual)
}

func newTypeError(position int, expected, actual string) *ScriptError {
	var msg string
	if position > 0 {
		msg = fmt.Sprintf("Expected argument %d to be of type %s instead of %s.", position, expected, actual)
	} else {
		msg = fmt.Sprintf("Expected value to be of type %s; value was of type %s.", expected, actual)
	}
	return &ScriptError{
		Kind:     TypeMismatch,
		Message:  msg,
		Position: position,
		Expected: expected,
		Actual:   actual,
	}
}

// NewIndexError reports an index outside [0, size) of a sequence.
func NewIndexError(what string, index, size int) *ScriptError {
	return RangeErrorf(index, 0, size-1,
		"Index %d is out of bounds of %s of size %d.", index, what, size)
}

// RangeErrorf creates an IndexOutOfRange error carrying the valid range.
func RangeErrorf(index, min, max int, format string, args ...any) *ScriptError {
	return &ScriptError{
		Kind:    IndexOutOfRange,
		Message: fmt.Sprintf(format, args...),
		Value:   FromInteger(int32(index)),
		Min:     min,
		Max:     max,
	}
}

// DomainErrorf creates a Domain error for a well-typed but invalid value.
func DomainErrorf(value Value, min, max int, format string, args ...any) *ScriptError {
	return &ScriptError{
		Kind:    Domain,
		Message: fmt.Sprintf(format, args...),
		Value:   value,
		Min:     min,
		Max:     max,
	}
}

// asScriptError converts an arbitrary error returned by native code into a
// ScriptError, keeping typed errors intact.
func asScriptError(err error) *ScriptError {
	var se *ScriptError
	if errors.As(err, &se) {
		return se
	}
	return &ScriptError{Kind: Runtime, Message: err.Error()}
}

// ---------------------------------------------------------------------------
// Fatal errors
// ---------------------------------------------------------------------------

// FatalError is an unrecoverable failure. It never travels through the
// continuable error path; the manager hands it to its FatalHandler, which
// terminates the process by default.
type FatalError struct {
	Message string
	Thread  int
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error on thread %d: %s", e.Thread, e.Message)
}

// Fatalf creates a FatalError.
func Fatalf(format string, args ...any) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...)}
}
