// Package vmerr implements the error taxonomy of spec.md §7: a closed
// set of error kinds, each carrying whatever context it needs (a
// snapshot for access errors, operand type names for unsupported binary
// operations, and so on), plus the frame-trace decoration the execution
// driver attaches once an error leaves the interpreter loop.
package vmerr

import (
	"errors"
	"fmt"

	"github.com/weave-lang/weave/access"
)

// Kind enumerates the error taxonomy of spec.md §7.
type Kind int

const (
	// KindBadInstruction: corrupt unit, fatal to the current VM.
	KindBadInstruction Kind = iota
	// KindBadJump: invalid jump-table index, fatal.
	KindBadJump
	// KindPopOutOfBounds: pop would cross the frame base, fatal.
	KindPopOutOfBounds
	// KindStackOutOfBounds: addressed slot outside the stack, fatal.
	KindStackOutOfBounds
	// KindCorruptedStackFrame: a frame invariant was violated on return, fatal.
	KindCorruptedStackFrame
	// KindNotAccessibleRef: failed shared borrow.
	KindNotAccessibleRef
	// KindNotAccessibleMut: failed exclusive borrow.
	KindNotAccessibleMut
	// KindNotAccessibleTake: failed take.
	KindNotAccessibleTake
	// KindOverflow: checked arithmetic/shift overflow.
	KindOverflow
	// KindUnderflow: checked arithmetic/shift underflow.
	KindUnderflow
	// KindDivideByZero: integer division or remainder by zero.
	KindDivideByZero
	// KindUnsupportedBinaryOp: no protocol resolved a binary operator.
	KindUnsupportedBinaryOp
	// KindMissingFunction: a call target hash was not found.
	KindMissingFunction
	// KindMissingMethod: an instance-call target was not found.
	KindMissingMethod
	// KindMissingField: a named-field access target was not found.
	KindMissingField
	// KindMissingVariant: a pattern-match variant lookup failed.
	KindMissingVariant
	// KindBadArgumentCount: a call's argument count did not match.
	KindBadArgumentCount
	// KindBadArgument: a single argument failed validation.
	KindBadArgument
	// KindHalted: the driver received a halt it cannot honor.
	KindHalted
	// KindPanic: a deliberate script-level panic.
	KindPanic
	// KindMissingStatic: an out-of-range constant/string/object-key slot lookup.
	KindMissingStatic
	// KindAllocation: the memory budget refused an allocation.
	KindAllocation
)

func (k Kind) String() string {
	switch k {
	case KindBadInstruction:
		return "bad-instruction"
	case KindBadJump:
		return "bad-jump"
	case KindPopOutOfBounds:
		return "pop-out-of-bounds"
	case KindStackOutOfBounds:
		return "stack-out-of-bounds"
	case KindCorruptedStackFrame:
		return "corrupted-stack-frame"
	case KindNotAccessibleRef:
		return "not-accessible-ref"
	case KindNotAccessibleMut:
		return "not-accessible-mut"
	case KindNotAccessibleTake:
		return "not-accessible-take"
	case KindOverflow:
		return "overflow"
	case KindUnderflow:
		return "underflow"
	case KindDivideByZero:
		return "divide-by-zero"
	case KindUnsupportedBinaryOp:
		return "unsupported-binary-operation"
	case KindMissingFunction:
		return "missing-function"
	case KindMissingMethod:
		return "missing-method"
	case KindMissingField:
		return "missing-field"
	case KindMissingVariant:
		return "missing-variant"
	case KindBadArgumentCount:
		return "bad-argument-count"
	case KindBadArgument:
		return "bad-argument"
	case KindHalted:
		return "halted"
	case KindPanic:
		return "panic"
	case KindMissingStatic:
		return "missing-static"
	case KindAllocation:
		return "allocation"
	default:
		return "unknown"
	}
}

// Fatal reports whether this kind is fatal to the owning VM (corrupted
// internal invariants) as opposed to recoverable by a script-level
// try/catch equivalent.
func (k Kind) Fatal() bool {
	switch k {
	case KindBadInstruction, KindBadJump, KindPopOutOfBounds,
		KindStackOutOfBounds, KindCorruptedStackFrame:
		return true
	default:
		return false
	}
}

// Frame is one entry in the decorated call-frame trace attached to an
// error once it leaves the interpreter loop.
type Frame struct {
	FunctionName string
	IP           int
}

// Error is the VM's error type. It satisfies the standard error
// interface and composes with errors.Is/errors.As via Unwrap.
type Error struct {
	Kind Kind
	// Message is a short, kind-specific description.
	Message string
	// Snapshot is set for the three not-accessible-* kinds.
	Snapshot *access.Snapshot
	// UnitName, IP and Frames are filled in once, by exec.Driver, when
	// the error leaves the interpreter loop (spec.md §4.9).
	UnitName string
	IP       int
	Frames   []Frame
	// Cause chains an underlying host error, e.g. from a native function.
	Cause error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithSnapshot attaches an access-control snapshot, for the three
// not-accessible-* kinds.
func (e *Error) WithSnapshot(s access.Snapshot) *Error {
	e.Snapshot = &s
	return e
}

// WithCause chains an underlying error (e.g. a native function failure).
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// FromAccessError converts an *access.Error into the corresponding
// vmerr.Error, used wherever a stack/field/any operation surfaces a
// borrow failure to the interpreter.
func FromAccessError(err error) *Error {
	var accessErr *access.Error
	if !errors.As(err, &accessErr) {
		return Newf(KindNotAccessibleRef, "%v", err)
	}
	kind := KindNotAccessibleRef
	switch accessErr.Kind {
	case access.KindMut:
		kind = KindNotAccessibleMut
	case access.KindTake:
		kind = KindNotAccessibleTake
	}
	return New(kind, accessErr.Error()).WithSnapshot(accessErr.Snapshot)
}

// Decorate attaches the owning unit's name, the instruction pointer at
// the point of failure, and the chain of call frames, exactly once
// (spec.md §4.9: "On any error, the driver decorates the error with the
// unit, the instruction pointer, and the chain of call frames").
func (e *Error) Decorate(unitName string, ip int, frames []Frame) *Error {
	if e.UnitName == "" && len(e.Frames) == 0 {
		e.UnitName = unitName
		e.IP = ip
		e.Frames = frames
	}
	return e
}

func (e *Error) Error() string {
	if e.Snapshot != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Snapshot)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, vmerr.KindDivideByZero) style checks by
// comparing kinds when the target is itself a *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
