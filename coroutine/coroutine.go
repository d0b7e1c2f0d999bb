// Package coroutine names the suspendable unit of execution that backs
// generator, stream, and async call kinds: a thin Created/Running/
// Suspended/Completed/Killed state machine wrapped around a
// *vm.CoroutineHandle, with context.Context-aware cancellation for the
// host side. The drive mechanics themselves (Poll/Next, resuming a
// nested VM, recursively polling an awaited future) already live on
// CoroutineHandle; this package exists so exec and embedders have a
// stable name and state label for "the suspendable thing" rather than
// reaching into vm internals directly.
package coroutine

import (
	"context"
	"sync"

	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vm"
)

// Future is the shape any host-provided awaitable must implement to be
// handed to an await instruction — natives.CryptVerifyFuture is the
// one concrete example this module ships. Poll is lazy and idempotent:
// the underlying work starts on first Poll and ready=true is returned
// on every call after completion, never started twice.
type Future interface {
	Poll() (value.Value, bool, error)
}

// AsFuture unwraps a value handed to an await instruction into its
// Future, or reports ok=false if v does not carry one.
func AsFuture(v value.Value) (f Future, ok bool) {
	any, ok := v.(value.AnyValue)
	if !ok {
		return nil, false
	}
	native, guard, err := any.BorrowRef(0)
	if err != nil {
		return nil, false
	}
	defer guard.Release()
	f, ok = native.(Future)
	return f, ok
}

// State is the lifecycle a Coroutine moves through.
type State int

const (
	Created State = iota
	Running
	Suspended
	Completed
	Killed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Completed:
		return "completed"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// Coroutine wraps a *vm.CoroutineHandle with a named state and
// cancellation, the way task.Task wraps a running verb call with a
// TaskState and a context.CancelFunc.
type Coroutine struct {
	mu     sync.Mutex
	handle *vm.CoroutineHandle
	state  State
	cancel context.CancelFunc
}

// New wraps a handle produced by the interpreter (stored in an
// OpCall's result register when the callee is a generator/stream/async
// function) as a host-visible Coroutine.
func New(handle *vm.CoroutineHandle) *Coroutine {
	return &Coroutine{handle: handle, state: Created}
}

// FromValue unwraps a value produced by a generator/stream/async call
// back into its Coroutine, or reports ok=false if v is not one.
func FromValue(v value.Value) (*Coroutine, bool) {
	any, ok := v.(value.AnyValue)
	if !ok {
		return nil, false
	}
	native, guard, err := any.BorrowRef(0)
	if err != nil {
		return nil, false
	}
	defer guard.Release()
	handle, ok := native.(*vm.CoroutineHandle)
	if !ok {
		return nil, false
	}
	return New(handle), true
}

func (c *Coroutine) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Poll drives the wrapped async call to completion, blocking on any
// awaited future along the way. ctx cancellation stops further driving
// between poll steps but does not interrupt one already in flight —
// the interpreter itself has no cancellation points.
func (c *Coroutine) Poll(ctx context.Context) (value.Value, error) {
	c.mu.Lock()
	if c.state == Completed || c.state == Killed {
		defer c.mu.Unlock()
		return nil, errState(c.state)
	}
	if ctx != nil && ctx.Err() != nil {
		c.mu.Unlock()
		return nil, ctx.Err()
	}
	_, cancel := c.armCancel(ctx)
	c.state = Running
	c.mu.Unlock()
	defer cancel()

	val, done, err := c.handle.Poll()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil:
		c.state = Completed
		return nil, err
	case done:
		c.state = Completed
	default:
		c.state = Suspended
	}
	return val, nil
}

// Next drives the wrapped generator/stream one element at a time,
// returning done=true once the underlying function has returned.
func (c *Coroutine) Next(ctx context.Context) (val value.Value, done bool, err error) {
	c.mu.Lock()
	if c.state == Completed || c.state == Killed {
		defer c.mu.Unlock()
		return nil, true, errState(c.state)
	}
	if ctx != nil && ctx.Err() != nil {
		c.mu.Unlock()
		return nil, false, ctx.Err()
	}
	_, cancel := c.armCancel(ctx)
	c.state = Running
	c.mu.Unlock()
	defer cancel()

	val, done, err = c.handle.Next()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil:
		c.state = Completed
	case done:
		c.state = Completed
	default:
		c.state = Suspended
	}
	return val, done, err
}

// Kill marks the coroutine unusable without running it further. The
// nested VM's frames are simply abandoned; there is no script-visible
// unwind since the core has no finalizers to run.
func (c *Coroutine) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.state = Killed
}

func (c *Coroutine) armCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	derived, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return derived, cancel
}

func errState(s State) error {
	return &StateError{State: s}
}

// StateError reports an operation attempted against a coroutine that
// has already reached a terminal state.
type StateError struct {
	State State
}

func (e *StateError) Error() string {
	return "coroutine: already " + e.State.String()
}
