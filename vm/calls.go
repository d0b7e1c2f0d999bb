package vm

import (
	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/stack"
	"github.com/weave-lang/weave/trace"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vmerr"
)

// Callable is satisfied by any value OpCallFn can invoke: a first-
// class function reference or a partially-applied closure. FuncRef is
// the only implementation this package provides.
type Callable interface {
	Call(args []value.Value) (value.Value, error)
}

// FuncRef is a first-class reference to a unit-defined function,
// resolved by item hash at call time rather than bound to a specific
// VM — the value OpLoadConst-style instructions would produce for a
// function-valued constant, and what OpCallFn expects to find in its
// operand register.
type FuncRef struct {
	owner *VM
	hash  uint64
}

var typeHashFuncRef = value.HashPath("::FuncRef")

func (f *FuncRef) TypeHash() value.TypeHash { return typeHashFuncRef }
func (f *FuncRef) TypeName() string         { return "FuncRef" }

// Call runs the referenced function to completion in the owning VM's
// unit, immediate-call convention only (generator/async function
// references are invoked through their coroutine handle instead).
func (f *FuncRef) Call(args []value.Value) (value.Value, error) {
	halt := f.owner.callImmediateByHash(f.hash, args)
	if halt.Err != nil {
		return nil, halt.Err
	}
	return halt.Value, nil
}

// NewFuncRef wraps a function-table hash as a callable value.
func NewFuncRef(owner *VM, hash uint64) value.AnyValue {
	return value.NewAny(&FuncRef{owner: owner, hash: hash})
}

// CoroutineHandle is the any-native value a generator-stream or async
// Call produces: a freshly constructed nested VM that has not started
// running yet. It satisfies the structural Future shape (Poll) for
// async handles and a parallel Next shape for generator-stream
// handles, so package exec's driver and the await/iterate protocol
// handlers can treat it like any other host future/iterator without
// importing package vm's internals.
type CoroutineHandle struct {
	nested  *VM
	started bool
	halt    Halt

	// future isolates this handle's view of the nested VM's (shared)
	// memory budget across polls, so a sibling coroutine sharing the
	// same budgetForNested() pointer cannot see this handle's
	// in-flight remaining-bytes value between suspensions (spec.md §8
	// invariant 6). Lazily created on first Poll/Next, since a nested
	// VM built with a nil budget has nothing to isolate.
	future *membudget.FutureAware
}

var typeHashCoroutine = value.HashPath("::Coroutine")

func (c *CoroutineHandle) TypeHash() value.TypeHash { return typeHashCoroutine }
func (c *CoroutineHandle) TypeName() string         { return "Coroutine" }

// VM exposes the nested interpreter, for a driver that wants to step
// it directly instead of going through Poll/Next.
func (c *CoroutineHandle) VM() *VM { return c.nested }

// Poll implements the async future shape: run (or resume) the nested
// VM until it exits, draining any host futures it awaits along the
// way. A nested VM that itself issues a HaltVMCall or yields (an
// async function awaiting a generator, or a malformed unit calling
// yield from an async body) cannot be resolved synchronously here;
// that is surfaced as an error for the execution driver to handle
// explicitly rather than silently misinterpreted.
func (c *CoroutineHandle) Poll() (value.Value, bool, error) {
	if fa := c.ensureFutureAware(); fa != nil {
		fa.BeforePoll()
		defer fa.AfterPoll()
	}
	for {
		if !c.started {
			c.started = true
			c.halt = c.nested.Run()
		}
		switch c.halt.Kind {
		case HaltExited:
			return c.halt.Value, true, nil
		case HaltAwaited:
			future, ok := asFuture(c.halt.Value)
			if !ok {
				return nil, false, vmerr.New(vmerr.KindBadArgument, "awaited value is not a future")
			}
			result, ready, err := future.Poll()
			if err != nil {
				return nil, false, err
			}
			if !ready {
				return nil, false, nil
			}
			c.halt = c.nested.Resume(result, c.halt.Out)
		case HaltLimited, HaltError:
			return nil, false, c.halt.Err
		default:
			return nil, false, vmerr.Newf(vmerr.KindHalted, "async function produced unexpected halt: %s", c.halt.Kind)
		}
	}
}

// Next implements a generator-stream's iteration step: run (or
// resume) the nested VM until it yields (returns the element and
// true) or exits (returns false, the stream is exhausted).
func (c *CoroutineHandle) Next() (value.Value, bool, error) {
	if fa := c.ensureFutureAware(); fa != nil {
		fa.BeforePoll()
		defer fa.AfterPoll()
	}
	if !c.started {
		c.started = true
		c.halt = c.nested.Run()
	} else {
		c.halt = c.nested.Resume(nil, unit.Top)
	}
	switch c.halt.Kind {
	case HaltYielded:
		return c.halt.Value, true, nil
	case HaltExited:
		return nil, false, nil
	case HaltLimited, HaltError:
		return nil, false, c.halt.Err
	default:
		return nil, false, vmerr.Newf(vmerr.KindHalted, "generator produced unexpected halt: %s", c.halt.Kind)
	}
}

// ensureFutureAware lazily builds this handle's budget isolation
// wrapper, or reports nil if the nested VM has no budget to isolate.
func (c *CoroutineHandle) ensureFutureAware() *membudget.FutureAware {
	if c.nested.Budget == nil {
		return nil
	}
	if c.future == nil {
		c.future = membudget.NewFutureAware(c.nested.Budget)
	}
	return c.future
}

type future interface {
	Poll() (value.Value, bool, error)
}

func asFuture(v value.Value) (future, bool) {
	av, ok := v.(value.AnyValue)
	if !ok {
		return nil, false
	}
	native, guard, err := av.BorrowRef(0)
	if err != nil {
		return nil, false
	}
	defer guard.Release()
	f, ok := native.(future)
	return f, ok
}

// popArgs pops n values off the operand stack in call order (the
// first-pushed argument ends up first in the returned slice).
func (v *VM) popArgs(floor int, n uint32) ([]value.Value, error) {
	args := make([]value.Value, n)
	for i := int(n) - 1; i >= 0; i-- {
		val, err := v.Stack.Pop(floor)
		if err != nil {
			return nil, err
		}
		v.adjustTopBalance(-1)
		args[i] = val
	}
	return args, nil
}

// execCall dispatches OpCall/OpCallInstance/OpCallFn, the only
// instructions allowed to change control flow in a way execBinaryArith
// and friends cannot: a script function call pushes a new frame and
// jumps into it rather than falling through to the next instruction.
func (v *VM) execCall(ins unit.Instruction, base, floor, width int) (Halt, bool) {
	switch ins.Op {
	case unit.OpCall:
		args, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		return v.dispatchHash(ins.Hash, args, base, ins.Out, width)

	case unit.OpCallInstance:
		receiver, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		rest, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		args := append([]value.Value{receiver}, rest...)
		return v.dispatchInstance(protocol.ID(ins.Hash), args, base, ins.Out, width)

	case unit.OpCallFn:
		fnVal, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		args, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		return v.dispatchCallable(fnVal, args, base, ins.Out, width)

	default:
		return v.errorHalt(vmerr.Newf(vmerr.KindBadInstruction, "execCall: unexpected opcode %d", ins.Op)), true
	}
}

// dispatchHash resolves a Call target: a unit-defined function or
// constructor from the function table first, then the host-native
// free-function table.
func (v *VM) dispatchHash(hash uint64, args []value.Value, base int, out unit.Addr, width int) (Halt, bool) {
	if trace.IsEnabled() {
		trace.Call(v.Unit.Name, hash, len(args))
	}
	if entry, ok := v.Unit.Function(hash); ok {
		return v.dispatchFuncEntry(entry, args, base, out, width)
	}
	if fn, ok := v.Natives[hash]; ok {
		result, err := fn(args)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindBadArgument, "%v", err)), true
		}
		if halt, stop := v.charge(result); stop {
			return halt, true
		}
		v.store(base, out, result)
		v.IP += width
		return Halt{}, false
	}
	return v.errorHalt(vmerr.Newf(vmerr.KindMissingFunction, "no function or native registered for hash %#x", hash)), true
}

func (v *VM) dispatchFuncEntry(entry unit.FuncEntry, args []value.Value, base int, out unit.Addr, width int) (Halt, bool) {
	switch entry.Kind {
	case unit.FuncOffset:
		return v.enterCall(entry, args, base, out, width)
	case unit.FuncUnitStruct:
		return v.storeConstructed(value.NewEmptyStruct(entry.TypeHash, entry.TypeName), base, out, width)
	case unit.FuncTupleStruct:
		return v.storeConstructed(value.NewTupleStruct(entry.TypeHash, entry.TypeName, args), base, out, width)
	case unit.FuncUnitVariant:
		return v.storeConstructed(value.NewUnitVariant(entry.TypeHash, entry.VariantHash, entry.TypeName, entry.VariantName), base, out, width)
	case unit.FuncTupleVariant:
		return v.storeConstructed(value.NewTupleVariant(entry.TypeHash, entry.VariantHash, entry.TypeName, entry.VariantName, args), base, out, width)
	default:
		return v.errorHalt(vmerr.Newf(vmerr.KindBadInstruction, "unrecognized function-table entry kind %d", entry.Kind)), true
	}
}

func (v *VM) storeConstructed(val value.Value, base int, out unit.Addr, width int) (Halt, bool) {
	if halt, stop := v.charge(val); stop {
		return halt, true
	}
	v.store(base, out, val)
	v.IP += width
	return Halt{}, false
}

// enterCall implements the three call kinds of spec.md §4.8.
// CallImmediate pushes a frame in this same VM and jumps to the
// callee's entry point. CallGeneratorStream and CallAsync instead
// construct a brand-new nested VM and hand the caller a
// CoroutineHandle without halting — the nested VM does not run a
// single instruction until the handle is polled or iterated.
func (v *VM) enterCall(entry unit.FuncEntry, args []value.Value, base int, out unit.Addr, width int) (Halt, bool) {
	if uint32(len(args)) != entry.ArgCount {
		return v.errorHalt(vmerr.Newf(vmerr.KindBadArgumentCount, "expected %d arguments, got %d", entry.ArgCount, len(args))), true
	}

	switch entry.CallKind {
	case unit.CallImmediate:
		newBase := v.Stack.Len()
		for _, a := range args {
			v.Stack.Push(a)
		}
		v.Frames.Push(stack.Frame{
			ReturnIP:   v.IP + width,
			Base:       newBase,
			SavedTop:   newBase,
			OutputAddr: out,
		})
		v.IP = entry.IP
		return Halt{}, false

	case unit.CallGeneratorStream, unit.CallAsync:
		nested := New(v.Unit, v.Protocols, v.Natives, v.budgetForNested(), entry.IP, args)
		nested.Kind = entry.CallKind
		handle := &CoroutineHandle{nested: nested}
		if halt, stop := v.storeConstructed(value.NewAny(handle), base, out, width); stop {
			return halt, true
		}
		return Halt{}, false

	default:
		return v.errorHalt(vmerr.Newf(vmerr.KindBadInstruction, "unrecognized call kind %d", entry.CallKind)), true
	}
}

// budgetForNested shares the parent VM's memory budget with a nested
// VM: both debit the same root counter, so a generator/async call
// cannot let a script bypass its task's overall allocation limit.
// Isolating concurrent/interleaved suspensions against this shared
// counter is CoroutineHandle's job (its future field), applied around
// each Poll/Next rather than here at construction time.
func (v *VM) budgetForNested() *membudget.Budget {
	if v.Budget == nil {
		return nil
	}
	return v.Budget
}

// callImmediateByHash is FuncRef.Call's entry point: run a script
// function to completion and return its result directly, used only for
// CallImmediate-kind functions invoked through a first-class reference
// rather than a Call instruction.
func (v *VM) callImmediateByHash(hash uint64, args []value.Value) Halt {
	entry, ok := v.Unit.Function(hash)
	if !ok || entry.Kind != unit.FuncOffset {
		return Halt{Kind: HaltError, Err: vmerr.Newf(vmerr.KindMissingFunction, "no immediate function for hash %#x", hash)}
	}
	nested := New(v.Unit, v.Protocols, v.Natives, v.budgetForNested(), entry.IP, args)
	return nested.Run()
}

// dispatchInstance routes OpCallInstance through the protocol registry,
// using the protocol ID spec.md's ambient method-dispatch derives from
// the call site's method name: spec.md §4.6 defines protocol dispatch
// for operator overloading, and this implementation reuses the exact
// same (type hash, protocol id) table for ordinary instance-method
// calls, so a script method and an operator overload are the same kind
// of registration.
func (v *VM) dispatchInstance(id protocol.ID, args []value.Value, base int, out unit.Addr, width int) (Halt, bool) {
	th, release, err := value.TypeHashOf(args[0])
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	handler, ok := v.Protocols.Lookup(th, id, 0)
	release()
	if !ok {
		return v.errorHalt(vmerr.Newf(vmerr.KindMissingMethod, "no method registered for %s on %s", id, args[0].Kind())), true
	}
	result, err := handler(args)
	if err != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindBadArgument, "%v", err)), true
	}
	return v.storeConstructed(result, base, out, width)
}

func (v *VM) dispatchCallable(fnVal value.Value, args []value.Value, base int, out unit.Addr, width int) (Halt, bool) {
	av, ok := fnVal.(value.AnyValue)
	if !ok {
		return v.errorHalt(vmerr.New(vmerr.KindBadArgument, "call target is not callable")), true
	}
	native, guard, err := av.BorrowRef(0)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	callable, ok := native.(Callable)
	guard.Release()
	if !ok {
		return v.errorHalt(vmerr.New(vmerr.KindBadArgument, "call target is not callable")), true
	}
	result, cerr := callable.Call(args)
	if cerr != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindBadArgument, "%v", cerr)), true
	}
	return v.storeConstructed(result, base, out, width)
}

// execReturn pops the current call frame, restores the stack to its
// pre-call depth, and writes the returned value to the caller's
// output address — or, if the popped frame was the root, halts with
// HaltExited. Before truncating, it checks that the frame leaves its
// operand stack balanced (every Top-addressed push it made has been
// matched by a pop): a function that leaks an extra value above its
// own registers is a corrupted-stack-frame, not something Truncate
// should silently paper over.
func (v *VM) execReturn(val value.Value) (Halt, bool) {
	popped, err := v.Frames.Pop()
	if err != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindCorruptedStackFrame, "%v", err)), true
	}
	if popped.TopBalance != 0 {
		return v.errorHalt(vmerr.Newf(vmerr.KindCorruptedStackFrame,
			"frame left %d value(s) on the operand stack at return", popped.TopBalance)), true
	}
	if err := v.Stack.Truncate(popped.Base); err != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindCorruptedStackFrame, "%v", err)), true
	}
	if trace.IsEnabled() {
		trace.Return(v.Unit.Name, val.String())
	}
	if v.Frames.Depth() == 0 {
		return Halt{Kind: HaltExited, Value: val}, true
	}
	caller, err := v.Frames.Current()
	if err != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindCorruptedStackFrame, "%v", err)), true
	}
	if err := v.Stack.StoreAddr(caller.Base, popped.OutputAddr, val); err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	v.IP = popped.ReturnIP
	return Halt{}, false
}
