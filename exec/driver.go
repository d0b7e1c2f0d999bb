// Package exec implements the execution driver of spec.md §4.9: the
// thing that owns a head VM, resolves the halt reasons the interpreter
// itself cannot (nested-VM calls, awaited futures), and decorates any
// error that escapes the interpreter loop exactly once before handing
// it to the embedder. Grounded on server/scheduler.go's runTask: run
// (or resume) a VM, inspect the flow/halt it produced, and either
// finish, suspend, or report an exception — generalized from a task
// queue driving MOO verb calls to a single call stack driving units.
package exec

import (
	"context"
	"time"

	"github.com/weave-lang/weave/coroutine"
	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/natives"
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/trace"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vm"
	"github.com/weave-lang/weave/vmerr"
)

// Resolver looks up a function across units by its item hash, for
// HaltVMCall: the one halt reason the interpreter hands back to the
// driver instead of resolving itself, since resolving it may mean
// loading a different unit entirely (spec.md §4.8's nested-VM-call).
// A Driver built against a single unit can resolve calls within that
// unit without one; package context's host Context is the intended
// multi-unit implementation.
type Resolver interface {
	Resolve(hash uint64) (u *unit.Unit, ip int, kind unit.CallKind, argCount uint32, ok bool)
}

// unitResolver resolves only within the Driver's own unit, the default
// when no multi-unit Resolver is supplied.
type unitResolver struct{ u *unit.Unit }

func (r unitResolver) Resolve(hash uint64) (*unit.Unit, int, unit.CallKind, uint32, bool) {
	entry, ok := r.u.Function(hash)
	if !ok || entry.Kind != unit.FuncOffset {
		return nil, 0, 0, 0, false
	}
	return r.u, entry.IP, entry.CallKind, entry.ArgCount, true
}

// Driver drives one head VM through its full run, including every
// suspension point a bare vm.VM cannot resolve on its own.
type Driver struct {
	head      *vm.VM
	unit      *unit.Unit
	protocols *protocol.Registry
	natives   map[uint64]natives.NativeFunc
	budget    *membudget.Budget
	resolver  Resolver

	// future isolates the head VM's view of budget across the two
	// suspension points this driver itself resolves (await, nested-VM
	// call), the same way vm.CoroutineHandle isolates its own nested
	// VM's polls — spec.md §8 invariant 6. Nil when budget is nil.
	future *membudget.FutureAware

	// pollInterval bounds how often AsyncRunToCompletion re-polls a
	// not-yet-ready future between checks of ctx.Done(), mirroring
	// the scheduler's own tick-based readiness sweep.
	pollInterval time.Duration
}

// New constructs a Driver for a head VM beginning at entryIP with args
// already bound to its first registers. resolver may be nil, in which
// case HaltVMCall can only resolve functions within u itself.
func New(u *unit.Unit, protocols *protocol.Registry, nativeFns map[uint64]natives.NativeFunc, budget *membudget.Budget, entryIP int, args []value.Value, resolver Resolver) *Driver {
	if resolver == nil {
		resolver = unitResolver{u: u}
	}
	var future *membudget.FutureAware
	if budget != nil {
		future = membudget.NewFutureAware(budget)
	}
	return &Driver{
		head:         vm.New(u, protocols, nativeFns, budget, entryIP, args),
		unit:         u,
		protocols:    protocols,
		natives:      nativeFns,
		budget:       budget,
		resolver:     resolver,
		future:       future,
		pollInterval: time.Millisecond,
	}
}

// Head exposes the driven VM, for callers that want to inspect its
// state directly (debuggers, the scenario harness).
func (d *Driver) Head() *vm.VM { return d.head }

// Step runs the head VM under an instruction budget of one (spec.md
// §4.9: "step / async-step runs under an instruction budget of 1") and
// returns whatever halt results unresolved — HaltVMCall/HaltAwaited
// included — for a caller that wants to drive suspension points itself
// (a debugger single-stepping between them) instead of letting
// RunToCompletion resolve them. If the single instruction did not
// itself produce a halt, the result is HaltLimited: call Step again to
// keep advancing.
func (d *Driver) Step() vm.Halt {
	return d.head.RunLimited(1)
}

// AsyncStep is Step with a cancellation check beforehand; the run leg
// itself has no internal cancellation points, matching
// coroutine.Coroutine's Poll/Next — only the gaps between halts are
// interruptible.
func (d *Driver) AsyncStep(ctx context.Context) (vm.Halt, error) {
	if err := ctx.Err(); err != nil {
		return vm.Halt{}, err
	}
	return d.Step(), nil
}

// Resume continues the head VM from a previously returned halt,
// writing resumeValue to the register the suspension point reads it
// back from. Use this to drive HaltAwaited/HaltYielded/HaltVMCall
// manually after a Step/AsyncStep call.
func (d *Driver) Resume(resumeValue value.Value, resumeOut unit.Addr) vm.Halt {
	return d.head.Resume(resumeValue, resumeOut)
}

// RunToCompletion drives the head VM synchronously through every halt
// reason it can resolve on its own — nested-VM calls and awaited
// futures — stopping only once the program exits, fails, or produces
// a yield/element with no consumer to hand it to (a bare top-level
// generator call, reported as an error since there is nothing here
// that iterates it).
func (d *Driver) RunToCompletion() (value.Value, error) {
	return d.drive(context.Background(), false)
}

// AsyncRunToCompletion is RunToCompletion with ctx cancellation
// honored between halts and while waiting on a not-yet-ready future.
func (d *Driver) AsyncRunToCompletion(ctx context.Context) (value.Value, error) {
	return d.drive(ctx, true)
}

func (d *Driver) drive(ctx context.Context, async bool) (value.Value, error) {
	halt := d.head.Run()
	for {
		if async {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		switch halt.Kind {
		case vm.HaltExited:
			if trace.IsEnabled() {
				trace.Halt(d.unit.Name, "exited", halt.Value.String())
			}
			return halt.Value, nil

		case vm.HaltAwaited:
			result, err := d.withFutureAware(func() (value.Value, error) {
				return d.resolveFuture(ctx, halt.Value, async)
			})
			if err != nil {
				return nil, d.decorate(err)
			}
			halt = d.head.Resume(result, halt.Out)

		case vm.HaltVMCall:
			result, err := d.withFutureAware(func() (value.Value, error) {
				return d.resolveCall(halt.Call)
			})
			if err != nil {
				return nil, d.decorate(err)
			}
			halt = d.head.Resume(result, halt.Call.Out)

		case vm.HaltYielded:
			return nil, d.decorate(vmerr.New(vmerr.KindHalted, "top-level execution yielded with no consumer"))

		case vm.HaltLimited, vm.HaltError:
			if trace.IsEnabled() {
				trace.Halt(d.unit.Name, halt.Kind.String(), halt.Err.Error())
			}
			return nil, d.decorate(halt.Err)

		default:
			return nil, d.decorate(vmerr.Newf(vmerr.KindHalted, "unrecognized halt kind %s", halt.Kind))
		}
	}
}

// withFutureAware runs fn with the driver's budget isolated to the
// remaining-bytes value this driver last left it at, then records
// whatever fn leaves behind — spec.md §8 invariant 6: the remaining
// budget on resume equals the remaining budget at the point of
// suspension, even when resolving a nested-VM-call or awaited future
// runs other code against the same shared Budget in between.
func (d *Driver) withFutureAware(fn func() (value.Value, error)) (value.Value, error) {
	if d.future == nil {
		return fn()
	}
	d.future.BeforePoll()
	defer d.future.AfterPoll()
	return fn()
}

// resolveFuture polls an awaited value to completion. A future whose
// first Poll reports not-ready is re-polled on pollInterval; async
// callers give up as soon as ctx is canceled, synchronous ones re-poll
// without waiting until the future resolves. natives.CryptVerifyFuture
// does its work inside its first Poll and is ready on return.
func (d *Driver) resolveFuture(ctx context.Context, v value.Value, async bool) (value.Value, error) {
	future, ok := coroutine.AsFuture(v)
	if !ok {
		return nil, vmerr.New(vmerr.KindBadArgument, "awaited value is not a future")
	}
	for {
		result, ready, err := future.Poll()
		if err != nil {
			return nil, vmerr.Newf(vmerr.KindBadArgument, "%v", err).WithCause(err)
		}
		if ready {
			return result, nil
		}
		if async {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.pollInterval):
			}
		}
	}
}

// resolveCall runs a HaltVMCall's target function to completion in a
// fresh nested VM sharing this driver's memory budget, spec.md §4.8's
// nested-VM-call contract.
func (d *Driver) resolveCall(call *vm.NestedCall) (value.Value, error) {
	u, ip, kind, argCount, ok := d.resolver.Resolve(call.FunctionHash)
	if !ok {
		return nil, vmerr.Newf(vmerr.KindMissingFunction, "no function registered for hash %#x", call.FunctionHash)
	}
	if uint32(len(call.Args)) != argCount {
		return nil, vmerr.Newf(vmerr.KindBadArgumentCount, "expected %d arguments, got %d", argCount, len(call.Args))
	}
	nested := vm.New(u, d.protocols, d.natives, d.budget, ip, call.Args)
	nested.Kind = kind
	halt := nested.Run()
	switch halt.Kind {
	case vm.HaltExited:
		return halt.Value, nil
	case vm.HaltLimited, vm.HaltError:
		return nil, halt.Err
	default:
		return nil, vmerr.Newf(vmerr.KindHalted, "nested vm-call produced unexpected halt: %s", halt.Kind)
	}
}

// decorate attaches the head VM's unit name, current instruction
// pointer, and call-frame trace to err exactly once (vmerr.Error.Decorate
// is itself idempotent; spec.md §4.9: "the driver decorates the error
// with the unit, the instruction pointer, and the chain of call
// frames").
func (d *Driver) decorate(err error) error {
	ve, ok := err.(*vmerr.Error)
	if !ok {
		return err
	}
	return ve.Decorate(d.unit.Name, d.head.IP, d.frameTrace())
}

func (d *Driver) frameTrace() []vmerr.Frame {
	depth := d.head.Frames.Depth()
	frames := make([]vmerr.Frame, 0, depth)
	for i := depth - 1; i >= 0; i-- {
		frame, err := d.head.Frames.At(i)
		if err != nil {
			break
		}
		frames = append(frames, vmerr.Frame{FunctionName: d.unit.Name, IP: frame.ReturnIP})
	}
	return frames
}
