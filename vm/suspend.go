package vm

import (
	"github.com/weave-lang/weave/trace"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vmerr"
)

// execAwait halts the VM with the future read from ins.A, handing
// control to whatever drives this VM (the execution driver for a head
// VM, or a CoroutineHandle.Poll loop for a nested one). Resume writes
// the resolved value back to ins.Out and continues right after this
// instruction.
func (v *VM) execAwait(ins unit.Instruction, base, floor int) (Halt, bool) {
	future, err := v.load(base, floor, ins.A)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	if trace.IsEnabled() {
		trace.Suspend(v.Unit.Name, "await", v.IP)
	}
	return Halt{Kind: HaltAwaited, Value: future, Out: ins.Out}, true
}

// execYield halts the VM with one produced element, the stream's
// protocol for CallGeneratorStream functions. Resume continues right
// after the yield point, writing to ins.Out only the value it is
// handed; CoroutineHandle.Next resumes with no value, so ins.Out is
// left unchanged on that path.
func (v *VM) execYield(ins unit.Instruction, base, floor int) (Halt, bool) {
	val, err := v.load(base, floor, ins.A)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	if trace.IsEnabled() {
		trace.Suspend(v.Unit.Name, "yield", v.IP)
	}
	return Halt{Kind: HaltYielded, Value: val, Out: ins.Out}, true
}

// execVMCall halts the VM with a request to run another function
// (possibly in a different unit, via the host Context's function
// resolution) to completion before this VM can continue — spec.md
// §4.8's nested-VM-call, used when a unit needs to invoke a function
// the driver, not the interpreter, must resolve (cross-unit calls,
// embedder-provided callbacks).
func (v *VM) execVMCall(ins unit.Instruction, base, floor int) (Halt, bool) {
	target, err := v.load(base, floor, ins.A)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	hash, ok := target.(value.Type)
	if !ok {
		return v.errorHalt(vmerr.New(vmerr.KindBadArgument, "vm-call target is not a function hash")), true
	}
	args, err := v.popArgs(floor, ins.ArgCount)
	if err != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
	}
	return Halt{Kind: HaltVMCall, Call: &NestedCall{FunctionHash: uint64(hash), Args: args, Out: ins.Out}}, true
}
