// Package vm implements the register-stack interpreter of spec.md
// §4.5/§4.7: the fetch/decode/dispatch loop, call-frame management, the
// three call kinds, and the halt-reason contract that hands control
// back to the execution driver (package exec) at every suspension
// point.
package vm

import (
	"math"

	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/natives"
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/stack"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vmerr"
)

// VM is one runnable unit of execution: either the head VM an
// exec.Driver drives directly, or a nested VM created for a generator/
// async function call. A VM is single-threaded and not safe for
// concurrent use (package access's Cell documents the same
// restriction) — nested VMs run strictly one at a time, never
// concurrently with their parent.
type VM struct {
	Unit      *unit.Unit
	Stack     *stack.Stack
	Frames    stack.Frames
	IP        int
	Budget    *membudget.Budget
	Protocols *protocol.Registry
	Natives   map[uint64]natives.NativeFunc

	// Kind records which call convention spawned this VM (immediate
	// head VMs use CallImmediate as a default with no special meaning).
	Kind unit.CallKind
}

// New constructs a VM ready to begin executing u starting at entryIP,
// with args already materialized and installed as its first registers
// (register 0..len(args)-1).
func New(u *unit.Unit, protocols *protocol.Registry, nativeFns map[uint64]natives.NativeFunc, budget *membudget.Budget, entryIP int, args []value.Value) *VM {
	v := &VM{
		Unit:      u,
		Stack:     stack.New(),
		Protocols: protocols,
		Natives:   nativeFns,
		Budget:    budget,
		IP:        entryIP,
	}
	for _, a := range args {
		v.Stack.Push(a)
	}
	v.Frames.Push(stack.Frame{
		ReturnIP:   -1,
		Base:       0,
		SavedTop:   0,
		OutputAddr: unit.Top,
	})
	return v
}

// Resume continues running a VM previously halted with HaltYielded or
// HaltAwaited, writing the produced value into the register the
// suspension point reads it back from, then running until the next
// halt.
func (v *VM) Resume(resumeValue value.Value, resumeOut unit.Addr) Halt {
	if resumeOut != unit.Top || resumeValue != nil {
		frame, err := v.Frames.Current()
		if err == nil {
			if err := v.Stack.StoreAddr(frame.Base, resumeOut, resumeValue); err != nil {
				return v.errorHalt(vmerr.FromAccessError(err))
			}
			if resumeOut.IsTop() {
				frame.TopBalance++
			}
		}
	}
	return v.Run()
}

// Run executes instructions until a halt of any kind occurs, with no
// instruction budget.
func (v *VM) Run() Halt {
	return v.run(0)
}

// RunLimited executes at most maxInstructions instructions (0 means
// unlimited, equivalent to Run), returning HaltLimited if the budget
// runs out before the interpreter reaches a natural halt on its own —
// spec.md §4.9's step/async-step instruction budget.
func (v *VM) RunLimited(maxInstructions int) Halt {
	return v.run(maxInstructions)
}

func (v *VM) run(maxInstructions int) Halt {
	executed := 0
	for {
		if maxInstructions > 0 && executed >= maxInstructions {
			return Halt{Kind: HaltLimited}
		}
		if halt, stop := v.step(); stop {
			return halt
		}
		executed++
	}
}

// step decodes and executes exactly one instruction, advancing IP by
// its encoded width unless the instruction itself changed IP (a jump,
// return, or call) or the VM halted.
func (v *VM) step() (Halt, bool) {
	ins, width, err := v.Unit.InstructionAt(v.IP)
	if err != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindBadInstruction, "%v", err)), true
	}

	frame, err := v.Frames.Current()
	if err != nil {
		return v.errorHalt(vmerr.Newf(vmerr.KindCorruptedStackFrame, "%v", err)), true
	}
	base := frame.Base
	floor := frame.SavedTop

	switch ins.Op {
	case unit.OpLoadUnit:
		v.store(base, ins.Out, value.Unit{})
	case unit.OpLoadBool:
		v.store(base, ins.Out, value.Bool(ins.Imm != 0))
	case unit.OpLoadChar:
		v.store(base, ins.Out, value.Char(rune(ins.Imm)))
	case unit.OpLoadUint:
		v.store(base, ins.Out, value.Uint(uint64(ins.Imm)))
	case unit.OpLoadInt:
		v.store(base, ins.Out, value.Int(ins.Imm))
	case unit.OpLoadFloat:
		v.store(base, ins.Out, value.Float(math.Float64frombits(uint64(ins.Imm))))
	case unit.OpLoadConst:
		cv, err := v.Unit.LookupConst(ins.Index)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingStatic, "%v", err)), true
		}
		if halt, stop := v.charge(cv); stop {
			return halt, true
		}
		v.store(base, ins.Out, cv)
	case unit.OpLoadString:
		sv, err := v.Unit.LookupStringValue(ins.Index)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingStatic, "%v", err)), true
		}
		if halt, stop := v.charge(sv); stop {
			return halt, true
		}
		v.store(base, ins.Out, sv)
	case unit.OpCopy:
		val, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		v.store(base, ins.Out, val)
	case unit.OpMove:
		val, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		moved, err := value.Take(val)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		if !ins.A.IsTop() {
			v.storeRaw(base, ins.A, value.Unit{})
		}
		v.store(base, ins.Out, moved)
	case unit.OpSwap:
		av, aerr := v.load(base, floor, ins.A)
		bv, berr := v.load(base, floor, ins.B)
		if aerr != nil || berr != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "swap operand out of range")), true
		}
		v.storeRaw(base, ins.A, bv)
		v.storeRaw(base, ins.B, av)

	case unit.OpAdd, unit.OpSub, unit.OpMul, unit.OpDiv, unit.OpRem,
		unit.OpBitAnd, unit.OpBitOr, unit.OpBitXor, unit.OpShl, unit.OpShr:
		if halt, stop := v.execBinaryArith(ins, base, floor); stop {
			return halt, true
		}
	case unit.OpNeg, unit.OpBitNot:
		if halt, stop := v.execUnaryArith(ins, base, floor); stop {
			return halt, true
		}
	case unit.OpAddAssign, unit.OpSubAssign, unit.OpMulAssign, unit.OpDivAssign, unit.OpRemAssign,
		unit.OpBitAndAssign, unit.OpBitOrAssign, unit.OpBitXorAssign, unit.OpShlAssign, unit.OpShrAssign:
		if halt, stop := v.execOpAssign(ins, base, floor); stop {
			return halt, true
		}
	case unit.OpEq, unit.OpNeq, unit.OpLt, unit.OpGt, unit.OpLte, unit.OpGte, unit.OpPartialCmp:
		if halt, stop := v.execCompare(ins, base, floor); stop {
			return halt, true
		}

	case unit.OpIs, unit.OpIsNot:
		if halt, stop := v.execTypeTest(ins, base, floor); stop {
			return halt, true
		}

	case unit.OpJump:
		target, err := v.Unit.TranslateJump(ins.JumpIndex)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindBadJump, "%v", err)), true
		}
		v.IP = target
		return Halt{}, false
	case unit.OpJumpIf, unit.OpJumpIfNot:
		cond, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		truthy := value.Truthy(cond)
		if ins.Op == unit.OpJumpIfNot {
			truthy = !truthy
		}
		if truthy {
			target, err := v.Unit.TranslateJump(ins.JumpIndex)
			if err != nil {
				return v.errorHalt(vmerr.Newf(vmerr.KindBadJump, "%v", err)), true
			}
			v.IP = target
			return Halt{}, false
		}
	case unit.OpJumpIfOrPop, unit.OpJumpIfNotOrPop:
		cond, err := v.Stack.Peek()
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		truthy := value.Truthy(cond)
		want := ins.Op == unit.OpJumpIfOrPop
		if truthy == want {
			target, err := v.Unit.TranslateJump(ins.JumpIndex)
			if err != nil {
				return v.errorHalt(vmerr.Newf(vmerr.KindBadJump, "%v", err)), true
			}
			v.IP = target
			return Halt{}, false
		}
		if _, err := v.Stack.Pop(floor); err == nil {
			v.adjustTopBalance(-1)
		}

	case unit.OpCall, unit.OpCallInstance, unit.OpCallFn:
		return v.execCall(ins, base, floor, width)
	case unit.OpReturn:
		val, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		return v.execReturn(val)
	case unit.OpReturnUnit:
		return v.execReturn(value.Unit{})

	case unit.OpUnitStruct, unit.OpTupleStruct, unit.OpNamedStruct,
		unit.OpTuple, unit.OpVec, unit.OpObject,
		unit.OpOptionSome, unit.OpOptionNone, unit.OpResultOk, unit.OpResultErr:
		if halt, stop := v.execConstruct(ins, base, floor); stop {
			return halt, true
		}

	case unit.OpGetDiscriminant, unit.OpIsVariant, unit.OpTupleIndexGet, unit.OpFieldGet:
		if halt, stop := v.execPattern(ins, base, floor); stop {
			return halt, true
		}

	case unit.OpAwait:
		return v.execAwait(ins, base, floor)
	case unit.OpYield:
		return v.execYield(ins, base, floor)
	case unit.OpVMCall:
		return v.execVMCall(ins, base, floor)

	default:
		return v.errorHalt(vmerr.Newf(vmerr.KindBadInstruction, "unrecognized opcode %d", ins.Op)), true
	}

	v.IP += width
	return Halt{}, false
}

func (v *VM) load(base, floor int, addr unit.Addr) (value.Value, error) {
	val, err := v.Stack.LoadAddr(base, floor, addr)
	if err == nil && addr.IsTop() {
		v.adjustTopBalance(-1)
	}
	return val, err
}

func (v *VM) store(base int, addr unit.Addr, val value.Value) {
	if addr.IsTop() {
		v.adjustTopBalance(1)
	}
	_ = v.Stack.StoreAddr(base, addr, val)
}

// adjustTopBalance credits or debits the current frame's Top-push
// ledger (see stack.Frame.TopBalance); it is a no-op when there is no
// current frame, which only happens while constructing a brand-new VM
// before its root frame is pushed.
func (v *VM) adjustTopBalance(delta int) {
	if frame, err := v.Frames.Current(); err == nil {
		frame.TopBalance += delta
	}
}

// storeRaw always writes a register slot (never Top), used when
// clearing a moved-from source register.
func (v *VM) storeRaw(base int, addr unit.Addr, val value.Value) {
	if addr.IsTop() {
		return
	}
	_ = v.Stack.StoreAddr(base, addr, val)
}

func (v *VM) errorHalt(e *vmerr.Error) Halt {
	return Halt{Kind: HaltError, Err: e}
}

// charge debits the memory budget for a freshly materialized
// composite value, converting a budget failure into the Halt a Call
// instruction site would see.
func (v *VM) charge(val value.Value) (Halt, bool) {
	if v.Budget == nil {
		return Halt{}, false
	}
	cost := estimateSize(val)
	if cost == 0 {
		return Halt{}, false
	}
	if err := v.Budget.TakeOrError(cost); err != nil {
		return v.errorHalt(vmerr.New(vmerr.KindAllocation, err.Error())), true
	}
	return Halt{}, false
}

func estimateSize(val value.Value) int64 {
	switch val.Kind() {
	case value.KindEmptyStruct, value.KindUnitVariant:
		return 16
	case value.KindTupleStruct, value.KindStruct, value.KindTupleVariant:
		return 16
	case value.KindAny:
		return 32
	default:
		return 0
	}
}
