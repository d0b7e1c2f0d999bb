package exec

import (
	"context"
	"testing"

	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/natives"
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vm"
	"github.com/weave-lang/weave/vmerr"
)

func addr(i int32) unit.Addr { return unit.Addr(i) }

func buildFlat(t *testing.T, ins ...unit.Instruction) *unit.Unit {
	t.Helper()
	b := unit.NewBuilder("test-unit", unit.EncodingFlat)
	for _, i := range ins {
		b.Emit(i)
	}
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}
	return u
}

func newDriver(u *unit.Unit, budget *membudget.Budget, resolver Resolver) *Driver {
	reg := protocol.NewRegistry()
	natives.RegisterProtocols(reg)
	return New(u, reg, natives.Functions(), budget, 0, nil, resolver)
}

func TestRunToCompletionReturnsExitValue(t *testing.T) {
	u := buildFlat(t,
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 4},
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 5},
		unit.Instruction{Op: unit.OpAdd, A: addr(0), B: addr(1), Out: addr(2)},
		unit.Instruction{Op: unit.OpReturn, A: addr(2)},
	)
	d := newDriver(u, membudget.New(), nil)

	result, err := d.RunToCompletion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := result.(value.Int); !ok || got != 9 {
		t.Fatalf("expected Int(9), got %#v", result)
	}
}

func TestRunToCompletionDecoratesEscapingError(t *testing.T) {
	u := buildFlat(t,
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 10},
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 0},
		unit.Instruction{Op: unit.OpDiv, A: addr(0), B: addr(1), Out: addr(2)},
		unit.Instruction{Op: unit.OpReturn, A: addr(2)},
	)
	d := newDriver(u, membudget.New(), nil)

	_, err := d.RunToCompletion()
	ve, ok := err.(*vmerr.Error)
	if !ok {
		t.Fatalf("expected *vmerr.Error, got %T (%v)", err, err)
	}
	if ve.Kind != vmerr.KindDivideByZero {
		t.Fatalf("expected divide-by-zero, got %s", ve.Kind)
	}
	if ve.UnitName != "test-unit" {
		t.Fatalf("expected decoration to stamp the unit name, got %q", ve.UnitName)
	}
}

func TestVMCallResolvesWithinOwnUnitByDefault(t *testing.T) {
	b := unit.NewBuilder("test-unit", unit.EncodingFlat)
	fnHash := uint64(0xC0FFEE)

	slot := b.AddConstant(unit.InlineConst{V: value.Type(fnHash)})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 7})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpLoadConst, Out: addr(1), Index: slot})
	b.Emit(unit.Instruction{Op: unit.OpVMCall, A: addr(1), ArgCount: 1, Out: addr(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})

	entryTriple := b.Here()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 3})
	b.Emit(unit.Instruction{Op: unit.OpMul, A: addr(0), B: addr(1), Out: addr(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})

	b.DefineOffsetFunction(fnHash, entryTriple, unit.CallImmediate, 1)
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}

	d := newDriver(u, membudget.New(), nil)
	result, err := d.RunToCompletion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := result.(value.Int); !ok || got != 21 {
		t.Fatalf("expected Int(21), got %#v", result)
	}
}

func TestVMCallUnresolvedReportsMissingFunction(t *testing.T) {
	b := unit.NewBuilder("test-unit", unit.EncodingFlat)
	slot := b.AddConstant(unit.InlineConst{V: value.Type(0xDEAD)})
	b.Emit(unit.Instruction{Op: unit.OpLoadConst, Out: addr(0), Index: slot})
	b.Emit(unit.Instruction{Op: unit.OpVMCall, A: addr(0), ArgCount: 0, Out: addr(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(1)})
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}

	d := newDriver(u, membudget.New(), nil)
	_, runErr := d.RunToCompletion()
	ve, ok := runErr.(*vmerr.Error)
	if !ok {
		t.Fatalf("expected *vmerr.Error, got %T", runErr)
	}
	if ve.Kind != vmerr.KindMissingFunction {
		t.Fatalf("expected missing-function, got %s", ve.Kind)
	}
}

func TestAllocationFailureReportsAllocationKind(t *testing.T) {
	pointHash := value.HashPath("Point")
	b := unit.NewBuilder("test-unit", unit.EncodingFlat)
	b.DefineTupleStruct(pointHash, "Point", 2)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 1})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 2})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(1), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpTupleStruct, Hash: uint64(pointHash), ArgCount: 2, Out: addr(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}

	budget := membudget.New()
	var runErr error
	err = budget.With(8, func() error {
		d := newDriver(u, budget, nil)
		_, e := d.RunToCompletion()
		runErr = e
		return e
	})
	if err == nil {
		t.Fatal("expected the 8-byte budget to refuse a 16-byte tuple struct")
	}
	ve, ok := runErr.(*vmerr.Error)
	if !ok {
		t.Fatalf("expected *vmerr.Error, got %T", runErr)
	}
	if ve.Kind != vmerr.KindAllocation {
		t.Fatalf("expected allocation, got %s", ve.Kind)
	}
}

func TestReturnWithLeakedOperandReportsCorruptedStackFrame(t *testing.T) {
	u := buildFlat(t,
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 1},
		unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top}, // pushed, never consumed
		unit.Instruction{Op: unit.OpReturn, A: addr(0)},
	)
	d := newDriver(u, membudget.New(), nil)

	_, err := d.RunToCompletion()
	ve, ok := err.(*vmerr.Error)
	if !ok {
		t.Fatalf("expected *vmerr.Error, got %T", err)
	}
	if ve.Kind != vmerr.KindCorruptedStackFrame {
		t.Fatalf("expected corrupted-stack-frame, got %s", ve.Kind)
	}
}

func TestStepAdvancesOneInstructionAtATime(t *testing.T) {
	u := buildFlat(t,
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 4},
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 5},
		unit.Instruction{Op: unit.OpAdd, A: addr(0), B: addr(1), Out: addr(2)},
		unit.Instruction{Op: unit.OpReturn, A: addr(2)},
	)
	d := newDriver(u, membudget.New(), nil)

	for i := 0; i < 3; i++ {
		halt := d.Step()
		if halt.Kind != vm.HaltLimited {
			t.Fatalf("step %d: expected limited, got %s", i, halt.Kind)
		}
	}
	halt := d.Step()
	if halt.Kind != vm.HaltExited {
		t.Fatalf("expected exited on the 4th step, got %s", halt.Kind)
	}
	if got, ok := halt.Value.(value.Int); !ok || got != 9 {
		t.Fatalf("expected Int(9), got %#v", halt.Value)
	}
}

// TestAwaitResolvesARealHostFuture drives a unit through a genuine
// suspension: calling the crypt_verify native produces a
// natives.CryptVerifyFuture, awaiting it halts the VM with
// HaltAwaited, and RunToCompletion must resolve that halt by polling
// the future itself (crypt(3) verification, not a stub) rather than
// anything package exec fabricates.
func TestAwaitResolvesARealHostFuture(t *testing.T) {
	b := unit.NewBuilder("test-unit", unit.EncodingFlat)
	hashedSlot := b.AddConstant(unit.ByteStringConst{
		Bytes: []byte("$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjnQJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1"),
	})
	passwordSlot := b.AddConstant(unit.ByteStringConst{Bytes: []byte("Hello world!")})
	verifyHash := uint64(value.HashPath(natives.NameCryptVerify))

	b.Emit(unit.Instruction{Op: unit.OpLoadConst, Out: addr(0), Index: hashedSlot})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpLoadConst, Out: addr(1), Index: passwordSlot})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(1), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpCall, Hash: verifyHash, ArgCount: 2, Out: addr(2)})
	b.Emit(unit.Instruction{Op: unit.OpAwait, A: addr(2), Out: addr(3)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(3)})
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}

	d := newDriver(u, membudget.New(), nil)
	result, runErr := d.RunToCompletion()
	if runErr != nil {
		t.Fatalf("unexpected error: %v", runErr)
	}
	if got, ok := result.(value.Bool); !ok || !bool(got) {
		t.Fatalf("expected a verified Bool(true), got %#v", result)
	}
}

func TestAsyncRunToCompletionHonorsCancellation(t *testing.T) {
	u := buildFlat(t,
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 1},
		unit.Instruction{Op: unit.OpReturn, A: addr(0)},
	)
	d := newDriver(u, membudget.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.AsyncRunToCompletion(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
