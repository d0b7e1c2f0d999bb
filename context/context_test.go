package context

import (
	"fmt"
	"testing"

	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

func addr(i int32) unit.Addr { return unit.Addr(i) }

func buildAdder(t *testing.T) *unit.Unit {
	t.Helper()
	b := unit.NewBuilder("context-test", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 11})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 31})
	b.Emit(unit.Instruction{Op: unit.OpAdd, A: addr(0), B: addr(1), Out: addr(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}
	return u
}

func TestNewDriverRunsToCompletion(t *testing.T) {
	ctx := New()
	driver := ctx.NewDriver(buildAdder(t), membudget.New(), nil)

	result, err := driver.RunToCompletion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := result.(value.Int); !ok || got != 42 {
		t.Fatalf("expected Int(42), got %#v", result)
	}
}

func TestNewDriverLoadsUnitForVMCallResolution(t *testing.T) {
	callerHash := uint64(0x1234)

	// A two-unit setup: "callee" defines the function, "caller" invokes
	// it by hash via a vm-call, relying on the shared Context (not the
	// callee's own resolver) to find it across units.
	calleeBuilder := unit.NewBuilder("callee", unit.EncodingFlat)
	calleeBuilder.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 100})
	calleeBuilder.Emit(unit.Instruction{Op: unit.OpAdd, A: addr(0), B: addr(1), Out: addr(2)})
	calleeBuilder.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})
	calleeBuilder.DefineOffsetFunction(callerHash, 0, unit.CallImmediate, 1)
	callee, err := calleeBuilder.Build()
	if err != nil {
		t.Fatalf("failed to build callee: %v", err)
	}

	callerBuilder := unit.NewBuilder("caller", unit.EncodingFlat)
	slot := callerBuilder.AddConstant(unit.InlineConst{V: value.Type(callerHash)})
	callerBuilder.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 5})
	callerBuilder.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	callerBuilder.Emit(unit.Instruction{Op: unit.OpLoadConst, Out: addr(1), Index: slot})
	callerBuilder.Emit(unit.Instruction{Op: unit.OpVMCall, A: addr(1), ArgCount: 1, Out: addr(2)})
	callerBuilder.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})
	caller, err := callerBuilder.Build()
	if err != nil {
		t.Fatalf("failed to build caller: %v", err)
	}

	ctx := New()
	ctx.Load(callee)
	driver := ctx.NewDriver(caller, membudget.New(), nil)

	result, err := driver.RunToCompletion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := result.(value.Int); !ok || got != 105 {
		t.Fatalf("expected Int(105), got %#v", result)
	}
}

func TestResolveReportsNotFoundForUnknownHash(t *testing.T) {
	ctx := New()
	ctx.Load(buildAdder(t))

	_, _, _, _, ok := ctx.Resolve(0xFFFFFFFF)
	if ok {
		t.Fatal("expected Resolve to report not-found for an unregistered hash")
	}
}

func TestRegisterNativeIsCallableFromAUnit(t *testing.T) {
	ctx := New()
	nativeHash := uint64(0x5EED)
	ctx.RegisterNative(nativeHash, func(args []value.Value) (value.Value, error) {
		n, ok := args[0].(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected an Int argument")
		}
		return n + 1, nil
	})

	b := unit.NewBuilder("native-caller", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 9})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpCall, Hash: nativeHash, ArgCount: 1, Out: addr(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(1)})
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}

	driver := ctx.NewDriver(u, membudget.New(), nil)
	result, runErr := driver.RunToCompletion()
	if runErr != nil {
		t.Fatalf("unexpected error: %v", runErr)
	}
	if got, ok := result.(value.Int); !ok || got != 10 {
		t.Fatalf("expected Int(10), got %#v", result)
	}
}
