package coroutine

import (
	"context"
	"testing"

	"github.com/weave-lang/weave/natives"
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vm"
)

func addr(i int32) unit.Addr { return unit.Addr(i) }

// buildAsyncCall assembles a unit whose entry point calls a CallAsync
// function and returns the resulting handle value directly, so a test
// can drive it through coroutine.FromValue without going through
// package exec.
func buildAsyncCall(t *testing.T) *unit.Unit {
	t.Helper()
	b := unit.NewBuilder("coroutine-test", unit.EncodingFlat)
	fnHash := uint64(0xA57C)

	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 6})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpCall, Hash: fnHash, ArgCount: 1, Out: addr(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(1)})

	entryAsync := b.Here()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 7})
	b.Emit(unit.Instruction{Op: unit.OpMul, A: addr(0), B: addr(1), Out: addr(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})

	b.DefineOffsetFunction(fnHash, entryAsync, unit.CallAsync, 1)
	u, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build unit: %v", err)
	}
	return u
}

func runMain(t *testing.T, u *unit.Unit) value.Value {
	t.Helper()
	reg := protocol.NewRegistry()
	natives.RegisterProtocols(reg)
	v := vm.New(u, reg, natives.Functions(), nil, 0, nil)
	halt := v.Run()
	if halt.Kind != vm.HaltExited {
		t.Fatalf("expected HaltExited, got %s (err=%v)", halt.Kind, halt.Err)
	}
	return halt.Value
}

func TestFromValueWrapsACoroutineHandle(t *testing.T) {
	handleValue := runMain(t, buildAsyncCall(t))

	co, ok := FromValue(handleValue)
	if !ok {
		t.Fatal("expected the call's result to unwrap as a coroutine handle")
	}
	if co.State() != Created {
		t.Fatalf("expected a freshly wrapped coroutine to be Created, got %s", co.State())
	}
}

func TestPollDrivesToCompletion(t *testing.T) {
	handleValue := runMain(t, buildAsyncCall(t))
	co, ok := FromValue(handleValue)
	if !ok {
		t.Fatal("expected a coroutine handle")
	}

	result, err := co.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := result.(value.Int); !ok || got != 42 {
		t.Fatalf("expected Int(42), got %#v", result)
	}
	if co.State() != Completed {
		t.Fatalf("expected Completed after a synchronous exit, got %s", co.State())
	}
}

func TestPollAfterCompletionReportsStateError(t *testing.T) {
	handleValue := runMain(t, buildAsyncCall(t))
	co, _ := FromValue(handleValue)

	if _, err := co.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error on first poll: %v", err)
	}
	_, err := co.Poll(context.Background())
	if err == nil {
		t.Fatal("expected polling a completed coroutine to report a state error")
	}
	if _, ok := err.(*StateError); !ok {
		t.Fatalf("expected *StateError, got %T", err)
	}
}

func TestKillMarksCoroutineUnusable(t *testing.T) {
	handleValue := runMain(t, buildAsyncCall(t))
	co, _ := FromValue(handleValue)

	co.Kill()
	if co.State() != Killed {
		t.Fatalf("expected Killed, got %s", co.State())
	}
	if _, err := co.Poll(context.Background()); err == nil {
		t.Fatal("expected polling a killed coroutine to fail")
	}
}

func TestFromValueRejectsOrdinaryValues(t *testing.T) {
	if _, ok := FromValue(value.Int(5)); ok {
		t.Fatal("expected a plain Int to not unwrap as a coroutine handle")
	}
}
