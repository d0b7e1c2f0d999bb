package vm

import (
	"testing"

	"github.com/weave-lang/weave/natives"
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

func addr(i int32) unit.Addr { return unit.Addr(i) }

func buildFlat(ins ...unit.Instruction) *unit.Unit {
	b := unit.NewBuilder("test", unit.EncodingFlat)
	for _, i := range ins {
		b.Emit(i)
	}
	u, err := b.Build()
	if err != nil {
		panic(err)
	}
	return u
}

func newTestVM(u *unit.Unit, entry int, args ...value.Value) *VM {
	return New(u, protocol.NewRegistry(), natives.Functions(), nil, entry, args)
}

func TestVMAddAndReturn(t *testing.T) {
	u := buildFlat(
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 2},
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 3},
		unit.Instruction{Op: unit.OpAdd, A: addr(0), B: addr(1), Out: addr(2)},
		unit.Instruction{Op: unit.OpReturn, A: addr(2)},
	)
	v := newTestVM(u, 0)
	halt := v.Run()
	if halt.Kind != HaltExited {
		t.Fatalf("expected HaltExited, got %s (err=%v)", halt.Kind, halt.Err)
	}
	got, ok := halt.Value.(value.Int)
	if !ok || got != 5 {
		t.Fatalf("expected Int(5), got %#v", halt.Value)
	}
}

func TestVMDivideByZeroIsRecoverable(t *testing.T) {
	u := buildFlat(
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 10},
		unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 0},
		unit.Instruction{Op: unit.OpDiv, A: addr(0), B: addr(1), Out: addr(2)},
		unit.Instruction{Op: unit.OpReturn, A: addr(2)},
	)
	v := newTestVM(u, 0)
	halt := v.Run()
	if halt.Kind != HaltError {
		t.Fatalf("expected HaltError, got %s", halt.Kind)
	}
	if halt.Err == nil || halt.Err.Kind.String() != "divide-by-zero" {
		t.Fatalf("expected divide-by-zero, got %v", halt.Err)
	}
}

func TestVMCallImmediateFunction(t *testing.T) {
	b := unit.NewBuilder("test", unit.EncodingFlat)

	// main: push 21 as the arg, call double, return its result.
	fnHash := uint64(0xD0BB1E)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 21})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpCall, Hash: fnHash, ArgCount: 1, Out: addr(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(1)})

	// double(x): x * 2
	entryDouble := b.Here()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(1), Imm: 2})
	b.Emit(unit.Instruction{Op: unit.OpMul, A: addr(0), B: addr(1), Out: addr(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})

	b.DefineOffsetFunction(fnHash, entryDouble, unit.CallImmediate, 1)

	u, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	v := newTestVM(u, 0)
	halt := v.Run()
	if halt.Kind != HaltExited {
		t.Fatalf("expected HaltExited, got %s (err=%v)", halt.Kind, halt.Err)
	}
	got, ok := halt.Value.(value.Int)
	if !ok || got != 42 {
		t.Fatalf("expected Int(42), got %#v", halt.Value)
	}
}

func TestVMConstructOptionSome(t *testing.T) {
	b := unit.NewBuilder("test", unit.EncodingFlat)
	b.DefineStandardEnums()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: addr(0), Imm: 7})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: addr(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpOptionSome, ArgCount: 1, Out: addr(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(1)})
	u, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	v := newTestVM(u, 0)
	halt := v.Run()
	if halt.Kind != HaltExited {
		t.Fatalf("expected HaltExited, got %s (err=%v)", halt.Kind, halt.Err)
	}
	m, ok := halt.Value.(*value.Mutable)
	if !ok || !value.IsSome(m) {
		t.Fatalf("expected Some(_), got %#v", halt.Value)
	}
	inner, err := m.Field(0)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	if iv, ok := inner.(value.Int); !ok || iv != 7 {
		t.Fatalf("expected inner Int(7), got %#v", inner)
	}
}

func TestVMOpAssignOnField(t *testing.T) {
	shape := &value.Shape{TypeName: "Counter", Fields: []string{"n"}}
	typeHash := value.HashPath("Counter")
	counter := value.NewStruct(typeHash, shape, []value.Value{value.Int(10)})

	b := unit.NewBuilder("test", unit.EncodingFlat)
	fieldSlot := b.AddString("n")
	b.Emit(unit.Instruction{
		Op:    unit.OpAddAssign,
		Place: unit.Place{Kind: unit.PlaceField, Base: addr(0), FieldSlot: fieldSlot},
		B:     addr(1),
	})
	b.Emit(unit.Instruction{Op: unit.OpFieldGet, A: addr(0), Out: addr(2), Index: fieldSlot})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: addr(2)})
	u, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	v := newTestVM(u, 0, counter, value.Int(5))
	halt := v.Run()
	if halt.Kind != HaltExited {
		t.Fatalf("expected HaltExited, got %s (err=%v)", halt.Kind, halt.Err)
	}
	if got, ok := halt.Value.(value.Int); !ok || got != 15 {
		t.Fatalf("expected Int(15), got %#v", halt.Value)
	}
}
