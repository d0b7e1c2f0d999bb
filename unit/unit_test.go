package unit

import (
	"testing"

	"github.com/weave-lang/weave/value"
)

func TestPackedStorageRoundTrips(t *testing.T) {
	ins := []Instruction{
		{Op: OpLoadInt, Out: 0, Imm: 42},
		{Op: OpLoadInt, Out: 1, Imm: -7},
		{Op: OpAdd, A: 0, B: 1, Out: 2},
		{Op: OpReturn, A: 2},
	}

	s := NewPackedStorage()
	offsets := make([]int, len(ins))
	for i, in := range ins {
		offsets[i] = s.Append(in)
	}

	for i, off := range offsets {
		got, width, err := s.InstructionAt(off)
		if err != nil {
			t.Fatalf("instruction %d: %v", i, err)
		}
		if got != ins[i] {
			t.Fatalf("instruction %d round-trip mismatch: got %+v, want %+v", i, got, ins[i])
		}
		if width <= 0 {
			t.Fatalf("instruction %d: expected positive width, got %d", i, width)
		}
	}
}

func TestPackedStorageEncodesPlace(t *testing.T) {
	ins := Instruction{
		Op: OpAddAssign,
		Place: Place{Kind: PlaceField, Base: 3, FieldSlot: 5},
		B:     1,
	}
	s := NewPackedStorage()
	off := s.Append(ins)
	got, _, err := s.InstructionAt(off)
	if err != nil {
		t.Fatal(err)
	}
	if got.Place != ins.Place {
		t.Fatalf("place mismatch: got %+v, want %+v", got.Place, ins.Place)
	}
}

func TestFlatStorageAddressesByIndex(t *testing.T) {
	s := NewFlatStorage([]Instruction{
		{Op: OpLoadUnit, Out: 0},
		{Op: OpReturn, A: 0},
	})
	got, width, err := s.InstructionAt(1)
	if err != nil {
		t.Fatal(err)
	}
	if width != 1 {
		t.Fatalf("expected flat storage width 1, got %d", width)
	}
	if got.Op != OpReturn {
		t.Fatalf("expected OpReturn, got %v", got.Op)
	}
}

func TestBuilderJumpPatchRoundTrips(t *testing.T) {
	b := NewBuilder("test", EncodingPacked)
	b.Emit(Instruction{Op: OpLoadBool, Out: 0, Imm: 1})
	skip := b.ReserveJump()
	b.Emit(Instruction{Op: OpJumpIfNot, A: 0, JumpIndex: skip})
	b.Emit(Instruction{Op: OpLoadInt, Out: 1, Imm: 1})
	b.PatchJumpHere(skip)
	b.Emit(Instruction{Op: OpReturn, A: 1})

	u, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	ins, _, err := u.InstructionAt(1)
	if err != nil {
		t.Fatal(err)
	}
	target, err := u.TranslateJump(ins.JumpIndex)
	if err != nil {
		t.Fatal(err)
	}
	last, _, err := u.InstructionAt(target)
	if err != nil {
		t.Fatal(err)
	}
	if last.Op != OpReturn {
		t.Fatalf("expected jump to land on OpReturn, got %v", last.Op)
	}
}

func TestBuilderConstantsAndStringsRoundTrip(t *testing.T) {
	b := NewBuilder("test", EncodingPacked)
	slot := b.AddConstant(InlineConst{V: value.Int(7)})
	strSlot1 := b.AddString("hello")
	strSlot2 := b.AddString("hello")
	if strSlot1 != strSlot2 {
		t.Fatalf("expected string pool to dedupe, got %d and %d", strSlot1, strSlot2)
	}

	u, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	v, err := u.LookupConst(slot)
	if err != nil {
		t.Fatal(err)
	}
	if v != value.Int(7) {
		t.Fatalf("expected 7, got %v", v)
	}
	s, err := u.LookupString(strSlot1)
	if err != nil {
		t.Fatal(err)
	}
	if s != "hello" {
		t.Fatalf("expected hello, got %q", s)
	}
}

func TestFunctionTableRegistersTupleVariant(t *testing.T) {
	b := NewBuilder("test", EncodingPacked)
	b.DefineStandardEnums()
	u, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := u.Function(uint64(value.VariantHashSome))
	if !ok {
		t.Fatal("expected Option::Some to be registered")
	}
	if entry.Kind != FuncTupleVariant || entry.FieldCount != 1 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	info, ok := u.LookupVariantRTTI(value.VariantHashSome)
	if !ok || info.EnumName != "Option" {
		t.Fatalf("unexpected variant RTTI: %+v", info)
	}
}
