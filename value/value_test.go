package value

import "testing"

func TestInlineTakeAlwaysSucceeds(t *testing.T) {
	v, err := Take(Int(42))
	if err != nil {
		t.Fatalf("inline take should never fail: %v", err)
	}
	if v != Int(42) {
		t.Fatalf("expected unchanged value, got %v", v)
	}
}

func TestMutableTakeIsIrreversible(t *testing.T) {
	m := NewTupleStruct(HashPath("test::Point"), "Point", []Value{Int(1), Int(2)})

	if _, err := Take(m); err != nil {
		t.Fatalf("first take should succeed: %v", err)
	}
	if _, err := Take(m); err == nil {
		t.Fatal("second take should fail: value already moved")
	}
}

func TestStructFieldAccessByNameAndIndex(t *testing.T) {
	shape := &Shape{TypeName: "Point", Fields: []string{"x", "y"}}
	m := NewStruct(HashPath("test::Point"), shape, []Value{Int(10), Int(20)})

	y, err := m.FieldByName("y")
	if err != nil {
		t.Fatalf("FieldByName failed: %v", err)
	}
	if y != Int(20) {
		t.Fatalf("expected y=20, got %v", y)
	}

	if err := m.SetFieldByName("y", Int(25)); err != nil {
		t.Fatalf("SetFieldByName failed: %v", err)
	}
	y2, _ := m.Field(1)
	if y2 != Int(25) {
		t.Fatalf("expected y=25 after SetFieldByName, got %v", y2)
	}

	if _, err := m.FieldByName("z"); err == nil {
		t.Fatal("expected missing-field error for unknown field name")
	}
}

func TestExclusiveBorrowBlocksSharedFieldRead(t *testing.T) {
	m := NewTupleStruct(HashPath("test::Pair"), "Pair", []Value{Int(1), Int(2)})

	guard, err := m.Cell.TryExclusive()
	if err != nil {
		t.Fatalf("exclusive borrow failed: %v", err)
	}
	if _, err := m.Field(0); err == nil {
		t.Fatal("expected field read to fail while exclusively borrowed")
	}
	guard.Release()

	if _, err := m.Field(0); err != nil {
		t.Fatalf("field read should succeed after release: %v", err)
	}
}

func TestPartialEqInlineFastPath(t *testing.T) {
	eq, resolved := PartialEq(Int(3), Uint(3))
	if !resolved {
		t.Fatal("expected inline fast path to resolve Int vs Uint")
	}
	if !eq {
		t.Fatal("expected 3 == 3 across numeric kinds")
	}

	_, resolved = PartialEq(NewTupleStruct(HashPath("x"), "X", nil), Int(1))
	if resolved {
		t.Fatal("expected composite comparison to fall through to protocol dispatch")
	}
}

func TestPartialCmpNaN(t *testing.T) {
	nan := Float(nan())
	_, ok, resolved := PartialCmp(nan, Float(1))
	if !resolved {
		t.Fatal("expected inline float comparison to resolve")
	}
	if ok {
		t.Fatal("expected NaN comparison to be undefined")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestTypeHashOfRequiresSharedBorrow(t *testing.T) {
	m := NewTupleStruct(HashPath("test::Locked"), "Locked", nil)
	guard, _ := m.Cell.TryExclusive()

	if _, _, err := TypeHashOf(m); err == nil {
		t.Fatal("expected type-hash-of to fail while exclusively borrowed")
	}
	guard.Release()

	hash, release, err := TypeHashOf(m)
	if err != nil {
		t.Fatalf("type-hash-of should succeed after release: %v", err)
	}
	release()
	if hash != m.TypeHash {
		t.Fatalf("expected %v, got %v", m.TypeHash, hash)
	}
}
