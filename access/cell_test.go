package access

import "testing"

func TestSharedBorrowsStack(t *testing.T) {
	var c Cell

	g1, err := c.TryShared()
	if err != nil {
		t.Fatalf("first shared borrow failed: %v", err)
	}
	g2, err := c.TryShared()
	if err != nil {
		t.Fatalf("second shared borrow failed: %v", err)
	}

	if _, err := c.TryExclusive(); err == nil {
		t.Fatal("expected exclusive borrow to fail while shared borrows are outstanding")
	}

	g1.Release()
	g2.Release()

	if _, err := c.TryExclusive(); err != nil {
		t.Fatalf("exclusive borrow should succeed once shared borrows drop: %v", err)
	}
}

func TestExclusiveExcludesEverything(t *testing.T) {
	var c Cell
	g, err := c.TryExclusive()
	if err != nil {
		t.Fatalf("exclusive borrow failed: %v", err)
	}

	if _, err := c.TryShared(); err == nil {
		t.Fatal("expected shared borrow to fail under exclusive hold")
	} else {
		var accessErr *Error
		if !asError(err, &accessErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if accessErr.Kind != KindRef {
			t.Fatalf("expected KindRef, got %v", accessErr.Kind)
		}
		if got := accessErr.Snapshot.String(); got != "-X000000" {
			t.Fatalf("expected snapshot -X000000, got %s", got)
		}
	}

	g.Release()
	if _, err := c.TryShared(); err != nil {
		t.Fatalf("shared borrow should succeed after exclusive release: %v", err)
	}
}

func TestTakeIsIrreversible(t *testing.T) {
	var c Cell
	if err := c.TryTake(); err != nil {
		t.Fatalf("take failed: %v", err)
	}
	if !c.IsMoved() {
		t.Fatal("expected cell to report moved")
	}
	if _, err := c.TryShared(); err == nil {
		t.Fatal("expected shared borrow to fail after take")
	}
	if _, err := c.TryExclusive(); err == nil {
		t.Fatal("expected exclusive borrow to fail after take")
	}
	if err := c.TryTake(); err == nil {
		t.Fatal("expected second take to fail")
	}
}

func TestTakeBlockedByOutstandingBorrow(t *testing.T) {
	var c Cell
	g, err := c.TryShared()
	if err != nil {
		t.Fatalf("shared borrow failed: %v", err)
	}
	if err := c.TryTake(); err == nil {
		t.Fatal("expected take to fail while a shared borrow is outstanding")
	}
	g.Release()
	if err := c.TryTake(); err != nil {
		t.Fatalf("take should succeed once borrows drop: %v", err)
	}
}

func TestSnapshotFormatting(t *testing.T) {
	cases := []struct {
		snap Snapshot
		want string
	}{
		{Snapshot{}, "--000000"},
		{Snapshot{Moved: true}, "M-000000"},
		{Snapshot{Exclusive: true}, "-X000000"},
		{Snapshot{Shared: 1}, "--000001"},
	}
	for _, c := range cases {
		if got := c.snap.String(); got != c.want {
			t.Errorf("Snapshot(%+v).String() = %q, want %q", c.snap, got, c.want)
		}
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
