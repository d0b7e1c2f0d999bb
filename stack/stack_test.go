package stack

import (
	"testing"

	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

func TestPushPopRoundTrip(t *testing.T) {
	s := New()
	s.Push(value.Int(1))
	s.Push(value.Int(2))
	v, err := s.Pop(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != value.Int(2) {
		t.Fatalf("expected 2, got %v", v)
	}
}

func TestPopCannotCrossFrameBase(t *testing.T) {
	s := New()
	s.Push(value.Int(1))
	floor := s.Len()
	if _, err := s.Pop(floor); err == nil {
		t.Fatal("expected pop-out-of-bounds error")
	}
}

func TestLoadAddrResolvesRegisterAndTop(t *testing.T) {
	s := New()
	s.Reserve(3)
	s.Set(0, value.Int(10))
	s.Set(1, value.Int(20))
	s.Push(value.Int(99))

	v, err := s.LoadAddr(0, 0, unit.Addr(1))
	if err != nil {
		t.Fatal(err)
	}
	if v != value.Int(20) {
		t.Fatalf("expected register load 20, got %v", v)
	}

	top, err := s.LoadAddr(0, 0, unit.Top)
	if err != nil {
		t.Fatal(err)
	}
	if top != value.Int(99) {
		t.Fatalf("expected top load 99, got %v", top)
	}
}

func TestFramesPushPopPreservesOrder(t *testing.T) {
	var frames Frames
	frames.Push(Frame{ReturnIP: 1, Base: 0})
	frames.Push(Frame{ReturnIP: 5, Base: 3})
	if frames.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", frames.Depth())
	}
	top, err := frames.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if top.ReturnIP != 5 {
		t.Fatalf("expected top frame ReturnIP 5, got %d", top.ReturnIP)
	}
	cur, err := frames.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur.ReturnIP != 1 {
		t.Fatalf("expected remaining frame ReturnIP 1, got %d", cur.ReturnIP)
	}
}
