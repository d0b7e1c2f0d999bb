package membudget

import "errors"

import "testing"

func TestDisabledBudgetNeverFails(t *testing.T) {
	b := New()
	if !b.Take(1 << 40) {
		t.Fatal("disabled budget should accept any allocation")
	}
	if b.Get() != Disabled {
		t.Fatalf("disabled budget should stay at Disabled, got %d", b.Get())
	}
}

func TestTakeReleaseRoundTrip(t *testing.T) {
	b := New()
	b.remaining = 1024

	if !b.Take(100) {
		t.Fatal("expected Take(100) to succeed")
	}
	if b.Get() != 924 {
		t.Fatalf("expected 924 remaining, got %d", b.Get())
	}
	b.Release(100)
	if b.Get() != 1024 {
		t.Fatalf("expected 1024 remaining after release, got %d", b.Get())
	}
}

func TestTakeOrErrorLeavesBudgetUnchanged(t *testing.T) {
	b := New()
	b.remaining = 10

	err := b.TakeOrError(11)
	var allocErr *AllocError
	if !errors.As(err, &allocErr) {
		t.Fatalf("expected *AllocError, got %v", err)
	}
	if b.Get() != 10 {
		t.Fatalf("refused allocation must not consume budget, got %d", b.Get())
	}
}

func TestWithRestoresOnSuccessAndError(t *testing.T) {
	b := New()
	b.remaining = 1024

	_ = b.With(64, func() error {
		if !b.Take(64) {
			t.Fatal("expected allocation within scoped limit to succeed")
		}
		return nil
	})
	if b.Get() != 1024 {
		t.Fatalf("expected budget restored to 1024, got %d", b.Get())
	}

	sentinel := errors.New("boom")
	err := b.With(64, func() error {
		b.Take(64)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error propagated, got %v", err)
	}
	if b.Get() != 1024 {
		t.Fatalf("expected budget restored after error exit, got %d", b.Get())
	}
}

func TestFutureAwareIsolatesInterleavedPolls(t *testing.T) {
	shared := New()
	shared.remaining = 1024

	taskA := NewFutureAware(shared)
	shared.remaining = 512 // simulate a second task's scope being active
	taskB := NewFutureAware(shared)

	// Poll A: should see its own 1024, not B's 512.
	taskA.BeforePoll()
	if shared.Get() != 1024 {
		t.Fatalf("task A should resume with 1024, got %d", shared.Get())
	}
	shared.Take(100)
	taskA.AfterPoll()

	// Poll B: should see its own 512, unaffected by A's consumption.
	taskB.BeforePoll()
	if shared.Get() != 512 {
		t.Fatalf("task B should resume with 512, got %d", shared.Get())
	}
	taskB.AfterPoll()

	// Poll A again: should resume at 924, A's own remaining after its take.
	taskA.BeforePoll()
	if shared.Get() != 924 {
		t.Fatalf("task A should resume with 924, got %d", shared.Get())
	}
}
