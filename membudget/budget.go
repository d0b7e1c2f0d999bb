// Package membudget implements the process-local (cooperative-task-local)
// memory accounting described in spec.md §4.2: a byte counter with scoped
// acquisition, plus a future-aware wrapper that saves and restores the
// counter across suspension points so concurrent tasks do not observe
// each other's usage.
package membudget

import (
	"fmt"
	"math"
)

// Disabled is the counter value meaning "no limit is in effect".
const Disabled = int64(math.MaxInt64)

// Budget is a single scoped byte counter. The zero value is Disabled.
type Budget struct {
	remaining int64
}

// New creates a Budget with no limit in effect.
func New() *Budget {
	return &Budget{remaining: Disabled}
}

// Get returns the current remaining byte count.
func (b *Budget) Get() int64 {
	return b.remaining
}

// Take deducts n bytes if at least n remain, reporting success. A
// Disabled budget always succeeds (and does not decrement, since it
// represents "unlimited").
func (b *Budget) Take(n int64) bool {
	if b.remaining == Disabled {
		return true
	}
	if n < 0 || n > b.remaining {
		return false
	}
	b.remaining -= n
	return true
}

// Release adds n bytes back to the budget. A Disabled budget ignores
// releases.
func (b *Budget) Release(n int64) {
	if b.remaining == Disabled {
		return
	}
	b.remaining += n
}

// AllocError is returned by TakeOrError when a requested allocation
// would exceed the current limit. The budget itself is left unchanged:
// a refused allocation never consumed its requested bytes.
type AllocError struct {
	Requested int64
	Remaining int64
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("allocation of %d bytes exceeds remaining budget of %d bytes", e.Requested, e.Remaining)
}

// TakeOrError is Take expressed as the VM's normal fallible-allocation
// error path (spec.md §4.2).
func (b *Budget) TakeOrError(n int64) error {
	remaining := b.remaining
	if !b.Take(n) {
		return &AllocError{Requested: n, Remaining: remaining}
	}
	return nil
}

// With swaps in limit for the duration of body, then restores whatever
// the counter held before the call — regardless of whether body panics,
// returns an error, or succeeds. This is the synchronous scoped
// acquisition of spec.md §4.1/§4.2; invariant 5 of spec.md §8 requires
// the restore to happen on every exit path.
func (b *Budget) With(limit int64, body func() error) (err error) {
	saved := b.remaining
	b.remaining = limit
	defer func() { b.remaining = saved }()
	return body()
}

// FutureAware wraps a Budget so that a suspendable computation's
// remaining budget is captured before each poll and written back after,
// isolating interleaved polls of differently-budgeted tasks (spec.md
// §4.2, §8 invariant 6). The saved value travels with the poller, not
// with the Budget, so nested/concurrent futures sharing one Budget don't
// clobber each other across a suspend point.
type FutureAware struct {
	budget *Budget
	saved  int64
}

// NewFutureAware captures the budget's current remaining bytes as the
// baseline a future will be resumed with.
func NewFutureAware(b *Budget) *FutureAware {
	return &FutureAware{budget: b, saved: b.remaining}
}

// BeforePoll installs this future's saved remaining-budget value into
// the shared Budget immediately before polling begins.
func (f *FutureAware) BeforePoll() {
	f.budget.remaining = f.saved
}

// AfterPoll captures whatever the shared Budget now holds (the poll may
// have taken or released bytes) so the next BeforePoll restores it.
func (f *FutureAware) AfterPoll() {
	f.saved = f.budget.remaining
}
