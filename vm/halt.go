package vm

import (
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vmerr"
)

// HaltKind is the reason a VM stopped running (spec.md §4.8's
// halt-reason contract: exited, awaited, yielded, vm-call, limited,
// error). The execution driver (package exec) is the only thing that
// interprets a Halt; the interpreter itself never tries to resume past
// one on its own.
type HaltKind int

const (
	// HaltExited: the outermost frame returned. Value holds the result.
	HaltExited HaltKind = iota
	// HaltAwaited: an await instruction suspended on a host or
	// script-level future. Value holds the awaited future (an
	// value.AnyValue whose Native implements coroutine.Future, or a
	// generator handle for await-over-stream).
	HaltAwaited
	// HaltYielded: a yield instruction produced one element of a
	// generator/stream. Value holds the yielded value; Resume continues
	// execution right after the yield point.
	HaltYielded
	// HaltVMCall: a nested-VM-call instruction wants the driver to run
	// another unit's function to completion (or to its own suspension)
	// before this VM can continue. Call holds the request.
	HaltVMCall
	// HaltLimited: an instruction budget ran out in step mode (spec.md
	// §4.9: "step / async-step runs under an instruction budget of 1").
	// It is never produced by an unbounded Run — only RunLimited, via
	// exec.Driver's Step/AsyncStep — and carries no Value/Err: the VM
	// simply has more work to do and the caller (a debugger
	// single-stepping, a cooperative scheduler interleaving tasks)
	// decides whether to call Step again. A failed allocation is a
	// HaltError carrying vmerr.KindAllocation instead, not this.
	HaltLimited
	// HaltError: any other recoverable or fatal VM error.
	HaltError
)

func (k HaltKind) String() string {
	switch k {
	case HaltExited:
		return "exited"
	case HaltAwaited:
		return "awaited"
	case HaltYielded:
		return "yielded"
	case HaltVMCall:
		return "vm-call"
	case HaltLimited:
		return "limited"
	case HaltError:
		return "error"
	default:
		return "unknown"
	}
}

// NestedCall is the payload of a HaltVMCall: a request to run another
// function (possibly in another unit, via the host Context's function
// resolution) and feed its result back into this VM.
type NestedCall struct {
	FunctionHash uint64
	Args         []value.Value
	Out          unit.Addr
}

// Halt is what VM.Run returns every time the interpreter loop stops.
type Halt struct {
	Kind HaltKind
	// Value carries the awaited future (HaltAwaited), the yielded
	// element (HaltYielded), or the final result (HaltExited).
	Value value.Value
	// Out is where Resume should write the value it is handed back
	// (HaltAwaited/HaltYielded only) — the register the await/yield
	// instruction itself addresses.
	Out  unit.Addr
	Call *NestedCall
	Err  *vmerr.Error
}
