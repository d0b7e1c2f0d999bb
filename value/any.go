package value

import "github.com/weave-lang/weave/access"

// Native is the Go-side interface every registered native/standard-
// library-composite type implements. It stands in for the vtable of
// spec.md §3 ("drop, borrow as raw pointer given a requested type hash,
// borrow as raw mutable pointer, take by move, type-name, type-hash") —
// Go interfaces already give us safe dynamic dispatch, so the vtable
// collapses to ordinary interface satisfaction plus one TypeHash method
// rather than hand-rolled function pointers.
type Native interface {
	// TypeHash returns this value's stable type hash.
	TypeHash() TypeHash
	// TypeName returns a human-readable type name for diagnostics.
	TypeName() string
}

// Dropper is implemented by native types that hold external resources
// (file handles, VM-owned coroutines) and must release them when the
// last owner goes away.
type Dropper interface {
	Drop()
}

// AnyValue is a heap-allocated, type-hash-identified value wrapping a
// Native payload, guarded by its own access.Cell the same way a Mutable
// is (spec.md §3: "Used for all registered native types and for
// standard library composites").
type AnyValue struct {
	cell *access.Cell
	vt   anyVTable
	data Native
}

type anyVTable struct {
	TypeHash TypeHash
	TypeName string
}

// NewAny wraps a Native payload as a Value. Each AnyValue gets its own
// access.Cell instance (composite any-values are heap objects with their
// own identity, unlike inline values which share no state at all).
func NewAny(data Native) AnyValue {
	return AnyValue{
		cell: &access.Cell{},
		vt:   anyVTable{TypeHash: data.TypeHash(), TypeName: data.TypeName()},
		data: data,
	}
}

func (a AnyValue) Kind() Kind     { return KindAny }
func (a AnyValue) String() string { return a.vt.TypeName + "(..)" }

// Cell exposes the backing access cell so the interpreter can route
// borrow/take instructions through the same protocol as Mutable values.
func (a AnyValue) Cell() *access.Cell { return a.cell }

// BorrowRef returns the payload under a shared borrow. requested lets
// callers assert the expected concrete type hash before doing a Go type
// assertion, mirroring the "borrow as raw pointer given a requested type
// hash" vtable entry of spec.md §3.
func (a AnyValue) BorrowRef(requested TypeHash) (Native, access.Guard, error) {
	if requested != 0 && requested != a.vt.TypeHash {
		return nil, access.Guard{}, errTypeMismatch
	}
	guard, err := a.cell.TryShared()
	if err != nil {
		return nil, access.Guard{}, err
	}
	return a.data, guard, nil
}

// BorrowMut returns the payload under an exclusive borrow.
func (a AnyValue) BorrowMut(requested TypeHash) (Native, access.Guard, error) {
	if requested != 0 && requested != a.vt.TypeHash {
		return nil, access.Guard{}, errTypeMismatch
	}
	guard, err := a.cell.TryExclusive()
	if err != nil {
		return nil, access.Guard{}, err
	}
	return a.data, guard, nil
}

// Take moves the payload out, marking the cell moved. If the payload
// holds external resources it is not Drop()ped here — ownership passes
// to the caller, who now owns the Native and is responsible for it.
func (a AnyValue) Take() (Native, error) {
	if err := a.cell.TryTake(); err != nil {
		return nil, err
	}
	return a.data, nil
}

// Release drops the payload if it owns external resources and nothing
// still borrows it. Called when the last shared owner of this AnyValue
// is dropped (spec.md §3 Lifecycle).
func (a AnyValue) Release() {
	if s := a.cell.Snapshot(); s.Moved || s.Exclusive || s.Shared != 0 {
		return
	}
	if d, ok := a.data.(Dropper); ok {
		d.Drop()
	}
}

type mismatchError string

func (e mismatchError) Error() string { return string(e) }

const errTypeMismatch = mismatchError("any: requested type hash does not match payload")
