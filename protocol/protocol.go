// Package protocol implements the operator/protocol dispatch registry
// of spec.md §4.6: a table keyed by (type hash, protocol hash, generic-
// parameters hash) mapping to a host- or unit-registered handler, plus
// the named protocol IDs the interpreter's binary-operator instructions
// look up by default.
package protocol

import (
	"strconv"

	"github.com/weave-lang/weave/value"
)

// ID names a protocol (an overloadable operation) by its stable hash.
// The named constants below cover every protocol the interpreter's
// instruction set can dispatch to; ForName is the escape hatch for
// protocols a unit or a native registration defines that the
// interpreter never needs to know about by name (spec.md's open
// question on whether the protocol set is closed or extensible — this
// implementation keeps it open: any string can become a protocol ID,
// the named constants are just the ones the instruction set already
// knows how to trigger).
type ID uint64

func ForName(name string) ID {
	return ID(value.HashPath("protocol::" + name))
}

// String renders the protocol's hash for diagnostics. Protocol IDs
// don't carry their source name at runtime (only the hash survives
// into a built unit), so this is necessarily opaque; error messages
// that need a human-readable protocol name should name it themselves
// rather than rely on this.
func (id ID) String() string {
	return "protocol#" + strconv.FormatUint(uint64(id), 16)
}

var (
	Add      = ForName("add")
	Sub      = ForName("sub")
	Mul      = ForName("mul")
	Div      = ForName("div")
	Rem      = ForName("rem")
	BitAnd   = ForName("bitand")
	BitOr    = ForName("bitor")
	BitXor   = ForName("bitxor")
	Shl      = ForName("shl")
	Shr      = ForName("shr")
	Neg      = ForName("neg")
	BitNot   = ForName("bitnot")

	// The *_ASSIGN family (spec.md §4.6) are distinct protocol IDs from
	// their non-assigning counterparts, for a type that wants to
	// implement in-place op-assign (x.n += 5 against a mutable borrow)
	// differently from the value-producing operator — e.g. mutating a
	// buffer in place instead of allocating a new one. vm/arith.go's
	// applyAssign tries one of these first; a type that registers only
	// the base protocol still works, falling back to the value-producing
	// operator with no in-place fast path.
	AddAssign    = ForName("add_assign")
	SubAssign    = ForName("sub_assign")
	MulAssign    = ForName("mul_assign")
	DivAssign    = ForName("div_assign")
	RemAssign    = ForName("rem_assign")
	BitAndAssign = ForName("bitand_assign")
	BitOrAssign  = ForName("bitor_assign")
	BitXorAssign = ForName("bitxor_assign")
	ShlAssign    = ForName("shl_assign")
	ShrAssign    = ForName("shr_assign")

	PartialEq  = ForName("partial_eq")
	PartialCmp = ForName("partial_cmp")
	Hash       = ForName("hash")
	Display    = ForName("display")
	Debug      = ForName("debug")
	IndexGet   = ForName("index_get")
	IndexSet   = ForName("index_set")
	IntoIter   = ForName("into_iter")
	IterNext   = ForName("iter_next")
)

// Generics distinguishes instantiations of a generic protocol (spec.md
// §4.6's generic-parameters hash), e.g. Add<Rhs=Self> vs Add<Rhs=Other>.
// Zero means "no generic parameters" — the common case.
type Generics uint64

// Handler is a protocol implementation: given the operands in
// left-to-right order (arity depends on the protocol — unary for
// Neg/BitNot/Hash/Display, binary for the arithmetic/comparison
// protocols), it produces a result or an error.
type Handler func(args []value.Value) (value.Value, error)

type key struct {
	typeHash value.TypeHash
	protocol ID
	generics Generics
}

// Registry is the (type hash, protocol, generics) -> Handler table.
// One Registry is shared by every VM in a context.Context (package
// context); registration happens during native-function setup, before
// any unit runs.
type Registry struct {
	handlers map[key]Handler
}

// NewRegistry returns an empty protocol registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[key]Handler)}
}

// Register installs h for (typeHash, protocol, generics). Re-
// registering the same key overwrites the previous handler.
func (r *Registry) Register(typeHash value.TypeHash, protocol ID, generics Generics, h Handler) {
	r.handlers[key{typeHash, protocol, generics}] = h
}

// RegisterDefault installs h for (typeHash, protocol) with no generic
// parameters, the common case.
func (r *Registry) RegisterDefault(typeHash value.TypeHash, protocol ID, h Handler) {
	r.Register(typeHash, protocol, 0, h)
}

// Lookup resolves a handler. Callers are expected to have already
// tried the inline fast path (package value's PartialEq/PartialCmp/
// HashWith) before falling back here — Lookup is the second link in
// spec.md §4.6's resolution chain, not the first.
func (r *Registry) Lookup(typeHash value.TypeHash, protocol ID, generics Generics) (Handler, bool) {
	h, ok := r.handlers[key{typeHash, protocol, generics}]
	return h, ok
}
