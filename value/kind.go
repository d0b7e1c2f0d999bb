// Package value implements the tagged value model of spec.md §3/§4.3: a
// three-way split between inline scalars (copy-by-value, no access
// state), mutable composites (shared ownership behind an access.Cell),
// and any-values (heap-erased native/standard-library types with a
// 64-bit type hash).
package value

import "hash/fnv"

// Kind tags which of the three representations a Value uses.
type Kind int

const (
	KindUnit Kind = iota
	KindBool
	KindChar
	KindUint
	KindInt
	KindFloat
	KindType
	KindOrdering
	KindEmptyStruct
	KindTupleStruct
	KindStruct
	KindUnitVariant
	KindTupleVariant
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindType:
		return "type"
	case KindOrdering:
		return "ordering"
	case KindEmptyStruct:
		return "empty-struct"
	case KindTupleStruct:
		return "tuple-struct"
	case KindStruct:
		return "struct"
	case KindUnitVariant:
		return "unit-variant"
	case KindTupleVariant:
		return "tuple-variant"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// TypeHash identifies a type. It is produced by HashPath from the type's
// item path, the "stable type-hash computation from a path" the any
// derive contract (spec.md §6) requires — deterministic across runs and
// processes, not just within one.
type TypeHash uint64

// HashPath computes the stable hash of a type's fully-qualified item
// path, e.g. "std::string::String" or "mymodule::MyType". Using a fixed,
// non-randomized hash (FNV-1a) rather than Go's randomized map hashing is
// the point: two processes compiling the same unit must agree on type
// hashes embedded in that unit's RTTI tables.
func HashPath(path string) TypeHash {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return TypeHash(h.Sum64())
}

// Well-known type hashes for the inline kinds, used by "is"/"is-not"
// instructions and by protocol lookups keyed on inline operands.
var (
	TypeHashUnit     = HashPath("::unit")
	TypeHashBool     = HashPath("::bool")
	TypeHashChar     = HashPath("::char")
	TypeHashUint     = HashPath("::u64")
	TypeHashInt      = HashPath("::i64")
	TypeHashFloat    = HashPath("::f64")
	TypeHashType     = HashPath("::type")
	TypeHashOrdering = HashPath("::ordering")
)
