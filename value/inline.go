package value

import (
	"fmt"
	"strconv"
)

// Value is the universal run-time datum (spec.md §3). Every concrete
// type in this package implements it: the inline scalars below (copy by
// value, carry no access state, never suspend), *Mutable (shared
// ownership behind an access.Cell), and AnyValue (heap-erased, behind
// its own access.Cell).
type Value interface {
	Kind() Kind
	// String renders the value for debugging/diagnostics. It is not the
	// front end's pretty-printer (out of scope per spec.md §1) — just
	// enough to make VM traces and test failures legible.
	String() string
}

// Unit is the single value of the unit type.
type Unit struct{}

func (Unit) Kind() Kind     { return KindUnit }
func (Unit) String() string { return "()" }

// Bool wraps a boolean inline value.
type Bool bool

func (b Bool) Kind() Kind     { return KindBool }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Char wraps a single Unicode scalar value.
type Char rune

func (c Char) Kind() Kind     { return KindChar }
func (c Char) String() string { return strconv.QuoteRune(rune(c)) }

// Uint wraps an unsigned 64-bit integer.
type Uint uint64

func (u Uint) Kind() Kind     { return KindUint }
func (u Uint) String() string { return strconv.FormatUint(uint64(u), 10) }

// Int wraps a signed 64-bit integer.
type Int int64

func (i Int) Kind() Kind     { return KindInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float wraps a 64-bit IEEE float.
type Float float64

func (f Float) Kind() Kind     { return KindFloat }
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Type carries a type handle, naming a type hash as a first-class value
// (used by "is"/"is-not" and by reflection-ish builtins).
type Type TypeHash

func (t Type) Kind() Kind     { return KindType }
func (t Type) String() string { return fmt.Sprintf("type(%016x)", uint64(t)) }

// OrderingValue wraps an Ordering as a first-class value, the result of
// a "partial-cmp" instruction.
type OrderingValue Ordering

func (o OrderingValue) Kind() Kind     { return KindOrdering }
func (o OrderingValue) String() string { return Ordering(o).String() }

// TypeHashOf returns the value's type hash. It is infallible for inline
// values, requires a shared borrow for mutable values (and so can fail
// with an *access.Error), and is direct for any-values.
func TypeHashOf(v Value) (TypeHash, func(), error) {
	switch vv := v.(type) {
	case Unit:
		return TypeHashUnit, noop, nil
	case Bool:
		return TypeHashBool, noop, nil
	case Char:
		return TypeHashChar, noop, nil
	case Uint:
		return TypeHashUint, noop, nil
	case Int:
		return TypeHashInt, noop, nil
	case Float:
		return TypeHashFloat, noop, nil
	case Type:
		return TypeHashType, noop, nil
	case OrderingValue:
		return TypeHashOrdering, noop, nil
	case *Mutable:
		guard, err := vv.Cell.TryShared()
		if err != nil {
			return 0, noop, err
		}
		return vv.TypeHash, guard.Release, nil
	case AnyValue:
		return vv.vt.TypeHash, noop, nil
	default:
		return 0, noop, fmt.Errorf("value: unrecognized Value implementation %T", v)
	}
}

func noop() {}

// IsInline reports whether v is one of the inline (copy-by-value, no
// access state) kinds.
func IsInline(v Value) bool {
	switch v.Kind() {
	case KindUnit, KindBool, KindChar, KindUint, KindInt, KindFloat, KindType, KindOrdering:
		return true
	default:
		return false
	}
}

// Truthy implements the interpreter's notion of truthiness for
// conditional jumps: unit and false are falsy, the numeric zero values
// are NOT special-cased (the language is not C — only bool carries
// branch semantics, matching the inline fast path in §4.6/§4.7 which
// never special-cases numeric truthiness).
func Truthy(v Value) bool {
	switch vv := v.(type) {
	case Unit:
		return false
	case Bool:
		return bool(vv)
	default:
		return true
	}
}
