package value

import "hash"

// Resolved reports whether an inline-fast-path comparison/arithmetic
// operation could resolve an operation without consulting the protocol
// registry. Callers in package protocol fall through to dispatch when
// Resolved is false.
type Resolved bool

const (
	NotResolved Resolved = false
	DidResolve  Resolved = true
)

// PartialEq implements the inline fast path of the EQ/PARTIAL_EQ
// protocol chain (spec.md §4.6): if both operands are inline values of
// compatible kind, compute equality directly. Mixed numeric kinds (e.g.
// Int vs Uint) are defined to compare by mathematical value. NaN makes
// float equality false per IEEE rules.
func PartialEq(a, b Value) (equal bool, resolved Resolved) {
	if !IsInline(a) || !IsInline(b) {
		return false, NotResolved
	}
	switch av := a.(type) {
	case Unit:
		_, ok := b.(Unit)
		return ok, DidResolve
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv, DidResolve
	case Char:
		bv, ok := b.(Char)
		return ok && av == bv, DidResolve
	case Type:
		bv, ok := b.(Type)
		return ok && av == bv, DidResolve
	case OrderingValue:
		bv, ok := b.(OrderingValue)
		return ok && av == bv, DidResolve
	case Int, Uint, Float:
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if !aok || !bok {
			return false, DidResolve
		}
		return af == bf, DidResolve
	default:
		return false, NotResolved
	}
}

// PartialCmp implements the inline fast path of the PARTIAL_CMP
// protocol. It returns ok=false when the comparison is undefined (e.g.
// a NaN operand), matching Rust's PartialOrd::partial_cmp returning
// None — spec.md §4.3: "Partial ordering over floats follows IEEE (NaN
// yields None)".
func PartialCmp(a, b Value) (ord Ordering, ok bool, resolved Resolved) {
	if !IsInline(a) || !IsInline(b) {
		return 0, false, NotResolved
	}
	switch a.(type) {
	case Int, Uint, Float:
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if !aok || !bok {
			return 0, false, DidResolve
		}
		if af != af || bf != bf { // either is NaN
			return 0, false, DidResolve
		}
		switch {
		case af < bf:
			return Less, true, DidResolve
		case af > bf:
			return Greater, true, DidResolve
		default:
			return Equal, true, DidResolve
		}
	case Char:
		av := a.(Char)
		bv, ok := b.(Char)
		if !ok {
			return 0, false, DidResolve
		}
		return OrderingFromCompare(int(av) - int(bv)), true, DidResolve
	case Bool:
		av := a.(Bool)
		bv, ok := b.(Bool)
		if !ok {
			return 0, false, DidResolve
		}
		return OrderingFromCompare(boolToInt(av) - boolToInt(bv)), true, DidResolve
	default:
		return 0, false, NotResolved
	}
}

func boolToInt(b Bool) int {
	if b {
		return 1
	}
	return 0
}

// asFloat widens an inline numeric value to float64 for comparison
// purposes only; arithmetic itself (package vm) uses checked per-kind
// operations, never this widened form, to preserve overflow semantics.
func asFloat(v Value) (float64, bool) {
	switch vv := v.(type) {
	case Int:
		return float64(vv), true
	case Uint:
		return float64(vv), true
	case Float:
		return float64(vv), true
	default:
		return 0, false
	}
}

// HashWith implements the inline fast path of the HASH protocol,
// writing a stable digest of v into h. Composite kinds return
// resolved=false so the caller dispatches the HASH protocol (spec.md
// §4.6: "hashing requires the protocol to drive the hasher supplied by
// the caller").
func HashWith(h hash.Hash64, v Value) (resolved Resolved) {
	if !IsInline(v) {
		return NotResolved
	}
	switch vv := v.(type) {
	case Unit:
		h.Write([]byte{0})
	case Bool:
		b := byte(0)
		if vv {
			b = 1
		}
		h.Write([]byte{b})
	case Char:
		writeUint64(h, uint64(vv))
	case Uint:
		writeUint64(h, uint64(vv))
	case Int:
		writeUint64(h, uint64(vv))
	case Float:
		writeUint64(h, uint64(vv))
	case Type:
		writeUint64(h, uint64(vv))
	case OrderingValue:
		writeUint64(h, uint64(vv))
	}
	return DidResolve
}

func writeUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}
