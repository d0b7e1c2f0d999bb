package vm

import (
	"math"

	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vmerr"
)

// protocolFor maps a plain (non-assign) binary or unary op to the
// protocol it dispatches to when the inline fast path doesn't apply.
// The place-addressed *_ASSIGN opcodes never reach this directly —
// execOpAssign resolves them through assignProtocolFor first, falling
// back to the plain op (via placeOpToBinary) only when no type-specific
// *_ASSIGN handler is registered.
func protocolFor(op unit.OpCode) protocol.ID {
	switch op {
	case unit.OpAdd:
		return protocol.Add
	case unit.OpSub:
		return protocol.Sub
	case unit.OpMul:
		return protocol.Mul
	case unit.OpDiv:
		return protocol.Div
	case unit.OpRem:
		return protocol.Rem
	case unit.OpBitAnd:
		return protocol.BitAnd
	case unit.OpBitOr:
		return protocol.BitOr
	case unit.OpBitXor:
		return protocol.BitXor
	case unit.OpShl:
		return protocol.Shl
	case unit.OpShr:
		return protocol.Shr
	case unit.OpNeg:
		return protocol.Neg
	case unit.OpBitNot:
		return protocol.BitNot
	default:
		return 0
	}
}

// assignProtocolFor maps a place-addressed *_ASSIGN opcode to its own
// dedicated protocol ID (spec.md §4.6), distinct from the value-
// producing operator's. Returns 0 for anything that isn't an op-assign
// opcode.
func assignProtocolFor(op unit.OpCode) protocol.ID {
	switch op {
	case unit.OpAddAssign:
		return protocol.AddAssign
	case unit.OpSubAssign:
		return protocol.SubAssign
	case unit.OpMulAssign:
		return protocol.MulAssign
	case unit.OpDivAssign:
		return protocol.DivAssign
	case unit.OpRemAssign:
		return protocol.RemAssign
	case unit.OpBitAndAssign:
		return protocol.BitAndAssign
	case unit.OpBitOrAssign:
		return protocol.BitOrAssign
	case unit.OpBitXorAssign:
		return protocol.BitXorAssign
	case unit.OpShlAssign:
		return protocol.ShlAssign
	case unit.OpShrAssign:
		return protocol.ShrAssign
	default:
		return 0
	}
}

// binaryOp resolves spec.md §4.6's chain: inline fast path first, then
// protocol dispatch, then unsupported-binary-operation.
func (v *VM) binaryOp(op unit.OpCode, a, b value.Value) (value.Value, *vmerr.Error) {
	if result, err, ok := inlineBinary(op, a, b); ok {
		return result, err
	}

	th, release, terr := value.TypeHashOf(a)
	if terr != nil {
		return nil, vmerr.FromAccessError(terr)
	}
	defer release()

	handler, ok := v.Protocols.Lookup(th, protocolFor(op), 0)
	if !ok {
		return nil, vmerr.Newf(vmerr.KindUnsupportedBinaryOp, "no implementation of %s for %s", protocolFor(op), a.Kind())
	}
	result, err := handler([]value.Value{a, b})
	if err != nil {
		return nil, vmerr.Newf(vmerr.KindBadArgument, "%v", err)
	}
	return result, nil
}

func inlineBinary(op unit.OpCode, a, b value.Value) (value.Value, *vmerr.Error, bool) {
	ai, aIsInt := a.(value.Int)
	bi, bIsInt := b.(value.Int)
	if aIsInt && bIsInt {
		return intArith(op, int64(ai), int64(bi))
	}
	au, aIsUint := a.(value.Uint)
	bu, bIsUint := b.(value.Uint)
	if aIsUint && bIsUint {
		return uintArith(op, uint64(au), uint64(bu))
	}
	af, aIsFloat := a.(value.Float)
	bf, bIsFloat := b.(value.Float)
	if (aIsFloat || aIsInt || aIsUint) && (bIsFloat || bIsInt || bIsUint) && (aIsFloat || bIsFloat) {
		lhs := af
		if aIsInt {
			lhs = value.Float(ai)
		} else if aIsUint {
			lhs = value.Float(au)
		}
		rhs := bf
		if bIsInt {
			rhs = value.Float(bi)
		} else if bIsUint {
			rhs = value.Float(bu)
		}
		return floatArith(op, float64(lhs), float64(rhs))
	}
	return nil, nil, false
}

func intArith(op unit.OpCode, a, b int64) (value.Value, *vmerr.Error, bool) {
	switch op {
	case unit.OpAdd:
		r := a + b
		if (b > 0 && r < a) || (b < 0 && r > a) {
			return nil, vmerr.New(vmerr.KindOverflow, "integer addition overflow"), true
		}
		return value.Int(r), nil, true
	case unit.OpSub:
		r := a - b
		if (b < 0 && r < a) || (b > 0 && r > a) {
			return nil, vmerr.New(vmerr.KindOverflow, "integer subtraction overflow"), true
		}
		return value.Int(r), nil, true
	case unit.OpMul:
		if a != 0 && b != 0 {
			r := a * b
			if r/b != a {
				return nil, vmerr.New(vmerr.KindOverflow, "integer multiplication overflow"), true
			}
			return value.Int(r), nil, true
		}
		return value.Int(0), nil, true
	case unit.OpDiv:
		if b == 0 {
			return nil, vmerr.New(vmerr.KindDivideByZero, "integer division by zero"), true
		}
		return value.Int(a / b), nil, true
	case unit.OpRem:
		if b == 0 {
			return nil, vmerr.New(vmerr.KindDivideByZero, "integer remainder by zero"), true
		}
		return value.Int(a % b), nil, true
	case unit.OpBitAnd:
		return value.Int(a & b), nil, true
	case unit.OpBitOr:
		return value.Int(a | b), nil, true
	case unit.OpBitXor:
		return value.Int(a ^ b), nil, true
	case unit.OpShl:
		if b < 0 || b >= 64 {
			return nil, vmerr.New(vmerr.KindOverflow, "shift amount out of range"), true
		}
		return value.Int(a << uint(b)), nil, true
	case unit.OpShr:
		if b < 0 || b >= 64 {
			return nil, vmerr.New(vmerr.KindUnderflow, "shift amount out of range"), true
		}
		return value.Int(a >> uint(b)), nil, true
	default:
		return nil, nil, false
	}
}

func uintArith(op unit.OpCode, a, b uint64) (value.Value, *vmerr.Error, bool) {
	switch op {
	case unit.OpAdd:
		r := a + b
		if r < a {
			return nil, vmerr.New(vmerr.KindOverflow, "unsigned addition overflow"), true
		}
		return value.Uint(r), nil, true
	case unit.OpSub:
		if b > a {
			return nil, vmerr.New(vmerr.KindUnderflow, "unsigned subtraction underflow"), true
		}
		return value.Uint(a - b), nil, true
	case unit.OpMul:
		if a != 0 && b != 0 {
			r := a * b
			if r/b != a {
				return nil, vmerr.New(vmerr.KindOverflow, "unsigned multiplication overflow"), true
			}
			return value.Uint(r), nil, true
		}
		return value.Uint(0), nil, true
	case unit.OpDiv:
		if b == 0 {
			return nil, vmerr.New(vmerr.KindDivideByZero, "unsigned division by zero"), true
		}
		return value.Uint(a / b), nil, true
	case unit.OpRem:
		if b == 0 {
			return nil, vmerr.New(vmerr.KindDivideByZero, "unsigned remainder by zero"), true
		}
		return value.Uint(a % b), nil, true
	case unit.OpBitAnd:
		return value.Uint(a & b), nil, true
	case unit.OpBitOr:
		return value.Uint(a | b), nil, true
	case unit.OpBitXor:
		return value.Uint(a ^ b), nil, true
	case unit.OpShl:
		if b >= 64 {
			return nil, vmerr.New(vmerr.KindOverflow, "shift amount out of range"), true
		}
		return value.Uint(a << b), nil, true
	case unit.OpShr:
		if b >= 64 {
			return nil, vmerr.New(vmerr.KindUnderflow, "shift amount out of range"), true
		}
		return value.Uint(a >> b), nil, true
	default:
		return nil, nil, false
	}
}

func floatArith(op unit.OpCode, a, b float64) (value.Value, *vmerr.Error, bool) {
	switch op {
	case unit.OpAdd:
		return value.Float(a + b), nil, true
	case unit.OpSub:
		return value.Float(a - b), nil, true
	case unit.OpMul:
		return value.Float(a * b), nil, true
	case unit.OpDiv:
		return value.Float(a / b), nil, true
	case unit.OpRem:
		return value.Float(math.Mod(a, b)), nil, true
	default:
		return nil, nil, false
	}
}

func (v *VM) execBinaryArith(ins unit.Instruction, base, floor int) (Halt, bool) {
	a, err := v.load(base, floor, ins.A)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	b, err := v.load(base, floor, ins.B)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	result, verr := v.binaryOp(ins.Op, a, b)
	if verr != nil {
		return v.errorHalt(verr), true
	}
	v.store(base, ins.Out, result)
	return Halt{}, false
}

func (v *VM) execUnaryArith(ins unit.Instruction, base, floor int) (Halt, bool) {
	a, err := v.load(base, floor, ins.A)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	var result value.Value
	var verr *vmerr.Error
	switch av := a.(type) {
	case value.Int:
		if ins.Op == unit.OpNeg {
			if av == math.MinInt64 {
				verr = vmerr.New(vmerr.KindOverflow, "integer negation overflow")
			} else {
				result = -av
			}
		} else {
			result = ^av
		}
	case value.Float:
		if ins.Op == unit.OpNeg {
			result = -av
		} else {
			verr = vmerr.Newf(vmerr.KindUnsupportedBinaryOp, "no implementation of bitnot for float")
		}
	case value.Uint:
		if ins.Op == unit.OpBitNot {
			result = ^av
		} else {
			verr = vmerr.Newf(vmerr.KindUnsupportedBinaryOp, "no implementation of neg for uint")
		}
	default:
		th, release, terr := value.TypeHashOf(a)
		if terr != nil {
			return v.errorHalt(vmerr.FromAccessError(terr)), true
		}
		handler, ok := v.Protocols.Lookup(th, protocolFor(ins.Op), 0)
		release()
		if !ok {
			verr = vmerr.Newf(vmerr.KindUnsupportedBinaryOp, "no implementation of %s for %s", protocolFor(ins.Op), a.Kind())
		} else {
			r, e := handler([]value.Value{a})
			if e != nil {
				verr = vmerr.Newf(vmerr.KindBadArgument, "%v", e)
			} else {
				result = r
			}
		}
	}
	if verr != nil {
		return v.errorHalt(verr), true
	}
	v.store(base, ins.Out, result)
	return Halt{}, false
}

func (v *VM) execCompare(ins unit.Instruction, base, floor int) (Halt, bool) {
	a, err := v.load(base, floor, ins.A)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	b, err := v.load(base, floor, ins.B)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}

	if ins.Op == unit.OpEq || ins.Op == unit.OpNeq {
		eq, resolved := value.PartialEq(a, b)
		if !resolved {
			th, release, terr := value.TypeHashOf(a)
			if terr != nil {
				return v.errorHalt(vmerr.FromAccessError(terr)), true
			}
			handler, ok := v.Protocols.Lookup(th, protocol.PartialEq, 0)
			release()
			if !ok {
				return v.errorHalt(vmerr.Newf(vmerr.KindUnsupportedBinaryOp, "no implementation of partial-eq for %s", a.Kind())), true
			}
			r, herr := handler([]value.Value{a, b})
			if herr != nil {
				return v.errorHalt(vmerr.Newf(vmerr.KindBadArgument, "%v", herr)), true
			}
			eq = value.Truthy(r)
		}
		if ins.Op == unit.OpNeq {
			eq = !eq
		}
		v.store(base, ins.Out, value.Bool(eq))
		return Halt{}, false
	}

	ord, ok, resolved := value.PartialCmp(a, b)
	if !resolved {
		th, release, terr := value.TypeHashOf(a)
		if terr != nil {
			return v.errorHalt(vmerr.FromAccessError(terr)), true
		}
		handler, has := v.Protocols.Lookup(th, protocol.PartialCmp, 0)
		release()
		if !has {
			return v.errorHalt(vmerr.Newf(vmerr.KindUnsupportedBinaryOp, "no implementation of partial-cmp for %s", a.Kind())), true
		}
		r, herr := handler([]value.Value{a, b})
		if herr != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindBadArgument, "%v", herr)), true
		}
		if ov, isOrd := r.(value.OrderingValue); isOrd {
			ord, ok = value.Ordering(ov), true
		} else {
			ok = false
		}
	}

	if ins.Op == unit.OpPartialCmp {
		if !ok {
			v.store(base, ins.Out, value.None())
			return Halt{}, false
		}
		v.store(base, ins.Out, value.Some(value.OrderingValue(ord)))
		return Halt{}, false
	}

	if !ok {
		return v.errorHalt(vmerr.New(vmerr.KindUnsupportedBinaryOp, "comparison is undefined for these operands")), true
	}
	var result bool
	switch ins.Op {
	case unit.OpLt:
		result = ord == value.Less
	case unit.OpGt:
		result = ord == value.Greater
	case unit.OpLte:
		result = ord != value.Greater
	case unit.OpGte:
		result = ord != value.Less
	}
	v.store(base, ins.Out, value.Bool(result))
	return Halt{}, false
}

func (v *VM) execTypeTest(ins unit.Instruction, base, floor int) (Halt, bool) {
	a, err := v.load(base, floor, ins.A)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	th, release, terr := value.TypeHashOf(a)
	if terr != nil {
		return v.errorHalt(vmerr.FromAccessError(terr)), true
	}
	release()
	is := th == value.TypeHash(ins.Hash)
	if ins.Op == unit.OpIsNot {
		is = !is
	}
	v.store(base, ins.Out, value.Bool(is))
	return Halt{}, false
}

// execOpAssign implements the place-addressed arithmetic instructions:
// read the current value at Place, combine with the B operand, write
// back, all without ever materializing the place as an ordinary
// register value in between (so field op-assign never exposes a
// half-updated value to another borrow).
func (v *VM) execOpAssign(ins unit.Instruction, base, floor int) (Halt, bool) {
	b, err := v.load(base, floor, ins.B)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}

	current, writeBack, err := v.resolvePlace(ins.Place, base, floor)
	if err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}

	result, verr := v.applyAssign(ins.Op, current, b)
	if verr != nil {
		return v.errorHalt(verr), true
	}

	if err := writeBack(result); err != nil {
		return v.errorHalt(vmerr.FromAccessError(err)), true
	}
	return Halt{}, false
}

// applyAssign resolves an op-assign's combining step. A type's own
// *_ASSIGN handler (spec.md §4.6) takes priority when one is
// registered — a type that installs one is asking for an in-place
// mutation rather than a freshly allocated result — falling back to
// the ordinary value-producing operator (and the inline int/uint/float
// fast path within it) for every type that hasn't.
func (v *VM) applyAssign(op unit.OpCode, current, b value.Value) (value.Value, *vmerr.Error) {
	if id := assignProtocolFor(op); id != 0 {
		th, release, terr := value.TypeHashOf(current)
		if terr != nil {
			return nil, vmerr.FromAccessError(terr)
		}
		handler, ok := v.Protocols.Lookup(th, id, 0)
		release()
		if ok {
			result, err := handler([]value.Value{current, b})
			if err != nil {
				return nil, vmerr.Newf(vmerr.KindBadArgument, "%v", err)
			}
			return result, nil
		}
	}
	return v.binaryOp(placeOpToBinary(op), current, b)
}

func placeOpToBinary(op unit.OpCode) unit.OpCode {
	switch op {
	case unit.OpAddAssign:
		return unit.OpAdd
	case unit.OpSubAssign:
		return unit.OpSub
	case unit.OpMulAssign:
		return unit.OpMul
	case unit.OpDivAssign:
		return unit.OpDiv
	case unit.OpRemAssign:
		return unit.OpRem
	case unit.OpBitAndAssign:
		return unit.OpBitAnd
	case unit.OpBitOrAssign:
		return unit.OpBitOr
	case unit.OpBitXorAssign:
		return unit.OpBitXor
	case unit.OpShlAssign:
		return unit.OpShl
	case unit.OpShrAssign:
		return unit.OpShr
	default:
		return op
	}
}

// resolvePlace reads the current value addressed by p and returns a
// closure that writes a new value back to the same place.
func (v *VM) resolvePlace(p unit.Place, base, floor int) (value.Value, func(value.Value) error, error) {
	switch p.Kind {
	case unit.PlaceField:
		obj, err := v.load(base, floor, p.Base)
		if err != nil {
			return nil, nil, err
		}
		m, ok := obj.(*value.Mutable)
		if !ok {
			return nil, nil, vmerr.Newf(vmerr.KindBadArgument, "field op-assign target is not a struct")
		}
		name, err := v.Unit.LookupString(p.FieldSlot)
		if err != nil {
			return nil, nil, err
		}
		cur, err := m.FieldByName(name)
		if err != nil {
			return nil, nil, err
		}
		return cur, func(nv value.Value) error { return m.SetFieldByName(name, nv) }, nil
	case unit.PlaceTupleField:
		obj, err := v.load(base, floor, p.Base)
		if err != nil {
			return nil, nil, err
		}
		m, ok := obj.(*value.Mutable)
		if !ok {
			return nil, nil, vmerr.Newf(vmerr.KindBadArgument, "tuple-field op-assign target is not a struct")
		}
		idx := int(p.TupleIndex)
		cur, err := m.Field(idx)
		if err != nil {
			return nil, nil, err
		}
		return cur, func(nv value.Value) error { return m.SetField(idx, nv) }, nil
	default: // PlaceRegister
		cur, err := v.load(base, floor, p.Base)
		if err != nil {
			return nil, nil, err
		}
		return cur, func(nv value.Value) error {
			v.store(base, p.Base, nv)
			return nil
		}, nil
	}
}
