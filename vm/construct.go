package vm

import (
	"github.com/weave-lang/weave/natives"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vmerr"
)

// execConstruct builds every composite value the interpreter can
// produce directly (struct/variant/tuple/vec/object literals and the
// Option/Result convenience constructors), charging each against the
// memory budget the same way a Call-constructed value would be.
func (v *VM) execConstruct(ins unit.Instruction, base, floor int) (Halt, bool) {
	switch ins.Op {
	case unit.OpUnitStruct:
		info, ok := v.Unit.LookupRTTI(value.TypeHash(ins.Hash))
		if !ok {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingFunction, "no type registered for hash %#x", ins.Hash)), true
		}
		return v.chargeAndStore(value.NewEmptyStruct(value.TypeHash(ins.Hash), info.Name), base, ins.Out)

	case unit.OpTupleStruct:
		info, ok := v.Unit.LookupRTTI(value.TypeHash(ins.Hash))
		if !ok {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingFunction, "no type registered for hash %#x", ins.Hash)), true
		}
		fields, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		return v.chargeAndStore(value.NewTupleStruct(value.TypeHash(ins.Hash), info.Name, fields), base, ins.Out)

	case unit.OpNamedStruct:
		shape, err := v.Unit.LookupObjectKeys(ins.Index)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingStatic, "%v", err)), true
		}
		fields, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		return v.chargeAndStore(value.NewStruct(value.TypeHash(ins.Hash), shape, fields), base, ins.Out)

	case unit.OpTuple:
		fields, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		return v.chargeAndStore(value.NewTuple(fields), base, ins.Out)

	case unit.OpVec:
		items, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		return v.chargeAndStore(natives.NewVec(items), base, ins.Out)

	case unit.OpObject:
		shape, err := v.Unit.LookupObjectKeys(ins.Index)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingStatic, "%v", err)), true
		}
		fields, err := v.popArgs(floor, ins.ArgCount)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindStackOutOfBounds, "%v", err)), true
		}
		return v.chargeAndStore(natives.NewObject(shape, fields), base, ins.Out)

	case unit.OpOptionSome:
		fields, err := v.popArgs(floor, ins.ArgCount)
		if err != nil || len(fields) != 1 {
			return v.errorHalt(vmerr.Newf(vmerr.KindBadArgumentCount, "Some takes exactly one value")), true
		}
		return v.chargeAndStore(value.Some(fields[0]), base, ins.Out)

	case unit.OpOptionNone:
		return v.chargeAndStore(value.None(), base, ins.Out)

	case unit.OpResultOk:
		fields, err := v.popArgs(floor, ins.ArgCount)
		if err != nil || len(fields) != 1 {
			return v.errorHalt(vmerr.Newf(vmerr.KindBadArgumentCount, "Ok takes exactly one value")), true
		}
		return v.chargeAndStore(value.Ok(fields[0]), base, ins.Out)

	case unit.OpResultErr:
		fields, err := v.popArgs(floor, ins.ArgCount)
		if err != nil || len(fields) != 1 {
			return v.errorHalt(vmerr.Newf(vmerr.KindBadArgumentCount, "Err takes exactly one value")), true
		}
		return v.chargeAndStore(value.Err(fields[0]), base, ins.Out)

	default:
		return v.errorHalt(vmerr.Newf(vmerr.KindBadInstruction, "execConstruct: unexpected opcode %d", ins.Op)), true
	}
}

func (v *VM) chargeAndStore(val value.Value, base int, out unit.Addr) (Halt, bool) {
	if halt, stop := v.charge(val); stop {
		return halt, true
	}
	v.store(base, out, val)
	return Halt{}, false
}
