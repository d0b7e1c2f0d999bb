package vm

import (
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
	"github.com/weave-lang/weave/vmerr"
)

// execPattern implements the pattern-match helper instructions a
// compiled match expression lowers to: read a value's variant
// discriminant, test it against a specific variant, and index into a
// tuple-variant's or named-struct's fields.
func (v *VM) execPattern(ins unit.Instruction, base, floor int) (Halt, bool) {
	switch ins.Op {
	case unit.OpGetDiscriminant:
		a, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		m, ok := a.(*value.Mutable)
		if !ok || !m.IsVariant() {
			return v.errorHalt(vmerr.New(vmerr.KindBadArgument, "value has no discriminant")), true
		}
		v.store(base, ins.Out, value.Type(m.VariantHash))
		return Halt{}, false

	case unit.OpIsVariant:
		a, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		m, ok := a.(*value.Mutable)
		is := ok && m.IsVariant() && m.VariantHash == value.TypeHash(ins.Hash)
		v.store(base, ins.Out, value.Bool(is))
		return Halt{}, false

	case unit.OpTupleIndexGet:
		a, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		m, ok := a.(*value.Mutable)
		if !ok {
			return v.errorHalt(vmerr.New(vmerr.KindMissingField, "value has no tuple fields")), true
		}
		field, err := m.Field(int(ins.Imm))
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingField, "%v", err)), true
		}
		v.store(base, ins.Out, field)
		return Halt{}, false

	case unit.OpFieldGet:
		a, err := v.load(base, floor, ins.A)
		if err != nil {
			return v.errorHalt(vmerr.FromAccessError(err)), true
		}
		m, ok := a.(*value.Mutable)
		if !ok {
			return v.errorHalt(vmerr.New(vmerr.KindMissingField, "value has no named fields")), true
		}
		name, err := v.Unit.LookupString(ins.Index)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingStatic, "%v", err)), true
		}
		field, err := m.FieldByName(name)
		if err != nil {
			return v.errorHalt(vmerr.Newf(vmerr.KindMissingField, "%v", err)), true
		}
		v.store(base, ins.Out, field)
		return Halt{}, false

	default:
		return v.errorHalt(vmerr.Newf(vmerr.KindBadInstruction, "execPattern: unexpected opcode %d", ins.Op)), true
	}
}
