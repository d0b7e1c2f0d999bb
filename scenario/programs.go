package scenario

import (
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

// Program builds a standalone unit that takes no arguments and returns
// one value, the shape every scenario runs. There is no front-end
// compiler to turn source text into one of these, so each program is
// hand-assembled with unit.Builder the same way cmd/weave's demos are.
type Program func() (*unit.Unit, error)

// Programs is the name -> builder table scenario cases refer to by
// name from YAML.
var Programs = map[string]Program{
	"add":             buildAdd,
	"sub-overflow":    buildSubOverflow,
	"mul-overflow":    buildMulOverflow,
	"divide-by-zero":  buildDivideByZero,
	"compare":         buildCompare,
	"call-double":     buildCallDouble,
	"option-some":     buildOptionSome,
	"option-none":     buildOptionNone,
	"result-err":      buildResultErr,
	"struct-field":    buildStructField,
	"missing-vm-call": buildMissingVMCall,
	"tuple-value":     buildTupleValue,
}

func a(i int32) unit.Addr { return unit.Addr(i) }

func buildAdd() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-add", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 17})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 25})
	b.Emit(unit.Instruction{Op: unit.OpAdd, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}

func buildSubOverflow() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-sub-overflow", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: -9223372036854775808})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 1})
	b.Emit(unit.Instruction{Op: unit.OpSub, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}

func buildMulOverflow() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-mul-overflow", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 4611686018427387904})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 4})
	b.Emit(unit.Instruction{Op: unit.OpMul, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}

func buildDivideByZero() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-div-zero", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 10})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 0})
	b.Emit(unit.Instruction{Op: unit.OpDiv, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}

func buildCompare() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-compare", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 3})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 9})
	b.Emit(unit.Instruction{Op: unit.OpLt, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}

func buildCallDouble() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-call-double", unit.EncodingFlat)
	fnHash := uint64(0xD0BB1E)

	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 19})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpCall, Hash: fnHash, ArgCount: 1, Out: a(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(1)})

	entryDouble := b.Here()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 2})
	b.Emit(unit.Instruction{Op: unit.OpMul, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})

	b.DefineOffsetFunction(fnHash, entryDouble, unit.CallImmediate, 1)
	return b.Build()
}

func buildOptionSome() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-option-some", unit.EncodingFlat)
	b.DefineStandardEnums()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 5})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpOptionSome, ArgCount: 1, Out: a(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(1)})
	return b.Build()
}

func buildOptionNone() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-option-none", unit.EncodingFlat)
	b.DefineStandardEnums()
	b.Emit(unit.Instruction{Op: unit.OpOptionNone, Out: a(0)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(0)})
	return b.Build()
}

func buildResultErr() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-result-err", unit.EncodingFlat)
	b.DefineStandardEnums()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 1})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpResultErr, ArgCount: 1, Out: a(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(1)})
	return b.Build()
}

func buildStructField() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-struct-field", unit.EncodingFlat)
	pointHash := value.HashPath("Point")
	b.DefineTupleStruct(pointHash, "Point", 2)

	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 10})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 20})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(1), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpTupleStruct, Hash: uint64(pointHash), ArgCount: 2, Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpTupleIndexGet, A: a(2), Imm: 1, Out: a(3)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(3)})
	return b.Build()
}

func buildTupleValue() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-tuple-value", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 1})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 2})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(1), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpTuple, ArgCount: 2, Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}

// buildMissingVMCall requests a vm-call no unit can resolve, exercising
// exec.Driver's resolveCall failure path end to end.
func buildMissingVMCall() (*unit.Unit, error) {
	b := unit.NewBuilder("scenario-missing-vm-call", unit.EncodingFlat)
	slot := b.AddConstant(unit.InlineConst{V: value.Type(0xDEADBEEF)})
	b.Emit(unit.Instruction{Op: unit.OpLoadConst, Out: a(0), Index: slot})
	b.Emit(unit.Instruction{Op: unit.OpVMCall, A: a(0), ArgCount: 0, Out: a(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(1)})
	return b.Build()
}
