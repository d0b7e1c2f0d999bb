package unit

import (
	"fmt"

	"github.com/weave-lang/weave/value"
)

// Encoding selects which InstructionStorage implementation a Builder
// assembles into. Callers choose once, at NewBuilder time; everything
// downstream (package vm's interpreter) is written against the
// InstructionStorage interface and never notices which one it got.
type Encoding int

const (
	EncodingPacked Encoding = iota
	EncodingFlat
)

// Builder assembles a Unit one instruction at a time, in the manner of
// a hand-written assembler rather than a source-level compiler: callers
// emit instructions directly, reserve and patch jump targets, and
// populate the constant/string/object-key pools and function table
// themselves. This is the sanctioned way to construct a Unit without a
// front-end parser.
type Builder struct {
	name     string
	encoding Encoding
	packed   *PackedStorage
	flat     *FlatStorage
	flatIns  []Instruction

	constants  ConstantsPool
	strings    StringPool
	objectKeys ObjectKeyPool
	functions  FunctionTable
	rtti       RTTITable
	jumps      JumpTable

	entryIP int
	err     error
}

// NewBuilder starts assembling a unit named name using the given
// instruction encoding.
func NewBuilder(name string, encoding Encoding) *Builder {
	b := &Builder{name: name, encoding: encoding}
	if encoding == EncodingPacked {
		b.packed = NewPackedStorage()
	}
	return b
}

// Err returns the first error recorded by any Builder method, or nil.
// Build refuses to produce a Unit while this is non-nil.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Emit appends one instruction and returns the instruction pointer it
// was written at (a byte offset for packed units, an index for flat
// ones) for use as a jump target or call-table offset.
func (b *Builder) Emit(ins Instruction) int {
	switch b.encoding {
	case EncodingFlat:
		ip := len(b.flatIns)
		b.flatIns = append(b.flatIns, ins)
		return ip
	default:
		return b.packed.Append(ins)
	}
}

// Here returns the instruction pointer the next Emit call will use,
// without emitting anything — useful for recording a backward-jump
// target before the loop body that jumps to it has been emitted.
func (b *Builder) Here() int {
	switch b.encoding {
	case EncodingFlat:
		return len(b.flatIns)
	default:
		return b.packed.Len()
	}
}

// ReserveJump allocates a jump-table slot for a forward jump whose
// target is not yet known, returning the index to embed in the jump
// instruction's JumpIndex field.
func (b *Builder) ReserveJump() uint32 {
	return b.jumps.Reserve()
}

// PatchJumpHere patches a previously reserved jump-table slot to the
// current instruction pointer (the common "patch this forward jump to
// land right after the block it skips" case).
func (b *Builder) PatchJumpHere(index uint32) {
	if err := b.jumps.Patch(index, b.Here()); err != nil {
		b.fail(err)
	}
}

// PatchJumpTo patches a reserved jump-table slot to an explicit target,
// for backward jumps recorded earlier with Here.
func (b *Builder) PatchJumpTo(index uint32, ip int) {
	if err := b.jumps.Patch(index, ip); err != nil {
		b.fail(err)
	}
}

// EmitJumpTo reserves and immediately patches a jump-table slot for a
// known target (the common backward-jump case: "jump back to the loop
// head recorded by an earlier Here call").
func (b *Builder) EmitJumpTo(ip int) uint32 {
	index := b.jumps.Reserve()
	b.jumps.Patch(index, ip)
	return index
}

// AddConstant interns a constants-pool entry, returning its slot.
func (b *Builder) AddConstant(entry ConstEntry) uint32 {
	return b.constants.Add(entry)
}

// AddString interns a static string, returning its (deduplicated) slot.
func (b *Builder) AddString(s string) uint32 {
	return b.strings.Intern(s)
}

// AddObjectKeys registers a field-name shape, returning its slot.
func (b *Builder) AddObjectKeys(shape *value.Shape) uint32 {
	return b.objectKeys.Add(shape)
}

// DefineOffsetFunction registers a script-defined function's entry
// point, call kind, and expected argument count under hash.
func (b *Builder) DefineOffsetFunction(hash uint64, ip int, kind CallKind, argCount uint32) {
	b.functions.Set(hash, FuncEntry{Kind: FuncOffset, IP: ip, CallKind: kind, ArgCount: argCount})
}

// DefineUnitStruct registers a fieldless struct constructor under hash.
func (b *Builder) DefineUnitStruct(hash value.TypeHash, name string) {
	b.functions.Set(uint64(hash), FuncEntry{Kind: FuncUnitStruct, TypeHash: hash, TypeName: name})
	b.rtti.SetType(TypeInfo{Hash: hash, Name: name})
}

// DefineTupleStruct registers a tuple-struct constructor under hash.
func (b *Builder) DefineTupleStruct(hash value.TypeHash, name string, fieldCount uint32) {
	b.functions.Set(uint64(hash), FuncEntry{Kind: FuncTupleStruct, TypeHash: hash, TypeName: name, FieldCount: fieldCount})
	b.rtti.SetType(TypeInfo{Hash: hash, Name: name})
}

// DefineNamedStruct registers a named-struct type's RTTI (its
// constructor is invoked through OpNamedStruct's object-key slot
// directly, not through the function table).
func (b *Builder) DefineNamedStruct(hash value.TypeHash, shape *value.Shape) {
	b.rtti.SetType(TypeInfo{Hash: hash, Name: shape.TypeName, Shape: shape})
}

// DefineUnitVariant registers a fieldless enum-variant constructor.
func (b *Builder) DefineUnitVariant(enumHash, variantHash value.TypeHash, enumName, variantName string) {
	b.functions.Set(uint64(variantHash), FuncEntry{
		Kind: FuncUnitVariant, TypeHash: enumHash, VariantHash: variantHash,
		TypeName: enumName, VariantName: variantName,
	})
	b.rtti.SetVariant(VariantInfo{EnumHash: enumHash, EnumName: enumName, VariantHash: variantHash, VariantName: variantName})
}

// DefineTupleVariant registers a tuple enum-variant constructor.
func (b *Builder) DefineTupleVariant(enumHash, variantHash value.TypeHash, enumName, variantName string, fieldCount uint32) {
	b.functions.Set(uint64(variantHash), FuncEntry{
		Kind: FuncTupleVariant, TypeHash: enumHash, VariantHash: variantHash,
		TypeName: enumName, VariantName: variantName, FieldCount: fieldCount,
	})
	b.rtti.SetVariant(VariantInfo{
		EnumHash: enumHash, EnumName: enumName, VariantHash: variantHash,
		VariantName: variantName, FieldCount: fieldCount,
	})
}

// SetEntryPoint records the instruction pointer a fresh VM begins at.
func (b *Builder) SetEntryPoint(ip int) { b.entryIP = ip }

// DefineStandardEnums registers the built-in Option/Result
// enums' RTTI and variant constructors so that units using them need
// not redeclare what spec.md §12 calls out as part of the standard
// surface every unit shares.
func (b *Builder) DefineStandardEnums() {
	b.DefineUnitVariant(value.TypeHashOption, value.VariantHashNone, "Option", "None")
	b.DefineTupleVariant(value.TypeHashOption, value.VariantHashSome, "Option", "Some", 1)
	b.DefineTupleVariant(value.TypeHashResult, value.VariantHashOk, "Result", "Ok", 1)
	b.DefineTupleVariant(value.TypeHashResult, value.VariantHashErr, "Result", "Err", 1)
}

// Build finalizes the unit. It fails if any prior Builder call recorded
// an error (e.g. a jump patched to an index that was never reserved).
func (b *Builder) Build() (*Unit, error) {
	if b.err != nil {
		return nil, fmt.Errorf("unit %q: %w", b.name, b.err)
	}
	var code InstructionStorage
	switch b.encoding {
	case EncodingFlat:
		code = NewFlatStorage(b.flatIns)
	default:
		code = b.packed
	}
	return &Unit{
		Name:       b.name,
		code:       code,
		constants:  b.constants,
		strings:    b.strings,
		objectKeys: b.objectKeys,
		functions:  b.functions,
		rtti:       b.rtti,
		jumps:      b.jumps,
		entryIP:    b.entryIP,
	}, nil
}
