package unit

// OpCode is the abstract instruction enumeration of spec.md §4.7. Its
// numeric encoding is an implementation detail — the interpreter
// (package vm) only ever switches on these named constants.
type OpCode byte

const (
	// --- Literals & constants ---
	OpLoadUnit  OpCode = iota // out
	OpLoadBool                // out, imm(bool)
	OpLoadChar                // out, imm(rune)
	OpLoadUint                // out, imm(uint64)
	OpLoadInt                 // out, imm(int64)
	OpLoadFloat               // out, imm(float64 bits)
	OpLoadConst               // out, constants-pool index
	OpLoadString              // out, static-string slot

	// --- Moves ---
	OpCopy // out, src
	OpMove // out, src (src left as Unit)
	OpSwap // a, b

	// --- Arithmetic / bitwise / shifts ---
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpNeg
	OpBitNot

	// --- Op-assign (place-addressed arithmetic) ---
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpRemAssign
	OpBitAndAssign
	OpBitOrAssign
	OpBitXorAssign
	OpShlAssign
	OpShrAssign

	// --- Comparisons ---
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
	OpPartialCmp // produces Option<Ordering>

	// --- Type test ---
	OpIs
	OpIsNot

	// --- Control flow ---
	OpJump
	OpJumpIf
	OpJumpIfNot
	OpJumpIfOrPop
	OpJumpIfNotOrPop

	// --- Calls ---
	OpCall
	OpCallInstance
	OpCallFn

	// --- Returns ---
	OpReturn
	OpReturnUnit

	// --- Constructors ---
	OpUnitStruct
	OpTupleStruct
	OpNamedStruct
	OpTuple
	OpVec
	OpObject
	OpOptionSome
	OpOptionNone
	OpResultOk
	OpResultErr

	// --- Pattern match helpers ---
	OpGetDiscriminant
	OpIsVariant
	OpTupleIndexGet
	OpFieldGet

	// --- Suspension ---
	OpAwait
	OpYield
	OpVMCall
)

// Addr addresses an operand or output slot: either a non-negative
// register offset resolved against the current frame base, or the "top"
// sentinel meaning "push/pop the operand stack" (spec.md §4.5).
type Addr int32

// Top is the sentinel address meaning push-to-end (as an output) or
// pop-from-end (as an operand), depending on the instruction.
const Top Addr = -1

// IsTop reports whether a is the push/pop sentinel.
func (a Addr) IsTop() bool { return a == Top }

// PlaceKind distinguishes the three op-assign target shapes of
// spec.md §4.7.
type PlaceKind byte

const (
	PlaceRegister PlaceKind = iota
	PlaceField
	PlaceTupleField
)

// Place identifies an op-assign target: a plain register, a named field
// reached through a base register holding the object, or a tuple-index
// field reached the same way.
type Place struct {
	Kind PlaceKind
	// Base holds the register address. For PlaceRegister, Base is the
	// target register itself. For PlaceField/PlaceTupleField, Base holds
	// the object the field belongs to.
	Base Addr
	// FieldSlot is a static-string slot, valid when Kind==PlaceField.
	FieldSlot uint32
	// TupleIndex is a field index, valid when Kind==PlaceTupleField.
	TupleIndex uint32
}

// Instruction is the decoded form of one bytecode instruction. Not every
// field is meaningful for every Op; package vm's dispatcher documents,
// per opcode, which fields it reads.
type Instruction struct {
	Op OpCode

	// Address operands, meaning depends on Op.
	A   Addr
	B   Addr
	Out Addr

	// Place, used by op-assign instructions in place of Out.
	Place Place

	// Imm carries an inline literal payload (bit pattern for
	// bool/char/uint/int/float literals) or a count (arg-count,
	// field-count).
	Imm int64

	// Index addresses a pool slot: constants, static strings,
	// object-keys, or (for calls) a function-table hash truncated
	// to fit — calls instead store the full hash in Hash.
	Index uint32

	// Hash is a 64-bit item/type/variant hash, used by Call,
	// CallInstance, Is/IsNot, and the constructors.
	Hash uint64

	// JumpIndex is an index into the unit's jump table, used by every
	// control-flow instruction (spec.md §4.4 translate-jump).
	JumpIndex uint32

	// ArgCount is the operand count for calls and variadic
	// constructors (tuple/vec/object literals, tuple structs/variants).
	ArgCount uint32
}
