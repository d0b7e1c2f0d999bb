package unit

import (
	"encoding/binary"
	"fmt"
)

// InstructionStorage is the abstract instruction container of spec.md
// §4.4/§9 ("Instruction storage is an interface, not a fixed encoding").
// Two implementations ship: PackedStorage (byte-packed, variable
// length) and FlatStorage (a flat array of fixed-size records). The
// interpreter (package vm) is parameterized over this interface and
// never assumes one encoding.
type InstructionStorage interface {
	// InstructionAt decodes the instruction at ip, returning it along
	// with its encoded length (the amount by which ip must advance to
	// reach the next instruction). Returns *vmerr-shaped errors for a
	// malformed unit are the caller's (package unit's Unit type)
	// responsibility to wrap; this layer returns plain errors.
	InstructionAt(ip int) (Instruction, int, error)
	// Len reports the storage's length in its own addressing unit
	// (bytes for PackedStorage, instruction count for FlatStorage).
	Len() int
}

// ---- FlatStorage: a flat array of fixed-size records ----

// FlatStorage stores each Instruction as one fixed-size Go struct;
// ip addresses instructions directly (advancement is always by 1).
type FlatStorage struct {
	instructions []Instruction
}

// NewFlatStorage wraps a slice of already-decoded instructions.
func NewFlatStorage(instructions []Instruction) *FlatStorage {
	return &FlatStorage{instructions: instructions}
}

func (s *FlatStorage) InstructionAt(ip int) (Instruction, int, error) {
	if ip < 0 || ip >= len(s.instructions) {
		return Instruction{}, 0, fmt.Errorf("unit: instruction index %d out of range (len=%d)", ip, len(s.instructions))
	}
	return s.instructions[ip], 1, nil
}

func (s *FlatStorage) Len() int { return len(s.instructions) }

// ---- PackedStorage: byte-packed, variable-length encoding ----

// operandShape describes which Instruction fields a given opcode
// encodes, so PackedStorage's encoder/decoder stays one small table
// rather than a giant per-opcode switch duplicated between encode and
// decode.
type operandShape struct {
	A, B, Out              bool
	Place                  bool
	Imm                    bool
	Index                  bool
	Hash                   bool
	Jump                   bool
	ArgCount               bool
}

func shapeFor(op OpCode) operandShape {
	switch op {
	case OpLoadUnit:
		return operandShape{Out: true}
	case OpLoadBool, OpLoadChar, OpLoadUint, OpLoadInt, OpLoadFloat:
		return operandShape{Out: true, Imm: true}
	case OpLoadConst, OpLoadString:
		return operandShape{Out: true, Index: true}
	case OpCopy, OpMove:
		return operandShape{Out: true, A: true}
	case OpSwap:
		return operandShape{A: true, B: true}
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr,
		OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte, OpPartialCmp:
		return operandShape{A: true, B: true, Out: true}
	case OpNeg, OpBitNot:
		return operandShape{A: true, Out: true}
	case OpAddAssign, OpSubAssign, OpMulAssign, OpDivAssign, OpRemAssign,
		OpBitAndAssign, OpBitOrAssign, OpBitXorAssign, OpShlAssign, OpShrAssign:
		return operandShape{Place: true, B: true}
	case OpIs, OpIsNot:
		return operandShape{A: true, Out: true, Hash: true}
	case OpJump:
		return operandShape{Jump: true}
	case OpJumpIf, OpJumpIfNot, OpJumpIfOrPop, OpJumpIfNotOrPop:
		return operandShape{A: true, Jump: true}
	case OpCall:
		return operandShape{Hash: true, ArgCount: true, Out: true}
	case OpCallInstance:
		return operandShape{A: true, Hash: true, ArgCount: true, Out: true}
	case OpCallFn:
		return operandShape{A: true, ArgCount: true, Out: true}
	case OpReturn:
		return operandShape{A: true}
	case OpReturnUnit:
		return operandShape{}
	case OpUnitStruct:
		return operandShape{Hash: true, Out: true}
	case OpTupleStruct, OpResultOk, OpResultErr, OpOptionSome:
		return operandShape{Hash: true, ArgCount: true, Out: true}
	case OpOptionNone:
		return operandShape{Hash: true, Out: true}
	case OpNamedStruct:
		return operandShape{Hash: true, Index: true, ArgCount: true, Out: true}
	case OpTuple, OpVec:
		return operandShape{ArgCount: true, Out: true}
	case OpObject:
		return operandShape{Index: true, ArgCount: true, Out: true}
	case OpGetDiscriminant:
		return operandShape{A: true, Out: true}
	case OpIsVariant:
		return operandShape{A: true, Out: true, Hash: true}
	case OpTupleIndexGet:
		return operandShape{A: true, Out: true, Imm: true}
	case OpFieldGet:
		return operandShape{A: true, Out: true, Index: true}
	case OpAwait, OpYield:
		return operandShape{A: true, Out: true}
	case OpVMCall:
		return operandShape{A: true, Out: true, ArgCount: true}
	default:
		return operandShape{}
	}
}

// PackedStorage is an append-only byte buffer. Append is the only
// mutator, matching spec.md §3's "Instruction storage is append-only
// after loading."
type PackedStorage struct {
	buf []byte
}

// NewPackedStorage returns an empty packed instruction stream.
func NewPackedStorage() *PackedStorage {
	return &PackedStorage{}
}

// Append encodes ins and returns the byte offset (ip) it was written
// at. Used by Builder during unit construction.
func (s *PackedStorage) Append(ins Instruction) int {
	start := len(s.buf)
	s.buf = append(s.buf, byte(ins.Op))
	shape := shapeFor(ins.Op)

	if shape.Out {
		s.buf = appendVarint(s.buf, int64(ins.Out))
	}
	if shape.A {
		s.buf = appendVarint(s.buf, int64(ins.A))
	}
	if shape.B {
		s.buf = appendVarint(s.buf, int64(ins.B))
	}
	if shape.Place {
		s.buf = append(s.buf, byte(ins.Place.Kind))
		s.buf = appendVarint(s.buf, int64(ins.Place.Base))
		s.buf = appendUvarint(s.buf, uint64(ins.Place.FieldSlot))
		s.buf = appendUvarint(s.buf, uint64(ins.Place.TupleIndex))
	}
	if shape.Imm {
		s.buf = appendUvarint(s.buf, uint64(ins.Imm))
	}
	if shape.Index {
		s.buf = appendUvarint(s.buf, uint64(ins.Index))
	}
	if shape.Hash {
		s.buf = appendUvarint(s.buf, ins.Hash)
	}
	if shape.Jump {
		s.buf = appendUvarint(s.buf, uint64(ins.JumpIndex))
	}
	if shape.ArgCount {
		s.buf = appendUvarint(s.buf, uint64(ins.ArgCount))
	}

	return start
}

func (s *PackedStorage) InstructionAt(ip int) (Instruction, int, error) {
	if ip < 0 || ip >= len(s.buf) {
		return Instruction{}, 0, fmt.Errorf("unit: instruction offset %d out of range (len=%d)", ip, len(s.buf))
	}
	pos := ip
	op := OpCode(s.buf[pos])
	pos++
	shape := shapeFor(op)
	ins := Instruction{Op: op}

	var err error
	if shape.Out {
		var v int64
		v, pos, err = readVarint(s.buf, pos)
		ins.Out = Addr(v)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.A {
		var v int64
		v, pos, err = readVarint(s.buf, pos)
		ins.A = Addr(v)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.B {
		var v int64
		v, pos, err = readVarint(s.buf, pos)
		ins.B = Addr(v)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.Place {
		if pos >= len(s.buf) {
			return Instruction{}, 0, fmt.Errorf("unit: truncated place operand at %d", pos)
		}
		ins.Place.Kind = PlaceKind(s.buf[pos])
		pos++
		var v int64
		v, pos, err = readVarint(s.buf, pos)
		ins.Place.Base = Addr(v)
		if err != nil {
			return Instruction{}, 0, err
		}
		var u uint64
		u, pos, err = readUvarint(s.buf, pos)
		ins.Place.FieldSlot = uint32(u)
		if err != nil {
			return Instruction{}, 0, err
		}
		u, pos, err = readUvarint(s.buf, pos)
		ins.Place.TupleIndex = uint32(u)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.Imm {
		var u uint64
		u, pos, err = readUvarint(s.buf, pos)
		ins.Imm = int64(u)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.Index {
		var u uint64
		u, pos, err = readUvarint(s.buf, pos)
		ins.Index = uint32(u)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.Hash {
		ins.Hash, pos, err = readUvarint(s.buf, pos)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.Jump {
		var u uint64
		u, pos, err = readUvarint(s.buf, pos)
		ins.JumpIndex = uint32(u)
		if err != nil {
			return Instruction{}, 0, err
		}
	}
	if shape.ArgCount {
		var u uint64
		u, pos, err = readUvarint(s.buf, pos)
		ins.ArgCount = uint32(u)
		if err != nil {
			return Instruction{}, 0, err
		}
	}

	return ins, pos - ip, nil
}

func (s *PackedStorage) Len() int { return len(s.buf) }

func appendVarint(buf []byte, v int64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readVarint(buf []byte, pos int) (int64, int, error) {
	v, n := binary.Varint(buf[pos:])
	if n <= 0 {
		return 0, 0, fmt.Errorf("unit: malformed varint at offset %d", pos)
	}
	return v, pos + n, nil
}

func readUvarint(buf []byte, pos int) (uint64, int, error) {
	v, n := binary.Uvarint(buf[pos:])
	if n <= 0 {
		return 0, 0, fmt.Errorf("unit: malformed uvarint at offset %d", pos)
	}
	return v, pos + n, nil
}
