package unit

import (
	"fmt"

	"github.com/weave-lang/weave/value"
)

// Unit is one loaded, append-only program (spec.md §4.4): instruction
// storage behind the InstructionStorage interface, a constants pool, a
// static-string pool, an object-key pool, a function table, RTTI
// tables, and a jump table. A Unit never mutates after Builder.Build
// returns it — every lookup method below is safe to call concurrently
// from multiple VMs sharing the same loaded program.
type Unit struct {
	Name string

	code InstructionStorage

	constants  ConstantsPool
	strings    StringPool
	objectKeys ObjectKeyPool
	functions  FunctionTable
	rtti       RTTITable
	jumps      JumpTable

	// entryIP is the instruction pointer a fresh VM begins execution at
	// when no specific function hash is being entered.
	entryIP int
}

// InstructionAt decodes the instruction at ip along with its encoded
// length, delegating to whichever InstructionStorage implementation
// this unit was built with.
func (u *Unit) InstructionAt(ip int) (Instruction, int, error) {
	ins, width, err := u.code.InstructionAt(ip)
	if err != nil {
		return Instruction{}, 0, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	return ins, width, nil
}

// CodeLen reports the instruction storage's length in its own
// addressing unit (bytes for a packed unit, instruction count for a
// flat one).
func (u *Unit) CodeLen() int { return u.code.Len() }

// EntryPoint is the instruction pointer execution begins at for a unit
// with no explicit entry function (e.g. a top-level script body).
func (u *Unit) EntryPoint() int { return u.entryIP }

// TranslateJump resolves a jump-table index to an instruction pointer
// (spec.md §4.4).
func (u *Unit) TranslateJump(index uint32) (int, error) {
	ip, err := u.jumps.Translate(index)
	if err != nil {
		return 0, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	return ip, nil
}

// LookupConst materializes the constant at slot.
func (u *Unit) LookupConst(slot uint32) (value.Value, error) {
	entry, err := u.constants.Get(slot)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	return entry.Materialize(), nil
}

// LookupStringValue resolves a static-string slot into a fresh
// byte-string any-value, the form OpLoadString needs (a distinct
// heap-identity per load, matching LookupConst's materialize-on-load
// contract).
func (u *Unit) LookupStringValue(slot uint32) (value.Value, error) {
	s, err := u.strings.Get(slot)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	return ByteStringConst{Bytes: []byte(s)}.Materialize(), nil
}

// LookupString resolves a static-string slot.
func (u *Unit) LookupString(slot uint32) (string, error) {
	s, err := u.strings.Get(slot)
	if err != nil {
		return "", fmt.Errorf("unit %q: %w", u.Name, err)
	}
	return s, nil
}

// LookupObjectKeys resolves an object-key (field-shape) slot.
func (u *Unit) LookupObjectKeys(slot uint32) (*value.Shape, error) {
	shape, err := u.objectKeys.Get(slot)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", u.Name, err)
	}
	return shape, nil
}

// Function resolves an item hash to its function-table entry, the
// single lookup used by Call, the constructor instructions, and
// pattern-match's variant resolution.
func (u *Unit) Function(hash uint64) (FuncEntry, bool) {
	return u.functions.Lookup(hash)
}

// LookupRTTI resolves a type hash to its RTTI, used to produce
// human-readable type names in errors and by is/is-not.
func (u *Unit) LookupRTTI(hash value.TypeHash) (TypeInfo, bool) {
	return u.rtti.LookupType(hash)
}

// LookupVariantRTTI resolves a variant hash to its RTTI, used by
// pattern-match's variant-test and field-arity checks.
func (u *Unit) LookupVariantRTTI(hash value.TypeHash) (VariantInfo, bool) {
	return u.rtti.LookupVariant(hash)
}
