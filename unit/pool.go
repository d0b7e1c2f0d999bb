package unit

import (
	"fmt"

	"github.com/weave-lang/weave/value"
)

// ---- Constants pool ----

// ConstEntry is one entry of the constants pool (spec.md §4.4). Entries
// materialize into a fresh value.Value on every load — composite
// constants must never alias between two LoadConst executions of the
// same instruction.
type ConstEntry interface {
	Materialize() value.Value
}

// InlineConst wraps an inline scalar. Inline values copy by value, so
// Materialize can hand back the same Go value safely.
type InlineConst struct {
	V value.Value
}

func (c InlineConst) Materialize() value.Value { return c.V }

// bytesNative is the Native backing a byte-string constant (spec.md
// §4.3's any kind: a heap-erased, host-recognized type with its own
// type hash, here used for the one host-native type every unit needs
// regardless of what the embedder registers).
type bytesNative struct {
	data []byte
}

var typeHashBytes = value.HashPath("::bytes")

func (b *bytesNative) TypeHash() value.TypeHash { return typeHashBytes }
func (b *bytesNative) TypeName() string         { return "bytes" }

// ByteStringConst is a constant byte string. Each materialization
// allocates a fresh any-value so that mutating one loaded copy never
// affects another load of the same constant.
type ByteStringConst struct {
	Bytes []byte
}

func (c ByteStringConst) Materialize() value.Value {
	cp := make([]byte, len(c.Bytes))
	copy(cp, c.Bytes)
	return value.NewAny(&bytesNative{data: cp})
}

// BytesOf extracts the underlying bytes of an any-value produced by a
// ByteStringConst, for natives that need to read it back out. It takes
// and releases its own shared borrow.
func BytesOf(v value.Value) ([]byte, bool) {
	av, ok := v.(value.AnyValue)
	if !ok {
		return nil, false
	}
	native, guard, err := av.BorrowRef(typeHashBytes)
	if err != nil {
		return nil, false
	}
	defer guard.Release()
	bn, ok := native.(*bytesNative)
	if !ok {
		return nil, false
	}
	return bn.data, true
}

// ConstantsPool is the append-only table LoadConst indexes into.
//
// spec.md §3 describes a front-end convention where slot 0 is always
// the unit constant, so a compiler never needs to special-case "no
// constant" versus "the unit constant" when emitting LoadConst. This
// pool doesn't reserve or enforce that slot itself: building the
// constants pool is Builder's job (a front-end concern this module
// doesn't implement), and nothing downstream — LoadConst, Get, the VM —
// depends on slot 0 carrying any particular value. A Builder that wants
// the convention just calls Add(InlineConst{V: value.Unit{}}) first.
type ConstantsPool struct {
	entries []ConstEntry
}

func (p *ConstantsPool) Add(e ConstEntry) uint32 {
	p.entries = append(p.entries, e)
	return uint32(len(p.entries) - 1)
}

func (p *ConstantsPool) Get(slot uint32) (ConstEntry, error) {
	if int(slot) >= len(p.entries) {
		return nil, fmt.Errorf("unit: constant slot %d out of range (len=%d)", slot, len(p.entries))
	}
	return p.entries[slot], nil
}

func (p *ConstantsPool) Len() int { return len(p.entries) }

// ---- Static string pool (content-deduplicated) ----

// StringPool interns strings: identical content always shares a slot, so
// two LoadString instructions referencing the same literal read the
// same slot.
type StringPool struct {
	strings []string
	index   map[string]uint32
}

// Intern returns the slot for s, reusing an existing slot if s was
// already interned.
func (p *StringPool) Intern(s string) uint32 {
	if p.index == nil {
		p.index = make(map[string]uint32)
	}
	if slot, ok := p.index[s]; ok {
		return slot
	}
	slot := uint32(len(p.strings))
	p.strings = append(p.strings, s)
	p.index[s] = slot
	return slot
}

func (p *StringPool) Get(slot uint32) (string, error) {
	if int(slot) >= len(p.strings) {
		return "", fmt.Errorf("unit: string slot %d out of range (len=%d)", slot, len(p.strings))
	}
	return p.strings[slot], nil
}

func (p *StringPool) Len() int { return len(p.strings) }

// ---- Object-key pool ----

// ObjectKeyPool holds the field-name shapes (value.Shape) referenced by
// named-struct and object-literal constructors. Shapes are not
// deduplicated by content — two structurally identical shapes may have
// distinct TypeName and thus distinct identity — but the pool is the
// single owner every instance's Shape pointer is borrowed from.
type ObjectKeyPool struct {
	shapes []*value.Shape
}

func (p *ObjectKeyPool) Add(shape *value.Shape) uint32 {
	p.shapes = append(p.shapes, shape)
	return uint32(len(p.shapes) - 1)
}

func (p *ObjectKeyPool) Get(slot uint32) (*value.Shape, error) {
	if int(slot) >= len(p.shapes) {
		return nil, fmt.Errorf("unit: object-key slot %d out of range (len=%d)", slot, len(p.shapes))
	}
	return p.shapes[slot], nil
}

func (p *ObjectKeyPool) Len() int { return len(p.shapes) }

// ---- Function table ----

// CallKind distinguishes the three ways a called function can run
// (spec.md §4.8): to completion in the current VM, as a generator/
// stream producing a sequence of yields, or as an async computation
// that may await.
type CallKind byte

const (
	CallImmediate CallKind = iota
	CallGeneratorStream
	CallAsync
)

func (k CallKind) String() string {
	switch k {
	case CallImmediate:
		return "immediate"
	case CallGeneratorStream:
		return "generator-stream"
	case CallAsync:
		return "async"
	default:
		return "unknown"
	}
}

// FuncEntryKind is the tag of the function table's 5 entry shapes
// (spec.md §4.4).
type FuncEntryKind byte

const (
	FuncOffset FuncEntryKind = iota
	FuncUnitStruct
	FuncTupleStruct
	FuncUnitVariant
	FuncTupleVariant
)

// FuncEntry is one entry of the function table, keyed by a 64-bit item
// hash. Which fields are meaningful depends on Kind.
type FuncEntry struct {
	Kind FuncEntryKind

	// FuncOffset:
	IP       int
	CallKind CallKind
	ArgCount uint32

	// FuncUnitStruct / FuncTupleStruct / FuncUnitVariant / FuncTupleVariant:
	TypeHash    value.TypeHash
	VariantHash value.TypeHash // set only for the two variant kinds
	TypeName    string
	VariantName string
	// FieldCount is the tuple arity for FuncTupleStruct/FuncTupleVariant.
	FieldCount uint32
}

// FunctionTable maps item hashes to their function-table entry.
type FunctionTable struct {
	entries map[uint64]FuncEntry
}

func (t *FunctionTable) Set(hash uint64, e FuncEntry) {
	if t.entries == nil {
		t.entries = make(map[uint64]FuncEntry)
	}
	t.entries[hash] = e
}

func (t *FunctionTable) Lookup(hash uint64) (FuncEntry, bool) {
	e, ok := t.entries[hash]
	return e, ok
}

// ---- RTTI tables ----

// TypeInfo is RTTI for a named type: its hash, display name, and field
// shape (nil for types with no introspectable fields, e.g. any-erased
// natives).
type TypeInfo struct {
	Hash  value.TypeHash
	Name  string
	Shape *value.Shape
}

// VariantInfo is RTTI for one enum variant: the owning enum's hash and
// name, this variant's own hash and name, and (for tuple variants) its
// arity.
type VariantInfo struct {
	EnumHash    value.TypeHash
	EnumName    string
	VariantHash value.TypeHash
	VariantName string
	FieldCount  uint32
}

// RTTITable maps type hashes to TypeInfo, used by pattern-match and
// is/is-not instructions to report human-readable type names in errors.
type RTTITable struct {
	types    map[value.TypeHash]TypeInfo
	variants map[value.TypeHash]VariantInfo
}

func (t *RTTITable) SetType(info TypeInfo) {
	if t.types == nil {
		t.types = make(map[value.TypeHash]TypeInfo)
	}
	t.types[info.Hash] = info
}

func (t *RTTITable) LookupType(hash value.TypeHash) (TypeInfo, bool) {
	info, ok := t.types[hash]
	return info, ok
}

func (t *RTTITable) SetVariant(info VariantInfo) {
	if t.variants == nil {
		t.variants = make(map[value.TypeHash]VariantInfo)
	}
	t.variants[info.VariantHash] = info
}

func (t *RTTITable) LookupVariant(hash value.TypeHash) (VariantInfo, bool) {
	info, ok := t.variants[hash]
	return info, ok
}

// ---- Jump table ----

// JumpTable indirects every control-flow instruction's target through
// a stable index (spec.md §4.4's translate-jump), so that a Builder can
// patch a forward jump's real offset once it is known without touching
// already-emitted instruction bytes.
type JumpTable struct {
	targets []int
}

// Reserve allocates a new jump-table slot with a placeholder target,
// returning its index for later patching.
func (t *JumpTable) Reserve() uint32 {
	t.targets = append(t.targets, -1)
	return uint32(len(t.targets) - 1)
}

// Patch sets the real instruction-pointer target for a reserved slot.
func (t *JumpTable) Patch(index uint32, ip int) error {
	if int(index) >= len(t.targets) {
		return fmt.Errorf("unit: jump index %d out of range (len=%d)", index, len(t.targets))
	}
	t.targets[index] = ip
	return nil
}

// Translate resolves a jump-table index to its instruction pointer.
func (t *JumpTable) Translate(index uint32) (int, error) {
	if int(index) >= len(t.targets) {
		return 0, fmt.Errorf("unit: jump index %d out of range (len=%d)", index, len(t.targets))
	}
	ip := t.targets[index]
	if ip < 0 {
		return 0, fmt.Errorf("unit: jump index %d was never patched", index)
	}
	return ip, nil
}
