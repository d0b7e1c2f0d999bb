package value

import (
	"strings"

	"github.com/weave-lang/weave/access"
)

// Shape names the ordered fields of a named struct. Shapes are held in
// a unit's object-key pool (spec.md §4.4) and shared by reference
// between every instance built from the same pool slot; the pool does
// not deduplicate shapes by content.
type Shape struct {
	TypeName string
	Fields   []string
}

// FieldIndex returns the slot for a named field, or -1 if the shape has
// no such field.
func (s *Shape) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

// Body is the payload kind of a Mutable value: an empty struct (a marker
// type with no fields), a tuple struct (ordered, unnamed fields), or a
// named struct (ordered fields with a Shape giving their names).
type Body interface {
	isBody()
}

// EmptyBody is the payload of a unit-struct value.
type EmptyBody struct{}

func (EmptyBody) isBody() {}

// TupleBody is the payload of a tuple-struct value: ordered, unnamed
// fields addressed by integer index.
type TupleBody struct {
	Fields []Value
}

func (*TupleBody) isBody() {}

// StructBody is the payload of a named-struct value: ordered fields
// addressed by name via Shape, or by the same integer index as storage
// order.
type StructBody struct {
	Shape  *Shape
	Fields []Value
}

func (*StructBody) isBody() {}

// Mutable is a heap-owned composite value behind shared ownership and an
// access.Cell (spec.md §3, §4.1). Field mutation, op-assign targets, and
// take() all route through Cell.
//
// Enum variants (spec.md §4.4's UnitVariant/TupleVariant function-table
// entries, including the built-in Option/Result types) are represented
// by the same struct: VariantHash is non-zero and names the specific
// variant, while TypeHash stays the owning enum's type hash so that
// is/is-not against the enum type itself keeps working. A plain struct
// leaves VariantHash zero.
type Mutable struct {
	Cell        access.Cell
	TypeHash    TypeHash
	VariantHash TypeHash
	TypeName    string
	VariantName string
	Body        Body
}

// NewEmptyStruct constructs a unit-struct value.
func NewEmptyStruct(hash TypeHash, name string) *Mutable {
	return &Mutable{TypeHash: hash, TypeName: name, Body: EmptyBody{}}
}

// NewTupleStruct constructs a tuple-struct value with the given fields.
func NewTupleStruct(hash TypeHash, name string, fields []Value) *Mutable {
	return &Mutable{TypeHash: hash, TypeName: name, Body: &TupleBody{Fields: fields}}
}

// NewStruct constructs a named-struct value. len(fields) must equal
// len(shape.Fields); the constructor instruction (spec.md §4.7) is
// responsible for matching the object-key slot's declared field order
// against the values popped off the stack before calling this.
func NewStruct(hash TypeHash, shape *Shape, fields []Value) *Mutable {
	return &Mutable{TypeHash: hash, TypeName: shape.TypeName, Body: &StructBody{Shape: shape, Fields: fields}}
}

// NewUnitVariant constructs a fieldless enum variant, e.g. None or a
// user enum's fieldless arm.
func NewUnitVariant(enumHash, variantHash TypeHash, enumName, variantName string) *Mutable {
	return &Mutable{
		TypeHash: enumHash, VariantHash: variantHash,
		TypeName: enumName, VariantName: variantName,
		Body: EmptyBody{},
	}
}

// NewTupleVariant constructs an enum variant carrying ordered fields,
// e.g. Some(x), Ok(x), Err(x), or a user enum's tuple arm.
func NewTupleVariant(enumHash, variantHash TypeHash, enumName, variantName string, fields []Value) *Mutable {
	return &Mutable{
		TypeHash: enumHash, VariantHash: variantHash,
		TypeName: enumName, VariantName: variantName,
		Body: &TupleBody{Fields: fields},
	}
}

// IsVariant reports whether m represents an enum variant rather than a
// plain struct.
func (m *Mutable) IsVariant() bool { return m.VariantHash != 0 }

func (m *Mutable) Kind() Kind {
	switch b := m.Body.(type) {
	case EmptyBody:
		if m.IsVariant() {
			return KindUnitVariant
		}
		return KindEmptyStruct
	case *TupleBody:
		if m.IsVariant() {
			return KindTupleVariant
		}
		return KindTupleStruct
	case *StructBody:
		_ = b
		return KindStruct
	default:
		return KindEmptyStruct
	}
}

func (m *Mutable) name() string {
	if m.IsVariant() {
		return m.VariantName
	}
	return m.TypeName
}

func (m *Mutable) String() string {
	switch b := m.Body.(type) {
	case EmptyBody:
		return m.name()
	case *TupleBody:
		parts := make([]string, len(b.Fields))
		for i, f := range b.Fields {
			parts[i] = f.String()
		}
		return m.name() + "(" + strings.Join(parts, ", ") + ")"
	case *StructBody:
		parts := make([]string, len(b.Fields))
		for i, f := range b.Fields {
			name := "?"
			if b.Shape != nil && i < len(b.Shape.Fields) {
				name = b.Shape.Fields[i]
			}
			parts[i] = name + ": " + f.String()
		}
		return m.TypeName + " { " + strings.Join(parts, ", ") + " }"
	default:
		return m.TypeName
	}
}

// Field reads field i under a shared borrow, releasing the borrow before
// returning (a snapshot read — callers needing the guard across further
// work should borrow the cell themselves).
func (m *Mutable) Field(i int) (Value, error) {
	guard, err := m.Cell.TryShared()
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	switch b := m.Body.(type) {
	case *TupleBody:
		if i < 0 || i >= len(b.Fields) {
			return nil, errFieldRange
		}
		return b.Fields[i], nil
	case *StructBody:
		if i < 0 || i >= len(b.Fields) {
			return nil, errFieldRange
		}
		return b.Fields[i], nil
	default:
		return nil, errFieldRange
	}
}

// FieldByName resolves a named-struct field by name under a shared
// borrow.
func (m *Mutable) FieldByName(name string) (Value, error) {
	guard, err := m.Cell.TryShared()
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	b, ok := m.Body.(*StructBody)
	if !ok || b.Shape == nil {
		return nil, errMissingField
	}
	idx := b.Shape.FieldIndex(name)
	if idx < 0 {
		return nil, errMissingField
	}
	return b.Fields[idx], nil
}

// SetField writes field i under an exclusive borrow.
func (m *Mutable) SetField(i int, v Value) error {
	guard, err := m.Cell.TryExclusive()
	if err != nil {
		return err
	}
	defer guard.Release()

	switch b := m.Body.(type) {
	case *TupleBody:
		if i < 0 || i >= len(b.Fields) {
			return errFieldRange
		}
		b.Fields[i] = v
		return nil
	case *StructBody:
		if i < 0 || i >= len(b.Fields) {
			return errFieldRange
		}
		b.Fields[i] = v
		return nil
	default:
		return errFieldRange
	}
}

// SetFieldByName writes a named-struct field by name under an exclusive
// borrow.
func (m *Mutable) SetFieldByName(name string, v Value) error {
	guard, err := m.Cell.TryExclusive()
	if err != nil {
		return err
	}
	defer guard.Release()

	b, ok := m.Body.(*StructBody)
	if !ok || b.Shape == nil {
		return errMissingField
	}
	idx := b.Shape.FieldIndex(name)
	if idx < 0 {
		return errMissingField
	}
	b.Fields[idx] = v
	return nil
}

var (
	errFieldRange   = fieldError("tuple-field index out of range")
	errMissingField = fieldError("missing field")
)

type fieldError string

func (e fieldError) Error() string { return string(e) }
