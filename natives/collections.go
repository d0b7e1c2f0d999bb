// Package natives implements the host-registered standard library
// composite types and protocol handlers every unit gets for free:
// growable vectors and ordered-key objects (both any-values, per
// spec.md §3's "used for all registered native types and for standard
// library composites"), the HASH protocol over the types the embedder
// cares to support, and an async password-verification native function
// that drives await against a real host computation.
package natives

import (
	"fmt"

	"github.com/weave-lang/weave/access"
	"github.com/weave-lang/weave/value"
)

var (
	TypeHashVec    = value.HashPath("::vec::Vec")
	TypeHashObject = value.HashPath("::object::Object")
)

// Vec is the any-native backing a vector literal (OpVec).
type Vec struct {
	Items []value.Value
}

func (v *Vec) TypeHash() value.TypeHash { return TypeHashVec }
func (v *Vec) TypeName() string         { return "Vec" }

// NewVec wraps items as a fresh Vec value.
func NewVec(items []value.Value) value.AnyValue {
	return value.NewAny(&Vec{Items: items})
}

// VecOf borrows v's items under a shared borrow. Callers must release
// the guard.
func VecOf(v value.Value) (*Vec, access.Guard, error) {
	av, ok := v.(value.AnyValue)
	if !ok {
		return nil, access.Guard{}, fmt.Errorf("natives: %v is not a Vec", v)
	}
	native, guard, err := av.BorrowRef(TypeHashVec)
	if err != nil {
		return nil, access.Guard{}, err
	}
	vec, ok := native.(*Vec)
	if !ok {
		guard.Release()
		return nil, access.Guard{}, fmt.Errorf("natives: any-value is not a Vec")
	}
	return vec, guard, nil
}

// Object is the any-native backing an object literal (OpObject): an
// ordered set of named fields, the same shape value.Mutable's
// StructBody uses, but for anonymous (unnamed-type) object literals
// rather than a declared struct.
type Object struct {
	Shape  *value.Shape
	Fields []value.Value
}

func (o *Object) TypeHash() value.TypeHash { return TypeHashObject }
func (o *Object) TypeName() string         { return "Object" }

// NewObject wraps shape+fields as a fresh Object value.
func NewObject(shape *value.Shape, fields []value.Value) value.AnyValue {
	return value.NewAny(&Object{Shape: shape, Fields: fields})
}

// ObjectOf borrows o's fields under a shared borrow. Callers must
// release the guard.
func ObjectOf(v value.Value) (*Object, access.Guard, error) {
	av, ok := v.(value.AnyValue)
	if !ok {
		return nil, access.Guard{}, fmt.Errorf("natives: %v is not an Object", v)
	}
	native, guard, err := av.BorrowRef(TypeHashObject)
	if err != nil {
		return nil, access.Guard{}, err
	}
	obj, ok := native.(*Object)
	if !ok {
		guard.Release()
		return nil, access.Guard{}, fmt.Errorf("natives: any-value is not an Object")
	}
	return obj, guard, nil
}

// Get reads a named field.
func (o *Object) Get(name string) (value.Value, bool) {
	idx := o.Shape.FieldIndex(name)
	if idx < 0 {
		return nil, false
	}
	return o.Fields[idx], true
}
