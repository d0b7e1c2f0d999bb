package value

// Option and Result are not distinguished kinds of Value — they are
// ordinary two-variant enums built out of the same UnitVariant/
// TupleVariant machinery every user-defined enum uses (spec.md §4.4's
// function table has no special case for them). These constructors and
// hashes just give the two built-in enums stable, well-known type and
// variant hashes so that package unit's RTTI tables and package vm's
// pattern-match instructions can recognize them without a source-level
// declaration to hash.
var (
	TypeHashOption = HashPath("::option::Option")
	TypeHashResult = HashPath("::result::Result")

	VariantHashSome = HashPath("::option::Option::Some")
	VariantHashNone = HashPath("::option::Option::None")
	VariantHashOk   = HashPath("::result::Result::Ok")
	VariantHashErr  = HashPath("::result::Result::Err")
)

// Some constructs Option::Some(v).
func Some(v Value) *Mutable {
	return NewTupleVariant(TypeHashOption, VariantHashSome, "Option", "Some", []Value{v})
}

// None constructs Option::None.
func None() *Mutable {
	return NewUnitVariant(TypeHashOption, VariantHashNone, "Option", "None")
}

// Ok constructs Result::Ok(v).
func Ok(v Value) *Mutable {
	return NewTupleVariant(TypeHashResult, VariantHashOk, "Result", "Ok", []Value{v})
}

// Err constructs Result::Err(v).
func Err(v Value) *Mutable {
	return NewTupleVariant(TypeHashResult, VariantHashErr, "Result", "Err", []Value{v})
}

// IsSome reports whether m is Option::Some, reading VariantHash under
// no borrow at all since it is set once at construction and never
// mutated thereafter (unlike Body's field contents).
func IsSome(m *Mutable) bool { return m.VariantHash == VariantHashSome }

// IsOk reports whether m is Result::Ok.
func IsOk(m *Mutable) bool { return m.VariantHash == VariantHashOk }
