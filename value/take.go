package value

// Take implements the Value-level take() operation of spec.md §4.3:
// inline values are always takeable (copying them "moves" them in the
// sense that the source slot is separately reset to Unit by the stack
// instruction that calls this — see package vm's MOVE instruction), and
// mutable/any values route through their access.Cell and fail with the
// snapshot error if anything still borrows them.
func Take(v Value) (Value, error) {
	switch vv := v.(type) {
	case *Mutable:
		if err := vv.Cell.TryTake(); err != nil {
			return nil, err
		}
		return vv, nil
	case AnyValue:
		if _, err := vv.Take(); err != nil {
			return nil, err
		}
		return vv, nil
	default:
		return v, nil
	}
}
