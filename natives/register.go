package natives

import (
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/value"
)

// NativeFunc is a host function callable from script code by item
// hash, independent of any unit's own function table (spec.md §4.4's
// function table only describes script-defined entries; host-native
// free functions resolve through this separate table instead, kept by
// package context and consulted by package vm's Call instruction when
// a hash misses the current unit's table).
type NativeFunc func(args []value.Value) (value.Value, error)

// Functions returns the standard native free-function table: currently
// just crypt_verify, but new entries belong here.
func Functions() map[uint64]NativeFunc {
	return map[uint64]NativeFunc{
		uint64(value.HashPath(NameCryptVerify)): CryptVerify,
	}
}

// RegisterProtocols installs every native-type protocol handler this
// package provides: HASH for bytes/Vec, LEN/INDEX_GET/INDEX_SET for
// Vec, and LEN for Object. No iterator protocol (ITER_NEXT) handler is
// registered for either type.
func RegisterProtocols(reg *protocol.Registry) {
	RegisterHash(reg)
	registerVecProtocols(reg)
	registerObjectProtocols(reg)
}

var ProtocolLen = protocol.ForName("len")

func registerVecProtocols(reg *protocol.Registry) {
	reg.RegisterDefault(TypeHashVec, ProtocolLen, func(args []value.Value) (value.Value, error) {
		vec, guard, err := VecOf(args[0])
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		return value.Uint(len(vec.Items)), nil
	})

	reg.RegisterDefault(TypeHashVec, protocol.IndexGet, func(args []value.Value) (value.Value, error) {
		vec, guard, err := VecOf(args[0])
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		idx, ok := args[1].(value.Uint)
		if !ok || int(idx) >= len(vec.Items) {
			return nil, errIndexRange
		}
		return vec.Items[idx], nil
	})

	reg.RegisterDefault(TypeHashVec, protocol.IndexSet, func(args []value.Value) (value.Value, error) {
		av, ok := args[0].(value.AnyValue)
		if !ok {
			return nil, errNotByteString
		}
		native, guard, err := av.BorrowMut(TypeHashVec)
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		vec := native.(*Vec)
		idx, ok := args[1].(value.Uint)
		if !ok || int(idx) >= len(vec.Items) {
			return nil, errIndexRange
		}
		vec.Items[idx] = args[2]
		return value.Unit{}, nil
	})
}

func registerObjectProtocols(reg *protocol.Registry) {
	reg.RegisterDefault(TypeHashObject, ProtocolLen, func(args []value.Value) (value.Value, error) {
		obj, guard, err := ObjectOf(args[0])
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		return value.Uint(len(obj.Fields)), nil
	})
}

const errIndexRange = nativeError("natives: index out of range")
