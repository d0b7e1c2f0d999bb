package natives

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/ripemd160"

	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

// digestNative wraps a fixed-width digest as an any-value so script
// code can compare/print it like any other registered native type.
type digestNative struct {
	algorithm string
	bytes     []byte
}

var typeHashDigest = value.HashPath("::crypto::Digest")

func (d *digestNative) TypeHash() value.TypeHash { return typeHashDigest }
func (d *digestNative) TypeName() string         { return "Digest" }

// RegisterHash installs the HASH protocol (spec.md §4.6's
// caller-supplied-hasher contract) for the byte-string and Vec native
// types, using SHA-256 and RIPEMD-160 respectively — two concrete
// hash.Hash algorithms from the Go crypto stack standing in
// for "whatever digest algorithms the embedder wants to expose to
// scripts via the HASH protocol".
func RegisterHash(reg *protocol.Registry) {
	reg.RegisterDefault(typeHashBytesNative(), protocol.Hash, hashBytesHandler(sha256.New()))
	reg.RegisterDefault(TypeHashVec, protocol.Hash, hashVecHandler(ripemd160.New()))
}

// typeHashBytesNative mirrors package unit's private byte-string any
// type hash so natives can register a handler against it without
// exporting unit's internal bytesNative type.
func typeHashBytesNative() value.TypeHash {
	return value.HashPath("::bytes")
}

func hashBytesHandler(h hash.Hash) protocol.Handler {
	return func(args []value.Value) (value.Value, error) {
		data, ok := unit.BytesOf(args[0])
		if !ok {
			return nil, errNotByteString
		}
		h.Reset()
		h.Write(data)
		return value.NewAny(&digestNative{algorithm: "sha256", bytes: h.Sum(nil)}), nil
	}
}

func hashVecHandler(h hash.Hash) protocol.Handler {
	return func(args []value.Value) (value.Value, error) {
		vec, guard, err := VecOf(args[0])
		if err != nil {
			return nil, err
		}
		defer guard.Release()
		h.Reset()
		for _, item := range vec.Items {
			h.Write([]byte(item.String()))
		}
		return value.NewAny(&digestNative{algorithm: "ripemd160", bytes: h.Sum(nil)}), nil
	}
}

type nativeError string

func (e nativeError) Error() string { return string(e) }

const errNotByteString = nativeError("natives: HASH protocol argument is not a byte string")
