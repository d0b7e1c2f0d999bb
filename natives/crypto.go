package natives

import (
	"github.com/sergeymakinen/go-crypt"

	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

// CryptVerifyFuture is the host future a script gets back from calling
// the crypt_verify native function. Poll is lazy: the actual crypt(3)
// comparison (which, for bcrypt/SHA-512-crypt hashes, is deliberately
// slow) runs on first Poll, modeling a host operation expensive enough
// that a real embedder would want to run it off the interpreter's own
// goroutine rather than block a VM.Run call on it. It satisfies
// coroutine.Future's Poll() (value.Value, bool, error) shape
// structurally, without either package importing the other.
type CryptVerifyFuture struct {
	hashed, password string
	polled           bool
	result           value.Value
	err              error
}

// NewCryptVerifyFuture constructs an unresolved verification future.
func NewCryptVerifyFuture(hashedPassword, password string) *CryptVerifyFuture {
	return &CryptVerifyFuture{hashed: hashedPassword, password: password}
}

func (f *CryptVerifyFuture) TypeHash() value.TypeHash { return typeHashCryptFuture }
func (f *CryptVerifyFuture) TypeName() string         { return "CryptVerifyFuture" }

var typeHashCryptFuture = value.HashPath("::crypto::CryptVerifyFuture")

// Poll resolves the future on its first call and is idempotent
// thereafter, matching spec.md §4.9's re-poll contract for halted
// awaits.
func (f *CryptVerifyFuture) Poll() (value.Value, bool, error) {
	if !f.polled {
		f.polled = true
		err := crypt.Verify(f.hashed, f.password)
		f.result = value.Bool(err == nil)
		f.err = nil
	}
	return f.result, true, f.err
}

// CryptVerify is the native function a unit's Call instruction invokes
// by item hash (registered under NameCryptVerify in a context.Context's
// native-function table). It returns the future immediately; script
// code is expected to `await` it.
func CryptVerify(args []value.Value) (value.Value, error) {
	hashed, ok := unit.BytesOf(args[0])
	if !ok {
		return nil, errNotByteString
	}
	password, ok := unit.BytesOf(args[1])
	if !ok {
		return nil, errNotByteString
	}
	return value.NewAny(NewCryptVerifyFuture(string(hashed), string(password))), nil
}

// NameCryptVerify is the item path CryptVerify is registered under.
const NameCryptVerify = "std::crypto::crypt_verify"
