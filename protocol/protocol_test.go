package protocol

import (
	"testing"

	"github.com/weave-lang/weave/value"
)

func TestForNameIsStableAcrossCalls(t *testing.T) {
	if ForName("add") != ForName("add") {
		t.Fatal("expected ForName to be deterministic")
	}
	if ForName("add") == ForName("sub") {
		t.Fatal("expected distinct protocol names to hash differently")
	}
}

func TestRegistryLookupMissAndHit(t *testing.T) {
	r := NewRegistry()
	th := value.HashPath("test::Vector")

	if _, ok := r.Lookup(th, Add, 0); ok {
		t.Fatal("expected miss before registration")
	}

	r.RegisterDefault(th, Add, func(args []value.Value) (value.Value, error) {
		return args[0], nil
	})

	h, ok := r.Lookup(th, Add, 0)
	if !ok {
		t.Fatal("expected hit after registration")
	}
	result, err := h([]value.Value{value.Int(1), value.Int(2)})
	if err != nil {
		t.Fatal(err)
	}
	if result != value.Int(1) {
		t.Fatalf("expected 1, got %v", result)
	}
}

func TestGenericsDistinguishInstantiations(t *testing.T) {
	r := NewRegistry()
	th := value.HashPath("test::Wrapper")
	r.Register(th, Add, 1, func(args []value.Value) (value.Value, error) { return value.Int(1), nil })
	r.Register(th, Add, 2, func(args []value.Value) (value.Value, error) { return value.Int(2), nil })

	h1, _ := r.Lookup(th, Add, 1)
	h2, _ := r.Lookup(th, Add, 2)
	r1, _ := h1(nil)
	r2, _ := h2(nil)
	if r1 == r2 {
		t.Fatal("expected distinct generics instantiations to resolve independently")
	}
}
