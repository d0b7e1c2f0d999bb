// Package context implements the host collaborator of spec.md §6: the
// object an embedder builds once and shares across every unit it
// loads, bundling the protocol registry, the native free-function
// table, and the set of loaded units a cross-unit HaltVMCall resolves
// against. Grounded on builtins.Registry's role as the object handed
// to every vm.NewVM/eval call site in the teacher.
package context

import (
	"github.com/weave-lang/weave/exec"
	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/natives"
	"github.com/weave-lang/weave/protocol"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

// Context bundles the state shared across every unit an embedding
// program loads: protocol dispatch, native free functions, and the
// loaded-unit set HaltVMCall resolves cross-unit calls against.
type Context struct {
	Protocols *protocol.Registry
	Natives   map[uint64]natives.NativeFunc

	units map[string]*unit.Unit
}

// New builds a Context with the standard library's protocol handlers
// and native free functions installed, ready for an embedder to layer
// its own registrations on top of.
func New() *Context {
	reg := protocol.NewRegistry()
	natives.RegisterProtocols(reg)
	return &Context{
		Protocols: reg,
		Natives:   natives.Functions(),
		units:     make(map[string]*unit.Unit),
	}
}

// RegisterNative installs or overrides a single native free function,
// reachable from any loaded unit's Call instructions whose hash misses
// that unit's own function table.
func (c *Context) RegisterNative(hash uint64, fn natives.NativeFunc) {
	c.Natives[hash] = fn
}

// RegisterType installs a protocol handler for a host-native type —
// the embedder-supplied analogue of what a unit's own RTTI table
// records for script-defined types.
func (c *Context) RegisterType(typeHash value.TypeHash, id protocol.ID, h protocol.Handler) {
	c.Protocols.RegisterDefault(typeHash, id, h)
}

// Load installs u so its exported functions are reachable by hash from
// a HaltVMCall issued while running any other unit sharing this
// Context — the multi-unit case package exec's default resolver
// (confined to a single unit) cannot handle on its own.
func (c *Context) Load(u *unit.Unit) {
	c.units[u.Name] = u
}

// Resolve implements exec.Resolver over every unit this Context has
// Load-ed. Units are installed at program-load time, not per call, so
// a linear scan over the (small) loaded set costs nothing an
// interpreter loop would notice.
func (c *Context) Resolve(hash uint64) (u *unit.Unit, ip int, kind unit.CallKind, argCount uint32, ok bool) {
	for _, candidate := range c.units {
		if entry, found := candidate.Function(hash); found && entry.Kind == unit.FuncOffset {
			return candidate, entry.IP, entry.CallKind, entry.ArgCount, true
		}
	}
	return nil, 0, 0, 0, false
}

// NewDriver loads u (if not already loaded) and starts a Driver at its
// entry point, sharing this Context's protocol registry and native
// table and resolving HaltVMCall against every unit this Context has
// seen.
func (c *Context) NewDriver(u *unit.Unit, budget *membudget.Budget, args []value.Value) *exec.Driver {
	c.Load(u)
	return exec.New(u, c.Protocols, c.Natives, budget, u.EntryPoint(), args, c)
}
