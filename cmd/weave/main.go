// Command weave is the embedding demo for this module: since the
// front-end compiler is out of scope, it assembles a handful of named
// demo programs directly with unit.Builder, runs one through a
// context.Context-backed exec.Driver, and prints the result. Grounded
// on cmd/barn/main.go's flag-parsing and startup sequencing style.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/weave-lang/weave/context"
	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/trace"
	"github.com/weave-lang/weave/unit"
	"github.com/weave-lang/weave/value"
)

func main() {
	program := flag.String("program", "add", fmt.Sprintf("Demo program to run (%s)", strings.Join(programNames(), ", ")))
	traceEnabled := flag.Bool("trace", false, "Enable execution tracing")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (glob, e.g., 'demo*')")
	budgetBytes := flag.Int64("budget", 0, "Memory budget in bytes (0 = unlimited)")

	flag.Parse()

	if *traceEnabled {
		var filters []string
		if *traceFilter != "" {
			for _, f := range strings.Split(*traceFilter, ",") {
				filters = append(filters, strings.TrimSpace(f))
			}
		}
		trace.Init(true, filters, os.Stderr)
	} else {
		trace.Init(false, nil, nil)
	}

	build, ok := demoPrograms[*program]
	if !ok {
		log.Fatalf("unknown -program %q (available: %s)", *program, strings.Join(programNames(), ", "))
	}

	u, err := build()
	if err != nil {
		log.Fatalf("failed to assemble %q: %v", *program, err)
	}

	budget := membudget.New()
	ctx := context.New()
	driver := ctx.NewDriver(u, budget, nil)

	var result value.Value
	runErr := error(nil)
	if *budgetBytes > 0 {
		runErr = budget.With(*budgetBytes, func() error {
			var err error
			result, err = driver.RunToCompletion()
			return err
		})
	} else {
		result, runErr = driver.RunToCompletion()
	}
	if runErr != nil {
		log.Fatalf("%q failed: %v", *program, runErr)
	}
	fmt.Printf("%s => %s\n", *program, result.String())
}

// demoPrograms maps -program names to builders, each assembling a
// tiny standalone unit that needs no arguments and returns one value.
var demoPrograms = map[string]func() (*unit.Unit, error){
	"add":      buildAddDemo,
	"call":     buildCallDemo,
	"option":   buildOptionDemo,
	"struct":   buildStructDemo,
	"overflow": buildOverflowDemo,
}

func programNames() []string {
	names := make([]string, 0, len(demoPrograms))
	for name := range demoPrograms {
		names = append(names, name)
	}
	return names
}

func a(i int32) unit.Addr { return unit.Addr(i) }

// buildAddDemo: 2 + 3.
func buildAddDemo() (*unit.Unit, error) {
	b := unit.NewBuilder("demo-add", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 2})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 3})
	b.Emit(unit.Instruction{Op: unit.OpAdd, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}

// buildCallDemo: calls a `double` function defined in the same unit.
func buildCallDemo() (*unit.Unit, error) {
	b := unit.NewBuilder("demo-call", unit.EncodingFlat)
	fnHash := uint64(0xD0BB1E)

	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 21})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpCall, Hash: fnHash, ArgCount: 1, Out: a(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(1)})

	entryDouble := b.Here()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 2})
	b.Emit(unit.Instruction{Op: unit.OpMul, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})

	b.DefineOffsetFunction(fnHash, entryDouble, unit.CallImmediate, 1)
	return b.Build()
}

// buildOptionDemo: Some(7).
func buildOptionDemo() (*unit.Unit, error) {
	b := unit.NewBuilder("demo-option", unit.EncodingFlat)
	b.DefineStandardEnums()
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 7})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpOptionSome, ArgCount: 1, Out: a(1)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(1)})
	return b.Build()
}

// buildStructDemo: constructs a Point{x: 1, y: 2} tuple struct and
// returns its first field.
func buildStructDemo() (*unit.Unit, error) {
	b := unit.NewBuilder("demo-struct", unit.EncodingFlat)
	pointHash := value.HashPath("Point")
	b.DefineTupleStruct(pointHash, "Point", 2)

	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 1})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(0), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 2})
	b.Emit(unit.Instruction{Op: unit.OpCopy, A: a(1), Out: unit.Top})
	b.Emit(unit.Instruction{Op: unit.OpTupleStruct, Hash: uint64(pointHash), ArgCount: 2, Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpTupleIndexGet, A: a(2), Imm: 0, Out: a(3)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(3)})
	return b.Build()
}

// buildOverflowDemo: deliberately overflows an Int add, demonstrating
// the recoverable-error halt path end to end.
func buildOverflowDemo() (*unit.Unit, error) {
	b := unit.NewBuilder("demo-overflow", unit.EncodingFlat)
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(0), Imm: 9223372036854775807})
	b.Emit(unit.Instruction{Op: unit.OpLoadInt, Out: a(1), Imm: 1})
	b.Emit(unit.Instruction{Op: unit.OpAdd, A: a(0), B: a(1), Out: a(2)})
	b.Emit(unit.Instruction{Op: unit.OpReturn, A: a(2)})
	return b.Build()
}
