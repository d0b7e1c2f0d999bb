package scenario

import (
	"fmt"

	weavecontext "github.com/weave-lang/weave/context"
	"github.com/weave-lang/weave/membudget"
	"github.com/weave-lang/weave/vmerr"
)

// Result is the outcome of running a single LoadedCase, mirroring
// conformance/runner.go's TestResult.
type Result struct {
	Case    LoadedCase
	Passed  bool
	Skipped bool
	Reason  string
	Err     error
}

// Run executes one case's program to completion and checks it against
// the case's Expectation.
func Run(lc LoadedCase) Result {
	if lc.Case.Skip != "" {
		return Result{Case: lc, Skipped: true, Reason: lc.Case.Skip}
	}

	build, ok := Programs[lc.Case.Program]
	if !ok {
		return Result{Case: lc, Err: fmt.Errorf("unknown program %q", lc.Case.Program)}
	}
	u, err := build()
	if err != nil {
		return Result{Case: lc, Err: fmt.Errorf("failed to assemble %q: %w", lc.Case.Program, err)}
	}

	limit := lc.Case.Budget
	if limit == 0 {
		limit = lc.Suite.Budget
	}

	budget := membudget.New()
	ctx := weavecontext.New()
	driver := ctx.NewDriver(u, budget, nil)

	var result interface{ String() string }
	run := func() error {
		v, err := driver.RunToCompletion()
		if err != nil {
			return err
		}
		result = v
		return nil
	}
	var runErr error
	if limit > 0 {
		runErr = budget.With(limit, run)
	} else {
		runErr = run()
	}

	return checkExpectation(lc, result, runErr)
}

// RunAll runs every loaded case and returns one Result per case, in
// the same order.
func RunAll(cases []LoadedCase) []Result {
	results := make([]Result, len(cases))
	for i, c := range cases {
		results[i] = Run(c)
	}
	return results
}

func checkExpectation(lc LoadedCase, result interface{ String() string }, runErr error) Result {
	expect := lc.Case.Expect

	if expect.Error != "" {
		if runErr == nil {
			return Result{Case: lc, Err: fmt.Errorf("expected error %q, got value %v", expect.Error, result)}
		}
		ve, ok := runErr.(*vmerr.Error)
		if !ok {
			return Result{Case: lc, Err: fmt.Errorf("expected error %q, got non-vm error: %v", expect.Error, runErr)}
		}
		if ve.Kind.String() != expect.Error {
			return Result{Case: lc, Err: fmt.Errorf("expected error %q, got %q: %v", expect.Error, ve.Kind.String(), ve)}
		}
		return Result{Case: lc, Passed: true}
	}

	if runErr != nil {
		return Result{Case: lc, Err: fmt.Errorf("unexpected error: %w", runErr)}
	}

	if expect.Value != "" {
		if result == nil {
			return Result{Case: lc, Err: fmt.Errorf("expected value %q, got nil", expect.Value)}
		}
		if result.String() != expect.Value {
			return Result{Case: lc, Err: fmt.Errorf("expected value %q, got %q", expect.Value, result.String())}
		}
		return Result{Case: lc, Passed: true}
	}

	return Result{Case: lc, Err: fmt.Errorf("case %q has no expectation", lc.Case.Name)}
}

// Stats summarizes a batch of Results.
type Stats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats tallies results the way conformance/runner.go does.
func ComputeStats(results []Result) Stats {
	stats := Stats{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Skipped:
			stats.Skipped++
		case r.Passed:
			stats.Passed++
		default:
			stats.Failed++
		}
	}
	return stats
}

func (s Stats) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)", s.Passed, s.Failed, s.Skipped, s.Total)
}
