package scenario

import "testing"

func TestScenarios(t *testing.T) {
	cases, err := LoadDir("testdata")
	if err != nil {
		t.Fatalf("failed to load scenarios: %v", err)
	}
	if len(cases) == 0 {
		t.Fatal("no scenario cases loaded")
	}

	results := RunAll(cases)
	fileGroups := make(map[string][]Result)
	for _, r := range results {
		fileGroups[r.Case.File] = append(fileGroups[r.Case.File], r)
	}

	for file, group := range fileGroups {
		t.Run(file, func(t *testing.T) {
			for _, r := range group {
				r := r
				t.Run(r.Case.Case.Name, func(t *testing.T) {
					if r.Skipped {
						t.Skipf("skipped: %s", r.Reason)
						return
					}
					if !r.Passed {
						t.Fatalf("%v", r.Err)
					}
				})
			}
		})
	}

	stats := ComputeStats(results)
	t.Logf("scenarios: %s", stats)
	if stats.Failed > 0 {
		t.Errorf("%d scenario(s) failed", stats.Failed)
	}
}

func TestUnknownProgramReportsError(t *testing.T) {
	lc := LoadedCase{
		File: "inline",
		Case: Case{Name: "bogus", Program: "does-not-exist", Expect: Expectation{Value: "()"}},
	}
	r := Run(lc)
	if r.Passed || r.Err == nil {
		t.Fatalf("expected an error for an unknown program, got %+v", r)
	}
}
