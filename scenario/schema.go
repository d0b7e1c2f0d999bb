// Package scenario implements an end-to-end test harness driven by
// YAML files, grounded on conformance/schema.go and conformance/loader.go:
// since there is no front-end compiler here, a "program" name stands in
// for the source-code snippet those files parsed, naming one of the
// hand-assembled programs in the package registry instead.
package scenario

// Suite is one YAML file: a named group of Cases sharing a Budget
// default, mirroring conformance's TestSuite (minus Setup/Teardown,
// which had no bytecode-level equivalent worth inventing).
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Budget      int64  `yaml:"budget,omitempty"`
	Cases       []Case `yaml:"cases"`
}

// Case is a single scenario: run the named Program and check the
// result against Expect.
type Case struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        string      `yaml:"skip,omitempty"`
	Program     string      `yaml:"program"`
	Budget      int64       `yaml:"budget,omitempty"`
	Expect      Expectation `yaml:"expect"`
}

// Expectation names exactly one of a successful result's rendered
// string (Value, checked against value.Value.String()) or a halted
// error's kind name (Error, checked against vmerr.Kind.String() —
// "allocation" included, since budget refusals surface as
// vmerr.KindAllocation too).
type Expectation struct {
	Value string `yaml:"value,omitempty"`
	Error string `yaml:"error,omitempty"`
}
