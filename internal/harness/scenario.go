package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: a program to compile, the
// diagnostic codes the compile is expected to produce, and evaluation cases
// run against both the source and lowered graphs.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files use it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path to the CUE program document, relative to the
	// scenario file location.
	Program string `yaml:"program"`

	// Diagnostics lists the diagnostic codes the compile must produce.
	// An empty list means the program must compile clean.
	Diagnostics []string `yaml:"diagnostics,omitempty"`

	// Cases are concrete evaluations. Each runs on the source graph and,
	// when the function lowered, on the lowered graph; the two must agree.
	Cases []Case `yaml:"cases,omitempty"`
}

// Case is one concrete evaluation of one function.
type Case struct {
	Func string      `yaml:"func"`
	Args []ValueSpec `yaml:"args,omitempty"`

	// Want is the expected result tuple. Empty means only source/lowered
	// agreement is checked.
	Want []ValueSpec `yaml:"want,omitempty"`
}

// ValueSpec is the YAML form of a concrete value. Exactly one field is set.
type ValueSpec struct {
	Int   *int64      `yaml:"int,omitempty"`
	Bool  *bool       `yaml:"bool,omitempty"`
	Buf   []int64     `yaml:"buf,omitempty,flow"`
	Tuple []ValueSpec `yaml:"tuple,omitempty"`
}

// Value converts the spec into a runtime value.
func (s ValueSpec) Value() (Value, error) {
	set := 0
	if s.Int != nil {
		set++
	}
	if s.Bool != nil {
		set++
	}
	if s.Buf != nil {
		set++
	}
	if s.Tuple != nil {
		set++
	}
	if set != 1 {
		return Value{}, fmt.Errorf("value spec must set exactly one of int, bool, buf, tuple")
	}
	switch {
	case s.Int != nil:
		return IntVal(*s.Int), nil
	case s.Bool != nil:
		return BoolVal(*s.Bool), nil
	case s.Buf != nil:
		return BufVal(s.Buf...), nil
	default:
		elems := make([]Value, len(s.Tuple))
		for i, e := range s.Tuple {
			v, err := e.Value()
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return TupleVal(elems...), nil
	}
}

func specValues(specs []ValueSpec) ([]Value, error) {
	vals := make([]Value, len(specs))
	for i, s := range specs {
		v, err := s.Value()
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// LoadScenario reads and parses a scenario YAML file. The program path is
// resolved relative to the scenario file's directory. Returns an error if
// the file is malformed, contains unknown fields (typos), or is missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "case:" vs "cases:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); os.IsNotExist(err) {
		return fmt.Errorf("program file not found: %s", s.Program)
	}
	if len(s.Diagnostics) == 0 && len(s.Cases) == 0 {
		return fmt.Errorf("scenario must declare expected diagnostics or at least one case")
	}
	for i, c := range s.Cases {
		if c.Func == "" {
			return fmt.Errorf("cases[%d]: func is required", i)
		}
	}
	return nil
}
