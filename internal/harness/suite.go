package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedSuiteFile is returned for suite files that are neither YAML
// nor CUE.
var ErrUnsupportedSuiteFile = errors.New("unsupported suite file extension")

// LoadSuite reads a suite definition from a .yaml, .yml or .cue file.
//
// Relative circuit and reference paths resolve against the suite file's
// directory. Unknown YAML fields are rejected so typos surface early.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite *Suite
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		suite, err = parseYAMLSuite(data)
	case ".cue":
		suite, err = parseCUESuite(path, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSuiteFile, ext)
	}
	if err != nil {
		return nil, err
	}

	if err := validateSuite(suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	suite.BaseDir = filepath.Dir(path)
	return suite, nil
}

func parseYAMLSuite(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &suite, nil
}

// parseCUESuite evaluates a CUE file whose top level is a suite:
//
//	name: "alu"
//	tests: [{description: "ALU add", circuit: "alu-add.circ", kind: "alu",
//	         expected: [[0, 0, 0, 0x7659035D]]}]
func parseCUESuite(path string, data []byte) (*Suite, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE suite is not concrete: %w", err)
	}

	var suite Suite
	if err := value.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to decode CUE suite: %w", err)
	}
	return &suite, nil
}

// validateSuite checks that required fields are present. Kinds are not
// checked here: an unknown kind fails its own test case at run time.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Tests) == 0 {
		return fmt.Errorf("tests list is required and must be non-empty")
	}

	for i, tc := range s.Tests {
		if tc.Description == "" {
			return fmt.Errorf("tests[%d]: description is required", i)
		}
		if tc.Circuit == "" {
			return fmt.Errorf("tests[%d]: circuit is required", i)
		}
		if tc.Kind == "" {
			return fmt.Errorf("tests[%d]: kind is required", i)
		}
		hasExpected := tc.Expected != nil
		hasReference := tc.Reference != ""
		if hasExpected == hasReference {
			return fmt.Errorf("tests[%d]: exactly one of expected or reference is required", i)
		}
	}
	return nil
}
