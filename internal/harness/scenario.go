package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a linear script of store operations and queries.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are executed in order against a fresh store.
	Steps []Step `yaml:"steps"`
}

// Step is a single store operation or query.
type Step struct {
	// Op is one of: create, supersede, retire, current, asof, history,
	// verify.
	Op string `yaml:"op"`

	// Subject is the subject ID. Required for every op except verify.
	Subject string `yaml:"subject,omitempty"`

	// Kind is the payload kind (create only).
	Kind string `yaml:"kind,omitempty"`

	// Payload is the payload JSON text (create and supersede).
	Payload string `yaml:"payload,omitempty"`

	// At is the effective timestamp in RFC3339 (mutations and asof).
	At string `yaml:"at,omitempty"`

	// ExpectError names the error code this step must fail with.
	// Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Op name constants.
const (
	OpCreate    = "create"
	OpSupersede = "supersede"
	OpRetire    = "retire"
	OpCurrent   = "current"
	OpAsOf      = "asof"
	OpHistory   = "history"
	OpVerify    = "verify"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos in scenario files fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpCreate:
		if s.Kind == "" {
			return fmt.Errorf("steps[%d]: kind is required for create", index)
		}
		if s.Payload == "" {
			return fmt.Errorf("steps[%d]: payload is required for create", index)
		}
	case OpSupersede:
		if s.Payload == "" {
			return fmt.Errorf("steps[%d]: payload is required for supersede", index)
		}
	case OpRetire:
	case OpCurrent, OpHistory:
	case OpAsOf:
		if s.At == "" {
			return fmt.Errorf("steps[%d]: at is required for asof", index)
		}
	case OpVerify:
		return nil // verify takes no subject
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	if s.Subject == "" {
		return fmt.Errorf("steps[%d]: subject is required for %s", index, s.Op)
	}
	switch s.Op {
	case OpCreate, OpSupersede, OpRetire:
		if s.At == "" {
			return fmt.Errorf("steps[%d]: at is required for %s", index, s.Op)
		}
	}
	if s.At != "" {
		if _, err := time.Parse(time.RFC3339, s.At); err != nil {
			return fmt.Errorf("steps[%d]: invalid at %q: %v", index, s.At, err)
		}
	}
	return nil
}
