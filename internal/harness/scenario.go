package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imgaoyue/squealy/internal/resource"
)

// Scenario describes a database state and a series of requests with their
// expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Clock is the RFC 3339 instant date macros resolve against.
	// Empty selects the testutil default.
	Clock string `yaml:"clock,omitempty"`

	// RequestID is attached to every request context.
	RequestID string `yaml:"request_id,omitempty"`

	// Definitions lists YAML definition files. Relative paths are resolved
	// against the scenario file's directory.
	Definitions []string `yaml:"definitions,omitempty"`

	// Documents holds inline multi-document YAML definitions.
	Documents string `yaml:"documents,omitempty"`

	// Setup statements run against the scenario database before any request.
	Setup []string `yaml:"setup,omitempty"`

	// Requests run in order through the resource pipeline.
	Requests []RequestStep `yaml:"requests"`

	// Assertions validate the trace and the final database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RequestStep is one resource request.
type RequestStep struct {
	// Name labels the step in errors and the trace.
	Name string `yaml:"name,omitempty"`

	// Resource is the resource id.
	Resource string `yaml:"resource"`

	// Params are the raw request parameters, as a query string would carry
	// them after decoding.
	Params map[string]any `yaml:"params,omitempty"`

	// Identity is the decoded caller. Nil means anonymous.
	Identity map[string]any `yaml:"identity,omitempty"`

	// Expect is checked against the processed request. Nil expects "ok".
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// label returns the step name, falling back to its position and resource.
func (s RequestStep) label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("requests[%d] %s", i, s.Resource)
}

// ExpectClause specifies the expected result of a request.
type ExpectClause struct {
	// Outcome is one of the resource outcome names ("ok", "forbidden", ...).
	Outcome string `yaml:"outcome"`

	// Doc is matched against the formatted document. Mappings match as a
	// subset; lists must have the same length.
	Doc any `yaml:"doc,omitempty"`

	// Code is the expected parameter error code.
	Code string `yaml:"code,omitempty"`

	// Rule is the expected failing authorization rule id.
	Rule string `yaml:"rule,omitempty"`
}

// Assertion validates the trace or the final database state.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Resource is used by trace_contains and trace_count.
	Resource string `yaml:"resource,omitempty"`

	// Params is a subset matched by trace_contains.
	Params map[string]any `yaml:"params,omitempty"`

	// Outcome is used by outcome_count and optionally trace_contains.
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matching events.
	Count int `yaml:"count,omitempty"`

	// Table, Where and Expect are used by final_state.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertOutcomeCount  = "outcome_count"
	AssertFinalState    = "final_state"
)

var outcomes = map[string]bool{
	resource.OutcomeOK:             true,
	resource.OutcomeUnauthorized:   true,
	resource.OutcomeForbidden:      true,
	resource.OutcomeBadRequest:     true,
	resource.OutcomeNotFound:       true,
	resource.OutcomeExecutionError: true,
	resource.OutcomeConfigError:    true,
	resource.OutcomeError:          true,
}

// LoadScenario reads and parses a scenario file. Unknown fields are
// rejected. Definition paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario file, resolving
// relative definition paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, def := range scenario.Definitions {
		if !filepath.IsAbs(def) && basePath != "" {
			scenario.Definitions[i] = filepath.Join(basePath, def)
		}
	}
	for _, def := range scenario.Definitions {
		if _, err := os.Stat(def); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: definition file not found: %s", def)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
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

	if len(s.Definitions) == 0 && s.Documents == "" {
		return fmt.Errorf("definitions or documents are required")
	}

	if len(s.Requests) == 0 {
		return fmt.Errorf("requests list is required and must be non-empty")
	}

	if s.Clock != "" {
		if _, err := time.Parse(time.RFC3339, s.Clock); err != nil {
			return fmt.Errorf("clock: %w", err)
		}
	}

	for i, stmt := range s.Setup {
		if stmt == "" {
			return fmt.Errorf("setup[%d]: statement is empty", i)
		}
	}

	for i, step := range s.Requests {
		if step.Resource == "" {
			return fmt.Errorf("requests[%d]: resource is required", i)
		}
		if step.Expect == nil {
			continue
		}
		if step.Expect.Outcome == "" {
			step.Expect.Outcome = resource.OutcomeOK
		}
		if !outcomes[step.Expect.Outcome] {
			return fmt.Errorf("requests[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Resource == "" {
			return fmt.Errorf("assertions[%d]: resource is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Resource == "" {
			return fmt.Errorf("assertions[%d]: resource is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertOutcomeCount:
		if !outcomes[a.Outcome] {
			return fmt.Errorf("assertions[%d]: unknown outcome %q for outcome_count", index, a.Outcome)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
