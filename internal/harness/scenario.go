package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/advect/internal/channel"
	"github.com/roach88/advect/internal/config"
	"github.com/roach88/advect/internal/ir"
)

// DefaultMaxRounds bounds lock-step scenarios that set no max_rounds.
const DefaultMaxRounds = 10_000

// Scenario defines a conformance test scenario: one run configuration and
// assertions on its message trace and results.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the run configuration.
	Config config.Config `yaml:"config"`

	// Faults injects duplicated and reordered messages.
	Faults *FaultSpec `yaml:"faults,omitempty"`

	// MaxRounds bounds the lock-step scheduler. Zero selects DefaultMaxRounds.
	MaxRounds int `yaml:"max_rounds,omitempty"`

	// Golden compares the message trace against testdata/golden/<name>.golden.
	// Only meaningful without faults.
	Golden bool `yaml:"golden,omitempty"`

	// RunID fixes the run id. Empty selects "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the trace and results.
	Assertions []Assertion `yaml:"assertions"`
}

// FaultSpec mirrors channel.Faults in scenario files.
type FaultSpec struct {
	Seed      uint64  `yaml:"seed"`
	Duplicate float64 `yaml:"duplicate"`
	Reorder   bool    `yaml:"reorder"`
}

func (f *FaultSpec) faults() channel.Faults {
	return channel.Faults{Seed: f.Seed, Duplicate: f.Duplicate, Reorder: f.Reorder}
}

// Assertion validates the trace or the results.
// Nil selectors match everything.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Rank selects one rank (terminated_count, done_count,
	// served_after_local_done).
	Rank *int `yaml:"rank,omitempty"`

	// Reason selects a termination reason (terminated_count).
	Reason string `yaml:"reason,omitempty"`

	// Kind, From, To and Domain select messages (message_count).
	Kind   string `yaml:"kind,omitempty"`
	From   *int   `yaml:"from,omitempty"`
	To     *int   `yaml:"to,omitempty"`
	Domain *int   `yaml:"domain,omitempty"`

	// Count is the expected number. Required by every counting type.
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTerminatedCount      = "terminated_count"
	AssertMessageCount         = "message_count"
	AssertDoneCount            = "done_count"
	AssertServedAfterLocalDone = "served_after_local_done"
	AssertGlobalDone           = "global_done"
	AssertConservation         = "conservation"
)

var countingAssertions = map[string]bool{
	AssertTerminatedCount:      true,
	AssertMessageCount:         true,
	AssertDoneCount:            true,
	AssertServedAfterLocalDone: true,
	AssertGlobalDone:           false,
	AssertConservation:         false,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Config.ApplyDefaults()

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
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must not be negative")
	}
	if s.Golden && s.Faults != nil {
		return fmt.Errorf("golden traces require a fault-free run")
	}
	if s.Faults != nil && (s.Faults.Duplicate < 0 || s.Faults.Duplicate > 1) {
		return fmt.Errorf("faults.duplicate must be in [0,1]")
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i, a := range s.Assertions {
		counting, known := countingAssertions[a.Type]
		if !known {
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
		if counting && a.Count == nil {
			return fmt.Errorf("assertions[%d]: %s requires count", i, a.Type)
		}
		if a.Type == AssertMessageCount {
			if _, err := ir.ParseKind(a.Kind); err != nil {
				return fmt.Errorf("assertions[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func (s *Scenario) maxRounds() int {
	if s.MaxRounds == 0 {
		return DefaultMaxRounds
	}
	return s.MaxRounds
}
