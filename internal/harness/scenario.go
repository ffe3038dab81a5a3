package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of coordinator inputs with assertions on
// the resulting trace and view.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Self is the local identity. Defaults to DefaultSelf.
	Self string `yaml:"self,omitempty"`

	// Epoch is the clock's start in Unix seconds. Defaults to DefaultEpoch.
	Epoch int64 `yaml:"epoch,omitempty"`

	// Dedup enables exact-duplicate suppression on push.
	Dedup bool `yaml:"dedup,omitempty"`

	// MatchWindow overrides the optimistic match window, e.g. "10s".
	MatchWindow string `yaml:"match_window,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and view.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one coordinator input. Exactly one of the input fields is set.
type Step struct {
	Push       map[string]any `yaml:"push,omitempty"`
	Raw        string         `yaml:"raw,omitempty"`
	Snapshot   map[string]any `yaml:"snapshot,omitempty"`
	FetchError string         `yaml:"fetch_error,omitempty"`
	Status     *StatusStep    `yaml:"status,omitempty"`
	Action     *ActionStep    `yaml:"action,omitempty"`
	Advance    string         `yaml:"advance,omitempty"`
	FailSends  *string        `yaml:"fail_sends,omitempty"`

	// Expect checks the step's outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// StatusStep is a connectivity change.
type StatusStep struct {
	Connected bool   `yaml:"connected"`
	Error     string `yaml:"error,omitempty"`
}

// ActionStep is a local user action.
type ActionStep struct {
	Kind    string   `yaml:"kind"`
	Target  string   `yaml:"target,omitempty"`
	Content string   `yaml:"content,omitempty"`
	Name    string   `yaml:"name,omitempty"`
	Members []string `yaml:"members,omitempty"`
}

// ExpectClause specifies a step's expected outcome.
type ExpectClause struct {
	// Error is a substring the step's error must contain. Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`

	// TempID is the provisional id an action must return.
	TempID string `yaml:"temp_id,omitempty"`

	// Created is whether a select action must report creating a
	// conversation.
	Created *bool `yaml:"created,omitempty"`
}

// Assertion validates the trace, the outbound commands, or the final view.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Tag is the event or command tag (trace_*, sent_*).
	Tag string `yaml:"tag,omitempty"`

	// Args are the expected payload fields (trace_contains, sent_contains).
	// Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Tags is the expected tag order (trace_order).
	Tags []string `yaml:"tags,omitempty"`

	// Table is the view table (final_state, state_count).
	Table string `yaml:"table,omitempty"`

	// Where filters rows; all fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertSentContains  = "sent_contains"
	AssertSentCount     = "sent_count"
	AssertFinalState    = "final_state"
	AssertStateCount    = "state_count"
	AssertReplayMatches = "replay_matches"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
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

// validateScenario checks that required fields are present and valid.
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
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.MatchWindow != "" {
		if _, err := time.ParseDuration(s.MatchWindow); err != nil {
			return fmt.Errorf("match_window: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks that exactly one input is set.
func validateStep(index int, st *Step) error {
	inputs := 0
	for _, set := range []bool{
		st.Push != nil,
		st.Raw != "",
		st.Snapshot != nil,
		st.FetchError != "",
		st.Status != nil,
		st.Action != nil,
		st.Advance != "",
		st.FailSends != nil,
	} {
		if set {
			inputs++
		}
	}
	if inputs != 1 {
		return fmt.Errorf("steps[%d]: exactly one input is required, got %d", index, inputs)
	}

	if st.Push != nil && len(st.Push) != 1 {
		return fmt.Errorf("steps[%d]: push must have exactly one tag, got %d", index, len(st.Push))
	}
	if st.Action != nil && st.Action.Kind == "" {
		return fmt.Errorf("steps[%d]: action kind is required", index)
	}
	if st.Advance != "" {
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d]: advance must not be negative", index)
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
	case AssertTraceContains, AssertSentContains, AssertTraceCount, AssertSentCount:
		if a.Tag == "" {
			return fmt.Errorf("assertions[%d]: tag is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Tags) == 0 {
			return fmt.Errorf("assertions[%d]: tags list is required for trace_order", index)
		}
	case AssertFinalState:
		if err := validateTable(index, a.Table); err != nil {
			return err
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertStateCount:
		if err := validateTable(index, a.Table); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for state_count", index)
		}
	case AssertReplayMatches:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateTable(index int, table string) error {
	if table == "" {
		return fmt.Errorf("assertions[%d]: table is required", index)
	}
	if _, ok := tables[table]; !ok {
		return fmt.Errorf("assertions[%d]: unknown table %q", index, table)
	}
	return nil
}
