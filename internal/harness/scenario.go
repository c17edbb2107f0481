package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a feed, a scripted sequence
// of UI events, and assertions on the resulting transition trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Feed is inline CUE source declaring the feed. Optional; steps can
	// also register handles directly without a feed.
	Feed string `yaml:"feed,omitempty"`

	// Session is an optional fixed session token for deterministic golden
	// comparison. Defaults to "test-session".
	Session string `yaml:"session,omitempty"`

	// FailPlay lists item ids whose handles refuse to play, for exercising
	// the demotion path.
	FailPlay []string `yaml:"fail_play,omitempty"`

	// Steps is the scripted event sequence.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scripted input. Exactly one action field should be set; Op
// selects which.
type Step struct {
	// Op names the action:
	//   register, unregister, activate, warm, pause, idle, clear,
	//   visible, advance, set_viewport, wheel, scroll
	Op string `yaml:"op"`

	// Item is the subject id for handle-directed ops.
	Item string `yaml:"item,omitempty"`

	// Ratio is the visibility ratio for "visible".
	Ratio float64 `yaml:"ratio,omitempty"`

	// Ms is the duration for "advance", in milliseconds.
	Ms int64 `yaml:"ms,omitempty"`

	// Index is the viewport index for "set_viewport".
	Index int `yaml:"index,omitempty"`

	// DeltaY is the pixel delta for "wheel" and the scroll offset for
	// "scroll".
	DeltaY float64 `yaml:"delta_y,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "trace_contains": event appears in the trace
	//   - "trace_order": events appear in this relative order
	//   - "trace_count": event appears exactly N times
	//   - "final_state": item ends in the given state
	Type string `yaml:"type"`

	// Event is "event(item)" shorthand, e.g. "activate(p1)".
	// Used by trace_contains and trace_count.
	Event string `yaml:"event,omitempty"`

	// Events is the expected relative order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Item and State describe the expected final state (used by
	// final_state).
	Item  string `yaml:"item,omitempty"`
	State string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Step op constants.
const (
	OpRegister    = "register"
	OpUnregister  = "unregister"
	OpActivate    = "activate"
	OpWarm        = "warm"
	OpPause       = "pause"
	OpIdle        = "idle"
	OpClear       = "clear"
	OpVisible     = "visible"
	OpAdvance     = "advance"
	OpSetViewport = "set_viewport"
	OpWheel       = "wheel"
	OpScroll      = "scroll"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo like "assertion:" fails loudly instead of silently
// skipping checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML held in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("harness: parse scenario: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("harness: invalid scenario: %w", err)
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

	validOps := map[string]bool{
		OpRegister: true, OpUnregister: true, OpActivate: true,
		OpWarm: true, OpPause: true, OpIdle: true, OpClear: true,
		OpVisible: true, OpAdvance: true, OpSetViewport: true,
		OpWheel: true, OpScroll: true,
	}
	for i, step := range s.Steps {
		if !validOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	validAsserts := map[string]bool{
		AssertTraceContains: true, AssertTraceOrder: true,
		AssertTraceCount: true, AssertFinalState: true,
	}
	for i, a := range s.Assertions {
		if !validAsserts[a.Type] {
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}
