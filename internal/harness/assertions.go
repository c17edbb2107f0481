package harness

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/carrotlabs/feedgate/internal/coordinator"
	"github.com/carrotlabs/feedgate/internal/feed"
)

// CheckAssertions evaluates every assertion against the result and returns
// all failures (does not fail-fast).
func CheckAssertions(result *Result, assertions []Assertion) []error {
	var failures []error
	for i, a := range assertions {
		if err := checkAssertion(result, a); err != nil {
			failures = append(failures, fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err))
		}
	}
	return failures
}

func checkAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return checkTraceContains(result, a)
	case AssertTraceOrder:
		return checkTraceOrder(result, a)
	case AssertTraceCount:
		return checkTraceCount(result, a)
	case AssertFinalState:
		return checkFinalState(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// eventKey renders a record as the "event(item)" shorthand assertions use.
func eventKey(rec coordinator.TransitionRecord) string {
	return fmt.Sprintf("%s(%s)", rec.Event, rec.Item)
}

func traceKeys(result *Result) []string {
	return lo.Map(result.Records, func(rec coordinator.TransitionRecord, _ int) string {
		return eventKey(rec)
	})
}

func checkTraceContains(result *Result, a Assertion) error {
	if a.Event == "" {
		return fmt.Errorf("trace_contains needs an event")
	}
	if !lo.Contains(traceKeys(result), a.Event) {
		return fmt.Errorf("trace does not contain %s; trace: %s",
			a.Event, strings.Join(traceKeys(result), " "))
	}
	return nil
}

// checkTraceOrder verifies the events appear as a subsequence of the trace:
// other events may interleave, but the listed ones must occur in this
// relative order.
func checkTraceOrder(result *Result, a Assertion) error {
	if len(a.Events) == 0 {
		return fmt.Errorf("trace_order needs events")
	}
	keys := traceKeys(result)
	next := 0
	for _, key := range keys {
		if next < len(a.Events) && key == a.Events[next] {
			next++
		}
	}
	if next != len(a.Events) {
		return fmt.Errorf("missing %s in order; trace: %s",
			a.Events[next], strings.Join(keys, " "))
	}
	return nil
}

func checkTraceCount(result *Result, a Assertion) error {
	if a.Event == "" {
		return fmt.Errorf("trace_count needs an event")
	}
	got := lo.Count(traceKeys(result), a.Event)
	if got != a.Count {
		return fmt.Errorf("expected %s %d times, got %d", a.Event, a.Count, got)
	}
	return nil
}

func checkFinalState(result *Result, a Assertion) error {
	if a.Item == "" || a.State == "" {
		return fmt.Errorf("final_state needs item and state")
	}
	want, err := coordinator.ParseState(a.State)
	if err != nil {
		return err
	}
	id := feed.ItemID(a.Item)
	if !result.Final.Registered(id) {
		return fmt.Errorf("item %s not registered at end of scenario", a.Item)
	}
	if got := result.Final.StateOf(id); got != want {
		return fmt.Errorf("item %s ended %s, expected %s", a.Item, got, want)
	}
	return nil
}
