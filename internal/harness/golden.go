package harness

import (
	"testing"

	"github.com/samber/lo"
	"github.com/sebdah/goldie/v2"

	"github.com/carrotlabs/feedgate/internal/canon"
	"github.com/carrotlabs/feedgate/internal/coordinator"
)

// snapshot renders a result as a canonical-JSON-ready map. Wall times are
// excluded: the fake clock makes them reproducible in principle, but a
// golden trace should stay stable when a scenario gains an extra advance
// step that does not change behavior.
func snapshot(result *Result) map[string]any {
	trace := lo.Map(result.Records, func(rec coordinator.TransitionRecord, _ int) any {
		row := map[string]any{
			"seq":   int64(rec.Seq),
			"event": rec.Event,
			"item":  string(rec.Item),
			"from":  rec.From,
			"to":    rec.To,
			"effects": lo.Map(rec.Effects, func(e string, _ int) any {
				return e
			}),
		}
		if rec.FastScroll {
			row["fast_scroll"] = true
		}
		return row
	})

	return map[string]any{
		"scenario_name": result.Scenario.Name,
		"session":       result.Session,
		"trace":         trace,
	}
}

// Snapshot renders a result's trace as canonical JSON, the byte form used
// for golden comparison.
func Snapshot(result *Result) ([]byte, error) {
	return canon.Marshal(snapshot(result))
}

// RunWithGolden executes a scenario, checks its assertions, and compares the
// canonical trace snapshot against testdata/{scenario.Name}.golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s failed: %v", scenario.Name, err)
	}
	for _, failure := range CheckAssertions(result, scenario.Assertions) {
		t.Errorf("scenario %s: %v", scenario.Name, failure)
	}

	data, err := Snapshot(result)
	if err != nil {
		t.Fatalf("scenario %s: snapshot: %v", scenario.Name, err)
	}

	g := goldie.New(t)
	g.Assert(t, scenario.Name, data)
}
