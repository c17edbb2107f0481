package journal

import (
	"fmt"
	"slices"

	"github.com/carrotlabs/feedgate/internal/coordinator"
)

// ReplayResult summarizes a verified session.
type ReplayResult struct {
	Session string
	Steps   int
	Final   coordinator.Model
}

// DivergenceError reports the first point where a recorded session stops
// matching what the transition function produces from the same inputs.
//
// A divergence means the journal was written by a different transition table
// (version skew) or the rows were tampered with; either way the log can no
// longer be trusted as an account of what the coordinator did.
type DivergenceError struct {
	Session string
	Seq     uint64
	Reason  string
}

// Error implements the error interface.
func (e *DivergenceError) Error() string {
	return fmt.Sprintf("replay divergence at %s/%d: %s", e.Session, e.Seq, e.Reason)
}

// Replay re-derives a session's state by feeding every recorded event back
// through the transition function, verifying at each step that:
//   - seq numbers are dense from 1 (no dropped or duplicated rows)
//   - the recomputed effects match the recorded effects exactly
//   - the recorded to_state matches the recomputed model
//   - the model invariants hold
func (j *Journal) Replay(session string) (*ReplayResult, error) {
	records, err := j.Transitions(session)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("journal: session %s not found", session)
	}

	model := coordinator.NewModel()
	for i, rec := range records {
		if rec.Seq != uint64(i+1) {
			return nil, &DivergenceError{
				Session: session,
				Seq:     rec.Seq,
				Reason:  fmt.Sprintf("expected seq %d, got %d", i+1, rec.Seq),
			}
		}

		kind, err := coordinator.ParseEventKind(rec.Event)
		if err != nil {
			return nil, &DivergenceError{Session: session, Seq: rec.Seq, Reason: err.Error()}
		}
		ev := coordinator.Event{Kind: kind, Item: rec.Item, FastScroll: rec.FastScroll}

		next, effects := coordinator.Transition(model, ev)

		names := make([]string, len(effects))
		for n, eff := range effects {
			names[n] = eff.String()
		}
		if !slices.Equal(names, rec.Effects) {
			return nil, &DivergenceError{
				Session: session,
				Seq:     rec.Seq,
				Reason:  fmt.Sprintf("effects mismatch: recorded %v, recomputed %v", rec.Effects, names),
			}
		}

		if rec.Item != "" && next.Registered(rec.Item) {
			if got := next.StateOf(rec.Item).String(); got != rec.To {
				return nil, &DivergenceError{
					Session: session,
					Seq:     rec.Seq,
					Reason:  fmt.Sprintf("to_state mismatch: recorded %q, recomputed %q", rec.To, got),
				}
			}
		}

		if err := next.CheckInvariants(); err != nil {
			return nil, &DivergenceError{Session: session, Seq: rec.Seq, Reason: err.Error()}
		}
		model = next
	}

	return &ReplayResult{
		Session: session,
		Steps:   len(records),
		Final:   model,
	}, nil
}
