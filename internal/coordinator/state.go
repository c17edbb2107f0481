package coordinator

import (
	"fmt"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// State is a handle's position in the resource lifecycle.
type State int

const (
	// StateIdle holds no decoder resources.
	StateIdle State = iota
	// StateWarm has resources pre-attached and the first segment loading,
	// but is not playing. At most one handle is Warm.
	StateWarm
	// StatePaused keeps its attached resources but holds no slot, so
	// resuming is cheap.
	StatePaused
	// StateActive is the single handle permitted to play.
	StateActive
)

// String returns the lowercase state name used in journal rows and traces.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarm:
		return "warm"
	case StatePaused:
		return "paused"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState is the inverse of State.String, used by journal replay.
func ParseState(s string) (State, error) {
	switch s {
	case "idle":
		return StateIdle, nil
	case "warm":
		return StateWarm, nil
	case "paused":
		return StatePaused, nil
	case "active":
		return StateActive, nil
	default:
		return StateIdle, fmt.Errorf("unknown state %q", s)
	}
}

// EventKind distinguishes coordinator events.
type EventKind int

const (
	EventRegister EventKind = iota + 1
	EventUnregister
	EventActivate
	EventWarm
	EventPause
	EventIdle
	EventGraceElapsed
	EventClear
)

// String returns the snake_case event name used in journal rows and traces.
func (k EventKind) String() string {
	switch k {
	case EventRegister:
		return "register"
	case EventUnregister:
		return "unregister"
	case EventActivate:
		return "activate"
	case EventWarm:
		return "warm"
	case EventPause:
		return "pause"
	case EventIdle:
		return "idle"
	case EventGraceElapsed:
		return "grace_elapsed"
	case EventClear:
		return "clear"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// ParseEventKind is the inverse of EventKind.String, used by journal replay.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range []EventKind{
		EventRegister, EventUnregister, EventActivate, EventWarm,
		EventPause, EventIdle, EventGraceElapsed, EventClear,
	} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event %q", s)
}

// Event is one input to the transition function.
type Event struct {
	Kind EventKind

	// Item names the subject handle. Empty for EventClear, and for
	// EventActivate/EventWarm meaning "clear the slot".
	Item feed.ItemID

	// FastScroll is sampled by the shell before an EventWarm is applied.
	// Warming is refused while the user is flinging through the feed.
	FastScroll bool
}

// EffectOp names a side effect the shell must execute.
type EffectOp int

const (
	// EffectPlay invokes the handle's play capability.
	EffectPlay EffectOp = iota + 1
	// EffectPause invokes the handle's pause capability.
	EffectPause
	// EffectSetPaused tells the handle to show its paused presentation
	// while keeping the source attached.
	EffectSetPaused
	// EffectWarmUp attaches media and begins loading the first segment.
	EffectWarmUp
	// EffectRelease detaches the source and frees the decoder.
	EffectRelease
	// EffectStartGrace schedules the deferred-teardown timer.
	EffectStartGrace
	// EffectCancelGrace cancels a pending deferred-teardown timer.
	EffectCancelGrace
)

// String returns the effect op name.
func (op EffectOp) String() string {
	switch op {
	case EffectPlay:
		return "play"
	case EffectPause:
		return "pause"
	case EffectSetPaused:
		return "set_paused"
	case EffectWarmUp:
		return "warm_up"
	case EffectRelease:
		return "release"
	case EffectStartGrace:
		return "start_grace"
	case EffectCancelGrace:
		return "cancel_grace"
	default:
		return fmt.Sprintf("effect(%d)", int(op))
	}
}

// Effect is one side effect produced by a transition.
type Effect struct {
	Op   EffectOp
	Item feed.ItemID
}

// String renders the effect as "op(item)", the journal/trace form.
func (e Effect) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.Item)
}

// Model is the coordinator's complete bookkeeping state. Transition treats
// it as a value: the input model is never mutated.
type Model struct {
	// States maps every registered handle to its lifecycle state.
	States map[feed.ItemID]State

	// Active is the handle holding the play slot, or "".
	Active feed.ItemID

	// Warm is the handle holding the warm slot, or "".
	Warm feed.ItemID

	// Graced marks handles with a pending deferred teardown. Cleared by
	// promotion; checked by the grace-expiry event as a second line of
	// defense against timer cancellation races.
	Graced map[feed.ItemID]bool
}

// NewModel returns an empty model.
func NewModel() Model {
	return Model{
		States: make(map[feed.ItemID]State),
		Graced: make(map[feed.ItemID]bool),
	}
}

// clone returns a deep copy. Transition works on the copy so callers can
// hold the old model for comparison.
func (m Model) clone() Model {
	next := Model{
		States: make(map[feed.ItemID]State, len(m.States)),
		Active: m.Active,
		Warm:   m.Warm,
		Graced: make(map[feed.ItemID]bool, len(m.Graced)),
	}
	for id, s := range m.States {
		next.States[id] = s
	}
	for id := range m.Graced {
		next.Graced[id] = true
	}
	return next
}

// Registered reports whether the handle is known to the model.
func (m Model) Registered(id feed.ItemID) bool {
	_, ok := m.States[id]
	return ok
}

// StateOf returns the handle's state, defaulting to Idle for unknown ids.
func (m Model) StateOf(id feed.ItemID) State {
	return m.States[id]
}

// CheckInvariants verifies the single-active and single-warm guarantees plus
// slot/state agreement. Used by tests and journal replay after every step.
func (m Model) CheckInvariants() error {
	var actives, warms []feed.ItemID
	for id, s := range m.States {
		switch s {
		case StateActive:
			actives = append(actives, id)
		case StateWarm:
			warms = append(warms, id)
		}
	}
	if len(actives) > 1 {
		return fmt.Errorf("invariant violated: %d handles active: %v", len(actives), actives)
	}
	if len(warms) > 1 {
		return fmt.Errorf("invariant violated: %d handles warm: %v", len(warms), warms)
	}
	if len(actives) == 1 && m.Active != actives[0] {
		return fmt.Errorf("invariant violated: active slot %q disagrees with state of %q", m.Active, actives[0])
	}
	if len(actives) == 0 && m.Active != "" {
		return fmt.Errorf("invariant violated: active slot %q has no active handle", m.Active)
	}
	if len(warms) == 1 && m.Warm != warms[0] {
		return fmt.Errorf("invariant violated: warm slot %q disagrees with state of %q", m.Warm, warms[0])
	}
	if len(warms) == 0 && m.Warm != "" {
		return fmt.Errorf("invariant violated: warm slot %q has no warm handle", m.Warm)
	}
	return nil
}
