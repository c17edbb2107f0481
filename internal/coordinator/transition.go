package coordinator

import (
	"sort"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// Transition is the coordinator's decision core: a pure function from
// (model, event) to (model, effects).
//
// The input model is never mutated; the returned model is a fresh value.
// Effects come back in execution order and the shell runs them in that
// order. Determinism matters here the same way it does in any replayable
// event log: the same model and event always produce the same effects, and
// bulk operations touch handles in sorted id order.
//
// Transitions per handle:
//
//	Idle --warm--> Warm --activate--> Active
//	Idle --activate--> Active
//	Warm --idle(timer)--> Idle            (after grace, unless re-promoted)
//	Warm --pause--> Paused
//	Active --(other activate)--> Paused   (demoted in place, not released)
//	Active --pause--> Paused
//	Paused --activate--> Active
//	Paused --warm--> Warm
//	Paused --idle(timer)--> Idle
func Transition(m Model, ev Event) (Model, []Effect) {
	next := m.clone()

	switch ev.Kind {
	case EventRegister:
		return transitionRegister(next, ev.Item)
	case EventUnregister:
		return transitionUnregister(next, ev.Item)
	case EventActivate:
		return transitionActivate(next, ev.Item)
	case EventWarm:
		return transitionWarm(next, ev.Item, ev.FastScroll)
	case EventPause:
		return transitionPause(next, ev.Item)
	case EventIdle:
		return transitionIdle(next, ev.Item)
	case EventGraceElapsed:
		return transitionGraceElapsed(next, ev.Item)
	case EventClear:
		return transitionClear(next)
	default:
		return next, nil
	}
}

// transitionRegister adds a handle in Idle. Re-registering an id resets it:
// the caller owns the handle lifecycle and a replacement means the old
// binding is gone.
func transitionRegister(m Model, id feed.ItemID) (Model, []Effect) {
	if id == "" {
		return m, nil
	}
	var effects []Effect
	if m.Graced[id] {
		effects = append(effects, Effect{Op: EffectCancelGrace, Item: id})
		delete(m.Graced, id)
	}
	if m.Active == id {
		m.Active = ""
	}
	if m.Warm == id {
		m.Warm = ""
	}
	m.States[id] = StateIdle
	return m, effects
}

// transitionUnregister drops every trace of the handle. No release call is
// made: the component that owned the handle is tearing down its own element.
func transitionUnregister(m Model, id feed.ItemID) (Model, []Effect) {
	if !m.Registered(id) {
		return m, nil
	}
	var effects []Effect
	if m.Graced[id] {
		effects = append(effects, Effect{Op: EffectCancelGrace, Item: id})
		delete(m.Graced, id)
	}
	delete(m.States, id)
	if m.Active == id {
		m.Active = ""
	}
	if m.Warm == id {
		m.Warm = ""
	}
	return m, effects
}

// transitionActivate gives the play slot to id.
//
// The previous holder is paused in place, keeping its attachment - releasing
// it would cause a visible rebuffer if the user scrolls straight back. If id
// held the warm slot, the slot is simply cleared: the resources are already
// attached, so promotion is not a teardown-and-reattach.
//
// An empty id demotes the current holder and leaves the slot empty.
func transitionActivate(m Model, id feed.ItemID) (Model, []Effect) {
	var effects []Effect

	if id == "" {
		if m.Active != "" {
			prev := m.Active
			effects = append(effects,
				Effect{Op: EffectPause, Item: prev},
				Effect{Op: EffectSetPaused, Item: prev},
			)
			m.States[prev] = StatePaused
			m.Active = ""
		}
		return m, effects
	}

	if !m.Registered(id) {
		return m, nil
	}

	if m.Graced[id] {
		effects = append(effects, Effect{Op: EffectCancelGrace, Item: id})
		delete(m.Graced, id)
	}

	if m.Active == id {
		// Already playing; do not re-invoke play.
		return m, effects
	}

	if m.Active != "" {
		prev := m.Active
		effects = append(effects,
			Effect{Op: EffectPause, Item: prev},
			Effect{Op: EffectSetPaused, Item: prev},
		)
		m.States[prev] = StatePaused
	}

	if m.Warm == id {
		// Warm-to-active promotion: resources stay attached, no release.
		m.Warm = ""
	}

	m.States[id] = StateActive
	m.Active = id
	effects = append(effects, Effect{Op: EffectPlay, Item: id})
	return m, effects
}

// transitionWarm gives the warm slot to id.
//
// Refused outright during fast scroll: warming mid-fling is wasted work.
// Unlike demotion from Active, the previous warm holder is fully released -
// a warm handle was never being watched, so there is nothing worth keeping
// attached.
//
// An empty id releases the current holder and leaves the slot empty.
func transitionWarm(m Model, id feed.ItemID, fastScroll bool) (Model, []Effect) {
	if fastScroll {
		return m, nil
	}

	var effects []Effect

	if id == "" {
		if m.Warm != "" {
			prev := m.Warm
			effects = append(effects, Effect{Op: EffectRelease, Item: prev})
			m.States[prev] = StateIdle
			delete(m.Graced, prev)
			m.Warm = ""
		}
		return m, effects
	}

	if !m.Registered(id) {
		return m, nil
	}

	if id == m.Active {
		// The playing handle has everything warming would give it. The whole
		// request is a no-op, including the current warm holder: visibility
		// callbacks re-report the active tile constantly, and that must not
		// keep evicting a legitimately warmed neighbor.
		return m, nil
	}

	if m.Warm == id {
		if m.Graced[id] {
			effects = append(effects, Effect{Op: EffectCancelGrace, Item: id})
			delete(m.Graced, id)
		}
		return m, effects
	}

	if m.Graced[id] {
		effects = append(effects, Effect{Op: EffectCancelGrace, Item: id})
		delete(m.Graced, id)
	}

	if m.Warm != "" {
		prev := m.Warm
		effects = append(effects, Effect{Op: EffectRelease, Item: prev})
		m.States[prev] = StateIdle
		delete(m.Graced, prev)
	}

	m.States[id] = StateWarm
	m.Warm = id
	effects = append(effects, Effect{Op: EffectWarmUp, Item: id})
	return m, effects
}

// transitionPause pauses an Active or Warm handle in place. Pausing an Idle
// or already-Paused handle is a no-op.
func transitionPause(m Model, id feed.ItemID) (Model, []Effect) {
	if !m.Registered(id) {
		return m, nil
	}
	st := m.States[id]
	if st != StateActive && st != StateWarm {
		return m, nil
	}

	var effects []Effect
	if m.Graced[id] {
		effects = append(effects, Effect{Op: EffectCancelGrace, Item: id})
		delete(m.Graced, id)
	}
	effects = append(effects,
		Effect{Op: EffectPause, Item: id},
		Effect{Op: EffectSetPaused, Item: id},
	)
	m.States[id] = StatePaused
	if m.Active == id {
		m.Active = ""
	}
	if m.Warm == id {
		m.Warm = ""
	}
	return m, effects
}

// transitionIdle schedules deferred teardown for a Warm or Paused handle.
//
// Nothing is released yet: rapid back-and-forth scrolling across a boundary
// would otherwise thrash decoders on and off. The handle leaves its slot
// immediately (so the slot is free for a successor) and keeps its attachment
// until the grace timer fires.
//
// The Active handle is exempt; full teardown goes through EventClear.
// A handle already awaiting teardown keeps its original timer.
func transitionIdle(m Model, id feed.ItemID) (Model, []Effect) {
	if !m.Registered(id) {
		return m, nil
	}
	if m.Graced[id] {
		return m, nil
	}
	st := m.States[id]
	if st != StateWarm && st != StatePaused {
		return m, nil
	}

	if m.Warm == id {
		m.Warm = ""
	}
	m.States[id] = StatePaused
	m.Graced[id] = true
	return m, []Effect{{Op: EffectStartGrace, Item: id}}
}

// transitionGraceElapsed performs the deferred teardown, unless the handle
// was re-promoted in the meantime.
//
// Cancellation is "promote before the timer fires": promotion clears the
// grace mark and stops the timer. The mark check here is the second line of
// defense for the race where the callback was already in flight when the
// timer was stopped.
func transitionGraceElapsed(m Model, id feed.ItemID) (Model, []Effect) {
	if !m.Graced[id] {
		return m, nil
	}
	delete(m.Graced, id)

	if !m.Registered(id) {
		return m, nil
	}
	if m.States[id] == StateActive || m.Warm == id {
		// Re-promoted while the callback was in flight.
		return m, nil
	}

	m.States[id] = StateIdle
	return m, []Effect{
		{Op: EffectPause, Item: id},
		{Op: EffectRelease, Item: id},
	}
}

// transitionClear releases everything: the active handle, the warm handle,
// and every paused handle, in that order (paused handles in sorted id order
// for determinism). All grace timers are cancelled. Registrations survive -
// components unregister themselves when they unmount.
func transitionClear(m Model) (Model, []Effect) {
	var effects []Effect

	graced := make([]feed.ItemID, 0, len(m.Graced))
	for id := range m.Graced {
		graced = append(graced, id)
	}
	sort.Slice(graced, func(i, j int) bool { return graced[i] < graced[j] })
	for _, id := range graced {
		effects = append(effects, Effect{Op: EffectCancelGrace, Item: id})
		delete(m.Graced, id)
	}

	if m.Active != "" {
		effects = append(effects,
			Effect{Op: EffectPause, Item: m.Active},
			Effect{Op: EffectRelease, Item: m.Active},
		)
		m.States[m.Active] = StateIdle
		m.Active = ""
	}

	if m.Warm != "" {
		effects = append(effects, Effect{Op: EffectRelease, Item: m.Warm})
		m.States[m.Warm] = StateIdle
		m.Warm = ""
	}

	var paused []feed.ItemID
	for id, st := range m.States {
		if st == StatePaused {
			paused = append(paused, id)
		}
	}
	sort.Slice(paused, func(i, j int) bool { return paused[i] < paused[j] })
	for _, id := range paused {
		effects = append(effects, Effect{Op: EffectRelease, Item: id})
		m.States[id] = StateIdle
	}

	return m, effects
}
