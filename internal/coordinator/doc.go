// Package coordinator arbitrates decoder resources across a feed of media
// handles.
//
// The coordinator is the only authority over which handle may play and which
// may hold pre-attached resources. Handles never self-promote; the UI layer
// reports visibility and scrolling, and the coordinator decides.
//
// ARCHITECTURE:
//
// Pure core, imperative shell:
// All decision logic lives in Transition, a pure function from (model,
// event) to (model, effects). The Coordinator shell holds the lock, applies
// events, executes the returned effects against real handles, and manages
// the timers that feed deferred events (grace expiry, sweep debounce) back
// in. The transition table is unit-testable without any handle or timer.
//
// INVARIANTS:
//   - At most one handle is Active at any time.
//   - At most one handle is Warm at any time.
//   - A handle reaches Warm or Active only through SetWarm/SetActive.
//   - Paused handles keep their attached resources but hold no slot.
//
// Both slot invariants are maintained synchronously within each call: the
// previous holder is demoted before the new holder's promotion completes,
// so no observer ever sees two Active handles.
//
// ERROR HANDLING: every handle capability call is wrapped. A misbehaving
// handle (detached element, dead decoder) is logged and the state transition
// proceeds as if the call had succeeded - bookkeeping must not depend on
// handle calls succeeding. The one exception is a failed play after
// promotion: the handle is demoted to Paused so the model never claims an
// Active handle that is known not to be playing.
package coordinator
