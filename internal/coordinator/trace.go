package coordinator

import (
	"time"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// TransitionRecord is one line of the coordinator's trace: the event that
// was applied, the subject's state before and after, and the effects that
// were executed.
//
// Records carry a per-session sequence number assigned under the
// coordinator's lock, so a session's records replay in a total order.
type TransitionRecord struct {
	// Session is the coordinator's session token.
	Session string

	// Seq is the 1-based position of this record within the session.
	Seq uint64

	// At is the wall-clock time the event was applied.
	At time.Time

	// Event is the event kind name (EventKind.String).
	Event string

	// Item is the subject handle id, empty for clear.
	Item feed.ItemID

	// FastScroll records the warm gate's answer for warm events, so replay
	// can reproduce a suppressed warm. False for every other event kind.
	FastScroll bool

	// From and To are the subject's lifecycle states around the transition
	// (State.String), empty when there is no subject.
	From string
	To   string

	// Effects lists the executed effects in order (Effect.String).
	Effects []string
}

// Recorder receives transition records as they are applied. The journal
// implements this against SQLite; tests use an in-memory recorder.
//
// Record is called under the coordinator's lock, so implementations must not
// call back into the coordinator.
type Recorder interface {
	Record(rec TransitionRecord) error
}

// NopRecorder discards all records.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(TransitionRecord) error { return nil }

// MemoryRecorder accumulates records in order. Intended for tests and the
// scenario harness; not safe for concurrent use outside the coordinator's
// lock.
type MemoryRecorder struct {
	records []TransitionRecord
}

// Record implements Recorder.
func (r *MemoryRecorder) Record(rec TransitionRecord) error {
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *MemoryRecorder) Records() []TransitionRecord {
	out := make([]TransitionRecord, len(r.records))
	copy(out, r.records)
	return out
}
