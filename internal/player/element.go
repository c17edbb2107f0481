// Package player adapts media elements to the coordinator's handle
// contract.
//
// A handle owns exactly one element. The coordinator calls the handle's
// capabilities under its own lock, so handle methods never call back into
// the coordinator; the element side (canplay callbacks, timers) goes through
// the handle's own mutex only.
package player

// ReadyState mirrors the media element readiness ladder. Play is deferred
// while the element sits below HaveCurrentData: issuing play against an
// element with no decodable frame yields either silence or an abort error,
// depending on the runtime.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// Element is the handle's view of one media element. Implemented by the
// embedding UI runtime; tests use a scripted fake.
type Element interface {
	// Play starts playback of the attached source.
	Play() error

	// Pause halts playback, keeping position and source.
	Pause()

	// SetSource attaches a source URL.
	SetSource(url string)

	// ClearSource detaches the source. Decoder resources are freed on the
	// next Load.
	ClearSource()

	// Load resets the element against its current (possibly empty) source.
	Load()

	// Prime feeds already-fetched leading bytes into the element's buffer
	// so first playback does not wait on the network. Elements that cannot
	// use primed bytes ignore the call.
	Prime(data []byte)

	// ReadyState reports the current readiness level.
	ReadyState() ReadyState

	// OnCanPlay registers fn to run once when the element reaches
	// HaveCurrentData. The returned func cancels the registration.
	OnCanPlay(fn func()) (cancel func())

	// BoundingRect reports the element's box relative to the viewport top,
	// in pixels. ok is false before first layout.
	BoundingRect() (top, bottom float64, ok bool)
}
