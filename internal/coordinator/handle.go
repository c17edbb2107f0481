package coordinator

// Handle is the coordinator's view of one feed item's player.
//
// Implementations live in the player package; tests use recording fakes.
// Calls arrive under the coordinator's lock, so implementations must not
// call back into the coordinator and must not block for long.
type Handle interface {
	// Play starts playback. Resources must already be attached; the
	// coordinator only plays handles it has promoted.
	Play() error

	// Pause halts playback without detaching anything.
	Pause() error

	// SetPausedState switches the handle's presentation to its paused form
	// (poster frame, dimmed overlay) while keeping the source attached.
	SetPausedState() error

	// WarmUp attaches the media source and begins loading the first segment
	// without playing.
	WarmUp() error

	// Release detaches the source and frees decoder resources.
	Release() error

	// Rect reports the handle's bounding box relative to the viewport top,
	// in pixels. ok is false when the element has no layout yet; such
	// handles are skipped by the distance sweep.
	Rect() (top, bottom float64, ok bool)
}
