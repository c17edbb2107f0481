package player

// HLSEngine wraps a streaming engine that owns source attachment for
// segmented video. When a video handle has an engine, attach and release go
// through it instead of the element's plain source property.
type HLSEngine interface {
	// Attach binds the engine to the element and starts loading the
	// manifest at url.
	Attach(el Element, url string) error

	// Destroy detaches and frees the engine's buffers and workers. The
	// engine is not reusable afterwards.
	Destroy()
}

// HLSEngineFactory builds one engine per attachment. Release destroys the
// engine, so re-warming needs a fresh one.
type HLSEngineFactory func() HLSEngine
