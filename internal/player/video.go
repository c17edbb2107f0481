package player

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carrotlabs/feedgate/internal/clockx"
	"github.com/carrotlabs/feedgate/internal/feed"
)

// DefaultPlayDeferral is how long a deferred play waits for canplay before
// trying anyway. Elements occasionally swallow the canplay event after a
// source swap; the fallback keeps a promoted handle from staying silent.
const DefaultPlayDeferral = 2 * time.Second

// VideoHandle adapts one video element to the coordinator's handle contract.
//
// Play against a cold element is deferred: the handle waits for canplay,
// with a timer fallback, and issues the real play from whichever fires
// first. Exactly one of the two wins.
type VideoHandle struct {
	mu     sync.Mutex
	item   feed.Item
	el     Element
	clock  clockx.Clock
	logger *slog.Logger

	engineFactory HLSEngineFactory
	engine        HLSEngine
	deferral      time.Duration

	attached bool
	paused   bool

	pendingCancel func()
	pendingTimer  clockx.Timer
}

// VideoOption configures a VideoHandle.
type VideoOption func(*VideoHandle)

// WithHLSEngine routes attach and release through a streaming engine built
// by factory. Without it the handle uses the element's plain source.
func WithHLSEngine(factory HLSEngineFactory) VideoOption {
	return func(h *VideoHandle) { h.engineFactory = factory }
}

// WithVideoClock injects the clock for the deferred-play fallback timer.
func WithVideoClock(clock clockx.Clock) VideoOption {
	return func(h *VideoHandle) { h.clock = clock }
}

// WithVideoLogger injects the logger.
func WithVideoLogger(logger *slog.Logger) VideoOption {
	return func(h *VideoHandle) { h.logger = logger }
}

// WithPlayDeferral overrides the deferred-play fallback delay.
func WithPlayDeferral(d time.Duration) VideoOption {
	return func(h *VideoHandle) { h.deferral = d }
}

// NewVideoHandle creates a handle over el for item.
func NewVideoHandle(item feed.Item, el Element, opts ...VideoOption) (*VideoHandle, error) {
	if el == nil {
		return nil, fmt.Errorf("player: video handle needs an element")
	}
	if item.Kind != feed.KindVideo {
		return nil, fmt.Errorf("player: video handle for %s item %s", item.Kind, item.ID)
	}
	h := &VideoHandle{
		item:     item,
		el:       el,
		clock:    clockx.System(),
		logger:   slog.Default(),
		deferral: DefaultPlayDeferral,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Play starts playback, attaching the source first if needed. When the
// element has no decodable frame yet, the real play is deferred to the
// canplay callback with a timer fallback; Play itself returns nil in that
// case and a late failure is logged.
func (h *VideoHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.paused = false
	if !h.attached {
		if err := h.attachLocked(); err != nil {
			return err
		}
	}

	if h.el.ReadyState() >= HaveCurrentData {
		return h.el.Play()
	}

	h.cancelPendingLocked()

	var once sync.Once
	fire := func() {
		once.Do(func() { h.deferredPlay() })
	}
	h.pendingCancel = h.el.OnCanPlay(fire)
	h.pendingTimer = h.clock.AfterFunc(h.deferral, fire)
	h.logger.Debug("play deferred until canplay", "item", h.item.ID, "ready_state", int(h.el.ReadyState()))
	return nil
}

// Pause halts playback and cancels any deferred play still in flight.
func (h *VideoHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelPendingLocked()
	h.el.Pause()
	return nil
}

// SetPausedState switches to the paused presentation, keeping the source
// attached so resume is cheap.
func (h *VideoHandle) SetPausedState() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.paused = true
	return nil
}

// WarmUp attaches the source and starts loading the first segment without
// playing.
func (h *VideoHandle) WarmUp() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.attached {
		if err := h.attachLocked(); err != nil {
			return err
		}
	}
	h.el.Load()
	return nil
}

// Release detaches the source and frees the decoder. Any deferred play is
// cancelled; a released handle must not start playing later.
func (h *VideoHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelPendingLocked()
	if h.engine != nil {
		h.engine.Destroy()
		h.engine = nil
	}
	h.el.ClearSource()
	h.el.Load()
	h.attached = false
	return nil
}

// Rect reports the element's viewport-relative box for the distance sweep.
func (h *VideoHandle) Rect() (top, bottom float64, ok bool) {
	return h.el.BoundingRect()
}

// PausedPresentation reports whether the handle is showing its paused form.
// Read by the UI layer when rendering overlays.
func (h *VideoHandle) PausedPresentation() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// attachLocked binds the source, through the streaming engine when one is
// configured. Caller holds the lock.
func (h *VideoHandle) attachLocked() error {
	url := h.item.VideoURL
	if url == "" {
		return fmt.Errorf("player: item %s has no video url", h.item.ID)
	}

	if h.engineFactory != nil {
		engine := h.engineFactory()
		if err := engine.Attach(h.el, url); err != nil {
			engine.Destroy()
			return fmt.Errorf("player: attach %s: %w", h.item.ID, err)
		}
		h.engine = engine
	} else {
		h.el.SetSource(url)
	}
	h.attached = true
	return nil
}

// deferredPlay is the canplay/fallback continuation.
func (h *VideoHandle) deferredPlay() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelPendingLocked()
	if !h.attached || h.paused {
		// Released or demoted while waiting; stay quiet.
		return
	}
	if err := h.el.Play(); err != nil {
		h.logger.Warn("deferred play failed", "item", h.item.ID, "error", err)
	}
}

// cancelPendingLocked drops any outstanding deferred play. Caller holds the
// lock.
func (h *VideoHandle) cancelPendingLocked() {
	if h.pendingCancel != nil {
		h.pendingCancel()
		h.pendingCancel = nil
	}
	if h.pendingTimer != nil {
		h.pendingTimer.Stop()
		h.pendingTimer = nil
	}
}
