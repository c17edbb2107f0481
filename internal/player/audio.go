package player

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/carrotlabs/feedgate/internal/feed"
	"github.com/carrotlabs/feedgate/internal/preload"
)

// AssetSource looks up prefetched bytes. Implemented by preload.Manager.
type AssetSource interface {
	GetAsset(id feed.ItemID) (*preload.Entry, bool)
}

// AudioHandle adapts one audio element to the coordinator's handle contract.
//
// Audio needs less ceremony than video: no streaming engine, no deferred
// play (audio elements reach a playable state from the first buffered
// bytes). What it does get is a priming step - when the prefetcher already
// holds the file head, warm-up feeds those bytes straight into the element
// so first playback skips the network round trip.
type AudioHandle struct {
	mu     sync.Mutex
	item   feed.Item
	el     Element
	assets AssetSource
	logger *slog.Logger

	attached bool
	paused   bool
}

// AudioOption configures an AudioHandle.
type AudioOption func(*AudioHandle)

// WithAssetSource injects the prefetch cache consulted during warm-up.
func WithAssetSource(assets AssetSource) AudioOption {
	return func(h *AudioHandle) { h.assets = assets }
}

// WithAudioLogger injects the logger.
func WithAudioLogger(logger *slog.Logger) AudioOption {
	return func(h *AudioHandle) { h.logger = logger }
}

// NewAudioHandle creates a handle over el for item.
func NewAudioHandle(item feed.Item, el Element, opts ...AudioOption) (*AudioHandle, error) {
	if el == nil {
		return nil, fmt.Errorf("player: audio handle needs an element")
	}
	if item.Kind != feed.KindAudio {
		return nil, fmt.Errorf("player: audio handle for %s item %s", item.Kind, item.ID)
	}
	h := &AudioHandle{
		item:   item,
		el:     el,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Play starts playback, attaching the source first if needed.
func (h *AudioHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.paused = false
	if !h.attached {
		if err := h.attachLocked(); err != nil {
			return err
		}
	}
	return h.el.Play()
}

// Pause halts playback in place.
func (h *AudioHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.el.Pause()
	return nil
}

// SetPausedState switches to the paused presentation.
func (h *AudioHandle) SetPausedState() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.paused = true
	return nil
}

// WarmUp attaches the source and, when the prefetcher holds the file head,
// primes the element with those bytes before loading.
func (h *AudioHandle) WarmUp() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.attached {
		if err := h.attachLocked(); err != nil {
			return err
		}
	}

	if h.assets != nil {
		if entry, ok := h.assets.GetAsset(h.item.ID); ok && len(entry.Data) > 0 {
			h.el.Prime(entry.Data)
			h.logger.Debug("audio primed from prefetch cache", "item", h.item.ID, "bytes", len(entry.Data))
		}
	}

	h.el.Load()
	return nil
}

// Release detaches the source and frees the decoder.
func (h *AudioHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.el.ClearSource()
	h.el.Load()
	h.attached = false
	return nil
}

// Rect reports the element's viewport-relative box for the distance sweep.
func (h *AudioHandle) Rect() (top, bottom float64, ok bool) {
	return h.el.BoundingRect()
}

// PausedPresentation reports whether the handle is showing its paused form.
func (h *AudioHandle) PausedPresentation() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *AudioHandle) attachLocked() error {
	url := h.item.AudioLocator()
	if url == "" {
		return fmt.Errorf("player: item %s has no audio locator", h.item.ID)
	}
	h.el.SetSource(url)
	h.attached = true
	return nil
}
