// Package preload prefetches media bytes ahead of the user's scroll
// position.
//
// The manager tracks a window of upcoming feed items and drains it in strict
// index order on a single queue goroutine. Each item kind has its own fetch
// policy: video and image items get thumbnail bytes only (video byte-range
// loading belongs to the playback side, so the same bytes are never fetched
// by two subsystems), audio items get a capped head read, and text items are
// cached as placeholder markers without touching the network.
//
// Fetched assets land in an LRU cache bounded by entry count. Eviction is on
// the last-access axis: a hit refreshes recency, so assets the UI keeps
// coming back to outlive assets that were merely prefetched.
//
// A failed fetch is logged and skipped. The item is simply not cached; it
// gets another chance if a later viewport move keeps it in the window.
package preload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/carrotlabs/feedgate/internal/clockx"
	"github.com/carrotlabs/feedgate/internal/feed"
)

// Entry is one cached asset.
type Entry struct {
	ID   feed.ItemID
	Kind feed.Kind

	// Data holds the prefetched bytes. Empty for placeholder entries.
	Data []byte

	// Placeholder marks kinds that need no bytes (text).
	Placeholder bool

	LoadedAt     time.Time
	LastAccessed time.Time
}

// Config carries the prefetch tunables. See feed.Tuning for defaults.
type Config struct {
	WindowSize     int
	CacheCapacity  int
	AudioHeadBytes int64
	FetchSpacing   time.Duration
}

// DefaultConfig returns the production prefetch tunables.
func DefaultConfig() Config {
	return ConfigFromTuning(feed.DefaultTuning())
}

// ConfigFromTuning extracts the prefetch tunables from a feed tuning block.
func ConfigFromTuning(t feed.Tuning) Config {
	return Config{
		WindowSize:     t.PreloadWindow,
		CacheCapacity:  t.CacheCapacity,
		AudioHeadBytes: t.AudioHeadBytes,
		FetchSpacing:   t.FetchSpacing,
	}
}

// Manager owns the prefetch window and the asset cache.
//
// Thread-safety: all exported methods are safe for concurrent use. The queue
// goroutine (Run) is the only fetcher; external callers only mutate the
// window and read the cache.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	fetcher Fetcher
	clock   clockx.Clock
	logger  *slog.Logger

	items  []feed.Item
	index  int
	window []feed.Item

	// failed holds ids whose fetch failed in the current window generation.
	// The queue skips them so one bad item cannot starve the rest of the
	// window; a window recompute clears the set, which is what gives the item
	// its retry on a later viewport move.
	failed map[feed.ItemID]bool

	cache *lru.Cache[feed.ItemID, *Entry]

	// wake signals the queue goroutine that the window changed.
	// Buffered size 1: multiple signals coalesce.
	wake chan struct{}
}

// NewManager creates a prefetch manager. The fetcher may be nil only if the
// feed will never contain media items (the queue then caches placeholders).
func NewManager(fetcher Fetcher, clock clockx.Clock, cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("preload: window size must be positive, got %d", cfg.WindowSize)
	}
	cache, err := lru.New[feed.ItemID, *Entry](cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("preload: cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		fetcher: fetcher,
		clock:   clock,
		logger:  logger,
		cache:   cache,
		wake:    make(chan struct{}, 1),
	}, nil
}

// SetPosts replaces the known feed and recomputes the prefetch window from
// scratch. The previous cache contents stay valid: entries are keyed by item
// id, and stale ids simply age out of the LRU.
func (m *Manager) SetPosts(items []feed.Item) {
	m.mu.Lock()
	m.items = make([]feed.Item, len(items))
	copy(m.items, items)
	m.recomputeWindow()
	m.mu.Unlock()

	m.signal()
}

// SetViewportIndex moves the prefetch window to start at item i. Out-of-range
// values are clamped, never rejected - the scroll observer reports whatever
// it sees and the window simply follows.
func (m *Manager) SetViewportIndex(i int) {
	m.mu.Lock()
	m.index = i
	m.recomputeWindow()
	m.mu.Unlock()

	m.signal()
}

// IsPreloaded reports whether the item's asset is cached, without touching
// recency.
func (m *Manager) IsPreloaded(id feed.ItemID) bool {
	return m.cache.Contains(id)
}

// GetAsset returns the cached entry for id and refreshes its recency.
func (m *Manager) GetAsset(id feed.ItemID) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	// Entries are shared pointers; the access stamp is written under the
	// manager lock so concurrent readers do not race on it.
	entry.LastAccessed = m.clock.Now()
	return entry, true
}

// Len returns the current cache entry count.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Run drains the prefetch queue until ctx is cancelled.
//
// Must be called from exactly one goroutine. Items are fetched in strict
// window order with a fixed spacing delay between them so that a burst of
// tiles entering view does not saturate the network.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Debug("preload queue starting")

	for {
		item, ok := m.nextUncached()
		if !ok {
			select {
			case <-ctx.Done():
				m.logger.Debug("preload queue stopping", "reason", ctx.Err())
				return ctx.Err()
			case <-m.wake:
				continue
			}
		}

		entry, err := m.fetchItem(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Skip and move on; a later window recompute may retry it.
			m.markFailed(item.ID)
			m.logger.Warn("prefetch failed",
				"item", item.ID,
				"kind", item.Kind,
				"error", err,
			)
		} else {
			m.cache.Add(item.ID, entry)
			m.logger.Debug("prefetched",
				"item", item.ID,
				"kind", item.Kind,
				"bytes", len(entry.Data),
				"placeholder", entry.Placeholder,
			)
		}

		if m.cfg.FetchSpacing > 0 {
			if err := m.clock.Sleep(ctx, m.cfg.FetchSpacing); err != nil {
				return err
			}
		}
	}
}

// nextUncached returns the first window item without a cache entry, skipping
// ids that already failed in this window generation.
func (m *Manager) nextUncached() (feed.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range m.window {
		if m.failed[it.ID] {
			continue
		}
		if !m.cache.Contains(it.ID) {
			return it, true
		}
	}
	return feed.Item{}, false
}

func (m *Manager) markFailed(id feed.ItemID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failed == nil {
		m.failed = make(map[feed.ItemID]bool)
	}
	m.failed[id] = true
}

// fetchItem pulls the bytes appropriate to the item's kind.
func (m *Manager) fetchItem(ctx context.Context, it feed.Item) (*Entry, error) {
	now := m.clock.Now()
	entry := &Entry{ID: it.ID, Kind: it.Kind, LoadedAt: now, LastAccessed: now}

	switch it.Kind {
	case feed.KindText:
		entry.Placeholder = true
		return entry, nil

	case feed.KindVideo, feed.KindImage:
		url := it.ThumbnailLocator()
		if url == "" {
			return nil, fmt.Errorf("no thumbnail locator")
		}
		data, err := m.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		entry.Data = data
		return entry, nil

	case feed.KindAudio:
		url := it.AudioLocator()
		if url == "" {
			return nil, fmt.Errorf("no audio locator")
		}
		data, err := m.fetcher.FetchRange(ctx, url, m.cfg.AudioHeadBytes)
		if err != nil {
			return nil, err
		}
		entry.Data = data
		return entry, nil

	default:
		return nil, fmt.Errorf("unknown kind %q", it.Kind)
	}
}

// recomputeWindow rebuilds the prefetch window: the next WindowSize items
// starting at the clamped viewport index, in ascending index order. Failed
// ids are forgotten, so every generation gets one fresh attempt per item.
// Caller holds the lock.
func (m *Manager) recomputeWindow() {
	m.failed = nil

	if len(m.items) == 0 {
		m.index = 0
		m.window = nil
		return
	}

	if m.index < 0 {
		m.index = 0
	}
	if m.index > len(m.items)-1 {
		m.index = len(m.items) - 1
	}

	end := m.index + m.cfg.WindowSize
	if end > len(m.items) {
		end = len(m.items)
	}
	m.window = m.items[m.index:end]
}

// Window returns a copy of the current prefetch window ids, for diagnostics
// and tests.
func (m *Manager) Window() []feed.ItemID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]feed.ItemID, len(m.window))
	for i, it := range m.window {
		ids[i] = it.ID
	}
	return ids
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
