// Package scroll computes scroll velocity and exposes the fast-scroll
// predicate that gates decoder warming.
//
// The monitor is purely advisory: it never errors, and a wrong answer costs
// at most one wasted or skipped prefetch. It keeps just enough state to
// answer "is the user flinging through the feed right now" - the last
// sampled position, the last sample time, and the last time a fast sample
// was seen.
package scroll

import (
	"math"
	"sync"
	"time"

	"github.com/carrotlabs/feedgate/internal/clockx"
	"github.com/carrotlabs/feedgate/internal/feed"
)

// Viewport supplies the current scroll offset and viewport height in pixels.
// Implemented by the UI layer; tests use a scripted fake.
type Viewport interface {
	ScrollY() float64
	Height() float64
}

// Config carries the monitor's thresholds. See feed.Tuning for the meaning
// and defaults of each field.
type Config struct {
	FastVelocity float64       // screens per second
	FlingScreens float64       // single-burst distance in screens
	FlingWindow  time.Duration // max sample gap for a burst to count
	Cooldown     time.Duration // how long fast-scroll persists after the last fast sample
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return ConfigFromTuning(feed.DefaultTuning())
}

// ConfigFromTuning extracts the monitor's thresholds from a feed tuning block.
func ConfigFromTuning(t feed.Tuning) Config {
	return Config{
		FastVelocity: t.FastScrollVelocity,
		FlingScreens: t.FlingScreens,
		FlingWindow:  t.FlingWindow,
		Cooldown:     t.FastScrollCooldown,
	}
}

// Monitor samples scroll position on demand and answers the fast-scroll
// predicate. Sampling happens inside IsFastScroll rather than on a ticker:
// the only consumer is the warm gate, so there is no point measuring when
// nobody asks.
//
// Thread-safety: all methods are safe for concurrent use.
type Monitor struct {
	mu    sync.Mutex
	cfg   Config
	vp    Viewport
	clock clockx.Clock

	primed     bool
	lastY      float64
	lastAt     time.Time
	lastFastAt time.Time
}

// NewMonitor creates a monitor over the given viewport.
func NewMonitor(vp Viewport, clock clockx.Clock, cfg Config) *Monitor {
	return &Monitor{cfg: cfg, vp: vp, clock: clock}
}

// IsFastScroll samples the viewport and reports whether warming should be
// suppressed right now.
//
// A sample is fast when sustained velocity exceeds the threshold, or when
// the delta since the previous sample covers a fling distance within the
// fling window. After any fast sample the predicate stays true for the
// cooldown period, so warming does not flap at the tail of a fling.
func (m *Monitor) IsFastScroll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	y := m.vp.ScrollY()
	height := m.vp.Height()

	if height <= 0 {
		// No geometry yet; nothing useful to measure.
		return m.inCooldown(now)
	}

	if !m.primed {
		m.primed = true
		m.lastY = y
		m.lastAt = now
		return m.inCooldown(now)
	}

	elapsed := now.Sub(m.lastAt)
	if elapsed <= 0 {
		// Same-instant re-sample; keep the previous reference point.
		return m.inCooldown(now)
	}

	deltaScreens := math.Abs(y-m.lastY) / height
	velocity := deltaScreens / elapsed.Seconds()
	fling := deltaScreens >= m.cfg.FlingScreens && elapsed <= m.cfg.FlingWindow

	m.lastY = y
	m.lastAt = now

	if velocity > m.cfg.FastVelocity || fling {
		m.lastFastAt = now
		return true
	}
	return m.inCooldown(now)
}

// RecordWheel stamps the fast-scroll state directly from a wheel delta, in
// pixels. A single wheel tick covering a fling distance marks the scroll
// fast immediately, before the next position sample can catch up - without
// this a fast fling could slip a warm in ahead of the velocity measurement.
func (m *Monitor) RecordWheel(deltaY float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	height := m.vp.Height()
	if height <= 0 {
		return
	}
	if math.Abs(deltaY)/height >= m.cfg.FlingScreens {
		m.lastFastAt = m.clock.Now()
	}
}

// inCooldown reports whether the last fast sample is still fresh.
// Caller holds the lock.
func (m *Monitor) inCooldown(now time.Time) bool {
	if m.lastFastAt.IsZero() {
		return false
	}
	return now.Sub(m.lastFastAt) < m.cfg.Cooldown
}
