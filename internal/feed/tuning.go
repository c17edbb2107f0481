package feed

import (
	"fmt"
	"time"
)

// Tuning carries the adjustable constants of the playback and preload
// machinery. Every threshold that governs decoder lifecycle or prefetch
// behavior lives here rather than as a buried literal, so a feed definition
// can override it per deployment.
//
// The defaults are the production values; none of them has a derivation
// beyond field observation, which is exactly why they are configuration.
type Tuning struct {
	// GracePeriod is the delay between an idle request and the actual
	// resource release. Promotion within the window cancels the teardown.
	GracePeriod time.Duration

	// SweepDebounce is how long after a viewport-index update the distance
	// sweep runs. Coalesces bursts of scroll ticks into one measurement pass.
	SweepDebounce time.Duration

	// SweepThresholdScreens is the off-screen distance, in viewport heights,
	// beyond which a non-active, non-warm handle is sent to idle.
	SweepThresholdScreens float64

	// PreloadWindow is the number of upcoming items eligible for prefetch.
	PreloadWindow int

	// CacheCapacity bounds the preload cache entry count.
	CacheCapacity int

	// AudioHeadBytes is how much of an audio file the prefetcher pulls.
	AudioHeadBytes int64

	// FetchSpacing is the fixed delay between prefetch queue items.
	FetchSpacing time.Duration

	// FastScrollVelocity is the sustained scroll speed, in screens per
	// second, above which warming is suppressed.
	FastScrollVelocity float64

	// FlingScreens is the single-burst scroll distance, in screens, that
	// counts as a fling regardless of sustained velocity.
	FlingScreens float64

	// FlingWindow is the maximum sample gap for a delta to count as a fling.
	FlingWindow time.Duration

	// FastScrollCooldown keeps the fast-scroll predicate true for this long
	// after the last fast sample.
	FastScrollCooldown time.Duration
}

// DefaultTuning returns the production constants.
func DefaultTuning() Tuning {
	return Tuning{
		GracePeriod:           5 * time.Second,
		SweepDebounce:         500 * time.Millisecond,
		SweepThresholdScreens: 3,
		PreloadWindow:         10,
		CacheCapacity:         100,
		AudioHeadBytes:        512 << 10,
		FetchSpacing:          100 * time.Millisecond,
		FastScrollVelocity:    1.2,
		FlingScreens:          1.5,
		FlingWindow:           250 * time.Millisecond,
		FastScrollCooldown:    700 * time.Millisecond,
	}
}

// Validate rejects values that would disable or invert the machinery.
func (t Tuning) Validate() error {
	if t.GracePeriod <= 0 {
		return fmt.Errorf("tuning: grace period must be positive, got %v", t.GracePeriod)
	}
	if t.SweepDebounce < 0 {
		return fmt.Errorf("tuning: sweep debounce must be non-negative, got %v", t.SweepDebounce)
	}
	if t.SweepThresholdScreens <= 0 {
		return fmt.Errorf("tuning: sweep threshold must be positive, got %v", t.SweepThresholdScreens)
	}
	if t.PreloadWindow <= 0 {
		return fmt.Errorf("tuning: preload window must be positive, got %d", t.PreloadWindow)
	}
	if t.CacheCapacity <= 0 {
		return fmt.Errorf("tuning: cache capacity must be positive, got %d", t.CacheCapacity)
	}
	if t.AudioHeadBytes <= 0 {
		return fmt.Errorf("tuning: audio head bytes must be positive, got %d", t.AudioHeadBytes)
	}
	if t.FetchSpacing < 0 {
		return fmt.Errorf("tuning: fetch spacing must be non-negative, got %v", t.FetchSpacing)
	}
	if t.FastScrollVelocity <= 0 {
		return fmt.Errorf("tuning: fast-scroll velocity must be positive, got %v", t.FastScrollVelocity)
	}
	if t.FlingScreens <= 0 {
		return fmt.Errorf("tuning: fling screens must be positive, got %v", t.FlingScreens)
	}
	if t.FlingWindow <= 0 {
		return fmt.Errorf("tuning: fling window must be positive, got %v", t.FlingWindow)
	}
	if t.FastScrollCooldown <= 0 {
		return fmt.Errorf("tuning: fast-scroll cooldown must be positive, got %v", t.FastScrollCooldown)
	}
	return nil
}
