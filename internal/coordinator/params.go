package coordinator

import (
	"time"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// Params carries the coordinator's own tunables. The scroll monitor and
// preload manager carry theirs separately; see feed.Tuning for the full set
// and its defaults.
type Params struct {
	// GracePeriod is the delay between SetIdle and the actual release.
	GracePeriod time.Duration

	// SweepDebounce is how long after a viewport-index update the distance
	// sweep runs.
	SweepDebounce time.Duration

	// SweepThresholdScreens is the off-screen distance, in viewport heights,
	// beyond which a non-active, non-warm handle is sent to idle.
	SweepThresholdScreens float64
}

// DefaultParams returns the production values.
func DefaultParams() Params {
	return ParamsFromTuning(feed.DefaultTuning())
}

// ParamsFromTuning extracts the coordinator tunables from a feed tuning block.
func ParamsFromTuning(t feed.Tuning) Params {
	return Params{
		GracePeriod:           t.GracePeriod,
		SweepDebounce:         t.SweepDebounce,
		SweepThresholdScreens: t.SweepThresholdScreens,
	}
}
