package player

import (
	"log/slog"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// VisibilityThresholds are the intersection ratios the UI observer should
// report at. Three points: fully hidden, the activation boundary, fully
// visible.
var VisibilityThresholds = []float64{0, 0.5, 1.0}

// ActivationRatio is the visible fraction at which an item takes the play
// slot.
const ActivationRatio = 0.5

// Lifecycle is the slice of the coordinator the router needs. Satisfied by
// coordinator.Coordinator.
type Lifecycle interface {
	SetActive(id feed.ItemID) error
	SetPaused(id feed.ItemID) error
}

// VisibilityRouter translates intersection-ratio reports into lifecycle
// calls: a handle crossing the activation ratio upward requests the play
// slot, one dropping below it is paused. The router never releases anything;
// teardown belongs to the distance sweep.
type VisibilityRouter struct {
	lc     Lifecycle
	logger *slog.Logger
	ratio  float64
}

// RouterOption configures a VisibilityRouter.
type RouterOption func(*VisibilityRouter)

// WithActivationRatio overrides the default activation boundary.
func WithActivationRatio(ratio float64) RouterOption {
	return func(r *VisibilityRouter) { r.ratio = ratio }
}

// WithRouterLogger injects the logger.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *VisibilityRouter) { r.logger = logger }
}

// NewVisibilityRouter creates a router over the given lifecycle.
func NewVisibilityRouter(lc Lifecycle, opts ...RouterOption) *VisibilityRouter {
	r := &VisibilityRouter{
		lc:     lc,
		logger: slog.Default(),
		ratio:  ActivationRatio,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe handles one intersection report for id. Lifecycle refusals (an id
// whose handle unregistered between the report and the call) are logged, not
// returned: visibility reports are fire-and-forget.
func (r *VisibilityRouter) Observe(id feed.ItemID, ratio float64) {
	var err error
	if ratio >= r.ratio {
		err = r.lc.SetActive(id)
	} else {
		err = r.lc.SetPaused(id)
	}
	if err != nil {
		r.logger.Debug("visibility report dropped", "item", id, "ratio", ratio, "error", err)
	}
}
