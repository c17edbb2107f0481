// Package harness executes scripted playback scenarios against a real
// coordinator wired to fake time, a scripted viewport, and recording
// handles.
//
// Scenarios are YAML files: a feed (inline CUE), a step script of UI events
// (visibility reports, scrolls, explicit lifecycle calls, time advances),
// and assertions over the recorded transition trace. Determinism comes from
// the fake clock and a fixed session token, which makes golden-file
// comparison of whole traces practical.
package harness

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/carrotlabs/feedgate/internal/compiler"
	"github.com/carrotlabs/feedgate/internal/coordinator"
	"github.com/carrotlabs/feedgate/internal/feed"
	"github.com/carrotlabs/feedgate/internal/player"
	"github.com/carrotlabs/feedgate/internal/scroll"
	"github.com/carrotlabs/feedgate/internal/testutil"
)

// DefaultSession is the session token used when a scenario does not pin one.
const DefaultSession = "test-session"

// viewportHeight is the scripted viewport's fixed height in pixels. Item
// boxes are one viewport tall, which keeps distance arithmetic in scenarios
// easy to reason about: item N sits N screens from the top.
const viewportHeight = 800.0

// Result captures everything a scenario execution produced.
type Result struct {
	Scenario *Scenario
	Session  string

	// Records is the full transition trace in order.
	Records []coordinator.TransitionRecord

	// Final is the coordinator's model after the last step.
	Final coordinator.Model

	// HandleCalls maps item id to the ordered capability calls its handle
	// received.
	HandleCalls map[string][]string
}

// Run executes a scenario and returns its result. A step that the
// coordinator rejects (unknown id, closed) fails the run; scenarios script
// valid UI behavior and a refusal means the script is wrong.
func Run(scenario *Scenario) (*Result, error) {
	clock := testutil.NewFakeClock(time.Unix(1700000000, 0))
	vp := &scriptedViewport{height: viewportHeight}
	recorder := &coordinator.MemoryRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	session := scenario.Session
	if session == "" {
		session = DefaultSession
	}

	indexes := make(map[string]int)
	var tuning feed.Tuning
	if scenario.Feed != "" {
		def, err := compiler.LoadFeedBytes(scenario.Name+".cue", []byte(scenario.Feed))
		if err != nil {
			return nil, fmt.Errorf("harness: compile feed: %w", err)
		}
		tuning = def.Tuning
		for _, it := range def.Items {
			indexes[string(it.ID)] = it.FeedIndex
		}
	} else {
		tuning = feed.DefaultTuning()
	}

	monitor := scroll.NewMonitor(vp, clock, scroll.ConfigFromTuning(tuning))

	coord := coordinator.New(
		coordinator.WithClock(clock),
		coordinator.WithLogger(logger),
		coordinator.WithParams(coordinator.ParamsFromTuning(tuning)),
		coordinator.WithScrollGate(monitor),
		coordinator.WithRecorder(recorder),
		coordinator.WithTokenGenerator(testutil.NewFixedTokenGenerator(session)),
		coordinator.WithViewportHeight(vp.Height),
	)
	defer coord.Close()

	router := player.NewVisibilityRouter(coord, player.WithRouterLogger(logger))

	failPlay := make(map[string]bool, len(scenario.FailPlay))
	for _, id := range scenario.FailPlay {
		failPlay[id] = true
	}

	calls := &callLog{ops: make(map[string][]string)}
	nextIndex := len(indexes)

	for i, step := range scenario.Steps {
		var err error
		switch step.Op {
		case OpRegister:
			idx, ok := indexes[step.Item]
			if !ok {
				idx = nextIndex
				indexes[step.Item] = idx
				nextIndex++
			}
			h := &scriptedHandle{
				id:       step.Item,
				index:    idx,
				vp:       vp,
				calls:    calls,
				failPlay: failPlay[step.Item],
			}
			err = coord.RegisterHandle(feed.ItemID(step.Item), h)
		case OpUnregister:
			coord.UnregisterHandle(feed.ItemID(step.Item))
		case OpActivate:
			err = coord.SetActive(feed.ItemID(step.Item))
		case OpWarm:
			err = coord.SetWarm(feed.ItemID(step.Item))
		case OpPause:
			err = coord.SetPaused(feed.ItemID(step.Item))
		case OpIdle:
			err = coord.SetIdle(feed.ItemID(step.Item))
		case OpClear:
			err = coord.ClearAll()
		case OpVisible:
			router.Observe(feed.ItemID(step.Item), step.Ratio)
		case OpAdvance:
			clock.Advance(time.Duration(step.Ms) * time.Millisecond)
		case OpSetViewport:
			coord.SetViewportIndex(step.Index)
		case OpWheel:
			monitor.RecordWheel(step.DeltaY)
		case OpScroll:
			vp.setScrollY(step.DeltaY)
		}
		if err != nil {
			return nil, fmt.Errorf("harness: steps[%d] %s(%s): %w", i, step.Op, step.Item, err)
		}
	}

	return &Result{
		Scenario:    scenario,
		Session:     session,
		Records:     recorder.Records(),
		Final:       coord.Snapshot(),
		HandleCalls: calls.snapshot(),
	}, nil
}

// scriptedViewport is the fake scroll surface: steps move scrollY, height is
// fixed.
type scriptedViewport struct {
	mu      sync.Mutex
	scrollY float64
	height  float64
}

func (v *scriptedViewport) ScrollY() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollY
}

func (v *scriptedViewport) Height() float64 {
	return v.height
}

func (v *scriptedViewport) setScrollY(y float64) {
	v.mu.Lock()
	v.scrollY = y
	v.mu.Unlock()
}

// callLog accumulates per-handle capability calls.
type callLog struct {
	mu  sync.Mutex
	ops map[string][]string
}

func (l *callLog) add(id, op string) {
	l.mu.Lock()
	l.ops[id] = append(l.ops[id], op)
	l.mu.Unlock()
}

func (l *callLog) snapshot() map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string][]string, len(l.ops))
	for id, ops := range l.ops {
		out[id] = append([]string(nil), ops...)
	}
	return out
}

// scriptedHandle is a recording handle whose layout follows the scripted
// viewport: item N occupies the band [N*height, (N+1)*height) in document
// coordinates.
type scriptedHandle struct {
	id       string
	index    int
	vp       *scriptedViewport
	calls    *callLog
	failPlay bool
}

func (h *scriptedHandle) Play() error {
	h.calls.add(h.id, "play")
	if h.failPlay {
		return fmt.Errorf("scripted play failure for %s", h.id)
	}
	return nil
}

func (h *scriptedHandle) Pause() error {
	h.calls.add(h.id, "pause")
	return nil
}

func (h *scriptedHandle) SetPausedState() error {
	h.calls.add(h.id, "set_paused")
	return nil
}

func (h *scriptedHandle) WarmUp() error {
	h.calls.add(h.id, "warm_up")
	return nil
}

func (h *scriptedHandle) Release() error {
	h.calls.add(h.id, "release")
	return nil
}

func (h *scriptedHandle) Rect() (top, bottom float64, ok bool) {
	y := h.vp.ScrollY()
	top = float64(h.index)*h.vp.height - y
	return top, top + h.vp.height, true
}
