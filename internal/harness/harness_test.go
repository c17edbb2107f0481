package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrotlabs/feedgate/internal/coordinator"
	"github.com/carrotlabs/feedgate/internal/feed"
)

func TestRun_LifecycleScript(t *testing.T) {
	scenario := &Scenario{
		Name:        "lifecycle",
		Description: "activate handoff keeps the demoted handle attached",
		Steps: []Step{
			{Op: OpRegister, Item: "p1"},
			{Op: OpRegister, Item: "p2"},
			{Op: OpActivate, Item: "p1"},
			{Op: OpWarm, Item: "p2"},
			{Op: OpActivate, Item: "p2"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, DefaultSession, result.Session)
	assert.Equal(t, []string{"play", "pause", "set_paused"}, result.HandleCalls["p1"])
	assert.Equal(t, []string{"warm_up", "play"}, result.HandleCalls["p2"])
	assert.Equal(t, feed.ItemID("p2"), result.Final.Active)
	assert.Equal(t, coordinator.StatePaused, result.Final.StateOf("p1"))
}

func TestRun_VisibilityRouting(t *testing.T) {
	scenario := &Scenario{
		Name:        "visibility",
		Description: "half-visible items take the play slot, hidden ones pause",
		Steps: []Step{
			{Op: OpRegister, Item: "p1"},
			{Op: OpVisible, Item: "p1", Ratio: 0.8},
			{Op: OpVisible, Item: "p1", Ratio: 0.2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, []string{"play", "pause", "set_paused"}, result.HandleCalls["p1"])
	assert.Equal(t, coordinator.StatePaused, result.Final.StateOf("p1"))
}

func TestRun_FastScrollSuppressesWarm(t *testing.T) {
	scenario := &Scenario{
		Name:        "fast-scroll",
		Description: "warming is refused while the user flings through the feed",
		Steps: []Step{
			{Op: OpRegister, Item: "p1"},
			{Op: OpRegister, Item: "p2"},
			{Op: OpWarm, Item: "p1"}, // primes the monitor at rest
			{Op: OpScroll, DeltaY: 4000},
			{Op: OpAdvance, Ms: 1000}, // 5 screens over 1s, well past the velocity threshold
			{Op: OpWarm, Item: "p2"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, []string{"warm_up"}, result.HandleCalls["p1"])
	assert.Empty(t, result.HandleCalls["p2"], "warm suppressed mid-fling")
	assert.Equal(t, feed.ItemID("p1"), result.Final.Warm)

	// The suppressed warm still shows up in the trace, flagged.
	last := result.Records[len(result.Records)-1]
	assert.Equal(t, "warm", last.Event)
	assert.True(t, last.FastScroll)
	assert.Empty(t, last.Effects)
}

func TestRun_PlayFailureDemotes(t *testing.T) {
	scenario := &Scenario{
		Name:        "play-failure",
		Description: "a handle that refuses to play is demoted to paused",
		FailPlay:    []string{"p1"},
		Steps: []Step{
			{Op: OpRegister, Item: "p1"},
			{Op: OpActivate, Item: "p1"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, coordinator.StatePaused, result.Final.StateOf("p1"))
	assert.Equal(t, feed.ItemID(""), result.Final.Active)
}

func TestRun_SweepAndGraceThroughScript(t *testing.T) {
	scenario := &Scenario{
		Name:        "sweep",
		Description: "a paused handle far off-screen is swept to idle and released after grace",
		Feed: `
feed: {
	name: "sweep"
	items: [
		{id: "p0", kind: "text"},
		{id: "p1", kind: "text"},
		{id: "p2", kind: "text"},
		{id: "p3", kind: "text"},
		{id: "p4", kind: "text"},
		{id: "p5", kind: "text"},
	]
}`,
		Steps: []Step{
			{Op: OpRegister, Item: "p0"},
			{Op: OpRegister, Item: "p5"},
			{Op: OpActivate, Item: "p0"},
			{Op: OpWarm, Item: "p5"},
			{Op: OpPause, Item: "p5"},
			{Op: OpSetViewport, Index: 0},
			{Op: OpAdvance, Ms: 500},  // sweep debounce
			{Op: OpAdvance, Ms: 5000}, // grace expiry
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Contains(t, result.HandleCalls["p5"], "release")
	assert.Equal(t, coordinator.StateIdle, result.Final.StateOf("p5"))
	assert.NotContains(t, result.HandleCalls["p0"], "release", "active handle exempt from sweep")
}

func TestRun_GraceCancelledByPromotion(t *testing.T) {
	scenario := &Scenario{
		Name:        "grace-cancel",
		Description: "re-promotion within the grace window keeps the handle attached",
		Steps: []Step{
			{Op: OpRegister, Item: "p1"},
			{Op: OpWarm, Item: "p1"},
			{Op: OpIdle, Item: "p1"},
			{Op: OpAdvance, Ms: 3000},
			{Op: OpActivate, Item: "p1"},
			{Op: OpAdvance, Ms: 60000},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.NotContains(t, result.HandleCalls["p1"], "release")
	assert.Equal(t, coordinator.StateActive, result.Final.StateOf("p1"))
}

func TestRun_RejectsInvalidStep(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "activating an unregistered id fails the run",
		Steps: []Step{
			{Op: OpActivate, Item: "ghost"},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0]")
}

func TestCheckAssertions_AllTypes(t *testing.T) {
	scenario := &Scenario{
		Name:        "asserted",
		Description: "assertion evaluation",
		Steps: []Step{
			{Op: OpRegister, Item: "p1"},
			{Op: OpRegister, Item: "p2"},
			{Op: OpActivate, Item: "p1"},
			{Op: OpActivate, Item: "p2"},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)

	pass := []Assertion{
		{Type: AssertTraceContains, Event: "activate(p1)"},
		{Type: AssertTraceOrder, Events: []string{"activate(p1)", "activate(p2)"}},
		{Type: AssertTraceCount, Event: "register(p1)", Count: 1},
		{Type: AssertFinalState, Item: "p2", State: "active"},
		{Type: AssertFinalState, Item: "p1", State: "paused"},
	}
	assert.Empty(t, CheckAssertions(result, pass))

	fail := []Assertion{
		{Type: AssertTraceContains, Event: "activate(p9)"},
		{Type: AssertTraceOrder, Events: []string{"activate(p2)", "activate(p1)"}},
		{Type: AssertTraceCount, Event: "activate(p1)", Count: 2},
		{Type: AssertFinalState, Item: "p1", State: "active"},
	}
	assert.Len(t, CheckAssertions(result, fail), 4)
}
