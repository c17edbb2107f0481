package coordinator

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/carrotlabs/feedgate/internal/clockx"
	"github.com/carrotlabs/feedgate/internal/feed"
)

// FastScrollGate answers whether warming should be suppressed right now.
// Implemented by scroll.Monitor; tests use a fixed bool.
type FastScrollGate interface {
	IsFastScroll() bool
}

// Feeder receives feed and viewport updates fanned out by the coordinator.
// Implemented by preload.Manager.
type Feeder interface {
	SetPosts(items []feed.Item)
	SetViewportIndex(i int)
}

// Coordinator is the imperative shell around Transition.
//
// It owns the handle registry, the grace and sweep timers, and the trace
// recorder. Every mutation happens under one mutex: an event is applied to
// the model, the resulting effects are executed against real handles, and
// the transition is recorded - all before the lock is released. That is what
// makes the single-active and single-warm guarantees hold at every instant
// an observer could look.
type Coordinator struct {
	mu      sync.Mutex
	model   Model
	handles map[feed.ItemID]Handle
	closed  bool

	params   Params
	clock    clockx.Clock
	logger   *slog.Logger
	gate     FastScrollGate
	feeder   Feeder
	recorder Recorder

	session string
	seq     uint64

	// viewportHeight supplies the current viewport height in pixels for the
	// distance sweep. Zero means no geometry yet; the sweep skips that pass.
	viewportHeight func() float64

	graceTimers map[feed.ItemID]clockx.Timer
	sweepTimer  clockx.Timer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithParams overrides the default tunables.
func WithParams(p Params) Option {
	return func(c *Coordinator) { c.params = p }
}

// WithClock injects the clock. Tests use testutil.FakeClock.
func WithClock(clock clockx.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithLogger injects the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithScrollGate injects the fast-scroll predicate consulted before warming.
func WithScrollGate(gate FastScrollGate) Option {
	return func(c *Coordinator) { c.gate = gate }
}

// WithFeeder injects the prefetch manager that receives feed and viewport
// updates.
func WithFeeder(f Feeder) Option {
	return func(c *Coordinator) { c.feeder = f }
}

// WithRecorder injects the transition recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithTokenGenerator injects the session token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(c *Coordinator) { c.session = g.Generate() }
}

// WithViewportHeight injects the viewport height source for the distance
// sweep.
func WithViewportHeight(fn func() float64) Option {
	return func(c *Coordinator) { c.viewportHeight = fn }
}

// New creates a Coordinator with defaults: system clock, default tunables,
// slog default logger, nop recorder, a fresh UUIDv7 session token, no scroll
// gate (never fast), and no feeder.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		model:          NewModel(),
		handles:        make(map[feed.ItemID]Handle),
		params:         DefaultParams(),
		clock:          clockx.System(),
		logger:         slog.Default(),
		recorder:       NopRecorder{},
		graceTimers:    make(map[feed.ItemID]clockx.Timer),
		viewportHeight: func() float64 { return 0 },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == "" {
		c.session = UUIDv7Generator{}.Generate()
	}
	c.logger.Debug("coordinator session started", "session", c.session)
	return c
}

// Session returns the session token stamped on every trace record.
func (c *Coordinator) Session() string {
	return c.session
}

// Snapshot returns a copy of the current model, for diagnostics and tests.
func (c *Coordinator) Snapshot() Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.clone()
}

// RegisterHandle binds a handle to an item id. Registering an id that is
// already bound replaces the old binding and resets the item to idle.
func (c *Coordinator) RegisterHandle(id feed.ItemID, h Handle) error {
	if id == "" || h == nil {
		return &Error{Code: ErrCodeInvalidHandle, Message: "registration needs a non-empty id and a non-nil handle", Item: id}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newClosedError()
	}

	c.handles[id] = h
	c.applyLocked(Event{Kind: EventRegister, Item: id})
	return nil
}

// UnregisterHandle removes the binding for id. The handle is not released:
// the owning component is tearing its element down itself. Unknown ids are
// a no-op.
func (c *Coordinator) UnregisterHandle(id feed.ItemID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	delete(c.handles, id)
	c.applyLocked(Event{Kind: EventUnregister, Item: id})
}

// SetActive promotes id to the single play slot, demoting the previous
// holder to paused in place. An empty id demotes the current holder and
// leaves the slot empty. Activating the already-active id is a no-op.
func (c *Coordinator) SetActive(id feed.ItemID) error {
	return c.submit(Event{Kind: EventActivate, Item: id})
}

// SetWarm promotes id to the single warm slot, fully releasing the previous
// holder. Warming is refused while the user is fast-scrolling. An empty id
// releases the current holder and leaves the slot empty.
func (c *Coordinator) SetWarm(id feed.ItemID) error {
	fast := false
	if c.gate != nil {
		// Sampled outside the lock: the monitor reads the viewport, which
		// must not happen under the coordinator mutex.
		fast = c.gate.IsFastScroll()
	}
	return c.submit(Event{Kind: EventWarm, Item: id, FastScroll: fast})
}

// SetPaused pauses id in place, keeping its attached resources. Only Active
// and Warm handles change; others are a no-op.
func (c *Coordinator) SetPaused(id feed.ItemID) error {
	return c.submit(Event{Kind: EventPause, Item: id})
}

// SetIdle schedules deferred teardown for id: the handle leaves its slot now
// and is released after the grace period unless re-promoted first. The
// active handle is exempt; repeated calls keep the original timer.
func (c *Coordinator) SetIdle(id feed.ItemID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newClosedError()
	}
	if !c.model.Registered(id) {
		return newNotRegisteredError(id)
	}
	if c.model.StateOf(id) == StateActive {
		c.logger.Warn("idle requested for active handle, ignoring", "item", id)
		return nil
	}
	c.applyLocked(Event{Kind: EventIdle, Item: id})
	return nil
}

// ClearAll releases every handle - active, warm, and paused - and cancels
// all pending teardowns. Registrations survive; components unregister
// themselves when they unmount.
func (c *Coordinator) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newClosedError()
	}
	c.applyLocked(Event{Kind: EventClear})
	return nil
}

// SetPosts forwards the feed contents to the prefetch manager.
func (c *Coordinator) SetPosts(items []feed.Item) {
	if c.feeder != nil {
		c.feeder.SetPosts(items)
	}
}

// SetViewportIndex forwards the viewport position to the prefetch manager
// and schedules the debounced distance sweep. Every call restarts the
// debounce window, so a burst of scroll ticks produces one sweep.
func (c *Coordinator) SetViewportIndex(i int) {
	if c.feeder != nil {
		c.feeder.SetViewportIndex(i)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.sweepTimer != nil {
		c.sweepTimer.Stop()
	}
	if c.params.SweepDebounce <= 0 {
		c.sweepTimer = nil
		c.runSweepLocked()
		return
	}
	c.sweepTimer = c.clock.AfterFunc(c.params.SweepDebounce, c.runSweep)
}

// Close cancels all timers and rejects further operations. Handles are not
// released; callers wanting a full teardown run ClearAll first.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	for id, t := range c.graceTimers {
		t.Stop()
		delete(c.graceTimers, id)
	}
	if c.sweepTimer != nil {
		c.sweepTimer.Stop()
		c.sweepTimer = nil
	}
	c.logger.Debug("coordinator session closed", "session", c.session, "transitions", c.seq)
	return nil
}

// submit validates the subject and applies the event under the lock.
func (c *Coordinator) submit(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newClosedError()
	}
	if ev.Item != "" && !c.model.Registered(ev.Item) {
		return newNotRegisteredError(ev.Item)
	}
	c.applyLocked(ev)
	return nil
}

// applyLocked runs one event through the transition function, executes the
// effects, and records the trace row. Caller holds the lock.
//
// Effect execution may feed follow-up events back through applyLocked (a
// failed play demotes the handle); recursion stays bounded because a
// demotion never produces another play.
func (c *Coordinator) applyLocked(ev Event) {
	from := ""
	if ev.Item != "" && c.model.Registered(ev.Item) {
		from = c.model.StateOf(ev.Item).String()
	}

	next, effects := Transition(c.model, ev)
	c.model = next

	to := ""
	if ev.Item != "" && c.model.Registered(ev.Item) {
		to = c.model.StateOf(ev.Item).String()
	}

	names := make([]string, len(effects))
	for i, eff := range effects {
		names[i] = eff.String()
	}

	// Record before executing: a failed play feeds a demotion event back
	// through applyLocked, and its row must sort after this one so the
	// journal replays in cause-then-consequence order.
	c.seq++
	rec := TransitionRecord{
		Session:    c.session,
		Seq:        c.seq,
		At:         c.clock.Now(),
		Event:      ev.Kind.String(),
		Item:       ev.Item,
		FastScroll: ev.FastScroll,
		From:       from,
		To:         to,
		Effects:    names,
	}
	if err := c.recorder.Record(rec); err != nil {
		c.logger.Error("trace record failed", "session", c.session, "seq", rec.Seq, "error", err)
	}

	for _, eff := range effects {
		c.executeLocked(eff)
	}
}

// executeLocked runs one effect against the real world. Caller holds the
// lock.
//
// Handle failures are logged and the bookkeeping stands - with one
// exception: a failed play demotes the handle to paused, so the model never
// claims an active handle that is known not to be playing.
func (c *Coordinator) executeLocked(eff Effect) {
	switch eff.Op {
	case EffectStartGrace:
		id := eff.Item
		c.graceTimers[id] = c.clock.AfterFunc(c.params.GracePeriod, func() {
			c.onGraceElapsed(id)
		})
		return
	case EffectCancelGrace:
		if t, ok := c.graceTimers[eff.Item]; ok {
			t.Stop()
			delete(c.graceTimers, eff.Item)
		}
		return
	}

	h, ok := c.handles[eff.Item]
	if !ok {
		c.logger.Warn("effect for unknown handle dropped", "effect", eff.String())
		return
	}

	var err error
	switch eff.Op {
	case EffectPlay:
		err = c.safeCall("play", eff.Item, h.Play)
		if err != nil {
			c.logger.Error("play failed, demoting handle", "item", eff.Item, "error", err)
			c.applyLocked(Event{Kind: EventPause, Item: eff.Item})
			return
		}
	case EffectPause:
		err = c.safeCall("pause", eff.Item, h.Pause)
	case EffectSetPaused:
		err = c.safeCall("set_paused", eff.Item, h.SetPausedState)
	case EffectWarmUp:
		err = c.safeCall("warm_up", eff.Item, h.WarmUp)
	case EffectRelease:
		err = c.safeCall("release", eff.Item, h.Release)
	}
	if err != nil {
		c.logger.Warn("handle call failed", "effect", eff.String(), "error", err)
	}
}

// safeCall invokes a handle capability, converting a panic into an error.
// A handle backed by a detached element must not take the coordinator down.
func (c *Coordinator) safeCall(op string, id feed.ItemID, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Code:    ErrCodeHandleFailure,
				Message: "handle panicked during " + op,
				Item:    id,
				Err:     fmt.Errorf("panic: %v", r),
			}
			c.logger.Error("handle panicked", "op", op, "item", id, "panic", r)
		}
	}()
	if callErr := fn(); callErr != nil {
		return &Error{Code: ErrCodeHandleFailure, Message: op + " failed", Item: id, Err: callErr}
	}
	return nil
}

// onGraceElapsed is the grace timer callback. It re-checks state through the
// transition function; a handle promoted after the timer was scheduled is
// left alone.
func (c *Coordinator) onGraceElapsed(id feed.ItemID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	delete(c.graceTimers, id)
	c.applyLocked(Event{Kind: EventGraceElapsed, Item: id})
}

// runSweep is the debounced sweep callback.
func (c *Coordinator) runSweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.runSweepLocked()
}

// runSweepLocked sends every registered warm or paused handle further than
// the threshold distance from the viewport to idle. Handles without layout
// and the active handle are skipped. Caller holds the lock.
func (c *Coordinator) runSweepLocked() {
	height := c.viewportHeight()
	if height <= 0 {
		return
	}

	ids := make([]feed.ItemID, 0, len(c.handles))
	for id := range c.handles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	swept := 0
	for _, id := range ids {
		st := c.model.StateOf(id)
		if st != StateWarm && st != StatePaused {
			continue
		}
		if c.model.Graced[id] {
			continue
		}
		top, bottom, ok := c.handles[id].Rect()
		if !ok {
			continue
		}
		if screensFromViewport(top, bottom, height) > c.params.SweepThresholdScreens {
			c.applyLocked(Event{Kind: EventIdle, Item: id})
			swept++
		}
	}
	if swept > 0 {
		c.logger.Debug("distance sweep sent handles to idle", "count", swept)
	}
}

// screensFromViewport measures how far a box is from the visible band
// [0, height], in viewport heights. Boxes overlapping the band are at
// distance zero.
func screensFromViewport(top, bottom, height float64) float64 {
	switch {
	case bottom < 0:
		return -bottom / height
	case top > height:
		return (top - height) / height
	default:
		return 0
	}
}
