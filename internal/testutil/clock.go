// Package testutil provides deterministic helpers for tests: a fake clock
// whose time only moves when a test advances it, and a fixed session-token
// generator for golden trace comparison.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/carrotlabs/feedgate/internal/clockx"
)

// FakeClock is a manually driven clockx.Clock.
//
// Time never moves on its own. Advance() moves the current time forward and
// fires every timer and sleeper whose deadline falls inside the window, in
// deadline order, with the clock reading exactly each deadline as its
// callback runs. This makes grace-period and debounce behavior exactly
// reproducible.
//
// Thread-safety: all methods are safe for concurrent use. Timer callbacks
// run on the goroutine calling Advance, with no internal locks held, so
// callbacks may re-enter the clock.
type FakeClock struct {
	mu       sync.Mutex
	now      time.Time
	timers   []*fakeTimer
	sleepers []*fakeSleeper
}

// NewFakeClock creates a fake clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn at now+d. A non-positive d fires fn inline before
// returning, mirroring time.AfterFunc's immediate-fire behavior closely
// enough for the callers in this module.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) clockx.Timer {
	if d <= 0 {
		fn()
		return &fakeTimer{fired: true}
	}

	c.mu.Lock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

// Sleep blocks until Advance moves time past now+d, or until ctx is done.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	c.mu.Lock()
	s := &fakeSleeper{when: c.now.Add(d), ch: make(chan struct{})}
	c.sleepers = append(c.sleepers, s)
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ch:
		return nil
	}
}

// Advance moves the clock forward by d, firing due timers and releasing due
// sleepers in deadline order. Callbacks run synchronously on the calling
// goroutine; a callback that schedules a new timer inside the window will
// see it fire within the same Advance call.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		fired := c.fireNext(target)
		if !fired {
			break
		}
	}

	c.mu.Lock()
	if target.After(c.now) {
		c.now = target
	}
	c.mu.Unlock()
}

// PendingTimers returns the number of unfired, unstopped timers.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// fireNext fires the single earliest timer or sleeper due at or before
// target. Returns false when nothing is due.
func (c *FakeClock) fireNext(target time.Time) bool {
	c.mu.Lock()

	var (
		bestTimer   = -1
		bestSleeper = -1
		bestWhen    time.Time
		found       bool
	)
	for i, t := range c.timers {
		if t.when.After(target) {
			continue
		}
		if !found || t.when.Before(bestWhen) {
			found, bestWhen, bestTimer, bestSleeper = true, t.when, i, -1
		}
	}
	for i, s := range c.sleepers {
		if s.when.After(target) {
			continue
		}
		if !found || s.when.Before(bestWhen) {
			found, bestWhen, bestSleeper, bestTimer = true, s.when, i, -1
		}
	}

	if !found {
		c.mu.Unlock()
		return false
	}

	if bestWhen.After(c.now) {
		c.now = bestWhen
	}

	if bestSleeper >= 0 {
		s := c.sleepers[bestSleeper]
		c.sleepers = append(c.sleepers[:bestSleeper], c.sleepers[bestSleeper+1:]...)
		c.mu.Unlock()
		close(s.ch)
		return true
	}

	t := c.timers[bestTimer]
	c.timers = append(c.timers[:bestTimer], c.timers[bestTimer+1:]...)
	t.fired = true
	c.mu.Unlock()

	// Run the callback without the lock so it can re-enter the clock.
	t.fn()
	return true
}

func (c *FakeClock) removeTimer(t *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cand := range c.timers {
		if cand == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock *FakeClock
	when  time.Time
	fn    func()
	fired bool
}

func (t *fakeTimer) Stop() bool {
	if t.clock == nil {
		return false
	}
	return t.clock.removeTimer(t)
}

type fakeSleeper struct {
	when time.Time
	ch   chan struct{}
}
