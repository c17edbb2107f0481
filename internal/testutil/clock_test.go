package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_Now_OnlyMovesOnAdvance(t *testing.T) {
	c := NewFakeClock(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(3 * time.Second)
	assert.Equal(t, epoch.Add(3*time.Second), c.Now())
}

func TestFakeClock_AfterFunc_FiresInDeadlineOrder(t *testing.T) {
	c := NewFakeClock(epoch)

	var order []string
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	c.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, c.PendingTimers())

	c.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Zero(t, c.PendingTimers())
}

func TestFakeClock_AfterFunc_ClockReadsDeadlineInsideCallback(t *testing.T) {
	c := NewFakeClock(epoch)

	var seen time.Time
	c.AfterFunc(time.Second, func() { seen = c.Now() })

	c.Advance(5 * time.Second)
	assert.Equal(t, epoch.Add(time.Second), seen)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
}

func TestFakeClock_AfterFunc_StopCancels(t *testing.T) {
	c := NewFakeClock(epoch)

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop returns false")

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeClock_AfterFunc_NestedTimerFiresInSameAdvance(t *testing.T) {
	c := NewFakeClock(epoch)

	var order []string
	c.AfterFunc(time.Second, func() {
		order = append(order, "outer")
		c.AfterFunc(time.Second, func() { order = append(order, "inner") })
	})

	c.Advance(3 * time.Second)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestFakeClock_Sleep_ReleasedByAdvance(t *testing.T) {
	c := NewFakeClock(epoch)

	done := make(chan error, 1)
	go func() {
		done <- c.Sleep(context.Background(), time.Second)
	}()

	// Let the sleeper register before advancing.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.sleepers) == 1
	}, time.Second, time.Millisecond)

	c.Advance(2 * time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sleeper never released")
	}
}

func TestFakeClock_Sleep_CancelledContext(t *testing.T) {
	c := NewFakeClock(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)
}

func TestFixedTokenGenerator_ReturnsInOrder(t *testing.T) {
	g := NewFixedTokenGenerator("s-1", "s-2")
	assert.Equal(t, "s-1", g.Generate())
	assert.Equal(t, "s-2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
