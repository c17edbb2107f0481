// Package clockx abstracts wall-clock time and timer scheduling.
//
// The coordinator's grace periods, the sweep debounce, and the prefetch
// spacing are all duration-based, so determinism in tests comes from
// injecting the clock rather than stamping logical sequence numbers.
// Production code uses System(); tests use testutil.FakeClock and drive
// time forward explicitly.
package clockx

import (
	"context"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was
	// already stopped. A callback that raced past Stop is responsible for
	// re-checking state before acting.
	Stop() bool
}

// Clock supplies current time, deferred callbacks, and cancellable sleeps.
type Clock interface {
	Now() time.Time

	// AfterFunc schedules fn to run after d on an unspecified goroutine.
	AfterFunc(d time.Duration, fn func()) Timer

	// Sleep blocks for d or until ctx is done, whichever is first.
	// Returns ctx.Err() when cut short, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}

// System returns the real-time clock backed by package time.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}
