package clockx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_AfterFunc_Fires(t *testing.T) {
	done := make(chan struct{})
	System().AfterFunc(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestSystem_AfterFunc_StopPreventsFire(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := System().AfterFunc(100*time.Millisecond, func() { fired <- struct{}{} })
	assert.True(t, timer.Stop())

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSystem_Sleep_CompletesForShortDuration(t *testing.T) {
	err := System().Sleep(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}

func TestSystem_Sleep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := System().Sleep(ctx, time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSystem_Sleep_ZeroDurationReturnsImmediately(t *testing.T) {
	assert.NoError(t, System().Sleep(context.Background(), 0))
}
