package draft

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalescesRapidCalls(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var fired int32
	for i := 0; i < 3; i++ {
		d.Schedule(func() { atomic.AddInt32(&fired, 1) })
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, 5*time.Millisecond)

	// No further firings after the window closes.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestDebouncerLastScheduledWins(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var got atomic.Int32
	d.Schedule(func() { got.Store(1) })
	d.Schedule(func() { got.Store(2) })

	assert.Eventually(t, func() bool {
		return got.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncerFlushRunsImmediately(t *testing.T) {
	d := NewDebouncer(time.Hour)

	var fired atomic.Bool
	d.Schedule(func() { fired.Store(true) })
	d.Flush()

	assert.True(t, fired.Load())

	// Flush with nothing pending is a no-op.
	d.Flush()
}

func TestDebouncerCancelDropsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Bool
	d.Schedule(func() { fired.Store(true) })
	d.Cancel()

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
}
