package transfer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateSignalIsIdempotent(t *testing.T) {
	g := NewGate()
	fired := 0
	stop := g.Watch(func() { fired++ })
	defer stop()

	assert.False(t, g.Signaled())
	g.Signal()
	g.Signal()
	assert.True(t, g.Signaled())
	assert.Equal(t, 1, fired)
}

func TestGateWatchAfterSignalFiresImmediately(t *testing.T) {
	g := NewGate()
	g.Signal()

	fired := false
	stop := g.Watch(func() { fired = true })
	stop()
	assert.True(t, fired)
}

func TestGateStopUnregisters(t *testing.T) {
	g := NewGate()
	fired := false
	stop := g.Watch(func() { fired = true })
	stop()
	g.Signal()
	assert.False(t, fired)
}

func TestGateResetRejectedInFlight(t *testing.T) {
	g := NewGate()
	g.Signal()
	g.enter()

	err := g.Reset()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.True(t, g.Signaled())

	g.leave()
	require.NoError(t, g.Reset())
	assert.False(t, g.Signaled())
}

func TestGateSignalFromOtherGoroutines(t *testing.T) {
	g := NewGate()
	woke := make(chan struct{})
	var once sync.Once
	stop := g.Watch(func() { once.Do(func() { close(woke) }) })
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Signal()
		}()
	}
	wg.Wait()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waker did not fire")
	}
}

func TestSleepOrSignal(t *testing.T) {
	g := NewGate()
	assert.False(t, sleepOrSignal(g, time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Signal()
	}()
	start := time.Now()
	assert.True(t, sleepOrSignal(g, time.Minute))
	assert.Less(t, int64(time.Since(start)), int64(10*time.Second))
}
