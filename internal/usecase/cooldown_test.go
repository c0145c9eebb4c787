package usecase_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/events"
	"github.com/khedge/kimchi_hedge/internal/usecase"
)

func newTestCooldown() *usecase.CooldownService {
	return usecase.NewCooldownService(events.NewBus(), zap.NewNop())
}

func TestCooldownStartAndExpire(t *testing.T) {
	cd := newTestCooldown()
	cd.SetDuration(60)

	var fired atomic.Int32
	cd.OnEnd(func() { fired.Add(1) })

	assert.False(t, cd.Active())
	assert.Equal(t, 0, cd.RemainingSeconds())

	cd.Start()
	assert.True(t, cd.Active())
	assert.Greater(t, cd.RemainingSeconds(), 55)

	// Not expired yet.
	assert.Equal(t, int32(0), fired.Load())
}

func TestCooldownEndFiresOnce(t *testing.T) {
	cd := newTestCooldown()
	cd.SetDuration(0)

	var fired atomic.Int32
	cd.OnEnd(func() { fired.Add(1) })

	cd.Start()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, cd.Active())
}

func TestCooldownCancelSuppressesEnd(t *testing.T) {
	cd := newTestCooldown()
	cd.SetDuration(60)

	var fired atomic.Int32
	cd.OnEnd(func() { fired.Add(1) })

	cd.Start()
	cd.Cancel()

	assert.False(t, cd.Active())
	assert.Equal(t, 0, cd.RemainingSeconds())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestCooldownRestartResetsEndTime(t *testing.T) {
	cd := newTestCooldown()
	cd.SetDuration(60)

	var fired atomic.Int32
	cd.OnEnd(func() { fired.Add(1) })

	cd.Start()
	first := cd.RemainingSeconds()
	time.Sleep(20 * time.Millisecond)
	cd.Start()

	assert.GreaterOrEqual(t, cd.RemainingSeconds(), first-1)
	assert.True(t, cd.Active())
	// The first timer must not fire for the superseded start.
	assert.Equal(t, int32(0), fired.Load())
}

func TestCooldownRemainingSecondsCeiling(t *testing.T) {
	cd := newTestCooldown()
	cd.SetDuration(1)
	cd.Start()

	// Partway through the last second an active cooldown still reports 1,
	// never 0.
	time.Sleep(600 * time.Millisecond)
	if cd.Active() {
		assert.Equal(t, 1, cd.RemainingSeconds())
	}

	require.Eventually(t, func() bool { return !cd.Active() }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, cd.RemainingSeconds())
}

func TestCooldownStartEmitsEvents(t *testing.T) {
	bus := events.NewBus()
	cd := usecase.NewCooldownService(bus, zap.NewNop())
	cd.SetDuration(0)

	started, unsubStart := bus.Subscribe(events.EventCooldownStarted, 1)
	defer unsubStart()
	ended, unsubEnd := bus.Subscribe(events.EventCooldownEnded, 1)
	defer unsubEnd()

	cd.Start()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("no cooldown started event")
	}
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("no cooldown ended event")
	}
}
