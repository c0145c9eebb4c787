package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/events"
)

// CooldownService blocks re-entry for a configured interval after any close
// or rollback. One cooldown is active at a time; starting again resets the
// end time and supersedes the pending end notification.
type CooldownService struct {
	bus    *events.Bus
	logger *zap.Logger

	mu       sync.Mutex
	duration time.Duration
	endTime  time.Time
	timer    *time.Timer
	gen      uint64
	onEnd    func()
}

func NewCooldownService(bus *events.Bus, logger *zap.Logger) *CooldownService {
	return &CooldownService{
		bus:      bus,
		logger:   logger,
		duration: 5 * time.Minute,
	}
}

// SetDuration applies the cooldown length from validated settings.
func (c *CooldownService) SetDuration(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duration = time.Duration(seconds) * time.Second
}

// OnEnd registers the callback invoked when a cooldown runs to completion.
// The callback fires at most once per Start and never after Cancel.
func (c *CooldownService) OnEnd(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnd = fn
}

// Start begins (or restarts) the cooldown.
func (c *CooldownService) Start() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.endTime = time.Now().Add(c.duration)
	c.timer = time.AfterFunc(c.duration, func() { c.fire(gen) })
	duration := c.duration
	c.mu.Unlock()

	c.logger.Info("cooldown started", zap.Duration("duration", duration))
	c.bus.Publish(events.EventCooldownStarted, duration)
}

// Cancel ends the cooldown immediately and suppresses the pending end
// notification.
func (c *CooldownService) Cancel() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	active := time.Now().Before(c.endTime)
	c.endTime = time.Time{}
	c.mu.Unlock()

	if active {
		c.logger.Info("cooldown cancelled")
	}
}

// Active reports whether a cooldown is currently running.
func (c *CooldownService) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.endTime)
}

// RemainingSeconds is the seconds left rounded up, 0 when not active. The
// ceiling keeps the invariant that an active cooldown never reports 0.
func (c *CooldownService) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := time.Until(c.endTime)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

func (c *CooldownService) fire(gen uint64) {
	c.mu.Lock()
	// A restart or cancel after this timer was scheduled bumps gen; the
	// stale timer must not emit anything.
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.endTime = time.Time{}
	c.timer = nil
	onEnd := c.onEnd
	c.mu.Unlock()

	c.logger.Info("cooldown ended, re-entry allowed")
	c.bus.Publish(events.EventCooldownEnded, nil)
	if onEnd != nil {
		onEnd()
	}
}
