package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown is a restartable per-connection turn clock. It ticks once per
// second, reporting the remaining time to the tick observer, and fires the
// expiry callback exactly once when the remaining time goes negative. After
// expiry it must be Reset before it can run again.
//
// Callbacks run on the countdown's own goroutine with no internal lock held,
// so they may call back into Stop and Reset.
type Countdown struct {
	clock    clockwork.Clock
	duration int
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	remaining int
	running   bool
	expired   bool
	stop      chan struct{}
}

// New creates a countdown that runs from duration seconds down to expiry.
// Either callback may be nil.
func New(clock clockwork.Clock, duration int, onTick func(int), onExpire func()) *Countdown {
	return &Countdown{
		clock:     clock,
		duration:  duration,
		remaining: duration,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start begins ticking from the configured duration. It is a no-op while the
// countdown is already running or has expired without a Reset.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running || c.expired {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.remaining = c.duration
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(stop)
}

// Stop halts ticking without touching the remaining time. Idempotent.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.running = false
}

// Reset restores the full duration and clears the expired latch. If the
// countdown is running it keeps ticking from the full duration. Idempotent.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = c.duration
	c.expired = false
}

// Remaining reports the seconds left before expiry.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the countdown is currently ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			tick, expire, remaining := c.advance(stop)
			if expire {
				if c.onExpire != nil {
					c.onExpire()
				}
				return
			}
			if tick && c.onTick != nil {
				c.onTick(remaining)
			}
			if !tick {
				return
			}
		}
	}
}

// advance consumes one tick. It reports whether the loop should keep ticking,
// whether expiry fired on this tick, and the remaining time to report.
func (c *Countdown) advance(stop chan struct{}) (tick, expire bool, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A Stop or a replacement Start may have raced this tick.
	if !c.running || c.stop != stop {
		return false, false, 0
	}

	c.remaining--
	if c.remaining < 0 {
		c.expired = true
		c.running = false
		c.stop = nil
		return false, true, c.remaining
	}
	return true, false, c.remaining
}
