package core

import "time"

// Clock measures the time between frames. Paused time is excluded from
// TotalTime.
type Clock struct {
	now func() time.Time

	baseTime    time.Time
	prevTime    time.Time
	stopTime    time.Time
	pausedTotal time.Duration
	delta       time.Duration
	stopped     bool
}

func NewClock() *Clock {
	return newClockWithSource(time.Now)
}

func newClockWithSource(now func() time.Time) *Clock {
	c := &Clock{now: now}
	c.Reset()
	return c
}

// Reset starts the clock from zero. Call it right before the frame loop.
func (c *Clock) Reset() {
	t := c.now()
	c.baseTime = t
	c.prevTime = t
	c.stopTime = time.Time{}
	c.pausedTotal = 0
	c.delta = 0
	c.stopped = false
}

// Start resumes a stopped clock. Has no effect on a running clock.
func (c *Clock) Start() {
	if !c.stopped {
		return
	}
	t := c.now()
	c.pausedTotal += t.Sub(c.stopTime)
	c.prevTime = t
	c.stopTime = time.Time{}
	c.stopped = false
}

// Stops the clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	if c.stopped {
		return
	}
	c.stopTime = c.now()
	c.stopped = true
}

// Tick advances the clock by one frame. Should be called once per frame.
func (c *Clock) Tick() {
	if c.stopped {
		c.delta = 0
		return
	}
	t := c.now()
	c.delta = t.Sub(c.prevTime)
	if c.delta < 0 {
		c.delta = 0
	}
	c.prevTime = t
}

// DeltaTime is the time in seconds between the last two ticks.
func (c *Clock) DeltaTime() float64 {
	return c.delta.Seconds()
}

// TotalTime is the running time in seconds, not counting pauses.
func (c *Clock) TotalTime() float64 {
	end := c.prevTime
	if c.stopped {
		end = c.stopTime
	}
	return (end.Sub(c.baseTime) - c.pausedTotal).Seconds()
}

func (c *Clock) IsStopped() bool {
	return c.stopped
}
