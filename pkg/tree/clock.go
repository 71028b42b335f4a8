package tree

import "time"

// Clock is the externally supplied time source polled by time-based leaves.
type Clock interface {
	// Frame is the number of simulation steps elapsed.
	Frame() uint64
	// Elapsed is the simulation time elapsed.
	Elapsed() time.Duration
}

// FrameClock is a Clock advanced explicitly by the driver.
type FrameClock struct {
	frame   uint64
	elapsed time.Duration
	step    time.Duration
}

// NewFrameClock creates a clock advancing by step per frame.
func NewFrameClock(step time.Duration) *FrameClock {
	return &FrameClock{step: step}
}

func (c *FrameClock) Frame() uint64          { return c.frame }
func (c *FrameClock) Elapsed() time.Duration { return c.elapsed }

// Advance moves the clock one frame forward.
func (c *FrameClock) Advance() {
	c.frame++
	c.elapsed += c.step
}

// Set jumps to an absolute frame, e.g. after loading a save.
func (c *FrameClock) Set(frame uint64) {
	c.frame = frame
	c.elapsed = time.Duration(frame) * c.step
}
