package audio

import (
	"math"
	"sync"
)

// PlaybackClock schedules chunks back to back. The next start time never
// moves backward, so late chunks queue behind earlier ones instead of overlapping.
type PlaybackClock struct {
	mu   sync.Mutex
	next float64
}

// Schedule returns the start time for a chunk of the given duration
func (c *PlaybackClock) Schedule(now, duration float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := math.Max(now, c.next)
	c.next = start + duration
	return start
}

// Next reports when the last scheduled chunk ends
func (c *PlaybackClock) Next() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Reset returns the clock to zero. Only valid once nothing scheduled is still playing.
func (c *PlaybackClock) Reset() {
	c.mu.Lock()
	c.next = 0
	c.mu.Unlock()
}
