package system

import (
	"sync"
	"time"
)

type counterReading struct {
	value uint64
	at    time.Time
}

// Counters turns monotonically increasing counters into per-second rates
// by remembering the previous reading of each key.
type Counters struct {
	mu       sync.Mutex
	readings map[string]counterReading
}

func NewCounters() *Counters {
	return &Counters{readings: make(map[string]counterReading)}
}

// Rate stores cur for key and returns the increase per second since the
// previous reading. ok is false for the first reading of a key and when
// no time has passed. A counter that went backwards is treated as a reset
// and yields a rate of zero.
func (c *Counters) Rate(key string, now time.Time, cur uint64) (perSecond float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.readings[key]
	c.readings[key] = counterReading{value: cur, at: now}
	if !exists {
		return 0, false
	}
	seconds := now.Sub(prev.at).Seconds()
	if seconds <= 0 {
		return 0, false
	}
	if cur < prev.value {
		return 0, true
	}
	return float64(cur-prev.value) / seconds, true
}

// Forget drops the stored reading for key so the next Rate starts over.
func (c *Counters) Forget(key string) {
	c.mu.Lock()
	delete(c.readings, key)
	c.mu.Unlock()
}

// clampPercent bounds v to [0, 100].
func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
