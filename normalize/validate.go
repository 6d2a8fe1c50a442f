package normalize

import (
	"sync"
	"time"
)

// Range bounds per spec.md §4.1.
const (
	minPrice = 100
	maxPrice = 500_000
	minArea  = 10.0
	maxArea  = 1_000.0
	minFloor = -5
	maxFloor = 100
	minYear  = 1900
)

func maxYear() int { return time.Now().Year() + 5 }

// ValidPrice reports whether a price (in 万円) falls within the accepted
// range; out-of-range values are dropped, never coerced.
func ValidPrice(p int) bool { return p >= minPrice && p <= maxPrice }

// ValidArea reports whether an area_m2 value falls within the accepted range.
func ValidArea(a float64) bool { return a >= minArea && a <= maxArea }

// ValidFloor reports whether a floor number falls within the accepted range.
func ValidFloor(f int) bool { return f >= minFloor && f <= maxFloor }

// ValidBuiltYear reports whether a built_year falls within the accepted range.
func ValidBuiltYear(y int) bool { return y >= minYear && y <= maxYear() }

// Counters tracks how many times each field was dropped by validation,
// per spec.md §7's per-field validation counter requirement. Safe for
// concurrent use across resolver workers.
type Counters struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCounters returns a ready-to-use Counters.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int)}
}

// Drop increments the counter for the named field.
func (c *Counters) Drop(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[field]++
}

// Snapshot returns a copy of the current counts, suitable for logging at
// the end of a resolve batch.
func (c *Counters) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
