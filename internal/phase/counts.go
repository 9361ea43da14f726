package phase

import (
	"fmt"
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/monitoring"
)

// CountTable holds the latest known vehicle count per approach. Counts are
// absolute queue sizes, not deltas; a new report for an approach replaces
// the previous value.
type CountTable map[approach.Approach]int

// NewCountTable returns a table with every approach present at zero.
func NewCountTable() CountTable {
	t := make(CountTable, approach.Count)
	for _, a := range approach.Order() {
		t[a] = 0
	}
	return t
}

// Clone returns an independent copy of the table.
func (t CountTable) Clone() CountTable {
	out := make(CountTable, len(t))
	for a, n := range t {
		out[a] = n
	}
	return out
}

// UpdateCount applies an unsolicited count report for a single approach.
// The report replaces the stored count without touching the running phase
// or its timers. Unknown approaches and negative counts are rejected.
func (c *Controller) UpdateCount(a approach.Approach, count int, classes map[string]int) error {
	if !approach.IsValid(a) {
		return fmt.Errorf("count report: %w: %q", approach.ErrUnknownApproach, a)
	}
	if count < 0 {
		return fmt.Errorf("count report for %s: negative count %d", a, count)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.countReports++
	c.setCountLocked(c.clock.Now(), a, count, classes)
	return nil
}

// UpdateCounts applies a full-table count report. The payload is validated
// as a whole before any value is applied so a partly malformed report
// cannot leave the table half updated. classes is the report-wide class
// breakdown; it is booked exactly once, against the first approach applied
// in rotation order, so totals are never multiplied by the table width.
func (c *Controller) UpdateCounts(t CountTable, classes map[string]int) error {
	for a, n := range t {
		if !approach.IsValid(a) {
			return fmt.Errorf("count report: %w: %q", approach.ErrUnknownApproach, a)
		}
		if n < 0 {
			return fmt.Errorf("count report for %s: negative count %d", a, n)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.countReports++
	for _, a := range approach.Order() {
		n, ok := t[a]
		if !ok {
			continue
		}
		c.setCountLocked(now, a, n, classes)
		classes = nil
	}
	return nil
}

// setCountLocked stores a count observation and does the accounting shared
// by periodic reports and snapshot resolutions.
func (c *Controller) setCountLocked(now time.Time, a approach.Approach, count int, classes map[string]int) {
	c.counts[a] = count
	c.totalDetections += int64(count)
	for name, n := range classes {
		cl := approach.Class(name)
		if !approach.IsValidClass(cl) || n < 0 {
			continue
		}
		c.classTotals[cl] += int64(n)
	}
	if c.rec != nil {
		if err := c.rec.RecordCounts(now, a.String(), count, classes); err != nil {
			monitoring.Logf("phase: record counts for %s: %v", a, err)
		}
	}
}

// Counts returns a copy of the current count table.
func (c *Controller) Counts() CountTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts.Clone()
}
