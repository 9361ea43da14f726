package phase

import (
	"errors"
	"testing"
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
)

func TestUpdateCountStoresWithoutTouchingPhase(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.Tick(clock.Now())
	step(c, clock, 5*time.Second)

	phaseBefore := c.phase
	durBefore := c.phaseDur
	startBefore := c.phaseStart

	if err := c.UpdateCount(approach.North, 50, nil); err != nil {
		t.Fatalf("UpdateCount: %v", err)
	}

	if c.counts[approach.North] != 50 {
		t.Errorf("count north = %d, want 50", c.counts[approach.North])
	}
	if c.phase != phaseBefore || c.phaseDur != durBefore || !c.phaseStart.Equal(startBefore) {
		t.Error("count report mutated the running phase")
	}
}

func TestUpdateCountRejectsBadInput(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.Tick(clock.Now())

	if err := c.UpdateCount(approach.Approach("northeast"), 5, nil); !errors.Is(err, approach.ErrUnknownApproach) {
		t.Errorf("unknown approach error = %v, want ErrUnknownApproach", err)
	}
	if err := c.UpdateCount(approach.North, -1, nil); err == nil {
		t.Error("negative count accepted")
	}
	if c.counts[approach.North] != 0 {
		t.Errorf("rejected report mutated the table: north = %d", c.counts[approach.North])
	}
	if c.countReports != 0 {
		t.Errorf("rejected reports counted: %d", c.countReports)
	}
}

func TestUpdateCountsAppliesWholeTable(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.Tick(clock.Now())

	err := c.UpdateCounts(CountTable{
		approach.North: 3,
		approach.East:  1,
		approach.South: 0,
		approach.West:  12,
	}, nil)
	if err != nil {
		t.Fatalf("UpdateCounts: %v", err)
	}

	want := map[approach.Approach]int{
		approach.North: 3, approach.East: 1, approach.South: 0, approach.West: 12,
	}
	for a, n := range want {
		if c.counts[a] != n {
			t.Errorf("count %s = %d, want %d", a, c.counts[a], n)
		}
	}
	if c.countReports != 1 {
		t.Errorf("countReports = %d, want 1 for a table report", c.countReports)
	}
	if c.totalDetections != 16 {
		t.Errorf("totalDetections = %d, want 16", c.totalDetections)
	}
}

func TestUpdateCountsBooksClassBreakdownOnce(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.Tick(clock.Now())

	err := c.UpdateCounts(CountTable{
		approach.North: 3,
		approach.East:  1,
		approach.South: 0,
		approach.West:  2,
	}, map[string]int{"car": 4, "bus": 2})
	if err != nil {
		t.Fatalf("UpdateCounts: %v", err)
	}

	// A report-wide breakdown must not be multiplied by the table width.
	if got := c.classTotals[approach.ClassCar]; got != 4 {
		t.Errorf("car total = %d, want 4", got)
	}
	if got := c.classTotals[approach.ClassBus]; got != 2 {
		t.Errorf("bus total = %d, want 2", got)
	}
}

func TestUpdateCountsRejectsPartiallyBadPayload(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.Tick(clock.Now())

	err := c.UpdateCounts(CountTable{
		approach.North: 3,
		approach.East:  -1,
	}, nil)
	if err == nil {
		t.Fatal("payload with a negative count accepted")
	}

	// Nothing was applied, including the valid entry.
	if c.counts[approach.North] != 0 {
		t.Errorf("partial payload applied: north = %d", c.counts[approach.North])
	}
}

func TestCountsInformNextGreenDuration(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.Tick(clock.Now())

	// With no snapshot resolution, the formula runs over the stored count:
	// 5s base + 18 vehicles * 3s = 59s.
	if err := c.UpdateCount(approach.East, 18, nil); err != nil {
		t.Fatalf("UpdateCount: %v", err)
	}

	step(c, clock, 25*time.Second)
	assertPhase(t, c, Green, approach.East)
	if c.phaseDur != 59*time.Second {
		t.Errorf("east green = %v, want 59s", c.phaseDur)
	}
	if c.durSource != SourcePolicy {
		t.Errorf("east green source = %q, want %q", c.durSource, SourcePolicy)
	}
}

func TestCountTableClone(t *testing.T) {
	c, clock, _ := newTestController(t)
	c.Tick(clock.Now())

	if err := c.UpdateCount(approach.West, 4, nil); err != nil {
		t.Fatalf("UpdateCount: %v", err)
	}

	snapshot := c.Counts()
	snapshot[approach.West] = 99

	if c.counts[approach.West] != 4 {
		t.Errorf("mutating the copy changed the controller table: west = %d", c.counts[approach.West])
	}
}
