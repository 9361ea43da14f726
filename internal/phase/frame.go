package phase

import (
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
)

// DisplayFrame is the per-tick view of the intersection pushed to display
// sinks. Remaining times are whole seconds, rounded up so a display never
// shows zero while a phase is still running.
type DisplayFrame struct {
	Timestamp       time.Time         `json:"timestamp"`
	Phase           Phase             `json:"phase"`
	Active          string            `json:"active,omitempty"`
	Next            string            `json:"next"`
	Colors          map[string]string `json:"colors"`
	RemainingSec    int               `json:"remaining_sec"`
	NextGreenInSec  int               `json:"next_green_in_sec"`
	DurationSource  string            `json:"duration_source,omitempty"`
	Emergency       bool              `json:"emergency"`
	EmergencyFor    string            `json:"emergency_for,omitempty"`
	CompletedCycles int               `json:"completed_cycles"`
	Counts          map[string]int    `json:"counts"`
	DetectorUp      bool              `json:"detector_up"`
}

// Status extends the display frame with counters for the status API.
type Status struct {
	DisplayFrame
	Generation       uint64           `json:"generation"`
	TotalDetections  int64            `json:"total_detections"`
	CountReports     int64            `json:"count_reports"`
	SnapshotRequests int64            `json:"snapshot_requests"`
	SnapshotPending  bool             `json:"snapshot_pending"`
	ClassTotals      map[string]int64 `json:"class_totals,omitempty"`
	UptimeSec        int64            `json:"uptime_sec"`
	LastDetectorErr  string           `json:"last_detector_error,omitempty"`
}

// ceilSeconds converts a duration to whole seconds, rounding up.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// frameLocked assembles the display frame for the current state.
func (c *Controller) frameLocked(now time.Time) DisplayFrame {
	frame := DisplayFrame{
		Timestamp:       now,
		Phase:           c.phase,
		DurationSource:  c.durSource,
		Emergency:       c.emergencyActive,
		CompletedCycles: c.completedCycles,
		Counts:          make(map[string]int, approach.Count),
		Colors:          make(map[string]string, approach.Count),
		DetectorUp:      c.detectorUp,
	}
	for _, a := range approach.Order() {
		frame.Counts[a.String()] = c.counts[a]
		frame.Colors[a.String()] = ColorRed
	}
	if c.emergencyActive {
		frame.EmergencyFor = c.emergencyTarget.String()
	}

	active, hasActive := c.activeApproachLocked()
	if hasActive {
		frame.Active = active.String()
		switch c.phase {
		case Green:
			frame.Colors[active.String()] = ColorGreen
		case Yellow:
			frame.Colors[active.String()] = ColorYellow
		}
	}
	frame.Next = approach.AtIndex(c.nextIndexLocked()).String()

	if c.phase == Initializing {
		return frame
	}

	remaining := c.phaseDur - now.Sub(c.phaseStart)
	if remaining < 0 {
		remaining = 0
	}
	frame.RemainingSec = ceilSeconds(remaining)

	// Time until the next approach turns green is the rest of this phase
	// plus the fixed clearance phases still ahead of that green.
	switch c.phase {
	case Green:
		frame.NextGreenInSec = ceilSeconds(remaining + c.cfg.GetYellow() + c.cfg.GetAllRed())
	case Yellow:
		frame.NextGreenInSec = ceilSeconds(remaining + c.cfg.GetAllRed())
	case AllRed:
		frame.NextGreenInSec = ceilSeconds(remaining)
	}
	return frame
}

// Status reports the full controller state for the status API.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	st := Status{
		DisplayFrame:     c.frameLocked(now),
		Generation:       c.generation,
		TotalDetections:  c.totalDetections,
		CountReports:     c.countReports,
		SnapshotRequests: c.snapshotRequests,
		SnapshotPending:  c.pending,
		UptimeSec:        int64(now.Sub(c.startedAt) / time.Second),
		LastDetectorErr:  c.lastDetectorErr,
	}
	if len(c.classTotals) > 0 {
		st.ClassTotals = make(map[string]int64, len(c.classTotals))
		for cl, n := range c.classTotals {
			st.ClassTotals[string(cl)] = n
		}
	}
	return st
}
