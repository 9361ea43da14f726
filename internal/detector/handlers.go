package detector

import (
	"fmt"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/monitoring"
	"github.com/greenwave-data/junction.control/internal/phase"
)

// Sink is the controller-side surface detector events feed into. The phase
// controller implements it.
type Sink interface {
	UpdateCount(a approach.Approach, count int, classes map[string]int) error
	UpdateCounts(t phase.CountTable, classes map[string]int) error
	ResolveSnapshot(res phase.SnapshotResult)
	SetDetectorStatus(up bool, errMsg string)
}

// HandleEvent classifies one detector line and dispatches it to the sink.
// Malformed lines are rejected at this boundary with an error and no state
// mutation; any successfully handled line also marks the detector up.
func HandleEvent(sink Sink, line string) error {
	switch Classify(line) {
	case EventTypeCounts:
		ev, err := ParseCountReport(line)
		if err != nil {
			return err
		}
		if ev.Table != nil {
			if err := sink.UpdateCounts(phase.CountTable(ev.Table), ev.Classes); err != nil {
				return fmt.Errorf("failed to apply count table: %w", err)
			}
		} else {
			if err := sink.UpdateCount(ev.Approach, ev.Count, ev.Classes); err != nil {
				return fmt.Errorf("failed to apply count report: %w", err)
			}
		}
		sink.SetDetectorStatus(true, "")

	case EventTypeSnapshot:
		ev, err := ParseSnapshotResult(line)
		if err != nil {
			return err
		}
		sink.ResolveSnapshot(phase.SnapshotResult{
			RequestID:  ev.RequestID,
			Generation: ev.Generation,
			Approach:   ev.Approach,
			Count:      ev.Count,
			GreenMs:    ev.GreenMs,
			Err:        ev.Err,
		})
		sink.SetDetectorStatus(true, "")

	case EventTypeStatus:
		ev, err := ParseStatus(line)
		if err != nil {
			return err
		}
		if ev.Online() {
			sink.SetDetectorStatus(true, "")
		} else {
			detail := ev.Detail
			if detail == "" {
				detail = ev.State
			}
			sink.SetDetectorStatus(false, detail)
		}

	default:
		monitoring.Debugf("detector: unclassified line: %s", line)
	}
	return nil
}
