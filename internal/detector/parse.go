package detector

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/greenwave-data/junction.control/internal/approach"
)

// Event type tokens for inbound detector lines.
const (
	EventTypeCounts   = "counts"
	EventTypeSnapshot = "snapshot"
	EventTypeStatus   = "status"
	EventTypeUnknown  = "unknown"
)

// Classify inspects a payload string and returns a simple event type
// token. The classification is intentionally conservative; the strict
// decoders below do the real validation.
func Classify(payload string) string {
	if strings.Contains(payload, "request_id") {
		return EventTypeSnapshot
	}
	if strings.Contains(payload, `"count`) {
		return EventTypeCounts
	}
	if strings.Contains(payload, `"state"`) {
		return EventTypeStatus
	}
	return EventTypeUnknown
}

// CountEvent is a decoded count report. Either Approach/Count (single
// form) or Table (whole-intersection form) is set.
type CountEvent struct {
	Approach approach.Approach
	Count    int
	Classes  map[string]int
	Table    map[approach.Approach]int
}

// SnapshotEvent is a decoded snapshot result.
type SnapshotEvent struct {
	RequestID  string
	Generation uint64
	Approach   approach.Approach
	Count      int
	GreenMs    int64
	Err        string
}

// StatusEvent is a decoded detector status line.
type StatusEvent struct {
	State  string
	Detail string
}

// Online reports whether the status line indicates a healthy detector.
func (s StatusEvent) Online() bool {
	switch strings.ToLower(s.State) {
	case "online", "ok", "ready":
		return true
	}
	return false
}

type countWire struct {
	Type     string         `json:"type"`
	Approach string         `json:"approach"`
	Count    *int           `json:"count"`
	Counts   map[string]int `json:"counts"`
	Classes  map[string]int `json:"classes"`
}

type snapshotWire struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id"`
	Generation uint64 `json:"generation"`
	Approach   string `json:"approach"`
	Count      *int   `json:"count"`
	GreenMs    int64  `json:"green_ms"`
	Error      string `json:"error"`
}

type statusWire struct {
	Type   string `json:"type"`
	State  string `json:"state"`
	Detail string `json:"detail"`
}

// ParseCountReport decodes a count report line. Counts must be
// non-negative and approaches known; a report failing either check is
// rejected whole, including the whole-table form.
func ParseCountReport(line string) (*CountEvent, error) {
	var wire countWire
	if err := json.Unmarshal([]byte(line), &wire); err != nil {
		return nil, fmt.Errorf("malformed count report: %w", err)
	}
	if wire.Type != EventTypeCounts {
		return nil, fmt.Errorf("count report has type %q", wire.Type)
	}

	if len(wire.Counts) > 0 {
		table := make(map[approach.Approach]int, len(wire.Counts))
		for name, n := range wire.Counts {
			a, err := approach.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("count report: %w", err)
			}
			if n < 0 {
				return nil, fmt.Errorf("count report: negative count %d for %s", n, a)
			}
			table[a] = n
		}
		return &CountEvent{Table: table, Classes: wire.Classes}, nil
	}

	a, err := approach.Parse(wire.Approach)
	if err != nil {
		return nil, fmt.Errorf("count report: %w", err)
	}
	if wire.Count == nil {
		return nil, fmt.Errorf("count report for %s missing count", a)
	}
	if *wire.Count < 0 {
		return nil, fmt.Errorf("count report: negative count %d for %s", *wire.Count, a)
	}
	return &CountEvent{Approach: a, Count: *wire.Count, Classes: wire.Classes}, nil
}

// ParseSnapshotResult decodes a snapshot result line. A result may carry
// either a count or an error; the request ID is always required so the
// controller can match it to its request.
func ParseSnapshotResult(line string) (*SnapshotEvent, error) {
	var wire snapshotWire
	if err := json.Unmarshal([]byte(line), &wire); err != nil {
		return nil, fmt.Errorf("malformed snapshot result: %w", err)
	}
	if wire.Type != EventTypeSnapshot {
		return nil, fmt.Errorf("snapshot result has type %q", wire.Type)
	}
	if wire.RequestID == "" {
		return nil, fmt.Errorf("snapshot result missing request_id")
	}

	a, err := approach.Parse(wire.Approach)
	if err != nil {
		return nil, fmt.Errorf("snapshot result: %w", err)
	}

	ev := &SnapshotEvent{
		RequestID:  wire.RequestID,
		Generation: wire.Generation,
		Approach:   a,
		GreenMs:    wire.GreenMs,
		Err:        wire.Error,
	}
	if wire.Error != "" {
		return ev, nil
	}
	if wire.Count == nil {
		return nil, fmt.Errorf("snapshot result for %s missing count", a)
	}
	if *wire.Count < 0 {
		return nil, fmt.Errorf("snapshot result: negative count %d for %s", *wire.Count, a)
	}
	ev.Count = *wire.Count
	return ev, nil
}

// ParseStatus decodes a detector status line.
func ParseStatus(line string) (*StatusEvent, error) {
	var wire statusWire
	if err := json.Unmarshal([]byte(line), &wire); err != nil {
		return nil, fmt.Errorf("malformed status line: %w", err)
	}
	if wire.Type != EventTypeStatus {
		return nil, fmt.Errorf("status line has type %q", wire.Type)
	}
	if wire.State == "" {
		return nil, fmt.Errorf("status line missing state")
	}
	return &StatusEvent{State: wire.State, Detail: wire.Detail}, nil
}
