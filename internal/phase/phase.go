// Package phase implements the signal controller for a four-approach
// intersection: the phase state machine, the cycle sequencer that rotates
// green through the approaches, the snapshot request manager that sizes
// greens from detector measurements, emergency preemption, and the tick
// driver that binds it all to a clock.
package phase

import (
	"encoding/json"
	"fmt"
)

// Phase is the signal state governing the active approach.
type Phase int

// Phase values. Initializing holds only between construction or reset and
// the first green.
const (
	Initializing Phase = iota
	Green
	Yellow
	AllRed
)

var phaseNames = map[Phase]string{
	Initializing: "initializing",
	Green:        "green",
	Yellow:       "yellow",
	AllRed:       "allRed",
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// MarshalJSON encodes the phase as its lowercase name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON decodes a phase from its lowercase name.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for phase, n := range phaseNames {
		if n == name {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", name)
}

// Sources for a green duration, recorded with each activation.
const (
	SourceFirst     = "first"     // fixed default, first activation after startup or reset
	SourceEmergency = "emergency" // fixed emergency green
	SourceSnapshot  = "snapshot"  // resolved detector measurement
	SourcePolicy    = "policy"    // formula applied to the count table
	SourceReset     = "reset"     // re-entry into initializing
)

// Signal head colors as shown on the display sink.
const (
	ColorRed    = "red"
	ColorYellow = "yellow"
	ColorGreen  = "green"
)
