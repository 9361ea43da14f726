package phase

import (
	"fmt"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/monitoring"
)

// ActivateEmergency preempts the normal cycle for an emergency vehicle on
// a. Whatever phase is running is abandoned and a fresh yellow starts
// immediately, pinned to a; the machine still clears through yellow and
// all-red before a turns green, so the preemption changes which approach is
// served, never the clearance sequence. Calling it again before the grant
// re-targets the pin and restarts the yellow, last write wins.
func (c *Controller) ActivateEmergency(a approach.Approach) error {
	if !approach.IsValid(a) {
		return fmt.Errorf("emergency activation: %w: %q", approach.ErrUnknownApproach, a)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	action := "activated"
	if c.emergencyActive {
		action = "retargeted"
	}
	c.emergencyActive = true
	c.emergencyTarget = a

	if c.phase == Initializing {
		// No phase is running yet. The pin waits for the first activation,
		// which will serve a directly.
		monitoring.Logf("phase: emergency %s for %s before startup", action, a)
	} else {
		monitoring.Logf("phase: emergency %s for %s, clearing via yellow", action, a)
		c.setPhaseLocked(Yellow, c.cfg.GetYellow(), now, SourceEmergency)
	}

	if c.rec != nil {
		if err := c.rec.RecordEmergency(now, a.String(), action); err != nil {
			monitoring.Logf("phase: record emergency activation: %v", err)
		}
	}
	return nil
}

// EmergencyActive reports whether an emergency clearance is in progress,
// and for which approach.
func (c *Controller) EmergencyActive() (approach.Approach, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.emergencyActive {
		return "", false
	}
	return c.emergencyTarget, true
}
