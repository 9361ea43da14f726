package phase

import (
	"time"

	"github.com/google/uuid"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/monitoring"
)

// SnapshotResult is the detector's answer to a snapshot request. GreenMs is
// an optional duration hint from the detector; when zero the controller
// derives the green from the count. Err carries a detector-side failure.
type SnapshotResult struct {
	RequestID  string
	Generation uint64
	Approach   approach.Approach
	Count      int
	GreenMs    int64
	Err        string
}

// issueSnapshotLocked sends a snapshot request for a, tagged with the
// current generation. At most one request may be outstanding; a second is a
// silent no-op. The return value reports whether an attempt was made, not
// whether it succeeded: a transport failure still consumes the attempt so a
// dead link is probed once per green, not once per tick.
func (c *Controller) issueSnapshotLocked(a approach.Approach, now time.Time) bool {
	if c.pending {
		monitoring.Debugf("phase: snapshot request for %s suppressed, %s still pending", a, c.pendingFor)
		return false
	}
	if c.req == nil {
		return false
	}

	id := uuid.NewString()
	c.pending = true
	c.pendingID = id
	c.pendingFor = a
	c.pendingSince = now
	c.snapshotRequests++

	monitoring.Debugf("phase: requesting snapshot %s for %s (generation %d)", id, a, c.generation)
	if err := c.req.RequestSnapshot(a, id, c.generation); err != nil {
		monitoring.Logf("phase: snapshot request for %s failed: %v", a, err)
		c.pending = false
		c.pendingID = ""
		c.pendingFor = ""
		c.detectorUp = false
		c.lastDetectorErr = err.Error()
		if c.rec != nil {
			if rerr := c.rec.RecordSnapshot(now, id, c.generation, a.String(), 0, err.Error()); rerr != nil {
				monitoring.Logf("phase: record failed snapshot: %v", rerr)
			}
		}
	}
	return true
}

// pendingWindow is how long a snapshot request stays useful: the lead time
// plus the clearance phases between the request and the green it sizes.
func (c *Controller) pendingWindow() time.Duration {
	return c.cfg.GetSnapshotLead() + c.cfg.GetYellow() + c.cfg.GetAllRed()
}

// expirePendingLocked drops a request that outlived its usefulness window so
// a detector that never answers cannot starve the predictive trigger. A
// result arriving after expiry is discarded by the request ID check.
func (c *Controller) expirePendingLocked(now time.Time) {
	if !c.pending {
		return
	}
	if age := now.Sub(c.pendingSince); age > c.pendingWindow() {
		monitoring.Logf("phase: snapshot request %s for %s expired after %v", c.pendingID, c.pendingFor, age)
		c.pending = false
		c.pendingID = ""
		c.pendingFor = ""
	}
}

// ResolveSnapshot delivers a detector snapshot result. Results for a stale
// generation, an unknown request ID, or a mismatched approach are discarded.
// A result for the approach that is green right now updates the count table
// only; the running green keeps its duration and the next activation sees
// the fresh count.
func (c *Controller) ResolveSnapshot(res SnapshotResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if res.Generation != c.generation {
		monitoring.Debugf("phase: dropping snapshot %s from generation %d (current %d)", res.RequestID, res.Generation, c.generation)
		return
	}
	if !c.pending || res.RequestID != c.pendingID {
		monitoring.Debugf("phase: dropping snapshot %s, no matching pending request", res.RequestID)
		return
	}
	if res.Approach != c.pendingFor {
		monitoring.Logf("phase: snapshot %s answered for %s but was requested for %s, dropping", res.RequestID, res.Approach, c.pendingFor)
		return
	}

	c.pending = false
	c.pendingID = ""
	c.pendingFor = ""

	if res.Err != "" {
		monitoring.Logf("phase: snapshot %s for %s failed at detector: %s", res.RequestID, res.Approach, res.Err)
		if c.rec != nil {
			if err := c.rec.RecordSnapshot(now, res.RequestID, res.Generation, res.Approach.String(), 0, res.Err); err != nil {
				monitoring.Logf("phase: record snapshot failure: %v", err)
			}
		}
		return
	}
	if res.Count < 0 {
		monitoring.Logf("phase: snapshot %s for %s carries negative count %d, dropping", res.RequestID, res.Approach, res.Count)
		return
	}

	c.detectorUp = true
	c.lastDetectorErr = ""
	c.setCountLocked(now, res.Approach, res.Count, nil)
	if c.rec != nil {
		if err := c.rec.RecordSnapshot(now, res.RequestID, res.Generation, res.Approach.String(), res.Count, ""); err != nil {
			monitoring.Logf("phase: record snapshot: %v", err)
		}
	}

	// Measurements for the approach already being served arrive too late to
	// resize its running green. The count sticks, the plan does not.
	if a, ok := c.activeApproachLocked(); ok && c.phase == Green && a == res.Approach {
		monitoring.Debugf("phase: snapshot for active approach %s updates counts only", res.Approach)
		return
	}

	green := c.cfg.GreenFor(res.Count)
	if res.GreenMs > 0 {
		green = time.Duration(res.GreenMs) * time.Millisecond
		if min := c.cfg.GetMinGreen(); green < min {
			green = min
		}
		if max := c.cfg.GetMaxGreen(); green > max {
			green = max
		}
	}
	c.resolved[res.Approach] = resolvedPlan{count: res.Count, green: green}
	monitoring.Debugf("phase: snapshot %s resolved, %s gets %v for %d vehicles", res.RequestID, res.Approach, green, res.Count)
}
