package phase

import (
	"context"
	"sync"
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/monitoring"
	"github.com/greenwave-data/junction.control/internal/timeutil"
	"github.com/greenwave-data/junction.control/internal/timing"
)

// SnapshotRequester sends an asynchronous count request to the detector.
// Implementations must not block for long; the controller holds no lock
// while the request is in flight but issues at most one at a time.
type SnapshotRequester interface {
	RequestSnapshot(a approach.Approach, requestID string, generation uint64) error
}

// Recorder receives controller events for persistence. All methods are
// best-effort: errors are logged by the controller and never affect signal
// timing. A nil Recorder disables persistence.
type Recorder interface {
	RecordPhaseChange(ts time.Time, phase, approach string, plannedMs int64, source string) error
	RecordCounts(ts time.Time, approach string, count int, classes map[string]int) error
	RecordSnapshot(ts time.Time, requestID string, generation uint64, approach string, count int, errMsg string) error
	RecordEmergency(ts time.Time, approach string, action string) error
}

// resolvedPlan is a snapshot measurement waiting for the green activation
// that will consume it.
type resolvedPlan struct {
	count int
	green time.Duration
}

// Controller owns the full signal state for one intersection. All mutations
// funnel through a single mutex so a tick, a snapshot resolution, and an
// operator command can never interleave mid-transition.
type Controller struct {
	mu    sync.Mutex
	clock timeutil.Clock
	cfg   *timing.Config
	req   SnapshotRequester
	rec   Recorder

	phase      Phase
	active     int // rotation index, -1 until the first activation
	phaseStart time.Time
	phaseDur   time.Duration
	durSource  string

	// resume is the rotation index normal cycling returns to after an
	// emergency green, -1 when no emergency is in flight. resumeWraps marks
	// whether arriving there completes a traversal of the rotation.
	resume      int
	resumeWraps bool

	firstActivation bool
	completedCycles int

	counts          CountTable
	classTotals     map[approach.Class]int64
	totalDetections int64
	countReports    int64

	// snapshot request manager
	generation          uint64
	pending             bool
	pendingID           string
	pendingFor          approach.Approach
	pendingSince        time.Time
	requestedThisGreen  bool
	needInitialSnapshot bool
	resolved            map[approach.Approach]resolvedPlan
	snapshotRequests    int64

	emergencyActive bool
	emergencyTarget approach.Approach

	detectorUp      bool
	lastDetectorErr string

	startedAt time.Time

	subMu sync.Mutex
	subs  map[string]chan DisplayFrame
}

// NewController builds a controller in the initializing state. The first
// tick issues the initial snapshot request for north and activates the
// first green. rec may be nil.
func NewController(clock timeutil.Clock, cfg *timing.Config, req SnapshotRequester, rec Recorder) *Controller {
	c := &Controller{
		clock: clock,
		cfg:   cfg,
		req:   req,
		rec:   rec,
		subs:  make(map[string]chan DisplayFrame),
	}
	c.resetLocked(clock.Now())
	return c
}

// resetLocked returns the controller to its initial state. Bumping the
// generation orphans every in-flight snapshot request so a late resolution
// cannot touch the fresh context.
func (c *Controller) resetLocked(now time.Time) {
	c.generation++
	c.phase = Initializing
	c.active = -1
	c.resume = -1
	c.resumeWraps = false
	c.phaseStart = now
	c.phaseDur = 0
	c.durSource = ""
	c.firstActivation = true
	c.completedCycles = 0
	c.counts = NewCountTable()
	c.classTotals = make(map[approach.Class]int64)
	c.totalDetections = 0
	c.countReports = 0
	c.pending = false
	c.pendingID = ""
	c.pendingFor = ""
	c.requestedThisGreen = false
	c.needInitialSnapshot = true
	c.resolved = make(map[approach.Approach]resolvedPlan)
	c.snapshotRequests = 0
	c.emergencyActive = false
	c.emergencyTarget = ""
	c.startedAt = now
}

// Reset returns all counters to their initial values, clears emergency
// state, cancels the pending snapshot request, and re-arms the initializing
// phase. The next tick re-issues the initial snapshot request for north.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	monitoring.Logf("phase: reset, dropping generation %d state", c.generation)
	c.resetLocked(now)
	if c.rec != nil {
		if err := c.rec.RecordPhaseChange(now, Initializing.String(), "", 0, SourceReset); err != nil {
			monitoring.Logf("phase: record reset: %v", err)
		}
	}
}

// UpdateConfig swaps the timing configuration. The caller validates it. The
// new values apply from the next duration computation; the tick cadence
// itself is fixed at Run time.
func (c *Controller) UpdateConfig(cfg *timing.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	monitoring.Logf("phase: timing configuration updated")
}

// Config returns the timing configuration currently in effect.
func (c *Controller) Config() *timing.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetDetectorStatus reports detector link state. Connectivity never stops
// the phase clock; it only changes what the display and status surfaces
// show and which duration source greens fall back to.
func (c *Controller) SetDetectorStatus(up bool, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if up != c.detectorUp {
		if up {
			monitoring.Logf("phase: detector link up")
		} else {
			monitoring.Logf("phase: detector link down: %s", errMsg)
		}
	}
	c.detectorUp = up
	c.lastDetectorErr = errMsg
	if up {
		c.lastDetectorErr = ""
	}
}

// Run drives the controller from the clock until ctx is cancelled. One tick
// performs at most one pass of trigger checks, catches up any overdue
// transitions, and emits a display frame.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	interval := c.cfg.GetTickInterval()
	c.mu.Unlock()

	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			c.Tick(now)
		}
	}
}

// maxTransitionsPerTick bounds catch-up after a stalled clock. Sixteen
// transitions cover several full rotations; anything beyond that is
// absorbed on the following ticks.
const maxTransitionsPerTick = 16

// Tick advances the state machine to now. It is safe to call at any
// frequency; a late tick applies every transition the elapsed time calls
// for instead of crashing or skipping states.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()

	// A phase outside the defined set or a non-positive running duration
	// means the context was corrupted. Clamp to all-red: this controller
	// governs a live signal head, so fail safe rather than fail fast.
	if !c.phase.Valid() || (c.phase != Initializing && c.phaseDur <= 0) {
		monitoring.Logf("phase: invalid state %s/%v, clamping to all-red", c.phase, c.phaseDur)
		c.phase = AllRed
		c.phaseDur = c.cfg.GetAllRed()
		c.phaseStart = now
		c.durSource = ""
	}

	if c.phase == Initializing {
		if c.needInitialSnapshot {
			c.issueSnapshotLocked(approach.North, now)
			c.needInitialSnapshot = false
		}
		c.activateGreenLocked(now, now)
	} else {
		c.expirePendingLocked(now)

		// Predictive trigger: size the next green while this one still
		// runs, so switching never waits on the detector.
		if c.phase == Green && !c.emergencyActive && !c.requestedThisGreen {
			remaining := c.phaseDur - now.Sub(c.phaseStart)
			if remaining <= c.cfg.GetSnapshotLead() {
				next := approach.AtIndex(c.nextIndexLocked())
				if c.issueSnapshotLocked(next, now) {
					c.requestedThisGreen = true
				}
			}
		}

		for i := 0; i < maxTransitionsPerTick; i++ {
			if now.Sub(c.phaseStart) < c.phaseDur {
				break
			}
			c.transitionLocked(now)
		}
	}

	frame := c.frameLocked(now)
	c.mu.Unlock()

	c.publish(frame)
}

// transitionLocked applies the single transition the current phase is due
// for. Successor phases start at the exact boundary of the finished one so
// the cycle stays phase-locked even when ticks land late.
func (c *Controller) transitionLocked(now time.Time) {
	boundary := c.phaseStart.Add(c.phaseDur)
	switch c.phase {
	case Green:
		c.setPhaseLocked(Yellow, c.cfg.GetYellow(), boundary, "")
	case Yellow:
		c.setPhaseLocked(AllRed, c.cfg.GetAllRed(), boundary, "")
	case AllRed:
		c.activateGreenLocked(now, boundary)
	}
}

// activateGreenLocked performs the allRed->green (or initializing->green)
// transition: it picks the approach to serve, sizes its green by the
// activation precedence, and does the cycle bookkeeping.
func (c *Controller) activateGreenLocked(now, startAt time.Time) {
	var target int

	grantEmergency := c.emergencyActive
	switch {
	case grantEmergency:
		// Emergency mode clears here, at the activation that grants its
		// green. The resume slot keeps the position normal rotation would
		// have reached, and survives chained re-activations.
		c.emergencyActive = false
		if c.resume < 0 {
			c.resume = (c.active + 1) % approach.Count
			c.resumeWraps = c.active == approach.Count-1
		}
		target, _ = approach.IndexOf(c.emergencyTarget)
		c.emergencyTarget = ""
	case c.resume >= 0:
		target = c.resume
		if c.resumeWraps {
			c.completedCycles++
		}
		c.resume = -1
		c.resumeWraps = false
	default:
		target = (c.active + 1) % approach.Count
		if target == 0 && c.active >= 0 {
			c.completedCycles++
		}
	}

	a := approach.AtIndex(target)

	var (
		dur time.Duration
		src string
	)
	switch {
	case c.firstActivation:
		dur = c.cfg.GetFirstGreen()
		src = SourceFirst
		c.firstActivation = false
	case grantEmergency:
		dur = c.cfg.GetEmergencyGreen()
		src = SourceEmergency
	default:
		if plan, ok := c.resolved[a]; ok {
			dur = plan.green
			src = SourceSnapshot
		} else {
			dur = c.cfg.GreenFor(c.counts[a])
			src = SourcePolicy
		}
	}
	// A plan is single-use: consumed by this activation or discarded so it
	// cannot leak into a green a full rotation later.
	delete(c.resolved, a)

	if grantEmergency && c.rec != nil {
		if err := c.rec.RecordEmergency(startAt, a.String(), "served"); err != nil {
			monitoring.Logf("phase: record emergency green: %v", err)
		}
	}

	c.active = target
	c.requestedThisGreen = false
	c.setPhaseLocked(Green, dur, startAt, src)
}

// setPhaseLocked installs a phase with its duration and records the change.
// Durations must be positive; anything else clamps to all-red.
func (c *Controller) setPhaseLocked(p Phase, dur time.Duration, startAt time.Time, source string) {
	if dur <= 0 {
		monitoring.Logf("phase: refusing %v duration for %s, forcing all-red", dur, p)
		p = AllRed
		dur = c.cfg.GetAllRed()
	}
	c.phase = p
	c.phaseDur = dur
	c.phaseStart = startAt
	c.durSource = source

	name := ""
	if a, ok := c.activeApproachLocked(); ok {
		name = a.String()
	}
	if source != "" {
		monitoring.Logf("phase: %s %s for %v (%s)", p, name, dur, source)
	} else {
		monitoring.Logf("phase: %s %s for %v", p, name, dur)
	}
	if c.rec != nil {
		if err := c.rec.RecordPhaseChange(startAt, p.String(), name, dur.Milliseconds(), source); err != nil {
			monitoring.Logf("phase: record phase change: %v", err)
		}
	}
}

// nextIndexLocked is the rotation index that will receive the next green:
// the emergency pin if one is waiting, the resume slot after an emergency,
// or the plain successor.
func (c *Controller) nextIndexLocked() int {
	if c.emergencyActive {
		if i, ok := approach.IndexOf(c.emergencyTarget); ok {
			return i
		}
	}
	if c.resume >= 0 {
		return c.resume
	}
	return (c.active + 1) % approach.Count
}

// activeApproachLocked is the approach the signals currently serve. While
// emergency mode is active the pin overrides the rotation index; before the
// first activation there is none.
func (c *Controller) activeApproachLocked() (approach.Approach, bool) {
	if c.emergencyActive {
		return c.emergencyTarget, true
	}
	if c.active < 0 {
		return "", false
	}
	return approach.AtIndex(c.active), true
}
