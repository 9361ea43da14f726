// Package timing holds the signal timing policy: the demand-based green
// formula and the tunable phase durations around it.
package timing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default timing values in milliseconds. Every one can be overridden via a
// Config file or the timing API.
const (
	DefaultStartupGreenMs   = 5000
	DefaultPerVehicleMs     = 3000
	DefaultMinGreenMs       = 10000
	DefaultMaxGreenMs       = 60000
	DefaultYellowMs         = 3000
	DefaultAllRedMs         = 2000
	DefaultFirstGreenMs     = 20000
	DefaultEmergencyGreenMs = 30000
	DefaultSnapshotLeadMs   = 3000
	DefaultTickIntervalMs   = 50
)

// Config represents the tunable timing parameters. The schema matches the
// /api/timing endpoint so the same JSON can be used for both startup
// configuration and runtime updates. Fields left nil fall back to the
// defaults via the Get* methods, so partial configs are safe.
type Config struct {
	// Green formula params
	StartupGreenMs *int `json:"startup_green_ms,omitempty"`
	PerVehicleMs   *int `json:"per_vehicle_ms,omitempty"`
	MinGreenMs     *int `json:"min_green_ms,omitempty"`
	MaxGreenMs     *int `json:"max_green_ms,omitempty"`

	// Fixed phase durations
	YellowMs *int `json:"yellow_ms,omitempty"`
	AllRedMs *int `json:"all_red_ms,omitempty"`

	// Special green durations
	FirstGreenMs     *int `json:"first_green_ms,omitempty"`
	EmergencyGreenMs *int `json:"emergency_green_ms,omitempty"`

	// Scheduler params
	SnapshotLeadMs *int `json:"snapshot_lead_ms,omitempty"`
	TickIntervalMs *int `json:"tick_interval_ms,omitempty"`
}

func ptrInt(v int) *int { return &v }

// EmptyConfig returns a Config with all fields set to nil, meaning every
// Get* method returns its default.
func EmptyConfig() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("timing config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat timing config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("timing config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse timing config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	positive := map[string]*int{
		"startup_green_ms":   c.StartupGreenMs,
		"per_vehicle_ms":     c.PerVehicleMs,
		"min_green_ms":       c.MinGreenMs,
		"max_green_ms":       c.MaxGreenMs,
		"yellow_ms":          c.YellowMs,
		"all_red_ms":         c.AllRedMs,
		"first_green_ms":     c.FirstGreenMs,
		"emergency_green_ms": c.EmergencyGreenMs,
		"snapshot_lead_ms":   c.SnapshotLeadMs,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}

	if c.MinGreenMs != nil && c.MaxGreenMs != nil && *c.MinGreenMs > *c.MaxGreenMs {
		return fmt.Errorf("min_green_ms %d exceeds max_green_ms %d", *c.MinGreenMs, *c.MaxGreenMs)
	}

	// The display and scheduler assume ticks land well inside the shortest
	// phase, so the tick interval is capped.
	if c.TickIntervalMs != nil {
		if *c.TickIntervalMs <= 0 || *c.TickIntervalMs > DefaultTickIntervalMs {
			return fmt.Errorf("tick_interval_ms must be between 1 and %d, got %d", DefaultTickIntervalMs, *c.TickIntervalMs)
		}
	}

	if c.SnapshotLeadMs != nil && *c.SnapshotLeadMs >= c.getMs(c.MinGreenMs, DefaultMinGreenMs) {
		return fmt.Errorf("snapshot_lead_ms %d must be shorter than the minimum green", *c.SnapshotLeadMs)
	}

	return nil
}

func (c *Config) getMs(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// GetStartupGreen returns the green formula base duration.
func (c *Config) GetStartupGreen() time.Duration {
	return msToDuration(c.getMs(c.StartupGreenMs, DefaultStartupGreenMs))
}

// GetPerVehicle returns the per-vehicle green increment.
func (c *Config) GetPerVehicle() time.Duration {
	return msToDuration(c.getMs(c.PerVehicleMs, DefaultPerVehicleMs))
}

// GetMinGreen returns the lower clamp on computed greens.
func (c *Config) GetMinGreen() time.Duration {
	return msToDuration(c.getMs(c.MinGreenMs, DefaultMinGreenMs))
}

// GetMaxGreen returns the upper clamp on computed greens.
func (c *Config) GetMaxGreen() time.Duration {
	return msToDuration(c.getMs(c.MaxGreenMs, DefaultMaxGreenMs))
}

// GetYellow returns the fixed yellow duration.
func (c *Config) GetYellow() time.Duration {
	return msToDuration(c.getMs(c.YellowMs, DefaultYellowMs))
}

// GetAllRed returns the fixed all-red clearance duration.
func (c *Config) GetAllRed() time.Duration {
	return msToDuration(c.getMs(c.AllRedMs, DefaultAllRedMs))
}

// GetFirstGreen returns the fixed green used the first time an approach is
// served after startup or reset.
func (c *Config) GetFirstGreen() time.Duration {
	return msToDuration(c.getMs(c.FirstGreenMs, DefaultFirstGreenMs))
}

// GetEmergencyGreen returns the fixed green granted to an emergency
// approach.
func (c *Config) GetEmergencyGreen() time.Duration {
	return msToDuration(c.getMs(c.EmergencyGreenMs, DefaultEmergencyGreenMs))
}

// GetSnapshotLead returns how long before the end of a green the snapshot
// for the next approach is requested.
func (c *Config) GetSnapshotLead() time.Duration {
	return msToDuration(c.getMs(c.SnapshotLeadMs, DefaultSnapshotLeadMs))
}

// GetTickInterval returns the scheduler tick period.
func (c *Config) GetTickInterval() time.Duration {
	return msToDuration(c.getMs(c.TickIntervalMs, DefaultTickIntervalMs))
}
