package history

import (
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB opens a migrated history DB in a temp directory. A file-backed
// DB (rather than :memory:) exercises the same pragmas as production.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"phase_events", "count_events", "snapshot_events", "emergency_events", "cycle_rollups", "timing_configs"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after Open: %v", table, err)
		}
	}

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if dirty {
		t.Error("migration state dirty after Open")
	}
	if version != 3 {
		t.Errorf("Expected migration version 3, got %d", version)
	}
}

func TestMigrateDownAndBackUp(t *testing.T) {
	db := setupTestDB(t)

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2 after down, got %d", version)
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	version, _, err = db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("Expected version 3 after up, got %d", version)
	}
}

func TestRecordPhaseChangeRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	events := []struct {
		phase    string
		approach string
		ms       int64
		source   string
	}{
		{"green", "north", 20000, "first"},
		{"yellow", "north", 3000, ""},
		{"allRed", "north", 2000, ""},
		{"green", "east", 14000, "snapshot"},
	}
	for i, ev := range events {
		if err := db.RecordPhaseChange(base.Add(time.Duration(i)*time.Second), ev.phase, ev.approach, ev.ms, ev.source); err != nil {
			t.Fatalf("RecordPhaseChange(%d) failed: %v", i, err)
		}
	}

	recent, err := db.RecentPhaseEvents(10)
	if err != nil {
		t.Fatalf("RecentPhaseEvents failed: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(recent))
	}
	// Newest first
	if recent[0].Phase != "green" || recent[0].Approach != "east" {
		t.Errorf("Expected newest event green/east, got %s/%s", recent[0].Phase, recent[0].Approach)
	}
	if recent[0].Source != "snapshot" {
		t.Errorf("Expected source snapshot, got %q", recent[0].Source)
	}

	greens, err := db.GreenDurations("north", base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("GreenDurations failed: %v", err)
	}
	if len(greens) != 1 || greens[0] != 20000 {
		t.Errorf("Expected [20000], got %v", greens)
	}

	series, err := db.GreenSeries("east", base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("GreenSeries failed: %v", err)
	}
	if len(series) != 1 || series[0][1] != 14000 {
		t.Errorf("Expected one series point of 14000ms, got %v", series)
	}
}

func TestRecordCountsAndClassTotals(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	if err := db.RecordCounts(now, "north", 4, map[string]int{"car": 3, "bike": 1}); err != nil {
		t.Fatalf("RecordCounts failed: %v", err)
	}
	if err := db.RecordCounts(now, "north", 2, nil); err != nil {
		t.Fatalf("RecordCounts without classes failed: %v", err)
	}
	if err := db.RecordCounts(now, "south", 5, map[string]int{"car": 5}); err != nil {
		t.Fatalf("RecordCounts failed: %v", err)
	}

	totals, err := db.CountsByApproach(now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountsByApproach failed: %v", err)
	}
	if totals["north"] != 6 {
		t.Errorf("Expected north total 6, got %d", totals["north"])
	}
	if totals["south"] != 5 {
		t.Errorf("Expected south total 5, got %d", totals["south"])
	}

	classes, err := db.ClassTotals(now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ClassTotals failed: %v", err)
	}
	if classes["car"] != 8 {
		t.Errorf("Expected 8 cars, got %d", classes["car"])
	}
	if classes["bike"] != 1 {
		t.Errorf("Expected 1 bike, got %d", classes["bike"])
	}
}

func TestRecordSnapshotAndEmergency(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	if err := db.RecordSnapshot(now, "req-1", 1, "east", 7, ""); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}
	if err := db.RecordSnapshot(now, "req-2", 1, "south", 0, "camera offline"); err != nil {
		t.Fatalf("RecordSnapshot with error failed: %v", err)
	}
	if err := db.RecordEmergency(now, "west", "activated"); err != nil {
		t.Fatalf("RecordEmergency failed: %v", err)
	}

	var snapshots, failures, emergencies int
	if err := db.QueryRow(`SELECT COUNT(*) FROM snapshot_events`).Scan(&snapshots); err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM snapshot_events WHERE error != ''`).Scan(&failures); err != nil {
		t.Fatalf("count failures: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM emergency_events WHERE approach = 'west'`).Scan(&emergencies); err != nil {
		t.Fatalf("count emergencies: %v", err)
	}
	if snapshots != 2 || failures != 1 || emergencies != 1 {
		t.Errorf("Expected 2 snapshots / 1 failure / 1 emergency, got %d/%d/%d", snapshots, failures, emergencies)
	}
}

func TestTimingConfigActiveSwap(t *testing.T) {
	db := setupTestDB(t)

	active, err := db.ActiveTimingConfig()
	if err != nil {
		t.Fatalf("ActiveTimingConfig on empty DB failed: %v", err)
	}
	if active != "" {
		t.Errorf("Expected no active config, got %q", active)
	}

	if err := db.SaveTimingConfig(time.Now(), `{"yellow_ms":4000}`); err != nil {
		t.Fatalf("SaveTimingConfig failed: %v", err)
	}
	if err := db.SaveTimingConfig(time.Now().Add(time.Second), `{"yellow_ms":5000}`); err != nil {
		t.Fatalf("second SaveTimingConfig failed: %v", err)
	}

	active, err = db.ActiveTimingConfig()
	if err != nil {
		t.Fatalf("ActiveTimingConfig failed: %v", err)
	}
	if active != `{"yellow_ms":5000}` {
		t.Errorf("Expected latest config active, got %q", active)
	}

	var activeRows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM timing_configs WHERE active = 1`).Scan(&activeRows); err != nil {
		t.Fatalf("count active configs: %v", err)
	}
	if activeRows != 1 {
		t.Errorf("Expected exactly 1 active config row, got %d", activeRows)
	}
}
