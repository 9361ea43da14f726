// Package history is the event log for the signal controller: every phase
// change, count report, snapshot resolution, and emergency activation is
// recorded to SQLite so dashboards and reports can reconstruct what the
// intersection did. It is an append-only log, not a state store; the
// controller never reads it to decide anything.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/greenwave-data/junction.control/internal/monitoring"
)

type DB struct {
	*sql.DB

	path string
}

// Open opens (or creates) the history database at path and applies all
// pending migrations. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	// WAL keeps the recorder from blocking readers; the busy timeout covers
	// the rollup worker and API queries sharing the file.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string { return db.path }

func tsMs(ts time.Time) int64 { return ts.UnixMilli() }

// RecordPhaseChange logs one phase transition. source identifies how the
// duration was chosen (first/emergency/snapshot/policy/reset).
func (db *DB) RecordPhaseChange(ts time.Time, phase, approach string, plannedMs int64, source string) error {
	_, err := db.Exec(
		`INSERT INTO phase_events (ts_ms, phase, approach, duration_ms, source) VALUES (?, ?, ?, ?, ?)`,
		tsMs(ts), phase, approach, plannedMs, source,
	)
	return err
}

// RecordCounts logs one count observation, with an optional per-class
// breakdown stored as JSON.
func (db *DB) RecordCounts(ts time.Time, approach string, count int, classes map[string]int) error {
	var classesJSON sql.NullString
	if len(classes) > 0 {
		b, err := json.Marshal(classes)
		if err != nil {
			return fmt.Errorf("failed to encode class breakdown: %w", err)
		}
		classesJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := db.Exec(
		`INSERT INTO count_events (ts_ms, approach, count, classes_json) VALUES (?, ?, ?, ?)`,
		tsMs(ts), approach, count, classesJSON,
	)
	return err
}

// RecordSnapshot logs a snapshot resolution or failure.
func (db *DB) RecordSnapshot(ts time.Time, requestID string, generation uint64, approach string, count int, errMsg string) error {
	_, err := db.Exec(
		`INSERT INTO snapshot_events (ts_ms, request_id, generation, approach, count, error) VALUES (?, ?, ?, ?, ?, ?)`,
		tsMs(ts), requestID, generation, approach, count, errMsg,
	)
	return err
}

// RecordEmergency logs an emergency lifecycle event
// (activated/retargeted/served).
func (db *DB) RecordEmergency(ts time.Time, approach string, action string) error {
	_, err := db.Exec(
		`INSERT INTO emergency_events (ts_ms, approach, action) VALUES (?, ?, ?)`,
		tsMs(ts), approach, action,
	)
	return err
}

// GreenDurations returns the planned durations (ms) of green phases for one
// approach since the given time, oldest first.
func (db *DB) GreenDurations(approach string, since time.Time) ([]float64, error) {
	rows, err := db.Query(
		`SELECT duration_ms FROM phase_events
		 WHERE phase = 'green' AND approach = ? AND ts_ms >= ?
		 ORDER BY ts_ms ASC`,
		approach, tsMs(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var durations []float64
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		durations = append(durations, float64(ms))
	}
	return durations, rows.Err()
}

// CountsByApproach sums the recorded vehicle counts per approach since the
// given time.
func (db *DB) CountsByApproach(since time.Time) (map[string]int64, error) {
	rows, err := db.Query(
		`SELECT approach, SUM(count) FROM count_events
		 WHERE ts_ms >= ? GROUP BY approach`,
		tsMs(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var approach string
		var total int64
		if err := rows.Scan(&approach, &total); err != nil {
			return nil, err
		}
		totals[approach] = total
	}
	return totals, rows.Err()
}

// ClassTotals sums the per-class breakdowns recorded since the given time.
// Events without a breakdown contribute nothing.
func (db *DB) ClassTotals(since time.Time) (map[string]int64, error) {
	rows, err := db.Query(
		`SELECT classes_json FROM count_events
		 WHERE ts_ms >= ? AND classes_json IS NOT NULL`,
		tsMs(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var classes map[string]int
		if err := json.Unmarshal([]byte(raw), &classes); err != nil {
			monitoring.Logf("history: skipping malformed class breakdown: %v", err)
			continue
		}
		for class, n := range classes {
			totals[class] += int64(n)
		}
	}
	return totals, rows.Err()
}

// PhaseEvent is one row of the phase change log.
type PhaseEvent struct {
	ID         int64  `json:"id"`
	TsMs       int64  `json:"ts_ms"`
	Phase      string `json:"phase"`
	Approach   string `json:"approach"`
	DurationMs int64  `json:"duration_ms"`
	Source     string `json:"source"`
}

// RecentPhaseEvents returns the most recent phase transitions, newest
// first.
func (db *DB) RecentPhaseEvents(limit int) ([]PhaseEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT id, ts_ms, phase, approach, duration_ms, source
		 FROM phase_events ORDER BY ts_ms DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []PhaseEvent
	for rows.Next() {
		var ev PhaseEvent
		if err := rows.Scan(&ev.ID, &ev.TsMs, &ev.Phase, &ev.Approach, &ev.DurationMs, &ev.Source); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GreenSeries returns (timestamp ms, duration ms) pairs of green phases for
// one approach since the given time, oldest first. Used by the charts.
func (db *DB) GreenSeries(approach string, since time.Time) ([][2]int64, error) {
	rows, err := db.Query(
		`SELECT ts_ms, duration_ms FROM phase_events
		 WHERE phase = 'green' AND approach = ? AND ts_ms >= ?
		 ORDER BY ts_ms ASC`,
		approach, tsMs(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series [][2]int64
	for rows.Next() {
		var ts, ms int64
		if err := rows.Scan(&ts, &ms); err != nil {
			return nil, err
		}
		series = append(series, [2]int64{ts, ms})
	}
	return series, rows.Err()
}

// SaveTimingConfig stores a timing configuration body and marks it active,
// deactivating any previous one in the same transaction.
func (db *DB) SaveTimingConfig(ts time.Time, bodyJSON string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			monitoring.Logf("history: failed to rollback timing config tx: %v", err)
		}
	}()

	if _, err := tx.Exec(`UPDATE timing_configs SET active = 0 WHERE active = 1`); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO timing_configs (applied_at_ms, body_json, active) VALUES (?, ?, 1)`,
		tsMs(ts), bodyJSON,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ActiveTimingConfig returns the JSON body of the active timing
// configuration, or "" when none has ever been applied.
func (db *DB) ActiveTimingConfig() (string, error) {
	var body string
	err := db.QueryRow(
		`SELECT body_json FROM timing_configs WHERE active = 1 ORDER BY applied_at_ms DESC LIMIT 1`,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return body, nil
}
