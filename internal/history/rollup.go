package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/monitoring"
)

// RollupWorker periodically aggregates the raw phase and count event logs
// into per-hour, per-approach buckets in cycle_rollups. Designed to run
// every 15 minutes over the last 2 hours with overlap, so late writes and
// re-runs update buckets instead of duplicating them.
type RollupWorker struct {
	DB       *DB
	Interval time.Duration // how often to run (e.g., 15m)
	Window   time.Duration // lookback window (e.g., 2h)
	StopChan chan struct{}
}

// bucketMs is the rollup bucket width: one hour.
const bucketMs = int64(time.Hour / time.Millisecond)

func NewRollupWorker(db *DB) *RollupWorker {
	return &RollupWorker{
		DB:       db,
		Interval: 15 * time.Minute,
		Window:   2 * time.Hour,
		StopChan: make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *RollupWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					monitoring.Logf("history: rollup run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *RollupWorker) Stop() {
	close(w.StopChan)
}

// RunOnce rolls up the last w.Window of events.
func (w *RollupWorker) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	return w.RunRange(ctx, now.Add(-w.Window).UnixMilli(), now.UnixMilli())
}

// RunRange rolls up events in [startMs, endMs]. Buckets touched by the
// range are recomputed whole: existing rows are deleted and rebuilt from
// the raw events, so overlapping runs converge instead of double counting.
func (w *RollupWorker) RunRange(ctx context.Context, startMs, endMs int64) error {
	// Snap to bucket boundaries so a partial window still recomputes the
	// full buckets it touches.
	startMs = (startMs / bucketMs) * bucketMs
	endMs = ((endMs / bucketMs) + 1) * bucketMs

	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			// ErrTxDone means transaction was already committed/rolled back
			monitoring.Logf("history: failed to rollback rollup transaction: %v", err)
		}
	}()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM cycle_rollups WHERE bucket_start_ms >= ? AND bucket_start_ms < ?`,
		startMs, endMs,
	)
	if err != nil {
		return fmt.Errorf("failed to delete overlapping rollups: %w", err)
	}
	if deleted, _ := result.RowsAffected(); deleted > 0 {
		monitoring.Debugf("history: rollup replaced %d buckets in [%d, %d)", deleted, startMs, endMs)
	}

	type key struct {
		bucket   int64
		approach string
	}
	type agg struct {
		greens       int64
		totalGreenMs int64
		vehicles     int64
	}
	buckets := make(map[key]*agg)
	get := func(bucket int64, a string) *agg {
		k := key{bucket, a}
		if buckets[k] == nil {
			buckets[k] = &agg{}
		}
		return buckets[k]
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT ts_ms, approach, duration_ms FROM phase_events
		 WHERE phase = 'green' AND approach != '' AND ts_ms >= ? AND ts_ms < ?`,
		startMs, endMs,
	)
	if err != nil {
		return fmt.Errorf("failed to query green events: %w", err)
	}
	for rows.Next() {
		var ts, durMs int64
		var a string
		if err := rows.Scan(&ts, &a, &durMs); err != nil {
			rows.Close()
			return err
		}
		b := get((ts/bucketMs)*bucketMs, a)
		b.greens++
		b.totalGreenMs += durMs
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = tx.QueryContext(ctx,
		`SELECT ts_ms, approach, count FROM count_events
		 WHERE ts_ms >= ? AND ts_ms < ?`,
		startMs, endMs,
	)
	if err != nil {
		return fmt.Errorf("failed to query count events: %w", err)
	}
	for rows.Next() {
		var ts int64
		var a string
		var count int64
		if err := rows.Scan(&ts, &a, &count); err != nil {
			rows.Close()
			return err
		}
		get((ts/bucketMs)*bucketMs, a).vehicles += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for k, b := range buckets {
		var avg float64
		if b.greens > 0 {
			avg = float64(b.totalGreenMs) / float64(b.greens)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycle_rollups (bucket_start_ms, approach, greens, total_green_ms, avg_green_ms, vehicles)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			k.bucket, k.approach, b.greens, b.totalGreenMs, avg, b.vehicles,
		); err != nil {
			return fmt.Errorf("failed to insert rollup for %s@%d: %w", k.approach, k.bucket, err)
		}
	}

	return tx.Commit()
}

// Rollup is one aggregated bucket row.
type Rollup struct {
	BucketStartMs int64   `json:"bucket_start_ms"`
	Approach      string  `json:"approach"`
	Greens        int64   `json:"greens"`
	TotalGreenMs  int64   `json:"total_green_ms"`
	AvgGreenMs    float64 `json:"avg_green_ms"`
	Vehicles      int64   `json:"vehicles"`
}

// Rollups returns the aggregated buckets since the given time, oldest
// first, ordered by bucket then rotation position.
func (db *DB) Rollups(since time.Time) ([]Rollup, error) {
	rows, err := db.Query(
		`SELECT bucket_start_ms, approach, greens, total_green_ms, avg_green_ms, vehicles
		 FROM cycle_rollups WHERE bucket_start_ms >= ?
		 ORDER BY bucket_start_ms ASC, approach ASC`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rollups []Rollup
	for rows.Next() {
		var r Rollup
		if err := rows.Scan(&r.BucketStartMs, &r.Approach, &r.Greens, &r.TotalGreenMs, &r.AvgGreenMs, &r.Vehicles); err != nil {
			return nil, err
		}
		if !approach.IsValid(approach.Approach(r.Approach)) {
			continue
		}
		rollups = append(rollups, r)
	}
	return rollups, rows.Err()
}
