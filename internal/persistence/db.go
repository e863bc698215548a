// Package persistence provides SQLite-based storage for simulation runs:
// the activity feed and the metrics history, keyed by run id.
package persistence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/supply-sim/internal/engine"
	"github.com/talgya/supply-sim/internal/metrics"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metrics_history (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		revenue REAL NOT NULL,
		storage_cost REAL NOT NULL,
		lost_sales REAL NOT NULL,
		net_profit REAL NOT NULL,
		orders_fulfilled INTEGER NOT NULL,
		orders_cancelled INTEGER NOT NULL,
		fulfillment_rate REAL NOT NULL,
		efficiency_score REAL NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// NewRun records a new simulation run and returns its id.
func (db *DB) NewRun(scenario string, seed int64) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, scenario, seed, started_at) VALUES (?, ?, ?, ?)",
		id, scenario, seed, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SaveFeed appends feed entries for a run.
func (db *DB) SaveFeed(runID string, entries []engine.FeedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(
		"INSERT INTO events (run_id, tick, category, severity, description) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(runID, e.Tick, e.Category, e.Severity, e.Description); err != nil {
			return fmt.Errorf("insert event at tick %d: %w", e.Tick, err)
		}
	}
	return tx.Commit()
}

// SaveMetrics records a metrics sample for a run at a tick. Re-saving the
// same tick replaces the sample.
func (db *DB) SaveMetrics(runID string, tick uint64, m metrics.Metrics) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO metrics_history
		(run_id, tick, revenue, storage_cost, lost_sales, net_profit,
		 orders_fulfilled, orders_cancelled, fulfillment_rate, efficiency_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, tick, m.Revenue, m.StorageCost, m.LostSales, m.NetProfit,
		m.OrdersFulfilled, m.OrdersCancelled, m.FulfillmentRate, m.EfficiencyScore,
	)
	return err
}

// RecentEvents returns the newest feed entries for a run, oldest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.FeedEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Queryx(`SELECT tick, category, severity, description
		FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.FeedEntry
	for rows.Next() {
		var e engine.FeedEntry
		if err := rows.Scan(&e.Tick, &e.Category, &e.Severity, &e.Description); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// MetricsRow is one sample from the metrics history.
type MetricsRow struct {
	Tick            uint64  `db:"tick" json:"tick"`
	Revenue         float64 `db:"revenue" json:"revenue"`
	StorageCost     float64 `db:"storage_cost" json:"storage_cost"`
	LostSales       float64 `db:"lost_sales" json:"lost_sales"`
	NetProfit       float64 `db:"net_profit" json:"net_profit"`
	OrdersFulfilled int     `db:"orders_fulfilled" json:"orders_fulfilled"`
	OrdersCancelled int     `db:"orders_cancelled" json:"orders_cancelled"`
	FulfillmentRate float64 `db:"fulfillment_rate" json:"fulfillment_rate"`
	EfficiencyScore float64 `db:"efficiency_score" json:"efficiency_score"`
}

// MetricsHistory returns metrics samples for a run within a tick range.
func (db *DB) MetricsHistory(runID string, fromTick, toTick uint64, limit int) ([]MetricsRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []MetricsRow
	err := db.conn.Select(&rows, `SELECT tick, revenue, storage_cost, lost_sales, net_profit,
		orders_fulfilled, orders_cancelled, fulfillment_rate, efficiency_score
		FROM metrics_history
		WHERE run_id = ? AND tick >= ? AND tick <= ?
		ORDER BY tick DESC LIMIT ?`, runID, fromTick, toTick, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
