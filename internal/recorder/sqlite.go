package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so external tools can read while the watcher writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id            TEXT PRIMARY KEY,
			timestamp     INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			timeframe     TEXT,
			source_file   TEXT,
			bar_count     INTEGER,
			quality_score REAL,
			current_price REAL,
			gap_count     INTEGER,
			unfilled_gaps INTEGER,
			level_count   INTEGER,
			zone_count    INTEGER,
			fresh_zones   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON analysis_runs(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rec.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO analysis_runs
		(id, timestamp, symbol, timeframe, source_file, bar_count, quality_score,
		 current_price, gap_count, unfilled_gaps, level_count, zone_count, fresh_zones)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, ts.Unix(), rec.Symbol, rec.Timeframe, rec.SourceFile,
		rec.BarCount, rec.QualityScore, rec.CurrentPrice,
		rec.GapCount, rec.UnfilledGaps, rec.LevelCount, rec.ZoneCount, rec.FreshZones,
	)
	return err
}

// RecentRuns returns the latest runs for a symbol, newest first. An empty
// symbol matches all symbols.
func (r *SQLiteRecorder) RecentRuns(symbol string, limit int) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, timestamp, symbol, timeframe, source_file, bar_count,
		quality_score, current_price, gap_count, unfilled_gaps, level_count,
		zone_count, fresh_zones FROM analysis_runs`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var ts int64
		if err := rows.Scan(&rec.ID, &ts, &rec.Symbol, &rec.Timeframe, &rec.SourceFile,
			&rec.BarCount, &rec.QualityScore, &rec.CurrentPrice,
			&rec.GapCount, &rec.UnfilledGaps, &rec.LevelCount,
			&rec.ZoneCount, &rec.FreshZones); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.GeneratedAt = time.Unix(ts, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
