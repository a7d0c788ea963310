package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/dyike/cortexta/pkg/sqlite"
)

const (
	StatusDone   = "done"
	StatusEmpty  = "empty"
	StatusError  = "error"
	SymbolOK     = "ok"
	SymbolSkip   = "skipped"
	timestampFmt = time.RFC3339
)

// RunRecord is one analysis batch.
type RunRecord struct {
	ID           string
	Symbols      string
	Interval     string
	LookbackDays int
	Provider     string
	Status       string
	OutputFile   string
	Diagnostics  int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// SymbolRecord is one symbol inside a run, analysed or skipped.
type SymbolRecord struct {
	RunID     string
	Seq       int
	Symbol    string
	Status    string
	Reason    string
	Bars      int
	LastClose null.Float
	PlotFile  null.String
}

type RunWithMeta struct {
	RunRecord
	RowID int64
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    symbols TEXT NOT NULL,
    interval TEXT NOT NULL,
    lookback_days INTEGER NOT NULL,
    provider TEXT NOT NULL,
    status TEXT NOT NULL,
    output_file TEXT,
    diagnostics INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_symbols (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    symbol TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT,
    bars INTEGER NOT NULL DEFAULT 0,
    last_close REAL,
    plot_file TEXT,
    UNIQUE(run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_run_symbols_symbol ON run_symbols(symbol);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveRun writes a run and its symbols in one transaction.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, symbols []SymbolRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, symbols, interval, lookback_days, provider, status, output_file, diagnostics, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status=excluded.status,
    output_file=excluded.output_file,
    diagnostics=excluded.diagnostics,
    finished_at=excluded.finished_at
`, run.ID, run.Symbols, run.Interval, run.LookbackDays, run.Provider, run.Status, run.OutputFile,
		run.Diagnostics, run.StartedAt.Format(timestampFmt), run.FinishedAt.Format(timestampFmt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, sym := range symbols {
		seq := sym.Seq
		if seq <= 0 {
			seq = i + 1
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO run_symbols (run_id, seq, symbol, status, reason, bars, last_close, plot_file)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, run.ID, seq, sym.Symbol, sym.Status, sym.Reason, sym.Bars, sym.LastClose, sym.PlotFile)
		if err != nil {
			return fmt.Errorf("insert symbol %s: %w", sym.Symbol, err)
		}
	}
	return tx.Commit()
}

// ListRuns pages runs newest first. A zero cursor starts from the newest row.
func (s *Store) ListRuns(ctx context.Context, cursor int64, limit int) ([]RunWithMeta, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT rowid, id, symbols, interval, lookback_days, provider, status, COALESCE(output_file, ''), diagnostics, started_at, finished_at
FROM runs
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunWithMeta
	for rows.Next() {
		var rec RunWithMeta
		var started, finished string
		if err := rows.Scan(&rec.RowID, &rec.ID, &rec.Symbols, &rec.Interval, &rec.LookbackDays, &rec.Provider,
			&rec.Status, &rec.OutputFile, &rec.Diagnostics, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(timestampFmt, started)
		rec.FinishedAt, _ = time.Parse(timestampFmt, finished)
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

func (s *Store) ListSymbols(ctx context.Context, runID string) ([]SymbolRecord, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("run id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, seq, symbol, status, COALESCE(reason, ''), bars, last_close, plot_file
FROM run_symbols
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []SymbolRecord
	for rows.Next() {
		var rec SymbolRecord
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Symbol, &rec.Status, &rec.Reason, &rec.Bars, &rec.LastClose, &rec.PlotFile); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Recorder persists finished runs.
type Recorder interface {
	SaveRun(ctx context.Context, run RunRecord, symbols []SymbolRecord) error
}

// Noop discards runs; used when history is disabled.
type Noop struct{}

func (Noop) SaveRun(context.Context, RunRecord, []SymbolRecord) error { return nil }
